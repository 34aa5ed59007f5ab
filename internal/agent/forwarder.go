package agent

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"

	"todo-assistant/internal/service"
)

// WebhookForwarder posts inbound chat messages to the reasoning agent workflow.
type WebhookForwarder struct {
	url    string
	client *http.Client
}

func NewWebhookForwarder(url string, client *http.Client) *WebhookForwarder {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookForwarder{url: url, client: client}
}

func (f *WebhookForwarder) Forward(ctx context.Context, payload service.ForwardPayload) (service.ForwardResult, error) {
	body, err := postJSON(ctx, f.client, f.url, payload)
	if err != nil {
		return service.ForwardResult{}, err
	}
	var result service.ForwardResult
	if gjson.ValidBytes(body) {
		result.ConversationID = gjson.GetBytes(body, "conversationId").String()
	}
	return result, nil
}
