// Package agent talks to the external enrichment and reasoning agents.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"todo-assistant/internal/service"
)

const maxResponseBody = 1 << 20

// WebhookEnricher calls an n8n workflow that answers with the enhancement.
type WebhookEnricher struct {
	url    string
	client *http.Client
}

func NewWebhookEnricher(url string, client *http.Client) *WebhookEnricher {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookEnricher{url: url, client: client}
}

type enrichPayload struct {
	TaskID      string `json:"taskId"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (e *WebhookEnricher) Enrich(ctx context.Context, req service.EnrichRequest) (service.EnrichResult, error) {
	body, err := postJSON(ctx, e.client, e.url, enrichPayload{
		TaskID:      req.TaskID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return service.EnrichResult{}, err
	}
	return parseEnrichment(body)
}

// parseEnrichment accepts camelCase or snake_case keys, at the top level or
// inside the first element of an array (n8n "respond to webhook" output).
func parseEnrichment(body []byte) (service.EnrichResult, error) {
	if !gjson.ValidBytes(body) {
		return service.EnrichResult{}, fmt.Errorf("malformed enrichment response")
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		root = root.Get("0")
	}

	description := firstString(root, "enhancedDescription", "enhanced_description")
	if strings.TrimSpace(description) == "" {
		return service.EnrichResult{}, fmt.Errorf("enrichment response has no enhanced description")
	}

	var steps []string
	stepsValue := root.Get("enhancementSteps")
	if !stepsValue.Exists() {
		stepsValue = root.Get("enhancement_steps")
	}
	for _, step := range stepsValue.Array() {
		if text := strings.TrimSpace(step.String()); text != "" {
			steps = append(steps, text)
		}
	}

	return service.EnrichResult{EnhancedDescription: description, EnhancementSteps: steps}, nil
}

func firstString(root gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := root.Get(path); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}

// postJSON sends v and returns the body of a 2xx response.
func postJSON(ctx context.Context, client *http.Client, url string, v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook returned %s", resp.Status)
	}
	return body, nil
}
