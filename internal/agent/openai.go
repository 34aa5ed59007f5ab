package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"todo-assistant/internal/service"
)

const enrichPrompt = `You improve personal to-do items.
Given a task title and optional description, answer with a JSON object only:
{"enhancedDescription": "<one clear paragraph>", "enhancementSteps": ["<short actionable step>", ...]}
Use 3 to 6 steps. Do not add any text outside the JSON object.`

// OpenAIEnricher asks a chat model for the enhancement directly.
type OpenAIEnricher struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAIEnricher(apiKey, model string, opts ...option.RequestOption) *OpenAIEnricher {
	chatModel := openai.ChatModel(model)
	if chatModel == "" {
		chatModel = openai.ChatModelGPT4oMini
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIEnricher{
		client: openai.NewClient(opts...),
		model:  chatModel,
	}
}

func (e *OpenAIEnricher) Enrich(ctx context.Context, req service.EnrichRequest) (service.EnrichResult, error) {
	var user strings.Builder
	user.WriteString("Title: ")
	user.WriteString(req.Title)
	if req.Description != "" {
		user.WriteString("\nDescription: ")
		user.WriteString(req.Description)
	}

	completion, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(enrichPrompt),
			openai.UserMessage(user.String()),
		},
	})
	if err != nil {
		return service.EnrichResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return service.EnrichResult{}, fmt.Errorf("chat completion returned no choices")
	}
	return parseEnrichment([]byte(stripCodeFence(completion.Choices[0].Message.Content)))
}

// stripCodeFence removes a ```json fence some models wrap JSON in.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
