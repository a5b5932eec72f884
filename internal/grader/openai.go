package grader

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGrader grades submissions through any OpenAI-compatible chat
// completions endpoint (Ollama, LM Studio, vLLM, or the hosted API).
// Selected with --llm-provider openai for setups without a Gemini key.
type OpenAIGrader struct {
	api   *openai.Client
	model string
}

var _ Grader = (*OpenAIGrader)(nil)

// NewOpenAIGrader creates a grader against an OpenAI-compatible API.
// baseURL may be empty for the hosted endpoint. Local servers usually
// accept any non-empty key.
func NewOpenAIGrader(baseURL, apiKey, model string) *OpenAIGrader {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIGrader{
		api:   openai.NewClientWithConfig(config),
		model: model,
	}
}

// Grade sends the two prompt segments as system and user chat messages and
// normalizes the first choice's content.
func (g *OpenAIGrader) Grade(ctx context.Context, sub Submission) (*Result, error) {
	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(sub)},
		},
		Temperature: geminiTemperature,
		MaxTokens:   geminiMaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}

	text := "{}"
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	slog.Debug("LLM reply", "model", g.model, "raw", text)

	return Normalize(text), nil
}
