package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultGeminiModel is a fast/economical variant; heavier models burn
	// through free-tier quota on every Check click.
	DefaultGeminiModel = "gemini-1.5-flash"

	geminiTemperature     = 0.2
	geminiMaxOutputTokens = 512
)

// GeminiGrader grades submissions via the Gemini generateContent REST API.
// The endpoint is treated as an opaque text-in/text-out service; no vendor
// SDK is involved.
type GeminiGrader struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

var _ Grader = (*GeminiGrader)(nil)

// NewGeminiGrader creates a grader for the given model. An empty baseURL
// selects the public Gemini endpoint. The API key is checked per request so
// a misconfigured server still starts and surfaces the problem as a
// structured grading failure.
func NewGeminiGrader(baseURL, apiKey, model string) *GeminiGrader {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGrader{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Grade issues a single generateContent request and normalizes the reply.
// It fails with *ConfigError before any network traffic when the API key is
// missing, and with *UpstreamError on a non-success HTTP status.
func (g *GeminiGrader) Grade(ctx context.Context, sub Submission) (*Result, error) {
	if g.apiKey == "" {
		return nil, &ConfigError{Reason: "missing Gemini API key"}
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: systemPrompt}}},
			{Role: "user", Parts: []geminiPart{{Text: buildUserPrompt(sub)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     geminiTemperature,
			MaxOutputTokens: geminiMaxOutputTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.baseURL, g.model, url.QueryEscape(g.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	text := firstCandidateText(gr)
	slog.Debug("gemini reply", "model", g.model, "raw", text)

	return Normalize(text), nil
}

// firstCandidateText returns the first candidate's first text part,
// defaulting to an empty JSON object literal when structurally absent.
func firstCandidateText(gr geminiResponse) string {
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "{}"
	}
	return gr.Candidates[0].Content.Parts[0].Text
}
