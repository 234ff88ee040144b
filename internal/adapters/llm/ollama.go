// Package llm provides the Ollama text extraction adapter.
// Clean Architecture: Adapter implementing ports.TextExtractor.
package llm

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/0xcro3dile/coursebridge/internal/adapters/ollamaerr"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"

	maxTokens   = 128
	temperature = 0.1
)

// OllamaExtractor implements ports.TextExtractor with a single non-streaming generation.
// Retries are the caller's concern.
type OllamaExtractor struct {
	client  *api.Client
	baseURL string
	model   string
}

// NewOllamaExtractor creates a new Ollama extraction adapter.
func NewOllamaExtractor(baseURL, model string) *OllamaExtractor {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		parsed, _ = url.Parse(DefaultBaseURL)
	}

	return &OllamaExtractor{
		client:  api.NewClient(parsed, &http.Client{Timeout: 120 * time.Second}),
		baseURL: baseURL,
		model:   model,
	}
}

// Extract answers prompt with a short, low-temperature completion.
func (a *OllamaExtractor) Extract(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  a.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}

	var sb strings.Builder
	err := a.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", ollamaerr.Convert(err)
	}
	return strings.TrimSpace(sb.String()), nil
}
