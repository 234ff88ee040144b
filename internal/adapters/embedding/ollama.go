// Package embedding provides the Ollama embedding adapter.
// Clean Architecture: This is an adapter that implements ports.EmbeddingService.
// It knows about Ollama specifics but the domain layer doesn't.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/adapters/ollamaerr"
	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultDimensions = 768
)

// ErrDimensionMismatch is returned when the model answers with a vector of the wrong length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// OllamaAdapter implements ports.EmbeddingService using the Ollama API.
type OllamaAdapter struct {
	client     *api.Client
	baseURL    string
	model      string
	dimensions int
	policy     resilience.Policy
	log        logrus.FieldLogger
}

// NewOllamaAdapter creates a new Ollama embedding adapter.
// Every call goes through policy; dimensions <= 0 selects DefaultDimensions.
func NewOllamaAdapter(baseURL, model string, dimensions int, policy resilience.Policy, log logrus.FieldLogger) *OllamaAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		parsed, _ = url.Parse(DefaultBaseURL)
	}

	return &OllamaAdapter{
		client:     api.NewClient(parsed, &http.Client{Timeout: 60 * time.Second}),
		baseURL:    baseURL,
		model:      model,
		dimensions: dimensions,
		policy:     policy,
		log:        log.WithField("component", "embedding"),
	}
}

// Dimensions is the vector length this adapter returns.
func (a *OllamaAdapter) Dimensions() int {
	return a.dimensions
}

// Embed generates an embedding for a single text.
// Failures are reported as entities.ErrEmbeddingUnavailable wrapping the cause.
func (a *OllamaAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := resilience.Execute(ctx, a.policy, "embedding", func(ctx context.Context) ([]float32, error) {
		resp, err := a.client.Embed(ctx, &api.EmbedRequest{Model: a.model, Input: text})
		if err != nil {
			return nil, ollamaerr.Convert(err)
		}
		if len(resp.Embeddings) == 0 {
			return nil, errors.New("ollama returned no embeddings")
		}
		return resp.Embeddings[0], nil
	})
	if err != nil {
		a.log.WithError(err).WithField("model", a.model).Warn("Embedding failed")
		return nil, fmt.Errorf("%w: %w", entities.ErrEmbeddingUnavailable, err)
	}

	if len(vector) != a.dimensions {
		return nil, fmt.Errorf("%w: %w: got %d, want %d",
			entities.ErrEmbeddingUnavailable, ErrDimensionMismatch, len(vector), a.dimensions)
	}

	a.log.WithField("dimensions", len(vector)).Debug("Embedded text")
	return vector, nil
}
