// Package app builds adapters from configuration for the coursebridge commands.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/adapters/embedding"
	"github.com/0xcro3dile/coursebridge/internal/adapters/vectordb"
	"github.com/0xcro3dile/coursebridge/internal/domain/ports"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
	"github.com/0xcro3dile/coursebridge/internal/infrastructure/config"
)

// Index is a course index the commands can close on exit.
type Index interface {
	ports.CourseIndex
	Close() error
}

type nopCloser struct{ ports.CourseIndex }

func (nopCloser) Close() error { return nil }

// Policy returns the retry policy described by cfg. Every retry is logged
// and handed to the extra observers.
func Policy(cfg config.Config, log logrus.FieldLogger, observers ...func(resilience.RetryEvent)) resilience.Policy {
	p := resilience.DefaultPolicy()
	p.MaxRetries = cfg.MaxRetries
	p.InitialBackoff = cfg.InitialBackoff
	p.MaxBackoff = cfg.MaxBackoff

	p = p.WithObserver(func(ev resilience.RetryEvent) {
		log.WithFields(logrus.Fields{
			"dependency": ev.Name,
			"attempt":    ev.Attempt,
			"wait":       ev.Wait.String(),
		}).WithError(ev.Err).Warn("Dependency throttled, retrying")
	})
	for _, fn := range observers {
		p = p.WithObserver(fn)
	}
	return p
}

// OpenIndex opens the course index selected by cfg.IndexBackend.
func OpenIndex(cfg config.Config) (Index, error) {
	switch cfg.IndexBackend {
	case "memory":
		return nopCloser{vectordb.NewInMemoryIndex()}, nil
	case "sqlite":
		idx, err := vectordb.NewSQLiteIndex(cfg.DataPath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "opensearch":
		var opts []vectordb.OpenSearchOption
		if cfg.IndexUsername != "" {
			opts = append(opts, vectordb.WithBasicAuth(cfg.IndexUsername, cfg.IndexPassword))
		}
		idx, err := vectordb.NewOpenSearchIndex(cfg.IndexEndpoint, cfg.IndexName, opts...)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
	return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
}

// EnsureSchema prepares indexes that need a mapping before the first write.
func EnsureSchema(ctx context.Context, index Index, dimensions int) error {
	if s, ok := index.(interface {
		EnsureIndex(ctx context.Context, dimensions int) error
	}); ok {
		return s.EnsureIndex(ctx, dimensions)
	}
	return nil
}

// Embedder returns the embedding client described by cfg.
func Embedder(cfg config.Config, policy resilience.Policy, log logrus.FieldLogger) *embedding.OllamaAdapter {
	return embedding.NewOllamaAdapter(cfg.OllamaURL, cfg.EmbeddingModel, cfg.EmbeddingDimensions, policy, log)
}
