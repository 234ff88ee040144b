// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// Adapters are injected; nothing here knows which index, model or channel is behind a port.
package usecases

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/ports"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

// SeedUseCase loads a course catalog into the index.
type SeedUseCase struct {
	embedder ports.EmbeddingService
	index    ports.CourseIndex
	policy   resilience.Policy
	log      logrus.FieldLogger
}

// NewSeedUseCase creates a SeedUseCase with injected dependencies.
func NewSeedUseCase(embedder ports.EmbeddingService, index ports.CourseIndex, policy resilience.Policy, log logrus.FieldLogger) *SeedUseCase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SeedUseCase{
		embedder: embedder,
		index:    index,
		policy:   policy,
		log:      log.WithField("component", "seed"),
	}
}

// Seed embeds and indexes every course, numbering courses without an ID from 1.
// It stops at the first failure and returns how many courses were stored.
func (uc *SeedUseCase) Seed(ctx context.Context, courses []entities.Course) (int, error) {
	for i, course := range courses {
		if course.ID == "" {
			course.ID = strconv.Itoa(i + 1)
		}
		course.Score = 0

		vector, err := uc.embedder.Embed(ctx, course.EmbeddingText())
		if err != nil {
			return i, fmt.Errorf("embedding course %q: %w", course.Title, err)
		}

		err = resilience.Do(ctx, uc.policy, "index.store", func(ctx context.Context) error {
			return uc.index.Index(ctx, course, vector)
		})
		if err != nil {
			return i, fmt.Errorf("indexing course %q: %w", course.Title, err)
		}

		uc.log.WithFields(logrus.Fields{
			"course_id": course.ID,
			"title":     course.Title,
		}).Info("Indexed course")
	}
	return len(courses), nil
}
