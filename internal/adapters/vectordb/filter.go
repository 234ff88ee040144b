// Package vectordb provides course index adapters.
// Clean Architecture: Adapters implementing ports.CourseIndex.
// The in-memory and SQLite indexes rank by brute-force cosine similarity;
// OpenSearch delegates ranking to its k-NN plugin.
package vectordb

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

// ErrUnknownField is returned for filters on fields a course does not have.
var ErrUnknownField = errors.New("unknown filter field")

// fieldValues returns the values of a course field. keywords may yield several.
func fieldValues(c entities.Course, field string) ([]string, error) {
	switch field {
	case "level":
		return []string{string(c.Level)}, nil
	case "courseId", "id":
		return []string{c.ID}, nil
	case "title":
		return []string{c.Title}, nil
	case "instructor":
		return []string{c.Instructor}, nil
	case "duration":
		return []string{c.Duration}, nil
	case "keywords":
		return c.Keywords, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// matches reports whether c satisfies every filter (exact, case-insensitive).
func matches(c entities.Course, filters []entities.Filter) (bool, error) {
	for _, f := range filters {
		values, err := fieldValues(c, f.Field)
		if err != nil {
			return false, err
		}
		found := false
		for _, v := range values {
			if strings.EqualFold(v, f.Value) {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

func validateFilters(filters []entities.Filter) error {
	for _, f := range filters {
		if _, err := fieldValues(entities.Course{}, f.Field); err != nil {
			return err
		}
	}
	return nil
}

// rankTop sorts by score descending, keeping insertion order on ties, and keeps k.
func rankTop(courses []entities.Course, k int) []entities.Course {
	sort.SliceStable(courses, func(i, j int) bool {
		return courses[i].Score > courses[j].Score
	})
	if k > 0 && len(courses) > k {
		courses = courses[:k]
	}
	return courses
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
