package vectordb

import (
	"context"
	"sync"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

type memoryRecord struct {
	course entities.Course
	vector []float32
}

// InMemoryIndex is a process-local course index, used for development and tests.
// Open-Closed: Can be replaced with the SQLite or OpenSearch index without changing usecases.
type InMemoryIndex struct {
	mu      sync.RWMutex
	records []memoryRecord
	byID    map[string]int // courseID -> position in records
}

// NewInMemoryIndex creates a new in-memory course index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{byID: make(map[string]int)}
}

// Index stores a course, replacing any course with the same ID in place.
func (s *InMemoryIndex) Index(ctx context.Context, course entities.Course, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	course.Score = 0
	rec := memoryRecord{course: course, vector: append([]float32(nil), vector...)}
	if pos, ok := s.byID[course.ID]; ok {
		s.records[pos] = rec
		return nil
	}
	s.byID[course.ID] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

// Search finds the k courses most similar to vector that match every filter.
func (s *InMemoryIndex) Search(ctx context.Context, vector []float32, k int, filters []entities.Filter) ([]entities.Course, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []entities.Course
	for _, rec := range s.records {
		ok, err := matches(rec.course, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		c := rec.course
		c.Keywords = append([]string(nil), c.Keywords...)
		c.Score = cosineSimilarity(vector, rec.vector)
		results = append(results, c)
	}

	return rankTop(results, k), nil
}

// Count returns the number of indexed courses.
func (s *InMemoryIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all data from the index.
func (s *InMemoryIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.byID = make(map[string]int)
	return nil
}
