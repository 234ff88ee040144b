package usecases

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

func sampleCourses(n int) []entities.Course {
	courses := make([]entities.Course, n)
	for i := range courses {
		courses[i] = entities.Course{
			ID:    fmt.Sprintf("%d", i+1),
			Title: fmt.Sprintf("Course %d", i+1),
			Score: float64(n-i) / float64(n),
		}
	}
	return courses
}

func newEngine(index *mockIndex, embedder *mockEmbedder) *RetrievalEngine {
	return NewRetrievalEngine(embedder, index, instantPolicy(), 10, quietLogger())
}

func TestRetrievalEngine_SearchSortsByScore(t *testing.T) {
	index := &mockIndex{courses: []entities.Course{
		{ID: "a", Score: 0.2},
		{ID: "b", Score: 0.9},
		{ID: "c", Score: 0.5},
		{ID: "d", Score: 0.5},
	}}
	engine := newEngine(index, &mockEmbedder{})

	got, err := engine.Search(context.Background(), "python", nil, 10)

	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids, "ties keep index order")
	assert.Equal(t, 10, index.lastK)
}

func TestRetrievalEngine_SearchPassesFilters(t *testing.T) {
	index := &mockIndex{}
	engine := newEngine(index, &mockEmbedder{})

	_, err := engine.SearchCourses(context.Background(), entities.SearchCriteria{
		Subject: "machine learning", Level: entities.LevelExpert, Page: 1, PageSize: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, []entities.Filter{{Field: "level", Value: "expert"}}, index.lastFilters)
}

func TestRetrievalEngine_NoLevelMeansNoFilter(t *testing.T) {
	index := &mockIndex{}
	engine := newEngine(index, &mockEmbedder{})

	_, err := engine.SearchCourses(context.Background(), entities.SearchCriteria{Subject: "go", Page: 1, PageSize: 10})

	require.NoError(t, err)
	assert.Empty(t, index.lastFilters)
}

func TestRetrievalEngine_RejectsInvalidCriteria(t *testing.T) {
	tests := []struct {
		name     string
		criteria entities.SearchCriteria
		field    string
	}{
		{name: "empty subject", criteria: entities.SearchCriteria{Page: 1, PageSize: 10}, field: "Subject"},
		{name: "unknown level", criteria: entities.SearchCriteria{Subject: "go", Level: "guru", Page: 1, PageSize: 10}, field: "Level"},
		{name: "page zero", criteria: entities.SearchCriteria{Subject: "go", PageSize: 10}, field: "Page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := &mockEmbedder{}
			engine := newEngine(&mockIndex{}, embedder)

			_, err := engine.SearchCourses(context.Background(), tt.criteria)

			var verr *entities.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.False(t, errors.Is(err, entities.ErrRetrievalUnavailable))
			assert.Empty(t, embedder.calls, "nothing is embedded for rejected criteria")
		})
	}
}

func TestRetrievalEngine_EmbeddingFailureIsUnavailable(t *testing.T) {
	embedder := &mockEmbedder{embedFn: func(string) ([]float32, error) {
		return nil, fmt.Errorf("%w: model down", entities.ErrEmbeddingUnavailable)
	}}
	engine := newEngine(&mockIndex{}, embedder)

	_, err := engine.Search(context.Background(), "python", nil, 0)

	assert.ErrorIs(t, err, entities.ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, entities.ErrEmbeddingUnavailable)
	assert.True(t, IsUnavailable(err))
}

func TestRetrievalEngine_RetriesThrottledIndex(t *testing.T) {
	calls := 0
	index := &mockIndex{searchFn: func(int, []entities.Filter) ([]entities.Course, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("429 Too Many Requests")
		}
		return sampleCourses(2), nil
	}}
	engine := newEngine(index, &mockEmbedder{})

	got, err := engine.Search(context.Background(), "python", nil, 10)

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 3, calls)
}

func TestRetrievalEngine_FatalIndexErrorIsUnavailable(t *testing.T) {
	calls := 0
	index := &mockIndex{searchFn: func(int, []entities.Filter) ([]entities.Course, error) {
		calls++
		return nil, errors.New("index_not_found_exception")
	}}
	engine := newEngine(index, &mockEmbedder{})

	_, err := engine.Search(context.Background(), "python", nil, 10)

	assert.ErrorIs(t, err, entities.ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, resilience.ErrFatalDependency)
	assert.Equal(t, 1, calls)
}

func TestRetrievalEngine_FindCourse(t *testing.T) {
	index := &mockIndex{courses: sampleCourses(3)}
	engine := newEngine(index, &mockEmbedder{})

	course, found, err := engine.FindCourse(context.Background(), "Course 1")

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", course.ID)
	assert.Nil(t, index.lastFilters)
}

func TestRetrievalEngine_FindCourseNotFound(t *testing.T) {
	engine := newEngine(&mockIndex{}, &mockEmbedder{})

	_, found, err := engine.FindCourse(context.Background(), "Quantum Basket Weaving")

	require.NoError(t, err)
	assert.False(t, found)
}

func TestPaginate(t *testing.T) {
	courses := sampleCourses(23)

	tests := []struct {
		name      string
		page      int
		pageSize  int
		wantLen   int
		wantPages int
		wantFirst string
	}{
		{name: "first page", page: 1, pageSize: 10, wantLen: 10, wantPages: 3, wantFirst: "1"},
		{name: "last partial page", page: 3, pageSize: 10, wantLen: 3, wantPages: 3, wantFirst: "21"},
		{name: "past the end", page: 4, pageSize: 10, wantLen: 0, wantPages: 3},
		{name: "exact division", page: 1, pageSize: 23, wantLen: 23, wantPages: 1, wantFirst: "1"},
		{name: "page size one", page: 5, pageSize: 1, wantLen: 1, wantPages: 23, wantFirst: "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Paginate(courses, tt.page, tt.pageSize)

			assert.Len(t, page.Courses, tt.wantLen)
			assert.Equal(t, 23, page.TotalResults)
			assert.Equal(t, tt.page, page.CurrentPage)
			assert.Equal(t, tt.wantPages, page.TotalPages)
			if tt.wantFirst != "" {
				assert.Equal(t, tt.wantFirst, page.Courses[0].ID)
			}
		})
	}
}

func TestPaginate_CeilLaw(t *testing.T) {
	for total := 0; total <= 30; total++ {
		for size := 1; size <= 12; size++ {
			page := Paginate(sampleCourses(total), 1, size)
			assert.GreaterOrEqual(t, page.TotalPages*size, total)
			assert.Less(t, (page.TotalPages-1)*size, max(total, 1))
		}
	}
}

func TestPaginate_Idempotent(t *testing.T) {
	courses := sampleCourses(15)
	first := Paginate(courses, 2, 4)
	second := Paginate(courses, 2, 4)
	assert.Equal(t, first, second)
}

func TestPaginate_EmptyPageEncodesAsArray(t *testing.T) {
	page := Paginate(nil, 1, 10)
	assert.NotNil(t, page.Courses)
	assert.Equal(t, 0, page.TotalPages)
}
