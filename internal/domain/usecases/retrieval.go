// Package usecases - retrieval.go runs semantic course search against the index.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/ports"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

// DefaultTopK is the number of nearest neighbours requested per search.
const DefaultTopK = 10

// LevelField is the index field the level filter matches on.
const LevelField = "level"

// RetrievalEngine embeds queries and runs filtered nearest-neighbour searches.
type RetrievalEngine struct {
	embedder ports.EmbeddingService
	index    ports.CourseIndex
	policy   resilience.Policy
	topK     int
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewRetrievalEngine creates a RetrievalEngine with injected dependencies.
func NewRetrievalEngine(
	embedder ports.EmbeddingService,
	index ports.CourseIndex,
	policy resilience.Policy,
	topK int,
	log logrus.FieldLogger,
) *RetrievalEngine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RetrievalEngine{
		embedder: embedder,
		index:    index,
		policy:   policy,
		topK:     topK,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.WithField("component", "retrieval"),
	}
}

// Search returns up to k courses for query that match every filter, score-descending.
// Any embedding or index failure is reported as entities.ErrRetrievalUnavailable.
func (e *RetrievalEngine) Search(ctx context.Context, query string, filters []entities.Filter, k int) ([]entities.Course, error) {
	if k <= 0 {
		k = e.topK
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", entities.ErrRetrievalUnavailable, err)
	}

	courses, err := resilience.Execute(ctx, e.policy, "index.search", func(ctx context.Context) ([]entities.Course, error) {
		return e.index.Search(ctx, vector, k, filters)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: searching index: %w", entities.ErrRetrievalUnavailable, err)
	}

	sort.SliceStable(courses, func(i, j int) bool {
		return courses[i].Score > courses[j].Score
	})
	if len(courses) > k {
		courses = courses[:k]
	}

	e.log.WithFields(logrus.Fields{
		"query":   truncate(query, 80),
		"filters": len(filters),
		"hits":    len(courses),
	}).Debug("Search complete")
	return courses, nil
}

// SearchCourses runs a criteria search and returns the requested page.
// Criteria without a subject, with an unknown level or a page below 1 are
// rejected with *entities.ValidationError before anything is embedded.
func (e *RetrievalEngine) SearchCourses(ctx context.Context, criteria entities.SearchCriteria) (entities.CourseResultPage, error) {
	if err := e.validate.Struct(criteria); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return entities.CourseResultPage{}, &entities.ValidationError{Field: verrs[0].Field(), Reason: verrs[0].Tag()}
		}
		return entities.CourseResultPage{}, err
	}

	var filters []entities.Filter
	if criteria.Level != "" {
		filters = append(filters, entities.Filter{Field: LevelField, Value: string(criteria.Level)})
	}

	courses, err := e.Search(ctx, criteria.Subject, filters, e.topK)
	if err != nil {
		return entities.CourseResultPage{}, err
	}
	return Paginate(courses, criteria.Page, criteria.PageSize), nil
}

// FindCourse returns the best match for title. found is false when the index has no hits.
func (e *RetrievalEngine) FindCourse(ctx context.Context, title string) (course entities.Course, found bool, err error) {
	courses, err := e.Search(ctx, title, nil, e.topK)
	if err != nil {
		return entities.Course{}, false, err
	}
	if len(courses) == 0 {
		return entities.Course{}, false, nil
	}
	return courses[0], true, nil
}

// Paginate slices already-ranked results into one page.
// Pages past the end are empty; TotalPages is ceil(total / pageSize).
func Paginate(courses []entities.Course, page, pageSize int) entities.CourseResultPage {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	total := len(courses)
	result := entities.CourseResultPage{
		Courses:      []entities.Course{},
		TotalResults: total,
		CurrentPage:  page,
		TotalPages:   (total + pageSize - 1) / pageSize,
	}

	start := (page - 1) * pageSize
	if start >= total {
		return result
	}
	end := min(start+pageSize, total)
	result.Courses = append(result.Courses, courses[start:end]...)
	return result
}

// IsUnavailable reports whether err means a dependency could not serve the request.
func IsUnavailable(err error) bool {
	return errors.Is(err, entities.ErrRetrievalUnavailable) || errors.Is(err, entities.ErrEmbeddingUnavailable)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
