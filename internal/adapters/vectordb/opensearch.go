package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

// VectorField is the k-NN field holding course embeddings.
const VectorField = "content_vector"

// OpenSearchIndex implements ports.CourseIndex against an OpenSearch index with the k-NN plugin.
type OpenSearchIndex struct {
	index     string
	client    *opensearchapi.Client
	transport http.RoundTripper
}

type openSearchSettings struct {
	username  string
	password  string
	transport http.RoundTripper
}

// OpenSearchOption configures an OpenSearchIndex.
type OpenSearchOption func(*openSearchSettings)

// WithBasicAuth sets the credentials sent with every request.
func WithBasicAuth(username, password string) OpenSearchOption {
	return func(s *openSearchSettings) {
		s.username = username
		s.password = password
	}
}

// WithTransport replaces the default HTTP transport.
func WithTransport(rt http.RoundTripper) OpenSearchOption {
	return func(s *openSearchSettings) { s.transport = rt }
}

// NewOpenSearchIndex creates an index client for endpoint/index.
// Retries are left to the resilience policy, so the client's own retry loop is off.
func NewOpenSearchIndex(endpoint, index string, opts ...OpenSearchOption) (*OpenSearchIndex, error) {
	if index == "" {
		index = "courses"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	var s openSearchSettings
	for _, opt := range opts {
		opt(&s)
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses:    []string{strings.TrimRight(endpoint, "/")},
			Username:     s.username,
			Password:     s.password,
			Transport:    s.transport,
			DisableRetry: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating opensearch client: %w", err)
	}

	return &OpenSearchIndex{index: index, client: client, transport: s.transport}, nil
}

type knnQuery struct {
	Source struct {
		Excludes []string `json:"excludes"`
	} `json:"_source"`
	Size  int `json:"size"`
	Query struct {
		Bool struct {
			Must   []map[string]any `json:"must"`
			Filter []map[string]any `json:"filter,omitempty"`
		} `json:"bool"`
	} `json:"query"`
}

// Search runs a k-NN query with exact term filters.
func (o *OpenSearchIndex) Search(ctx context.Context, vector []float32, k int, filters []entities.Filter) ([]entities.Course, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	var q knnQuery
	q.Source.Excludes = []string{VectorField}
	q.Size = k
	q.Query.Bool.Must = []map[string]any{{
		"knn": map[string]any{
			VectorField: map[string]any{"vector": vector, "k": k},
		},
	}}
	for _, f := range filters {
		q.Query.Bool.Filter = append(q.Query.Bool.Filter, map[string]any{
			"term": map[string]any{f.Field: f.Value},
		})
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	resp, err := o.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{o.index},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		return nil, statusError(err)
	}

	var courses []entities.Course
	for _, hit := range resp.Hits.Hits {
		var course entities.Course
		if err := json.Unmarshal(hit.Source, &course); err != nil {
			continue // Skip hits that do not look like courses
		}
		if course.ID == "" {
			course.ID = hit.ID
		}
		course.Score = float64(hit.Score)
		courses = append(courses, course)
	}

	return rankTop(courses, k), nil
}

// Index writes a course document under its ID.
func (o *OpenSearchIndex) Index(ctx context.Context, course entities.Course, vector []float32) error {
	course.Score = 0
	raw, err := json.Marshal(course)
	if err != nil {
		return fmt.Errorf("encoding course: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("encoding course: %w", err)
	}
	delete(doc, "score")
	doc[VectorField] = vector

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding course: %w", err)
	}

	_, err = o.client.Index(ctx, opensearchapi.IndexReq{
		Index:      o.index,
		DocumentID: course.ID,
		Body:       bytes.NewReader(body),
	})
	if err != nil {
		return statusError(err)
	}
	return nil
}

// statusError maps the client's API errors onto *resilience.StatusError so the
// throttling classifier sees the OpenSearch error type and reason.
func statusError(err error) error {
	var structErr *opensearch.StructError
	if errors.As(err, &structErr) {
		return &resilience.StatusError{
			StatusCode: structErr.Status,
			Code:       structErr.Err.Type,
			Message:    structErr.Err.Reason,
		}
	}
	var stringErr *opensearch.StringError
	if errors.As(err, &stringErr) {
		return &resilience.StatusError{StatusCode: stringErr.Status, Message: stringErr.Err}
	}
	return fmt.Errorf("calling opensearch: %w", err)
}

// EnsureIndex creates the index with a k-NN mapping of the given width.
// An index that already exists is left as is.
func (o *OpenSearchIndex) EnsureIndex(ctx context.Context, dimensions int) error {
	mapping := map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"courseId":       map[string]any{"type": "keyword"},
				"title":          map[string]any{"type": "text", "fields": map[string]any{"keyword": map[string]any{"type": "keyword"}}},
				"description":    map[string]any{"type": "text"},
				"level":          map[string]any{"type": "keyword"},
				"duration":       map[string]any{"type": "text"},
				"duration_hours": map[string]any{"type": "integer"},
				"price":          map[string]any{"type": "float"},
				"instructor":     map[string]any{"type": "text"},
				"rating":         map[string]any{"type": "float"},
				"keywords":       map[string]any{"type": "keyword"},
				VectorField:      map[string]any{"type": "knn_vector", "dimension": dimensions},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshaling mapping: %w", err)
	}

	_, err = o.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: o.index,
		Body:  bytes.NewReader(body),
	})
	if err == nil {
		return nil
	}
	err = statusError(err)
	var statusErr *resilience.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == "resource_already_exists_exception" {
		return nil
	}
	return err
}

// Close releases idle connections of a custom transport.
func (o *OpenSearchIndex) Close() error {
	if c, ok := o.transport.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	return nil
}
