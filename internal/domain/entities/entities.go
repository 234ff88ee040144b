// Package entities contains core business entities.
// These are pure domain objects with no knowledge of the agent, the index or the channel.
package entities

import (
	"errors"
	"fmt"
	"strings"
)

// FunctionName identifies an operation the agent may invoke.
type FunctionName string

const (
	FunctionDetectGreeting   FunctionName = "detectGreeting"
	FunctionSearchCourses    FunctionName = "searchCourses"
	FunctionGetCourseDetails FunctionName = "getCourseDetails"
	FunctionBookCourse       FunctionName = "bookCourse"
)

// DefaultActionGroup is used when an invocation does not name its action group.
const DefaultActionGroup = "CourseOperations"

// Parameter is one name/value pair supplied by the agent.
type Parameter struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}

// FunctionInvocation is one function call issued by the agent.
type FunctionInvocation struct {
	Function    FunctionName `json:"function"`
	InputText   string       `json:"inputText"`
	ActionGroup string       `json:"actionGroup,omitempty"`
	Parameters  []Parameter  `json:"parameters"`
}

// ParameterMap flattens the parameter list. Later duplicates win.
func (inv FunctionInvocation) ParameterMap() map[string]string {
	params := make(map[string]string, len(inv.Parameters))
	for _, p := range inv.Parameters {
		if p.Name == "" {
			continue
		}
		params[p.Name] = p.Value
	}
	return params
}

// Level is a course difficulty level.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelExpert       Level = "expert"
)

// ParseLevel maps free text onto a Level. Unknown text yields "".
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "beginner"), strings.Contains(s, "basic"), strings.Contains(s, "intro"):
		return LevelBeginner
	case strings.Contains(s, "intermediate"):
		return LevelIntermediate
	case strings.Contains(s, "expert"), strings.Contains(s, "advanced"):
		return LevelExpert
	}
	return ""
}

// SearchCriteria is what searchCourses extracts from the user's text.
type SearchCriteria struct {
	Subject    string `validate:"required"`
	Level      Level  `validate:"omitempty,oneof=beginner intermediate expert"`
	Duration   string
	PriceRange string
	Page       int `validate:"min=1"`
	PageSize   int `validate:"min=1"`
}

// Course is a transient, read-only copy of an index record.
type Course struct {
	ID            string   `json:"courseId" yaml:"id"`
	Title         string   `json:"title" yaml:"title"`
	Description   string   `json:"description" yaml:"description"`
	Level         Level    `json:"level" yaml:"level"`
	Duration      string   `json:"duration,omitempty" yaml:"duration"`
	DurationHours int      `json:"duration_hours" yaml:"duration_hours"`
	Price         float64  `json:"price" yaml:"price"`
	Instructor    string   `json:"instructor" yaml:"instructor"`
	Rating        float64  `json:"rating" yaml:"rating"`
	Keywords      []string `json:"keywords,omitempty" yaml:"keywords"`
	Score         float64  `json:"score" yaml:"-"` // Retrieval relevance, never stored
}

// EmbeddingText is the text a course is indexed under.
func (c Course) EmbeddingText() string {
	parts := []string{c.Title, c.Description}
	if len(c.Keywords) > 0 {
		parts = append(parts, strings.Join(c.Keywords, ", "))
	}
	return strings.Join(parts, "\n")
}

// CourseResultPage is one page of search results.
type CourseResultPage struct {
	Courses      []Course `json:"courses"`
	TotalResults int      `json:"totalResults"`
	CurrentPage  int      `json:"currentPage"`
	TotalPages   int      `json:"totalPages"`
}

// Filter is an exact-match constraint on an index field.
type Filter struct {
	Field string
	Value string
}

// BookingStatus is the state of a booking.
type BookingStatus string

const BookingConfirmed BookingStatus = "CONFIRMED"

// BookingRecord is produced by bookCourse and never retained.
type BookingRecord struct {
	BookingID   string        `json:"bookingId"`
	CourseTitle string        `json:"courseTitle"`
	UserName    string        `json:"userName"`
	UserEmail   string        `json:"userEmail"`
	StartDate   string        `json:"startDate"`
	Status      BookingStatus `json:"status"`
	Message     string        `json:"message"`
	Success     bool          `json:"success"`
}

// Domain errors. Dependency errors live in package resilience.
var (
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// ValidationError reports a missing or malformed parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}
