package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/ports"
	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

const (
	// DefaultSubject is used when the user's text is empty.
	DefaultSubject = "general"

	// noneAnswer is what the extractor answers when a criterion is not mentioned.
	noneAnswer = "NONE"

	defaultPageSize = 10
)

// criterion is an optional search criterion pulled from free text.
type criterion string

const (
	criterionLevel      criterion = "level"
	criterionDuration   criterion = "duration"
	criterionPriceRange criterion = "price_range"
)

//nolint:gochecknoglobals
var criterionDescriptions = map[criterion]string{
	criterionLevel:      "difficulty level (beginner, intermediate, or expert)",
	criterionDuration:   "course duration (e.g., '4 weeks', '2 months')",
	criterionPriceRange: "price range or budget (e.g., 'under $100', 'free')",
}

// CriteriaExtractor turns a free-text request into SearchCriteria.
// Every extraction call is retried independently; a failed call leaves its criterion unset.
type CriteriaExtractor struct {
	extractor ports.TextExtractor
	policy    resilience.Policy
	log       logrus.FieldLogger
}

// NewCriteriaExtractor creates a CriteriaExtractor.
func NewCriteriaExtractor(extractor ports.TextExtractor, policy resilience.Policy, log logrus.FieldLogger) *CriteriaExtractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CriteriaExtractor{
		extractor: extractor,
		policy:    policy,
		log:       log.WithField("component", "extract"),
	}
}

// Extract builds first-page criteria for text. Subject is never empty.
func (x *CriteriaExtractor) Extract(ctx context.Context, text string) entities.SearchCriteria {
	criteria := entities.SearchCriteria{
		Subject:  x.subject(ctx, text),
		Page:     1,
		PageSize: defaultPageSize,
	}
	criteria.Level = entities.ParseLevel(x.optional(ctx, text, criterionLevel))
	criteria.Duration = x.optional(ctx, text, criterionDuration)
	criteria.PriceRange = x.optional(ctx, text, criterionPriceRange)
	return criteria
}

func (x *CriteriaExtractor) subject(ctx context.Context, text string) string {
	answer, err := x.ask(ctx, "subject", subjectPrompt(text))
	if err == nil && answer != "" && answer != noneAnswer {
		return answer
	}
	if err != nil {
		x.log.WithError(err).Warn("Subject extraction failed, using fallback")
	}
	return FallbackSubject(text)
}

func (x *CriteriaExtractor) optional(ctx context.Context, text string, c criterion) string {
	answer, err := x.ask(ctx, string(c), criterionPrompt(text, c))
	if err != nil {
		x.log.WithError(err).WithField("criterion", c).Warn("Criterion extraction failed")
		return ""
	}
	if answer == noneAnswer {
		return ""
	}
	return answer
}

func (x *CriteriaExtractor) ask(ctx context.Context, name, prompt string) (string, error) {
	answer, err := resilience.Execute(ctx, x.policy, "extract."+name, func(ctx context.Context) (string, error) {
		return x.extractor.Extract(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return cleanAnswer(answer), nil
}

// FallbackSubject is the first whitespace token of text, or DefaultSubject.
func FallbackSubject(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return DefaultSubject
	}
	return fields[0]
}

func cleanAnswer(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'.`)
}

func subjectPrompt(text string) string {
	return fmt.Sprintf(`Extract the main subject or topic the user is interested in learning from the following text:
%q

Return ONLY the subject or topic as a single word or short phrase, nothing else.`, text)
}

func criterionPrompt(text string, c criterion) string {
	desc := criterionDescriptions[c]
	return fmt.Sprintf(`Extract the %s from the following text:
%q

If the %s is mentioned, return ONLY that value as a short phrase.
If not mentioned, return "%s".`, desc, text, desc, noneAnswer)
}
