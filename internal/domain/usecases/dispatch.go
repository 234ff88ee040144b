package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
)

// Texts returned to the agent.
const (
	GreetingMessage        = "Welcome to our technical course recommender! Here are popular technical categories to explore."
	msgSearchUnavailable   = "Course search is temporarily unavailable. Please try again shortly."
	msgLookupUnavailable   = "Course lookup is temporarily unavailable. Please try again shortly."
	msgInternalError       = "Internal error processing request"
	msgCourseTitleRequired = "Course title is required"
	msgInvalidCriteria     = "Please tell me which subject you would like to learn about."
)

const (
	bookingIDPrefix        = "BK-"
	bookingIDLayout        = "20060102150405"
	bookingStartDateLayout = "2006-01-02"

	customMessageFormat  = "custom"
	carouselResponseType = "carousel"
)

// CourseSearcher is the retrieval side the dispatcher needs.
type CourseSearcher interface {
	SearchCourses(ctx context.Context, criteria entities.SearchCriteria) (entities.CourseResultPage, error)
	FindCourse(ctx context.Context, title string) (entities.Course, bool, error)
}

// CriteriaSource turns free text into search criteria.
type CriteriaSource interface {
	Extract(ctx context.Context, text string) entities.SearchCriteria
}

// Per-function parameters. The param tag is the wire name.
type (
	searchParams struct {
		Text string `param:"text"`
	}
	courseDetailsParams struct {
		CourseTitle string `param:"course_title" validate:"required"`
	}
	bookingParams struct {
		CourseTitle string `param:"course_title" validate:"required"`
		UserName    string `param:"user_name" validate:"required"`
		UserEmail   string `param:"user_email" validate:"required"`
	}
)

type errorPayload struct {
	Error string `json:"error"`
}

type resultPayload struct {
	Course  *entities.Course `json:"course,omitempty"`
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
}

// Dispatcher answers one agent function invocation at a time. It holds no
// per-call state and never lets an error or panic escape Dispatch.
type Dispatcher struct {
	courses  CourseSearcher
	criteria CriteriaSource
	validate *validator.Validate
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(courses CourseSearcher, criteria CriteriaSource, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("param")
	})
	return &Dispatcher{
		courses:  courses,
		criteria: criteria,
		validate: v,
		now:      time.Now,
		log:      log.WithField("component", "dispatch"),
	}
}

// SetClock replaces the clock used for booking ids and dates.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Dispatch runs the invoked function and wraps its payload in an Envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, inv entities.FunctionInvocation) (env entities.Envelope) {
	actionGroup := inv.ActionGroup
	if actionGroup == "" {
		actionGroup = entities.DefaultActionGroup
	}
	function := inv.Function
	if function == "" {
		function = entities.FunctionSearchCourses
	}
	log := d.log.WithField("function", function)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Function handler panicked")
			env = NewEnvelope(actionGroup, function, errorPayload{Error: msgInternalError}, http.StatusInternalServerError)
		}
	}()

	params := inv.ParameterMap()
	var payload any
	status := http.StatusOK

	switch function {
	case entities.FunctionDetectGreeting:
		payload = entities.StructuredReply{
			MessageFormat: customMessageFormat,
			ResponseType:  carouselResponseType,
			Message:       GreetingMessage,
		}
	case entities.FunctionSearchCourses:
		payload = d.searchCourses(ctx, log, inv, params)
	case entities.FunctionGetCourseDetails:
		payload = d.courseDetails(ctx, log, params)
	case entities.FunctionBookCourse:
		payload = d.bookCourse(log, params)
	default:
		err := fmt.Errorf("%w: %s", entities.ErrUnsupportedOperation, function)
		log.WithError(err).Warn("Unsupported function")
		env = NewEnvelope(actionGroup, function, errorPayload{Error: fmt.Sprintf("Unsupported function: %s", function)}, http.StatusBadRequest)
		env.Err = err
		return env
	}

	return NewEnvelope(actionGroup, function, payload, status)
}

func (d *Dispatcher) searchCourses(ctx context.Context, log logrus.FieldLogger, inv entities.FunctionInvocation, params map[string]string) any {
	var p searchParams
	decodeParams(params, &p)

	text := p.Text
	if text == "" {
		text = inv.InputText
	}

	criteria := d.criteria.Extract(ctx, text)
	log.WithFields(logrus.Fields{
		"subject": criteria.Subject,
		"level":   criteria.Level,
	}).Info("Searching courses")

	page, err := d.courses.SearchCourses(ctx, criteria)
	var verr *entities.ValidationError
	if errors.As(err, &verr) {
		log.WithError(err).Warn("Rejected search criteria")
		return errorPayload{Error: msgInvalidCriteria}
	}
	if err != nil {
		log.WithError(err).Error("Course search failed")
		return errorPayload{Error: msgSearchUnavailable}
	}
	return page
}

func (d *Dispatcher) courseDetails(ctx context.Context, log logrus.FieldLogger, params map[string]string) any {
	var p courseDetailsParams
	decodeParams(params, &p)
	if err := d.validateParams(p); err != nil {
		return resultPayload{Message: msgCourseTitleRequired}
	}

	course, found, err := d.courses.FindCourse(ctx, p.CourseTitle)
	if err != nil {
		log.WithError(err).Error("Course lookup failed")
		return resultPayload{Message: msgLookupUnavailable}
	}
	if !found {
		return resultPayload{Message: fmt.Sprintf("Course with title '%s' not found", p.CourseTitle)}
	}
	return resultPayload{Course: &course, Success: true}
}

func (d *Dispatcher) bookCourse(log logrus.FieldLogger, params map[string]string) any {
	var p bookingParams
	decodeParams(params, &p)
	if err := d.validateParams(p); err != nil {
		log.WithError(err).Info("Rejected booking")
		var verr *entities.ValidationError
		if errors.As(err, &verr) {
			return resultPayload{Message: bookingFailureMessage(verr)}
		}
		return resultPayload{Message: err.Error()}
	}

	now := d.now()
	return entities.BookingRecord{
		BookingID:   bookingIDPrefix + now.Format(bookingIDLayout),
		CourseTitle: p.CourseTitle,
		UserName:    p.UserName,
		UserEmail:   p.UserEmail,
		StartDate:   now.Format(bookingStartDateLayout),
		Status:      entities.BookingConfirmed,
		Message:     fmt.Sprintf(`Successfully booked "%s"`, p.CourseTitle),
		Success:     true,
	}
}

// validateParams returns the first failed constraint as a *entities.ValidationError.
func (d *Dispatcher) validateParams(p any) error {
	err := d.validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &entities.ValidationError{Field: verrs[0].Field(), Reason: verrs[0].Tag()}
	}
	return err
}

func bookingFailureMessage(verr *entities.ValidationError) string {
	return fmt.Sprintf("Missing required parameter: %s", verr.Field)
}

// decodeParams copies named parameters into the string fields of dst by param tag.
func decodeParams(params map[string]string, dst any) {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := range t.NumField() {
		name := t.Field(i).Tag.Get("param")
		if name == "" {
			continue
		}
		if value, ok := params[name]; ok && v.Field(i).Kind() == reflect.String {
			v.Field(i).SetString(value)
		}
	}
}

// NewEnvelope encodes payload into the agent response envelope.
// String payloads are passed through verbatim.
func NewEnvelope(actionGroup string, function entities.FunctionName, payload any, status int) entities.Envelope {
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			data, _ = json.Marshal(errorPayload{Error: msgInternalError})
			status = http.StatusInternalServerError
		}
		body = string(data)
	}

	return entities.Envelope{
		MessageVersion: entities.EnvelopeVersion,
		Response: entities.EnvelopeResponse{
			ActionGroup: actionGroup,
			Function:    function,
			FunctionResponse: entities.FunctionResponse{
				ResponseBody: entities.ResponseBody{Text: entities.TextBody{Body: body}},
			},
		},
		SessionAttributes:       map[string]string{},
		PromptSessionAttributes: map[string]string{},
		StatusCode:              status,
	}
}
