package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error categories. Match them with errors.Is.
var (
	ErrTransientDependency = errors.New("transient dependency error")
	ErrFatalDependency     = errors.New("fatal dependency error")
	ErrExhaustedRetries    = errors.New("exhausted retries")
)

// throttlingCodes are service error codes that signal rate limiting.
//
//nolint:gochecknoglobals
var throttlingCodes = map[string]bool{
	"ThrottlingException":      true,
	"TooManyRequestsException": true,
	"RequestLimitExceeded":     true,
}

//nolint:gochecknoglobals
var throttlingPhrases = []string{
	"throttling",
	"too many requests",
	"request rate is too high",
}

// CodedError is implemented by dependency errors that carry a service error code.
type CodedError interface {
	error
	ErrorCode() string
}

// StatusError is returned by HTTP adapters for non-success responses.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// ErrorCode returns the service error code, deriving one for HTTP 429.
func (e *StatusError) ErrorCode() string {
	if e.Code == "" && e.StatusCode == http.StatusTooManyRequests {
		return "TooManyRequestsException"
	}
	return e.Code
}

// IsThrottling is the default classifier: it reports whether err is a rate-limit signal.
func IsThrottling(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var coded CodedError
	if errors.As(err, &coded) && throttlingCodes[coded.ErrorCode()] {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range throttlingPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// DependencyError is what Execute returns when an operation fails for good.
type DependencyError struct {
	Name      string
	Attempts  int
	Transient bool
	Kind      error // ErrFatalDependency or ErrExhaustedRetries
	Err       error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempt(s): %v", e.Name, e.Kind, e.Attempts, e.Err)
}

func (e *DependencyError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Transient {
		errs = append(errs, ErrTransientDependency)
	}
	return append(errs, e.Err)
}
