// Package ollamaerr translates Ollama client errors for the resilience classifier.
package ollamaerr

import (
	"errors"

	"github.com/ollama/ollama/api"

	"github.com/0xcro3dile/coursebridge/internal/domain/resilience"
)

// Convert maps Ollama status errors onto resilience.StatusError so that
// HTTP 429 responses are classified as throttling. Other errors pass through.
func Convert(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &resilience.StatusError{
			StatusCode: statusErr.StatusCode,
			Message:    statusErr.ErrorMessage,
		}
	}
	return err
}
