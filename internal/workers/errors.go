package workers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConflict marks collisions with concurrent runs or review actions.
	// Conflicts are surfaced to the caller, never silently dropped.
	ErrConflict = errors.New("conflict")
	// ErrValidation marks malformed operator input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks references to unknown hearings, candidates, or schedules.
	ErrNotFound = errors.New("not found")
	// ErrWorker marks an external stage worker failure. Recorded on the
	// hearing and retryable.
	ErrWorker = errors.New("worker error")
	// ErrTimeout marks a stage worker call that exceeded its deadline.
	// Treated as a retryable worker failure.
	ErrTimeout = fmt.Errorf("%w: timeout", ErrWorker)
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrWorker
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the error represents a worker-side failure the
// operator can retry, as opposed to input or state problems that will not
// resolve on their own.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrWorker)
}

// Details extracts the human-readable portion of a wrapped error, with the
// sentinel prefix stripped.
type ErrorDetails struct {
	Marker  error
	Message string
}

// Describe classifies a wrapped error and returns the message without its
// sentinel prefix.
func Describe(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Message: err.Error()}
	for _, marker := range []error{ErrTimeout, ErrWorker, ErrConflict, ErrValidation, ErrNotFound} {
		if errors.Is(err, marker) {
			details.Marker = marker
			prefix := marker.Error() + ": "
			details.Message = strings.TrimPrefix(details.Message, prefix)
			break
		}
	}
	return details
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "worker failure"
	}
	return strings.Join(parts, ": ")
}
