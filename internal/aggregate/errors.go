package aggregate

import (
	"errors"
	"fmt"
)

// ErrInvalidResponse marks a response rejected before it touched the
// proposal or event.
var ErrInvalidResponse = errors.New("invalid participant response")

// ValidationError explains why a response was rejected.
type ValidationError struct {
	ParticipantID string
	Reason        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v from %q: %v", ErrInvalidResponse, e.ParticipantID, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrInvalidResponse, e.Reason}
}

func invalid(pid string, format string, args ...any) error {
	return &ValidationError{ParticipantID: pid, Reason: fmt.Errorf(format, args...)}
}
