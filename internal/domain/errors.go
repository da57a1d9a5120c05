package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the target order is absent from the source asked.
	ErrNotFound = errors.New("order not found")
	// ErrUnavailable means every tier able to serve the request failed.
	ErrUnavailable = errors.New("order source unavailable")
	// ErrUnsupported is returned by a tier that cannot perform an operation at all.
	ErrUnsupported = errors.New("operation not supported by source")
)

// ValidationError reports bad input. It never triggers a fallback.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
