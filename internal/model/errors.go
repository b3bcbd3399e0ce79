package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is returned on any role/capability mismatch. It is
	// surfaced as a generic permission-denied message and never says which
	// fields or operations would have been allowed.
	ErrUnauthorized = errors.New("permission denied")

	// ErrIllegalEdge is returned for a backward or skipping status change.
	ErrIllegalEdge = errors.New("this status change is not allowed")

	// ErrNotFound covers both unknown ids and records the actor may not see.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write lost a version race and was not
	// safe to retry.
	ErrConflict = errors.New("record was modified concurrently")

	// ErrUpstreamUnavailable wraps collaborator timeouts and failures.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
)

// ValidationError carries field-keyed messages so a consumer can highlight
// exactly the offending inputs.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed: %s", strings.Join(keys, ", "))
}

// AsValidation returns the ValidationError inside err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
