package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lesson id does not resolve to a stored lesson.
	ErrNotFound = errors.New("lesson not found")

	// ErrDuplicateFingerprint signals a storage-level uniqueness violation on the
	// fingerprint. It is resolved internally by re-reading the stored lesson and
	// is never surfaced to callers.
	ErrDuplicateFingerprint = errors.New("lesson fingerprint already stored")

	// ErrBudgetExceeded is returned before dispatching a provider call whose
	// reserved cost would push the request past its token budget. Never retried.
	ErrBudgetExceeded = errors.New("token budget exceeded")

	// ErrGenerationTimeout is returned after the bounded retry for a provider
	// call that did not answer within its per-call deadline.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrGenerationFailed is returned after the bounded retry for a provider
	// error or an unusable payload.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrStorage wraps persistence failures. Fatal to the caller.
	ErrStorage = errors.New("storage failure")
)

// ValidationError rejects raw input before any side effect. Nothing is
// persisted and no provider call is made for a request that fails validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
