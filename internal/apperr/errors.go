// Package apperr holds the error kinds shared by the pipeline, the stores and
// the HTTP layer. Callers match them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInputValidation         = errors.New("input validation failed")
	ErrNotFound                = errors.New("not found")
	ErrNoCandidatesFound       = errors.New("no candidates found")
	ErrConceptGenerationFailed = errors.New("concept generation failed")
	ErrRateLimited             = errors.New("rate limited")
	ErrDegradedStyle           = errors.New("style extraction degraded")
	ErrProviderFailure         = errors.New("provider failure")
)

// ProviderError is returned by the capability adapters. RateLimited is decided
// once, where the provider response is inspected.
type ProviderError struct {
	Provider    string
	StatusCode  int
	RateLimited bool
	Err         error
}

func (e *ProviderError) Error() string {
	kind := "failed"
	if e.RateLimited {
		kind = "rate limited"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Provider, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.RateLimited
	case ErrProviderFailure:
		return true
	}
	return false
}

func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInputValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
