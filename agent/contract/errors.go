package contract

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput               = errors.New("input text is empty")
	ErrSessionNotFound          = errors.New("session not found")
	ErrNoResultsAfterFilter     = errors.New("no results left after filtering")
	ErrSummarizationUnavailable = errors.New("summarization unavailable")
	ErrModelInvoke              = errors.New("model invoke failed")
	ErrPromptMissing            = errors.New("required prompt is missing")
	ErrValidation               = errors.New("validation failed")
)

// FailureKind classifies why a single provider dropped out of a fan-out.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureAuth        FailureKind = "auth"
	FailureRateLimited FailureKind = "rate_limited"
	FailureMalformed   FailureKind = "malformed"
	FailureUnavailable FailureKind = "unavailable"
)

// ProviderError records one provider's failure without aborting the rest of
// the fan-out.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
