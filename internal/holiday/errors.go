package holiday

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrRateLimitExceeded     = errors.New("provider rate limit exceeded")
	ErrProviderRequestFailed = errors.New("provider request failed")
	ErrAllProvidersFailed    = errors.New("all holiday providers failed")
	ErrProviderDisabled      = errors.New("provider disabled: no API key configured")
	ErrUnsupported           = errors.New("operation not supported by provider")

	ErrInvalidCountryCode = errors.New("country code must be two letters")
	ErrInvalidDate        = errors.New("date must be formatted YYYY-MM-DD")
	ErrInvalidOptions     = errors.New("invalid search options")
)

// RateLimitError reports that a provider's local quota is exhausted.
type RateLimitError struct {
	Provider Provider
	ResetAt  time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("rate limit exceeded for %s", e.Provider.Name())
	}
	return fmt.Sprintf("rate limit exceeded for %s until %s", e.Provider.Name(), e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// RetryAfter is the time left until the quota window resets.
func (e *RateLimitError) RetryAfter(now time.Time) time.Duration {
	if e.ResetAt.IsZero() || !e.ResetAt.After(now) {
		return 0
	}
	return e.ResetAt.Sub(now)
}

// ProviderError wraps a network, HTTP or decoding failure from one provider.
type ProviderError struct {
	Provider Provider
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider.Name(), e.Err)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProviderRequestFailed }

func (e *ProviderError) Unwrap() error { return e.Err }

// AllProvidersFailedError is the terminal error of a lookup; Errs holds the
// failure of every provider that was attempted, in attempt order.
type AllProvidersFailedError struct {
	Errs []error
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Errs) == 0 {
		return ErrAllProvidersFailed.Error()
	}
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return ErrAllProvidersFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *AllProvidersFailedError) Is(target error) bool { return target == ErrAllProvidersFailed }

func (e *AllProvidersFailedError) Unwrap() []error { return e.Errs }
