package service

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidOrExpiredProof covers every proof-rejection cause: missing,
	// expired, consumed, attempt-exhausted, wrong value. One error for all of
	// them so the caller cannot tell which case occurred.
	ErrInvalidOrExpiredProof = errors.New("invalid or expired code")

	// ErrInvalidFlowState is the single error for any flow-ticket failure.
	ErrInvalidFlowState = errors.New("invalid state")

	ErrUnknownPurpose = errors.New("unknown proof purpose")
	ErrUnknownKind    = errors.New("unknown proof kind")
)

// ValidationError reports malformed input or out-of-policy values with
// field-level detail.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

// RateLimitedError carries a caller-usable retry-after duration.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %ds", retryAfterSeconds(e.RetryAfter))
}

// retryAfterSeconds rounds a wait up to whole seconds, never below 1.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RetryAfterSeconds exposes the rounded wait for transport headers.
func (e *RateLimitedError) RetryAfterSeconds() int {
	return retryAfterSeconds(e.RetryAfter)
}

// ConfigurationError marks a deployment misconfiguration. It always fails the
// request; an unconfigured security control is never treated as permissive.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// UpstreamProviderError wraps an identity-provider failure. Error() names only
// the provider; the wrapped detail is for logs.
type UpstreamProviderError struct {
	Provider string
	Err      error
}

func (e *UpstreamProviderError) Error() string {
	return fmt.Sprintf("identity provider %s request failed", e.Provider)
}

func (e *UpstreamProviderError) Unwrap() error {
	return e.Err
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
