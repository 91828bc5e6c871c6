package domain

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError signals missing or invalid setup input. It is fatal for the
// operation and never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Reason
}

// AuthReason narrows an AuthError.
type AuthReason string

const (
	AuthReasonInvalidState        AuthReason = "invalid_state"
	AuthReasonTokenExchangeFailed AuthReason = "token_exchange_failed"
	AuthReasonRefreshRevoked      AuthReason = "refresh_revoked"
	AuthReasonTransient           AuthReason = "transient"
)

// AuthError covers every authorization and token lifecycle failure.
// refresh_revoked is terminal for the shop until it is re-authorized;
// transient means the retry budget ran out on transport failures.
type AuthError struct {
	Reason AuthReason
	ShopID int64
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth error (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned when the upstream kept answering 429 past the
// retry budget. RetryAfter carries the last server hint, zero when absent.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// UpstreamError is a 5xx or transport failure that survived the retry budget.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsReauthRequired reports whether err carries the terminal refresh_revoked
// condition, the signal that the shop needs a fresh authorization.
func IsReauthRequired(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Reason == AuthReasonRefreshRevoked
}
