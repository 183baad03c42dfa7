package checkout

import (
	"errors"
	"time"
)

// ErrUnknownPack means the requested pack has no configured gateway
// price. This is a deployment mismatch, not a user error.
var ErrUnknownPack = errors.New("unknown credit pack")

// RateLimitedError is the expected, user-recoverable denial from the
// rate limiter, carrying the human-readable reason.
type RateLimitedError struct {
	Reason     string
	RetryAfter time.Time
}

func (e *RateLimitedError) Error() string { return e.Reason }
