package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Abuse-control thresholds. Three rules, evaluated in order; the first
// one that trips wins.
const (
	perAccountLimit  = 3
	perAccountWindow = 15 * time.Minute

	perAddrLimit  = 10
	perAddrWindow = time.Hour

	burstFailLimit   = 5
	burstFailWindow  = 5 * time.Minute
	burstFailLockout = time.Hour
)

// AttemptCounter is the read side of the attempt log the limiter needs.
type AttemptCounter interface {
	CountByAccountSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error)
	CountByAddrSince(ctx context.Context, addr string, since time.Time) (int, error)
	CountFailedByAddrSince(ctx context.Context, addr string, since time.Time) (int, error)
}

// Decision is the limiter verdict. RetryAfter is set only when a rule
// implies a concrete lockout horizon.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Time
}

// Limiter decides whether a new checkout attempt is allowed. It is a
// pure predicate over the attempt log: it writes nothing, so the caller
// must record the attempt after deciding the outcome.
type Limiter struct {
	counter AttemptCounter
}

func NewLimiter(counter AttemptCounter) *Limiter {
	return &Limiter{counter: counter}
}

func (l *Limiter) CheckAllowed(ctx context.Context, accountID uuid.UUID, addr string, now time.Time) (Decision, error) {
	count, err := l.counter.CountByAccountSince(ctx, accountID, now.Add(-perAccountWindow))
	if err != nil {
		return Decision{}, err
	}
	if count >= perAccountLimit {
		return Decision{Reason: "too many attempts, retry in 15 minutes"}, nil
	}

	count, err = l.counter.CountByAddrSince(ctx, addr, now.Add(-perAddrWindow))
	if err != nil {
		return Decision{}, err
	}
	if count >= perAddrLimit {
		return Decision{Reason: "too many attempts from this address"}, nil
	}

	count, err = l.counter.CountFailedByAddrSince(ctx, addr, now.Add(-burstFailWindow))
	if err != nil {
		return Decision{}, err
	}
	if count >= burstFailLimit {
		return Decision{
			Reason:     "address temporarily blocked",
			RetryAfter: now.Add(burstFailLockout),
		}, nil
	}

	return Decision{Allowed: true}, nil
}
