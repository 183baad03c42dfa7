package checkout_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/creditd/creditd-api/internal/domain/checkout"
)

// memLog is an in-memory attempt log implementing both the write side
// and the window counts, so limiter behavior can be driven by synthetic
// attempt histories.
type memLog struct {
	mu       sync.Mutex
	attempts []checkout.Attempt
}

func (m *memLog) Insert(_ context.Context, attempt *checkout.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *memLog) CountByAccountSince(_ context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.attempts {
		if a.AccountID == accountID && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memLog) CountByAddrSince(_ context.Context, addr string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.attempts {
		if a.ClientAddr == addr && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memLog) CountFailedByAddrSince(_ context.Context, addr string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.attempts {
		if a.ClientAddr == addr && !a.Succeeded && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func seedAttempt(log *memLog, accountID uuid.UUID, addr string, succeeded bool, at time.Time) {
	log.Insert(context.Background(), &checkout.Attempt{
		AccountID:  accountID,
		ClientAddr: addr,
		Succeeded:  succeeded,
		CreatedAt:  at,
	})
}

func TestPerAccountThreshold(t *testing.T) {
	attemptLog := &memLog{}
	limiter := checkout.NewLimiter(attemptLog)
	accountID := uuid.New()
	now := time.Now()

	for i := 0; i < 2; i++ {
		seedAttempt(attemptLog, accountID, "10.0.0.1", true, now.Add(-time.Duration(i+1)*time.Minute))
	}

	decision, err := limiter.CheckAllowed(context.Background(), accountID, "10.0.0.1", now)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("2 prior attempts must be allowed, denied with %q", decision.Reason)
	}

	seedAttempt(attemptLog, accountID, "10.0.0.1", true, now.Add(-3*time.Minute))

	decision, err = limiter.CheckAllowed(context.Background(), accountID, "10.0.0.1", now)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("3 prior attempts within 15m must be denied")
	}
	if decision.Reason != "too many attempts, retry in 15 minutes" {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestPerAddressThreshold(t *testing.T) {
	attemptLog := &memLog{}
	limiter := checkout.NewLimiter(attemptLog)
	addr := "10.0.0.2"
	now := time.Now()

	// 10 attempts spread across accounts, all within the last hour but
	// outside the 15-minute per-account window.
	for i := 0; i < 10; i++ {
		seedAttempt(attemptLog, uuid.New(), addr, true, now.Add(-30*time.Minute))
	}

	decision, err := limiter.CheckAllowed(context.Background(), uuid.New(), addr, now)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("10 prior attempts from address within 1h must be denied")
	}
	if decision.Reason != "too many attempts from this address" {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
}

func TestBurstFailureLockout(t *testing.T) {
	attemptLog := &memLog{}
	limiter := checkout.NewLimiter(attemptLog)
	addr := "10.0.0.3"
	now := time.Now()

	for i := 0; i < 4; i++ {
		seedAttempt(attemptLog, uuid.New(), addr, false, now.Add(-time.Minute))
	}

	decision, err := limiter.CheckAllowed(context.Background(), uuid.New(), addr, now)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("4 recent failures must be allowed, denied with %q", decision.Reason)
	}

	seedAttempt(attemptLog, uuid.New(), addr, false, now.Add(-time.Minute))

	decision, err = limiter.CheckAllowed(context.Background(), uuid.New(), addr, now)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("5 recent failures from address must be denied regardless of account")
	}
	if decision.Reason != "address temporarily blocked" {
		t.Fatalf("unexpected reason %q", decision.Reason)
	}
	if got := decision.RetryAfter.Sub(now); got != time.Hour {
		t.Fatalf("expected 1h lockout, got %v", got)
	}
}

func TestRuleOrderFirstFailingWins(t *testing.T) {
	attemptLog := &memLog{}
	limiter := checkout.NewLimiter(attemptLog)
	accountID := uuid.New()
	addr := "10.0.0.4"
	now := time.Now()

	// Trip the per-account window and the burst lockout simultaneously;
	// the per-account reason must win.
	for i := 0; i < 5; i++ {
		seedAttempt(attemptLog, accountID, addr, false, now.Add(-time.Minute))
	}

	decision, err := limiter.CheckAllowed(context.Background(), accountID, addr, now)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected denial")
	}
	if decision.Reason != "too many attempts, retry in 15 minutes" {
		t.Fatalf("per-account rule must win, got %q", decision.Reason)
	}
}

func TestWindowRollsOver(t *testing.T) {
	attemptLog := &memLog{}
	limiter := checkout.NewLimiter(attemptLog)
	accountID := uuid.New()
	addr := "10.0.0.5"
	start := time.Now()

	// Attempts at t=0, 1, 2 minutes.
	for i := 0; i < 3; i++ {
		seedAttempt(attemptLog, accountID, addr, true, start.Add(time.Duration(i)*time.Minute))
	}

	decision, err := limiter.CheckAllowed(context.Background(), accountID, addr, start.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("attempt at t=3m must be denied")
	}

	// At t=16m the attempt at t=0 has left the 15-minute window.
	decision, err = limiter.CheckAllowed(context.Background(), accountID, addr, start.Add(16*time.Minute))
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("attempt at t=16m must be allowed, denied with %q", decision.Reason)
	}
}
