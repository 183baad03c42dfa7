package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/creditd/creditd-api/internal/domain/ledger"
)

// fakeStore implements ledger.Store in memory with the same atomicity
// the Postgres repository provides.
type fakeStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{balances: make(map[uuid.UUID]int64)}
}

func (f *fakeStore) Grant(_ context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[accountID] += amount
	return f.balances[accountID], nil
}

func (f *fakeStore) SpendOne(_ context.Context, accountID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[accountID] <= 0 {
		return 0, ledger.ErrInsufficientCredits
	}
	f.balances[accountID]--
	return f.balances[accountID], nil
}

func (f *fakeStore) Balance(_ context.Context, accountID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[accountID], nil
}

func TestGrantAndSequentialSpend(t *testing.T) {
	store := newFakeStore()
	svc := ledger.NewService(store, nil)
	accountID := uuid.New()

	balance, err := svc.Grant(context.Background(), accountID, 5)
	if err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if balance != 5 {
		t.Fatalf("expected balance 5, got %d", balance)
	}

	for want := int64(4); want >= 0; want-- {
		remaining, err := svc.AttemptSpend(context.Background(), accountID, "")
		if err != nil {
			t.Fatalf("spend failed at want=%d: %v", want, err)
		}
		if remaining != want {
			t.Fatalf("expected remaining %d, got %d", want, remaining)
		}
	}

	if _, err := svc.AttemptSpend(context.Background(), accountID, ""); !errors.Is(err, ledger.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	balance, err = svc.Balance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0 after failed spend, got %d", balance)
	}
}

func TestConcurrentSpend(t *testing.T) {
	store := newFakeStore()
	svc := ledger.NewService(store, nil)
	accountID := uuid.New()

	if _, err := svc.Grant(context.Background(), accountID, 5); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	success := 0
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AttemptSpend(context.Background(), accountID, "")
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ledger.ErrInsufficientCredits) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 5 {
		t.Fatalf("expected 5 successful spends, got %d", success)
	}

	balance, _ := svc.Balance(context.Background(), accountID)
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestGrantInvalidAmount(t *testing.T) {
	svc := ledger.NewService(newFakeStore(), nil)

	if _, err := svc.Grant(context.Background(), uuid.New(), 0); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Grant(context.Background(), uuid.New(), -3); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

type failingNotifier struct {
	called chan struct{}
}

func (n *failingNotifier) SendSpendReceipt(context.Context, string, int64) error {
	close(n.called)
	return errors.New("smtp down")
}

func TestSpendReceiptFailureDoesNotAffectResult(t *testing.T) {
	store := newFakeStore()
	notifier := &failingNotifier{called: make(chan struct{})}
	svc := ledger.NewService(store, notifier)
	accountID := uuid.New()

	if _, err := svc.Grant(context.Background(), accountID, 1); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	remaining, err := svc.AttemptSpend(context.Background(), accountID, "user@example.com")
	if err != nil {
		t.Fatalf("spend failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", remaining)
	}

	select {
	case <-notifier.called:
	case <-time.After(time.Second):
		t.Fatal("notifier was never invoked")
	}

	balance, _ := svc.Balance(context.Background(), accountID)
	if balance != 0 {
		t.Fatalf("notifier failure must not change balance, got %d", balance)
	}
}
