package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store is the persistence the ledger needs: two atomic mutations and a
// consistent read. Implemented by Repository against Postgres.
type Store interface {
	Grant(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error)
	SpendOne(ctx context.Context, accountID uuid.UUID) (int64, error)
	Balance(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// Notifier dispatches the best-effort receipt email after a spend.
type Notifier interface {
	SendSpendReceipt(ctx context.Context, to string, remaining int64) error
}

type Service struct {
	store    Store
	notifier Notifier
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Grant adds credits to an account. The sum of all grants minus the
// count of successful spends is the balance at every point; nothing else
// mutates it.
func (s *Service) Grant(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := s.store.Grant(ctx, accountID, amount)
	if err != nil {
		return 0, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("amount", amount).Int64("balance", balance).Msg("credits granted")
	return balance, nil
}

// AttemptSpend consumes one credit and returns the remaining balance.
// ErrInsufficientCredits is an expected outcome, not a failure. The
// receipt email is fire and forget: once the decrement committed the
// spend has happened regardless of what the notifier does.
func (s *Service) AttemptSpend(ctx context.Context, accountID uuid.UUID, email string) (int64, error) {
	remaining, err := s.store.SpendOne(ctx, accountID)
	if err != nil {
		return 0, err
	}

	log.Info().Str("account_id", accountID.String()).Int64("remaining", remaining).Msg("credit spent")

	if s.notifier != nil && email != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.notifier.SendSpendReceipt(ctx, email, remaining); err != nil {
				log.Warn().Err(err).Str("account_id", accountID.String()).Msg("spend receipt email failed")
			}
		}()
	}

	return remaining, nil
}

// Balance returns the account's current balance.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.store.Balance(ctx, accountID)
}
