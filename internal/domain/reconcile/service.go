package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/creditd/creditd-api/internal/pkg/gateway"
)

// Tracker is the idempotency store for processed sessions.
type Tracker interface {
	Insert(ctx context.Context, session *ProcessedSession) error
	MarkGranted(ctx context.Context, externalSessionID string) error
	Claim(ctx context.Context, externalSessionID string) (bool, error)
	Release(ctx context.Context, externalSessionID string) error
	ListPending(ctx context.Context, before time.Time, limit int) ([]ProcessedSession, error)
}

// Granter is the one ledger operation reconciliation performs.
type Granter interface {
	Grant(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error)
}

// Verifier authenticates raw webhook payloads; satisfied by the gateway
// client.
type Verifier interface {
	VerifySignature(payload []byte, signatureHeader string) bool
}

// Notifier dispatches the best-effort receipt email after a grant.
type Notifier interface {
	SendPurchaseReceipt(ctx context.Context, to string, credits, balance int64) error
}

const (
	dedupKeyPrefix = "webhook:session:"
	dedupTTL       = 48 * time.Hour

	// repairGrace keeps the sweep away from sessions whose
	// reconciliation may still be in flight. Must exceed the request
	// timeout: by the time a pending row is this old, the webhook
	// handler that inserted it has either granted or died.
	repairGrace = 2 * time.Minute
)

// Service reconciles asynchronous payment notifications. Deliveries are
// at least once and unordered; the tracker's unique insert is the only
// ordering primitive relied on.
type Service struct {
	verifier Verifier
	tracker  Tracker
	ledger   Granter
	cache    *redis.Client
	notifier Notifier
}

// NewService creates the reconciler. cache may be nil; the duplicate
// fast path is then skipped and the database constraint does all the
// work alone. notifier may be nil when email is disabled.
func NewService(verifier Verifier, tracker Tracker, ledger Granter, cache *redis.Client, notifier Notifier) *Service {
	return &Service{verifier: verifier, tracker: tracker, ledger: ledger, cache: cache, notifier: notifier}
}

// Reconcile handles one webhook delivery. The signature is checked
// before anything looks at the payload: unverified content must never
// influence ledger state. A nil return means the event is durably
// classified and the gateway should stop retrying.
func (s *Service) Reconcile(ctx context.Context, payload []byte, signatureHeader string) error {
	if !s.verifier.VerifySignature(payload, signatureHeader) {
		log.Warn().Str("signature", signatureHeader).Msg("webhook signature verification failed, possible forgery")
		return ErrInvalidSignature
	}

	event, err := gateway.ParseEvent(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if event.Completed == nil {
		log.Debug().Str("event_id", event.ID).Str("type", event.Type).Msg("ignoring webhook event type")
		return nil
	}
	completed := event.Completed

	// Fast-path duplicate filter. The key is written only after a fully
	// successful reconciliation, so a hit is always safe to acknowledge.
	// Any cache error just falls through to the insert.
	if s.cache != nil {
		seen, err := s.cache.Exists(ctx, dedupKeyPrefix+completed.SessionID).Result()
		if err == nil && seen > 0 {
			log.Debug().Str("session_id", completed.SessionID).Msg("duplicate webhook delivery (cache)")
			return nil
		}
	}

	err = s.tracker.Insert(ctx, &ProcessedSession{
		ExternalSessionID: completed.SessionID,
		AccountID:         completed.AccountID,
		CreditsGranted:    completed.Credits,
		AmountRecorded:    completed.Amount,
	})
	if errors.Is(err, ErrDuplicateSession) {
		log.Info().Str("session_id", completed.SessionID).Msg("duplicate webhook delivery, already reconciled")
		s.markSeen(ctx, completed.SessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record processed session: %w", err)
	}

	balance, err := s.ledger.Grant(ctx, completed.AccountID, completed.Credits)
	if err != nil {
		// The session is recorded but the credits have not landed. This
		// is the one state where "granted exactly once" is at risk: the
		// gateway's retry will now see a duplicate and stop. The pending
		// row keeps the obligation visible for the repair pass.
		log.Error().Err(err).
			Bool("alert", true).
			Str("session_id", completed.SessionID).
			Str("account_id", completed.AccountID.String()).
			Int64("credits", completed.Credits).
			Msg("grant failed after session was recorded, repair required")
		return fmt.Errorf("grant after session recorded: %w", err)
	}

	if err := s.tracker.MarkGranted(ctx, completed.SessionID); err != nil {
		log.Error().Err(err).
			Bool("alert", true).
			Str("session_id", completed.SessionID).
			Msg("failed to mark session granted; repair pass will re-check it")
	}

	s.markSeen(ctx, completed.SessionID)

	// Receipt is fire and forget: the grant already landed, a failed
	// email must not make the gateway redeliver.
	if s.notifier != nil && completed.Email != "" {
		go func(to string, credits, balance int64) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.notifier.SendPurchaseReceipt(ctx, to, credits, balance); err != nil {
				log.Warn().Err(err).Str("session_id", completed.SessionID).Msg("purchase receipt email failed")
			}
		}(completed.Email, completed.Credits, balance)
	}

	log.Info().
		Str("session_id", completed.SessionID).
		Str("account_id", completed.AccountID.String()).
		Int64("credits", completed.Credits).
		Int64("balance", balance).
		Msg("payment reconciled, credits granted")
	return nil
}

// RepairPending re-applies grants for sessions that were recorded but
// whose increment never landed. The processed row is the proof of
// obligation: this is a targeted compensation, not a blind retry of the
// whole reconciliation. Two guards keep it from granting twice: rows
// younger than repairGrace are skipped entirely, and each eligible row
// is claimed with a conditional update before the grant, so overlapping
// sweeps settle the same obligation at most once.
func (s *Service) RepairPending(ctx context.Context) (int, error) {
	pending, err := s.tracker.ListPending(ctx, time.Now().Add(-repairGrace), 100)
	if err != nil {
		return 0, fmt.Errorf("list pending grants: %w", err)
	}

	repaired := 0
	for _, session := range pending {
		claimed, err := s.tracker.Claim(ctx, session.ExternalSessionID)
		if err != nil {
			log.Error().Err(err).
				Str("session_id", session.ExternalSessionID).
				Msg("repair could not claim session")
			continue
		}
		if !claimed {
			continue
		}

		if _, err := s.ledger.Grant(ctx, session.AccountID, session.CreditsGranted); err != nil {
			log.Error().Err(err).
				Bool("alert", true).
				Str("session_id", session.ExternalSessionID).
				Msg("repair grant failed")
			if err := s.tracker.Release(ctx, session.ExternalSessionID); err != nil {
				log.Error().Err(err).
					Bool("alert", true).
					Str("session_id", session.ExternalSessionID).
					Msg("repair could not release claim, grant is stranded")
			}
			continue
		}
		log.Warn().
			Str("session_id", session.ExternalSessionID).
			Str("account_id", session.AccountID.String()).
			Int64("credits", session.CreditsGranted).
			Msg("repaired missed credit grant")
		repaired++
	}
	return repaired, nil
}

func (s *Service) markSeen(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, dedupKeyPrefix+sessionID, 1, dedupTTL).Err(); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("webhook dedup cache write failed")
	}
}
