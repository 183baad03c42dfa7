package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Insert records a session as reconciled. A unique violation on the
// session id maps to ErrDuplicateSession so callers can tell "already
// done" apart from real failures.
func (r *Repository) Insert(ctx context.Context, session *ProcessedSession) error {
	if session.ProcessedAt.IsZero() {
		session.ProcessedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_sessions (external_session_id, account_id, credits_granted, amount_recorded, granted, processed_at)
		VALUES ($1, $2, $3, $4, false, $5)
	`, session.ExternalSessionID, session.AccountID, session.CreditsGranted, session.AmountRecorded, session.ProcessedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSession
		}
		return err
	}
	return nil
}

// MarkGranted flips the granted flag once the ledger increment landed.
func (r *Repository) MarkGranted(ctx context.Context, externalSessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processed_sessions SET granted = true WHERE external_session_id = $1
	`, externalSessionID)
	return err
}

// Claim flips the granted flag only if it is still false and reports
// whether this caller won. Concurrent repair sweeps race on this update
// and only the winner may grant.
func (r *Repository) Claim(ctx context.Context, externalSessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE processed_sessions SET granted = true
		WHERE external_session_id = $1 AND granted = false
	`, externalSessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Release reverts a claim whose grant failed so a later sweep retries it.
func (r *Repository) Release(ctx context.Context, externalSessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processed_sessions SET granted = false WHERE external_session_id = $1
	`, externalSessionID)
	return err
}

// ListPending returns sessions whose grant never landed, oldest first.
// Each one is proof that exactly one grant is still owed. Only sessions
// recorded before the cutoff are returned; fresh rows belong to
// reconciliations that may still be in flight.
func (r *Repository) ListPending(ctx context.Context, before time.Time, limit int) ([]ProcessedSession, error) {
	if limit <= 0 {
		limit = 100
	}

	var sessions []ProcessedSession
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT external_session_id, account_id, credits_granted, amount_recorded, granted, processed_at
		FROM processed_sessions
		WHERE granted = false AND processed_at < $1
		ORDER BY processed_at ASC
		LIMIT $2
	`, before, limit)
	return sessions, err
}
