package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository is the attempt log against Postgres. Insert-only plus the
// three window counts the limiter runs. The counts are range scans over
// the log as written; exact boundary timing is part of the observable
// behavior, so no counter shortcut.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, attempt *Attempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_attempts (id, account_id, client_addr, succeeded, external_session_id, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, attempt.ID, attempt.AccountID, attempt.ClientAddr, attempt.Succeeded,
		attempt.ExternalSessionID, attempt.FailureReason, attempt.CreatedAt)
	return err
}

func (r *Repository) CountByAccountSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payment_attempts
		WHERE account_id = $1 AND created_at >= $2
	`, accountID, since)
	return count, err
}

func (r *Repository) CountByAddrSince(ctx context.Context, addr string, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payment_attempts
		WHERE client_addr = $1 AND created_at >= $2
	`, addr, since)
	return count, err
}

func (r *Repository) CountFailedByAddrSince(ctx context.Context, addr string, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payment_attempts
		WHERE client_addr = $1 AND succeeded = false AND created_at >= $2
	`, addr, since)
	return count, err
}
