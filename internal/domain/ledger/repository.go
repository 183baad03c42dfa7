package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ensureBalance(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO account_balances (account_id, credits)
		VALUES ($1, 0)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	return err
}

// Grant atomically adds amount credits to the account, creating the
// balance row if needed, and returns the new balance.
func (r *Repository) Grant(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	var credits int64
	err := r.db.GetContext(ctx, &credits, `
		INSERT INTO account_balances (account_id, credits)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE
		SET credits = account_balances.credits + EXCLUDED.credits, updated_at = now()
		RETURNING credits
	`, accountID, amount)
	return credits, err
}

// SpendOne decrements the balance by one in a single conditional update.
// The credits > 0 guard is what keeps concurrent spends from driving the
// balance negative; there is deliberately no read-then-write here.
func (r *Repository) SpendOne(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var credits int64
	err := r.db.GetContext(ctx, &credits, `
		UPDATE account_balances
		SET credits = credits - 1, updated_at = now()
		WHERE account_id = $1 AND credits > 0
		RETURNING credits
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		// No row or zero credits: either way there is nothing to spend.
		return 0, ErrInsufficientCredits
	}
	return credits, err
}

// Balance returns the current balance, creating the row lazily so a
// fresh account reads as zero instead of not found.
func (r *Repository) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	if err := r.ensureBalance(ctx, accountID); err != nil {
		return 0, err
	}

	var credits int64
	err := r.db.GetContext(ctx, &credits, `SELECT credits FROM account_balances WHERE account_id = $1`, accountID)
	return credits, err
}
