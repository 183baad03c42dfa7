package checkout

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is one append-only record of a checkout-initiation attempt.
// Rows are written once, immediately after the outcome is known, and
// never mutated; the rate limiter only ever counts them.
type Attempt struct {
	ID                uuid.UUID `db:"id" json:"id"`
	AccountID         uuid.UUID `db:"account_id" json:"account_id"`
	ClientAddr        string    `db:"client_addr" json:"client_addr"`
	Succeeded         bool      `db:"succeeded" json:"succeeded"`
	ExternalSessionID *string   `db:"external_session_id" json:"external_session_id,omitempty"`
	FailureReason     *string   `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
