package reconcile

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedSession records that a gateway session has been reconciled.
// The uniqueness of ExternalSessionID is the idempotency mechanism: two
// concurrent deliveries of the same event race on this insert and only
// the winner goes on to mutate the balance.
//
// Granted stays false for the window between the insert and the ledger
// grant landing; rows stuck there are exactly the grants still owed.
type ProcessedSession struct {
	ExternalSessionID string    `db:"external_session_id" json:"external_session_id"`
	AccountID         uuid.UUID `db:"account_id" json:"account_id"`
	CreditsGranted    int64     `db:"credits_granted" json:"credits_granted"`
	AmountRecorded    string    `db:"amount_recorded" json:"amount_recorded"`
	Granted           bool      `db:"granted" json:"granted"`
	ProcessedAt       time.Time `db:"processed_at" json:"processed_at"`
}
