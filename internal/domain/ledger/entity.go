package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Balance is one account's spendable credits. The row is created lazily
// on first grant or first read; an absent row reads as zero.
type Balance struct {
	AccountID uuid.UUID `db:"account_id" json:"account_id"`
	Credits   int64     `db:"credits" json:"credits"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
