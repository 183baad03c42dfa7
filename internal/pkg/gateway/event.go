package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Event types delivered on the webhook. Anything outside this set is
// acknowledged and ignored.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

// CheckoutCompleted is the one event that moves the ledger: a paid
// checkout session, with the metadata this service attached at creation.
type CheckoutCompleted struct {
	SessionID string
	AccountID uuid.UUID
	PackID    string
	Credits   int64
	Amount    string
	Email     string
}

// Event is a webhook notification parsed into a closed set of variants.
// Completed is non-nil only when Type is EventCheckoutCompleted; all
// other types carry no payload the reconciler needs.
type Event struct {
	ID        string
	Type      string
	Completed *CheckoutCompleted
}

type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Session struct {
			ID       string            `json:"id"`
			Amount   string            `json:"amount"`
			Currency string            `json:"currency"`
			Metadata map[string]string `json:"metadata"`
		} `json:"session"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body. It must only be called on payloads
// whose signature already verified. For completed events every field the
// reconciler depends on is validated here so downstream code never
// touches an untyped payload.
func ParseEvent(payload []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("event type is required")
	}

	event := &Event{ID: raw.ID, Type: raw.Type}
	if raw.Type != EventCheckoutCompleted {
		return event, nil
	}

	session := raw.Data.Session
	if session.ID == "" {
		return nil, fmt.Errorf("completed event missing session id")
	}

	accountID, err := uuid.Parse(session.Metadata["account_id"])
	if err != nil {
		return nil, fmt.Errorf("completed event has invalid account_id: %w", err)
	}

	credits, err := strconv.ParseInt(session.Metadata["credits"], 10, 64)
	if err != nil || credits <= 0 {
		return nil, fmt.Errorf("completed event has invalid credits %q", session.Metadata["credits"])
	}

	// Email is optional receipt routing, not part of the grant.
	event.Completed = &CheckoutCompleted{
		SessionID: session.ID,
		AccountID: accountID,
		PackID:    session.Metadata["pack_id"],
		Credits:   credits,
		Amount:    session.Amount,
		Email:     session.Metadata["email"],
	}
	return event, nil
}
