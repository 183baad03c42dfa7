package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Service builds and sends the transactional emails this API produces.
// A nil *Service is safe to call and sends nothing, mirroring how the
// optional Redis client is handled.
type Service struct {
	client *Client
}

// NewService creates the email service. Returns nil when no API key is
// configured so callers can treat email as disabled.
func NewService(cfg Config) *Service {
	if cfg.APIKey == "" {
		log.Warn().Msg("Email API key not configured, email disabled")
		return nil
	}
	return &Service{client: NewClient(cfg)}
}

// SendSpendReceipt notifies the account that one credit was consumed.
// Best effort: callers dispatch this after the ledger mutation commits
// and must not let a failure here affect the spend result.
func (s *Service) SendSpendReceipt(ctx context.Context, to string, remaining int64) error {
	if s == nil || to == "" {
		return nil
	}

	msg := &Message{
		To:      to,
		Subject: "Credit used",
		TextContent: fmt.Sprintf(
			"One credit was used on your account. Remaining balance: %d.", remaining),
		HTMLContent: fmt.Sprintf(
			"<p>One credit was used on your account.</p><p>Remaining balance: <strong>%d</strong>.</p>", remaining),
	}
	return s.client.Send(ctx, msg)
}

// SendPurchaseReceipt notifies the account that a credit pack was applied.
func (s *Service) SendPurchaseReceipt(ctx context.Context, to string, credits int64, balance int64) error {
	if s == nil || to == "" {
		return nil
	}

	msg := &Message{
		To:      to,
		Subject: "Credits added",
		TextContent: fmt.Sprintf(
			"%d credits were added to your account. New balance: %d.", credits, balance),
		HTMLContent: fmt.Sprintf(
			"<p><strong>%d</strong> credits were added to your account.</p><p>New balance: <strong>%d</strong>.</p>", credits, balance),
	}
	return s.client.Send(ctx, msg)
}
