package checkout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/creditd/creditd-api/internal/config"
	"github.com/creditd/creditd-api/internal/pkg/gateway"
)

// AttemptLog is the write side of the attempt log.
type AttemptLog interface {
	Insert(ctx context.Context, attempt *Attempt) error
}

// Service orchestrates checkout creation: resolve the pack, consult the
// limiter, create the gateway session, and always record exactly one
// attempt row per invocation. That last part is what makes rate
// limiting observable.
type Service struct {
	attempts    AttemptLog
	limiter     *Limiter
	provider    gateway.Provider
	packs       map[string]config.Pack
	successURL  string
	cancelURL   string
	checkoutTTL time.Duration
	now         func() time.Time
}

type Options struct {
	SuccessURL  string
	CancelURL   string
	CheckoutTTL time.Duration
}

func NewService(attempts AttemptLog, limiter *Limiter, provider gateway.Provider, packs map[string]config.Pack, opts Options) *Service {
	ttl := opts.CheckoutTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Service{
		attempts:    attempts,
		limiter:     limiter,
		provider:    provider,
		packs:       packs,
		successURL:  opts.SuccessURL,
		cancelURL:   opts.CancelURL,
		checkoutTTL: ttl,
		now:         time.Now,
	}
}

// CreateCheckout returns the gateway redirect URL for purchasing the
// given pack, or an error describing why the attempt was refused. email
// travels in the session metadata so the webhook completion can route a
// purchase receipt; it may be empty.
func (s *Service) CreateCheckout(ctx context.Context, accountID uuid.UUID, clientAddr, packID, email string) (string, error) {
	pack, ok := s.packs[packID]
	if !ok {
		s.recordFailure(ctx, accountID, clientAddr, "unknown pack: "+packID)
		return "", fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}

	decision, err := s.limiter.CheckAllowed(ctx, accountID, clientAddr, s.now())
	if err != nil {
		s.recordFailure(ctx, accountID, clientAddr, "rate limit check failed")
		return "", fmt.Errorf("rate limit check: %w", err)
	}
	if !decision.Allowed {
		s.recordFailure(ctx, accountID, clientAddr, decision.Reason)
		log.Info().
			Str("account_id", accountID.String()).
			Str("client_addr", clientAddr).
			Str("reason", decision.Reason).
			Msg("checkout attempt rate limited")
		return "", &RateLimitedError{Reason: decision.Reason, RetryAfter: decision.RetryAfter}
	}

	metadata := map[string]string{
		"account_id": accountID.String(),
		"pack_id":    pack.ID,
		"credits":    strconv.FormatInt(pack.Credits, 10),
	}
	if email != "" {
		metadata["email"] = email
	}

	session, err := s.provider.CreateSession(ctx, gateway.SessionRequest{
		PriceRef:   pack.PriceRef,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
		ExpiresAt:  s.now().Add(s.checkoutTTL),
		Metadata:   metadata,
	})
	if err != nil {
		// A timeout counts as a failed attempt like any other gateway
		// fault; leaving it unlogged would let the limiter undercount.
		s.recordFailure(ctx, accountID, clientAddr, "gateway error")
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	attempt := &Attempt{
		AccountID:         accountID,
		ClientAddr:        clientAddr,
		Succeeded:         true,
		ExternalSessionID: &session.ID,
		CreatedAt:         s.now(),
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		// The session already exists; surface the logging failure
		// loudly but do not fail the checkout over it.
		log.Error().Err(err).
			Str("account_id", accountID.String()).
			Str("session_id", session.ID).
			Msg("failed to record succeeded payment attempt")
	}

	log.Info().
		Str("account_id", accountID.String()).
		Str("pack_id", pack.ID).
		Str("session_id", session.ID).
		Msg("checkout session created")
	return session.RedirectURL, nil
}

func (s *Service) recordFailure(ctx context.Context, accountID uuid.UUID, clientAddr, reason string) {
	attempt := &Attempt{
		AccountID:     accountID,
		ClientAddr:    clientAddr,
		Succeeded:     false,
		FailureReason: &reason,
		CreatedAt:     s.now(),
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		log.Error().Err(err).
			Str("account_id", accountID.String()).
			Str("reason", reason).
			Msg("failed to record failed payment attempt")
	}
}
