package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable covers timeouts and 5xx responses from the gateway.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected covers 4xx responses: the request itself was malformed
	// or referenced an unknown price.
	ErrRejected = errors.New("payment gateway rejected request")
)

// SessionRequest describes one checkout session to create.
// Metadata is carried opaquely by the gateway and echoed back in the
// completion event.
type SessionRequest struct {
	PriceRef   string
	SuccessURL string
	CancelURL  string
	ExpiresAt  time.Time
	Metadata   map[string]string
}

// Session is a created checkout session the user can be redirected to.
type Session struct {
	ID          string
	RedirectURL string
}

// Provider is the payment gateway as seen by this service: it creates
// redirect-based checkout sessions and authenticates the notifications
// it later delivers. Implementations must be safe for concurrent use.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)

	// VerifySignature reports whether the signature header authenticates
	// the raw payload. It must fail closed on any malformed input.
	VerifySignature(payload []byte, signatureHeader string) bool
}
