package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config holds gateway client configuration
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

// Client talks to the payment gateway's REST API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a gateway client. The HTTP timeout bounds session
// creation so an unresponsive gateway surfaces as ErrUnavailable instead
// of hanging the checkout request.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("gateway config error: base_url is empty")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gateway config error: api_key is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type createSessionRequest struct {
	PriceRef   string            `json:"price_ref"`
	SuccessURL string            `json:"success_url,omitempty"`
	CancelURL  string            `json:"cancel_url,omitempty"`
	ExpiresAt  int64             `json:"expires_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type createSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateSession creates a checkout session and returns its redirect URL.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if req.PriceRef == "" {
		return nil, fmt.Errorf("%w: price_ref is required", ErrRejected)
	}

	body, err := json.Marshal(createSessionRequest{
		PriceRef:   req.PriceRef,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		ExpiresAt:  req.ExpiresAt.Unix(),
		Metadata:   req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.config.BaseURL, "/")+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create session request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var out createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode session response: %v", ErrUnavailable, err)
	}
	if out.ID == "" || out.URL == "" {
		return nil, fmt.Errorf("%w: session response missing id or url", ErrUnavailable)
	}

	return &Session{ID: out.ID, RedirectURL: out.URL}, nil
}

// VerifySignature implements Provider using the configured webhook secret.
func (c *Client) VerifySignature(payload []byte, signatureHeader string) bool {
	return VerifySignature(payload, signatureHeader, c.config.WebhookSecret)
}
