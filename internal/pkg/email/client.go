package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Config holds email provider configuration
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// Client sends transactional email through the provider HTTP API
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
}

const defaultBaseURL = "https://api.sendgrid.com/v3/mail/send"

// NewClient creates a new email client
func NewClient(config Config) *Client {
	return &Client{
		config:  config,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Message represents an email to send
type Message struct {
	To          string
	ToName      string
	Subject     string
	HTMLContent string
	TextContent string
}

type apiRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type personalization struct {
	To []address `json:"to"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send sends an email via the provider API
func (c *Client) Send(ctx context.Context, msg *Message) error {
	request := apiRequest{
		Personalizations: []personalization{
			{To: []address{{Email: msg.To, Name: msg.ToName}}},
		},
		From:    address{Email: c.config.FromEmail, Name: c.config.FromName},
		Subject: msg.Subject,
	}

	if msg.HTMLContent != "" {
		request.Content = append(request.Content, content{Type: "text/html", Value: msg.HTMLContent})
	}
	if msg.TextContent != "" {
		request.Content = append(request.Content, content{Type: "text/plain", Value: msg.TextContent})
	}

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}
	return nil
}
