package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

const DefaultResendURL = "https://api.resend.com"

var ErrEmailNotConfigured = errors.New("resend api key not configured")

type Email struct {
	To      []string
	Subject string
	HTML    string
}

type ResendConfig struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// ResendMailer sends email through the Resend API client.
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer builds the client. BaseURL overrides the API host, which tests point at
// a local server.
func NewResendMailer(cfg ResendConfig) (*ResendMailer, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resend.NewCustomClient(&http.Client{Timeout: timeout}, cfg.APIKey)

	raw := strings.TrimRight(cfg.BaseURL, "/")
	if raw == "" {
		raw = DefaultResendURL
	}
	// Request paths are resolved relative to the base, so it must end in a slash.
	base, err := url.Parse(raw + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing resend base url: %w", err)
	}
	client.BaseURL = base

	return &ResendMailer{client: client, from: cfg.From}, nil
}

func (m *ResendMailer) Send(ctx context.Context, email Email) error {
	if m.client.ApiKey == "" {
		return ErrEmailNotConfigured
	}

	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
	})
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	slog.DebugContext(ctx, "email accepted by resend", "email_id", sent.Id, "recipients", len(email.To))
	return nil
}
