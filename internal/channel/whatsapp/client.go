package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autoreply.app/relay/common/logger"
)

const DefaultBaseURL = "https://graph.facebook.com/v18.0"

var ErrNotConfigured = errors.New("whatsapp access token not configured")

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Client sends text messages through the WhatsApp Cloud API. A channel id is the
// merchant's phone number id.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      cfg.AccessToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// Deliver sends a reply to the customer.
func (c *Client) Deliver(ctx context.Context, channelID, counterpartyID, text string) error {
	return c.SendText(ctx, channelID, counterpartyID, text)
}

// SendText posts a text message from the phone number id to the recipient.
func (c *Client) SendText(ctx context.Context, phoneNumberID, to, body string) error {
	if c.token == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(textMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, logger.Truncate(string(respBody), 500))
	}

	slog.DebugContext(ctx, "whatsapp message sent", "phone_number_id", phoneNumberID)
	return nil
}
