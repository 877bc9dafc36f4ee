// Package alert pings an operator messaging webhook when users write to the
// support channel. Delivery is best effort; failures are logged, never
// propagated to the sender.
package alert

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/idater/idater-backend/internal/config"
)

// Client calls a CallMeBot-style webhook: a GET with phone, text and apikey
// query parameters.
type Client struct {
	endpoint string
	phone    string
	apiKey   string
	http     *http.Client
}

// New builds a client from config. Returns nil when the webhook is not fully
// configured; callers treat a nil client as alerting disabled.
func New(cfg *config.Config) *Client {
	if cfg.Alert.WebhookURL == "" || cfg.Alert.Phone == "" || cfg.Alert.APIKey == "" {
		return nil
	}
	return &Client{
		endpoint: cfg.Alert.WebhookURL,
		phone:    cfg.Alert.Phone,
		apiKey:   cfg.Alert.APIKey,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends one alert message to the operator.
func (c *Client) Notify(ctx context.Context, text string) error {
	q := url.Values{}
	q.Set("phone", c.phone)
	q.Set("text", fmt.Sprintf("New support message: %s", text))
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}
