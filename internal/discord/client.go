// Package discord delivers alerts to Discord channels through incoming webhooks.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/rewired-gh/paceoracle/internal/logger"
	"github.com/rewired-gh/paceoracle/internal/models"
)

// maxContent is Discord's message length limit in characters.
const maxContent = 2000

// Client posts plain-content webhook messages to every configured URL.
type Client struct {
	webhooks       []string
	httpClient     *http.Client
	loc            *time.Location
	maxRetries     int
	retryDelayBase time.Duration
}

type payload struct {
	Content string `json:"content"`
}

// NewClient creates a Discord client. Timestamps in messages are rendered in timezone.
func NewClient(webhooks []string, timezone string, maxRetries int, timeout time.Duration) (*Client, error) {
	if len(webhooks) == 0 {
		return nil, errors.New("at least one webhook URL is required")
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		webhooks:       webhooks,
		httpClient:     &http.Client{Timeout: timeout},
		loc:            loc,
		maxRetries:     maxRetries,
		retryDelayBase: time.Second,
	}, nil
}

// Name identifies the channel in logs and metrics.
func (c *Client) Name() string {
	return "discord"
}

// Send renders the alert and posts it to every webhook.
func (c *Client) Send(ctx context.Context, alert models.Alert) error {
	return c.post(ctx, c.formatMessage(alert))
}

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(ctx context.Context, cycleErr error) error {
	return c.post(ctx, fmt.Sprintf("⚠️ **Monitoring error**\n`%s`", cycleErr.Error()))
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(ctx context.Context, failureCount int) error {
	return c.post(ctx, fmt.Sprintf("✅ **Monitoring recovered** after %d consecutive failure(s)", failureCount))
}

// post delivers content to each webhook. A failing webhook does not stop the others.
func (c *Client) post(ctx context.Context, content string) error {
	body, err := json.Marshal(payload{Content: truncateContent(content)})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var errs []error
	for i, url := range c.webhooks {
		if err := c.postWithRetry(ctx, url, body); err != nil {
			logger.Warn("Discord webhook %d failed: %v", i, err)
			errs = append(errs, fmt.Errorf("webhook %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// postWithRetry posts body with linear-backoff retry. Client errors other than 429 are not retried.
func (c *Client) postWithRetry(ctx context.Context, url string, body []byte) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook returned status %d", resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return lastErr
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

func truncateContent(s string) string {
	if utf8.RuneCountInString(s) <= maxContent {
		return s
	}
	r := []rune(s)
	return string(r[:maxContent-1]) + "…"
}
