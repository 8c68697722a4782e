// Package feed fetches live basketball snapshots and market lines from the b365 API.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/paceoracle/internal/logger"
	"github.com/rewired-gh/paceoracle/internal/metrics"
	"github.com/rewired-gh/paceoracle/internal/models"
)

// ErrCircuitOpen is returned while the breaker is rejecting requests.
var ErrCircuitOpen = gobreaker.ErrOpenState

// StatusError is a non-2xx, non-5xx response. It is not retried.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Token    string
	SportID  string
	LeagueID string

	// Odds endpoints; empty values fall back to BaseURL and Token.
	OddsBaseURL string
	OddsToken   string

	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
	// Backoff is multiplied by the attempt number between retries.
	Backoff         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Client provides access to the live scores and odds API.
type Client struct {
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter
	inplay     *gobreaker.CircuitBreaker
	odds       *gobreaker.CircuitBreaker
}

// NewClient creates a rate-limited client guarded by a circuit breaker.
func NewClient(opts Options) *Client {
	if opts.OddsBaseURL == "" {
		opts.OddsBaseURL = opts.BaseURL
	}
	if opts.OddsToken == "" {
		opts.OddsToken = opts.Token
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 60
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}

	rps := float64(opts.RequestsPerMinute) / 60.0
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), opts.RequestsPerMinute),
		inplay:     newBreaker("inplay", opts),
		odds:       newBreaker("odds", opts),
	}
}

func newBreaker(name string, opts Options) *gobreaker.CircuitBreaker {
	failures := uint32(opts.BreakerFailures)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

// breakerSuccess keeps client errors and cancellations from tripping the breaker. An
// unsupported endpoint answering 404 says nothing about the upstream's health.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code < 500
}

type team struct {
	Name string `json:"name"`
}

type timer struct {
	Q  flexString `json:"q"`
	TM flexString `json:"tm"`
	TS flexString `json:"ts"`
}

type inplayEvent struct {
	ID    flexString `json:"id"`
	Home  team       `json:"home"`
	Away  team       `json:"away"`
	SS    string     `json:"ss"`
	Timer *timer     `json:"timer"`
}

type inplayResponse struct {
	Success flexString    `json:"success"`
	Error   string        `json:"error"`
	Results []inplayEvent `json:"results"`
}

// FetchInplay returns every live game in the configured sport and league. Fields are passed
// through as sent; parsing them is the tracker's job.
func (c *Client) FetchInplay(ctx context.Context) ([]models.Snapshot, error) {
	q := url.Values{}
	q.Set("sport_id", c.opts.SportID)
	if c.opts.LeagueID != "" {
		q.Set("league_id", c.opts.LeagueID)
	}
	q.Set("token", c.opts.Token)

	body, err := c.get(ctx, c.inplay, "inplay", c.opts.BaseURL+"/v3/events/inplay", q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inplay events: %w", err)
	}

	var resp inplayResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode inplay events: %w", err)
	}
	if resp.Success != "1" {
		return nil, fmt.Errorf("inplay request unsuccessful: %s", resp.Error)
	}

	snaps := make([]models.Snapshot, 0, len(resp.Results))
	for _, ev := range resp.Results {
		s := models.Snapshot{
			ID:       string(ev.ID),
			HomeName: ev.Home.Name,
			AwayName: ev.Away.Name,
			Score:    ev.SS,
		}
		if ev.Timer != nil {
			s.Quarter = string(ev.Timer.Q)
			s.Minute = string(ev.Timer.TM)
			s.Second = string(ev.Timer.TS)
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

// get runs a rate-limited, breaker-guarded GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, cb *gobreaker.CircuitBreaker, endpoint, base string, q url.Values) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.FeedLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	out, err := cb.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, base+"?"+q.Encode())
	})
	if err != nil {
		result := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "circuit_open"
		}
		metrics.FeedRequests.WithLabelValues(endpoint, result).Inc()
		return nil, err
	}
	metrics.FeedRequests.WithLabelValues(endpoint, "ok").Inc()
	return out.([]byte), nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.opts.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.opts.Backoff):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response body: %w", err)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{Code: resp.StatusCode, Body: truncate(body, 200)}
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
