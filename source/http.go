package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// HTTPStatusError is returned for any non-2xx response.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

func (e *HTTPStatusError) temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is the HTTP plumbing shared by all connectors: per-request timeout,
// retries with exponential backoff and an optional pace between requests.
type Client struct {
	http    *http.Client
	params  Params
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(name string, params Params) *Client {
	return &Client{
		http:   &http.Client{Timeout: params.Timeout},
		params: params,
		logger: slog.Default().With("module", "source", "connector", name),
	}
}

// Paced serializes requests with params.RequestDelay between them. Used by
// connectors that page through one request per day.
func (c *Client) Paced() *Client {
	c.limiter = rate.NewLimiter(rate.Every(max(c.params.RequestDelay, time.Millisecond)), 1)
	return c
}

// GetJSON performs a GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, base string, query url.Values, out any) error {
	c.logger.Debug("fetching", slog.String("url", base))
	u := base
	if len(query) > 0 {
		u = base + "?" + query.Encode()
	}

	return Retry(ctx, c.params.Attempts, c.params.BaseDelay, c.params.MaxDelay, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", base, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			se := &HTTPStatusError{StatusCode: resp.StatusCode}
			if se.temporary() {
				return se
			}
			return Permanent(se)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	})
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that retrying cannot fix.
func Permanent(err error) error {
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a permanent error, attempts run
// out or ctx is done. The delay doubles after each failure, capped at maxDelay.
func Retry(ctx context.Context, attempts int, baseDelay, maxDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay
	for i := 0; i < max(attempts, 1); i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted after %d attempts: %w", i, errors.Join(ctx.Err(), err))
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
		}

		err = fn()
		if err == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", max(attempts, 1), err)
}
