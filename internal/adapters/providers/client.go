// Package providers holds the restaurant data provider adapters. Each adapter
// wraps a Client, which owns rate limiting, retries, quota accounting and
// status mapping, and translates the provider's JSON into domain.Listing.
package providers

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"restaurant_catalog/internal/adapters/observability"
	"restaurant_catalog/internal/domain"
)

const maxAttempts = 4

// Config is the per-provider client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	RPS     int
	Timeout time.Duration
	// Quota is the number of requests allowed per counter window; 0 disables it.
	Quota   int64
	Counter domain.RequestCounter
}

type Client struct {
	source  string
	base    string
	hc      *http.Client
	rl      *rate.Limiter
	auth    func(*http.Request)
	counter domain.RequestCounter
	quota   int64
}

func newClient(source string, cfg Config, auth func(*http.Request)) *Client {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		source:  source,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
		auth:    auth,
		counter: cfg.Counter,
		quota:   cfg.Quota,
	}
}

// getJSON performs a GET with client-side rate limiting, quota accounting,
// retries and JSON decode into out. Retries on 429 and transient 5xx,
// honoring Retry-After when provided.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if err := c.rl.Wait(ctx); err != nil {
			return err
		}
		if err := c.spendQuota(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "restaurant-catalog/1.0")
		if c.auth != nil {
			c.auth(req)
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(c.source, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%s %s: %w", c.source, endpoint, err)
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal(c.source, endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%s %s: decode: %w", c.source, endpoint, err)
			}
			return nil

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			lastErr = c.apiError(resp)
			if wait == 0 {
				wait = backoff(i)
			}
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				log.Debug().Str("source", c.source).Str("endpoint", endpoint).
					Int("status", resp.StatusCode).Int("attempt", i+1).Msg("retrying provider call")
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			return c.apiError(resp)
		}
	}
	return lastErr
}

// apiError reads a small error body for diagnostics and closes the response.
func (c *Client) apiError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	return &domain.APIError{Source: c.source, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

// spendQuota counts one request against the provider quota. Counter
// failures are logged and let the request through.
func (c *Client) spendQuota(ctx context.Context) error {
	if c.counter == nil || c.quota <= 0 {
		return nil
	}
	n, err := c.counter.Incr(ctx, c.source)
	if err != nil {
		log.Warn().Err(err).Str("source", c.source).Msg("request counter unavailable")
		return nil
	}
	if n > c.quota {
		return &domain.RateLimitError{Source: c.source, Count: n, Limit: c.quota}
	}
	return nil
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *domain.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
