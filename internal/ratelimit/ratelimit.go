// Package ratelimit provides per-client rate limiting for the public
// authentication endpoints, using the cache subsystem's counters.
package ratelimit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/openmedrec/medrec-go/internal/cache"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Config defines rate limiting parameters.
type Config struct {
	// RequestsPerWindow is the maximum requests allowed per window.
	RequestsPerWindow int64

	// Window is the time window for rate limiting.
	Window time.Duration

	// KeyPrefix is prepended to all rate limit keys.
	KeyPrefix string
}

// DefaultConfig returns defaults tuned for login traffic: generous enough
// for a shared NAT, tight enough to slow a credential-stuffing run.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerWindow: 30,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:",
	}
}

// Limiter provides rate limiting using a cache counter backend.
type Limiter struct {
	counter cache.Counter
	config  *Config
}

// New creates a new rate limiter.
func New(c cache.Counter, cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Limiter{
		counter: c,
		config:  cfg,
	}
}

// Result contains the rate limit check result.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Allow records a request for the given key and reports whether it is
// within the window's quota.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	count, resetAt, err := l.counter.Increment(ctx, l.config.KeyPrefix+key, 1, l.config.Window)
	if err != nil {
		return nil, err
	}

	remaining := l.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= l.config.RequestsPerWindow,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the rate limit for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.counter.Reset(ctx, l.config.KeyPrefix+key)
}

// KeyFromRequest extracts a rate limit key from an HTTP request. RemoteAddr
// already carries the client IP when the RealIP middleware runs upstream.
func KeyFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware returns an HTTP middleware that applies rate limiting per
// client IP. Counter backend failures let the request through: losing the
// limiter must not take down login.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := l.Allow(r.Context(), KeyFromRequest(r))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.config.RequestsPerWindow, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			seconds := int(time.Until(result.ResetAt).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
