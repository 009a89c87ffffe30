package ratelimit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openmedrec/medrec-go/internal/cache/memory"
	"github.com/openmedrec/medrec-go/internal/ratelimit"
)

func newLimiter(t *testing.T, requests int64) *ratelimit.Limiter {
	t.Helper()
	c := memory.New(time.Minute, 0)
	t.Cleanup(func() { c.Close() })
	return ratelimit.New(c, &ratelimit.Config{
		RequestsPerWindow: requests,
		Window:            time.Minute,
		KeyPrefix:         "test:",
	})
}

func TestAllowWithinQuota(t *testing.T) {
	limiter := newLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "client")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if result.Remaining != int64(2-i) {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, 2-i, result.Remaining)
		}
	}

	result, err := limiter.Allow(ctx, "client")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed || result.Remaining != 0 {
		t.Errorf("fourth request should be denied with 0 remaining, got %+v", result)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter := newLimiter(t, 1)
	ctx := context.Background()

	if result, _ := limiter.Allow(ctx, "a"); !result.Allowed {
		t.Fatal("first request for a should pass")
	}
	if result, _ := limiter.Allow(ctx, "a"); result.Allowed {
		t.Fatal("second request for a should be denied")
	}
	if result, _ := limiter.Allow(ctx, "b"); !result.Allowed {
		t.Error("b has its own quota")
	}
}

func TestReset(t *testing.T) {
	limiter := newLimiter(t, 1)
	ctx := context.Background()

	limiter.Allow(ctx, "client")
	if result, _ := limiter.Allow(ctx, "client"); result.Allowed {
		t.Fatal("quota should be exhausted")
	}

	if err := limiter.Reset(ctx, "client"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if result, _ := limiter.Allow(ctx, "client"); !result.Allowed {
		t.Error("reset should restore the quota")
	}
}

func TestKeyFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	if key := ratelimit.KeyFromRequest(r); key != "10.1.2.3" {
		t.Errorf("expected 10.1.2.3, got %q", key)
	}

	r.RemoteAddr = "10.1.2.3"
	if key := ratelimit.KeyFromRequest(r); key != "10.1.2.3" {
		t.Errorf("expected bare addr passthrough, got %q", key)
	}
}

func TestMiddleware(t *testing.T) {
	limiter := newLimiter(t, 2)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	if first.Code != http.StatusOK {
		t.Fatalf("first request: %d", first.Code)
	}
	if first.Header().Get("X-RateLimit-Limit") != "2" || first.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Errorf("unexpected quota headers: %v", first.Header())
	}

	do()
	third := do()
	if third.Code != http.StatusTooManyRequests {
		t.Fatalf("third request should be limited, got %d", third.Code)
	}
	if third.Header().Get("Retry-After") == "" {
		t.Error("limited response must carry Retry-After")
	}

	// A different client is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client should pass, got %d", rec.Code)
	}
}
