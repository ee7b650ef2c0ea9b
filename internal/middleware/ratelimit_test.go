package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kamazennext/catalog/internal/cache"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})
}

func TestRateLimitRedirect(t *testing.T) {
	t.Parallel()

	handler := RateLimitRedirect(RedirectRateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute})(okHandler())

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/out?slug=zen", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("198.51.100.1"); rec.Code != http.StatusFound {
			t.Fatalf("request %d status = %d, want 302", i+1, rec.Code)
		}
	}

	rec := do("198.51.100.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	if rec := do("198.51.100.2"); rec.Code != http.StatusFound {
		t.Errorf("other client status = %d, want 302", rec.Code)
	}
}

func TestRateLimitRedirect_Disabled(t *testing.T) {
	t.Parallel()

	handler := RateLimitRedirect(RedirectRateLimitConfig{Enabled: false, Requests: 1})(okHandler())
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/out", nil))
		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
	}
}

type fakeLimiter struct {
	result *cache.RateLimitResult
	err    error
	scope  string
	client string
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, scope, client string, _, _ int) (*cache.RateLimitResult, error) {
	f.scope, f.client = scope, client
	return f.result, f.err
}

func TestRateLimitAdmin(t *testing.T) {
	t.Parallel()

	reset := time.Unix(1_800_000_000, 0)

	tests := []struct {
		name       string
		limiter    *fakeLimiter
		wantStatus int
	}{
		{"allowed", &fakeLimiter{result: &cache.RateLimitResult{Allowed: true, Remaining: 4, ResetAt: reset}}, http.StatusFound},
		{"denied", &fakeLimiter{result: &cache.RateLimitResult{Allowed: false, ResetAt: reset, RetryAfter: 3 * time.Second}}, http.StatusTooManyRequests},
		{"limiter error fails open", &fakeLimiter{err: errors.New("redis down")}, http.StatusFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := RateLimitAdmin(AdminRateLimitConfig{Limiter: tt.limiter, RatePerMinute: 60, Burst: 5})(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/admin/api/products", nil)
			req.RemoteAddr = "192.0.2.9:4567"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.limiter.scope != "admin" || tt.limiter.client != "192.0.2.9" {
				t.Errorf("limiter called with %q/%q", tt.limiter.scope, tt.limiter.client)
			}
			if tt.wantStatus == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "3" {
				t.Errorf("Retry-After = %q, want 3", rec.Header().Get("Retry-After"))
			}
			if tt.limiter.err == nil && rec.Header().Get("X-RateLimit-Limit") != "60" {
				t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
			}
		})
	}
}

func TestRateLimitAdmin_NoLimiter(t *testing.T) {
	t.Parallel()

	handler := RateLimitAdmin(AdminRateLimitConfig{RatePerMinute: 60})(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/api/products", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rec.Code)
	}
}
