package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/kamazennext/catalog/internal/cache"
)

// RedirectRateLimitConfig configures the in-process limiter on /out and /go.
type RedirectRateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// RateLimitRedirect limits redirect requests per client IP with
// go-chi/httprate. Rejections are plain text like every redirect response.
func RateLimitRedirect(cfg RedirectRateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled || cfg.Requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	return httprate.Limit(
		cfg.Requests,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return ClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("Too many requests.\n"))
		}),
	)
}

// RateLimiter is a shared token bucket, implemented by cache.Cache.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, scope, client string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
}

// AdminRateLimitConfig configures the Redis-backed admin limiter.
type AdminRateLimitConfig struct {
	Logger        *slog.Logger
	Limiter       RateLimiter // nil disables limiting
	RatePerMinute int
	Burst         int
}

// RateLimitAdmin limits admin requests per client IP with a token bucket
// shared across instances. It must run before AdminAuth so failed password
// guesses are counted. Limiter errors fail open.
func RateLimitAdmin(cfg AdminRateLimitConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if cfg.Limiter == nil || cfg.RatePerMinute <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			result, err := cfg.Limiter.CheckRateLimit(r.Context(), "admin", ip, cfg.RatePerMinute, cfg.Burst)
			if err != nil {
				logger.Error("admin rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("ip", ip),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, cfg.RatePerMinute, result.Remaining, result.ResetAt)

			if !result.Allowed {
				logger.Warn("rate limit exceeded",
					slog.String("type", "admin"),
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func retryAfterSeconds(d time.Duration) int {
	s := int(d.Seconds())
	if s < 1 {
		return 1
	}
	return s
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	msg := fmt.Sprintf(`{"error":"Rate limit exceeded. Retry after %d seconds.","code":"RATE_LIMITED"}`,
		retryAfterSeconds(retryAfter))
	_, _ = w.Write([]byte(msg))
}
