package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/heylo/heylo/internal/auth"
	"github.com/heylo/heylo/internal/cache"
	"github.com/heylo/heylo/internal/metrics"
)

// Limiter is the Redis-backed counter store behind admission control.
type Limiter interface {
	CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*cache.RateLimitResult, error)
	CheckQuota(ctx context.Context, scope, identity string, limit int, window time.Duration) (*cache.RateLimitResult, error)
	CountRequest(ctx context.Context, scope, identity string, window time.Duration) int64
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	Metrics metrics.Recorder
	Enabled bool
	// Resolve rate limiting (per IP token bucket)
	ResolveRPS   int
	ResolveBurst int
}

func (cfg RateLimitConfig) recorder() metrics.Recorder {
	if cfg.Metrics == nil {
		return metrics.NewNoop()
	}
	return cfg.Metrics
}

// Quota returns middleware that allows limit requests per caller per window
// within scope. Authenticated callers are counted by uid, everyone else by IP.
func Quota(cfg RateLimitConfig, scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	recorder := cfg.recorder()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			identity := callerIdentity(r)
			result, err := cfg.Limiter.CheckQuota(r.Context(), scope, identity, limit, window)
			if err != nil {
				cfg.Logger.Error("quota check failed",
					slog.String("error", err.Error()),
					slog.String("scope", scope),
				)
				// Fail open - allow request
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, limit, result.Remaining, result.ResetAt)

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", scope),
					slog.String("ip", getClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", retryAfterSeconds(result.RetryAfter)),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				recorder.IncRateLimited(scope)
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitIP returns middleware that rate limits requests per IP.
// Used for the resolve endpoints to prevent scraping.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	recorder := cfg.recorder()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cfg.ResolveRPS <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)

			result, err := cfg.Limiter.CheckIPRateLimit(r.Context(), ip, cfg.ResolveRPS, cfg.ResolveBurst)
			if err != nil {
				cfg.Logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
				)
				// Fail open - allow request
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", "resolve"),
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", retryAfterSeconds(result.RetryAfter)),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				recorder.IncRateLimited("resolve")
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SlowDownConfig configures progressive response delays.
type SlowDownConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	Enabled bool
	// Window is the counting period.
	Window time.Duration
	// After is the number of requests served at full speed per window.
	After int
	// Step is the extra delay added per request beyond After.
	Step time.Duration
	// MaxDelay caps the delay. Zero means no cap.
	MaxDelay time.Duration
}

// SlowDown returns middleware that delays callers who exceed After requests
// in the current window. The wait ends early if the request is cancelled.
func SlowDown(cfg SlowDownConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || cfg.Step <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			count := cfg.Limiter.CountRequest(r.Context(), "slowdown", callerIdentity(r), cfg.Window)
			delay := slowDownDelay(count, cfg.After, cfg.Step, cfg.MaxDelay)
			if delay > 0 {
				cfg.Logger.Debug("slowing down caller",
					slog.Int64("count", count),
					slog.Duration("delay", delay),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				timer := time.NewTimer(delay)
				select {
				case <-r.Context().Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// slowDownDelay is (count - after) * step, clamped to [0, max].
func slowDownDelay(count int64, after int, step, max time.Duration) time.Duration {
	over := count - int64(after)
	if over <= 0 {
		return 0
	}
	if max > 0 && over > int64(max/step) {
		return max
	}
	return time.Duration(over) * step
}

// callerIdentity keys counters by uid when a principal is present.
func callerIdentity(r *http.Request) string {
	if uid := auth.UIDFromContext(r.Context()); uid != "" {
		return "uid:" + uid
	}
	return "ip:" + getClientIP(r)
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

func retryAfterSeconds(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	secs := retryAfterSeconds(retryAfter)
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	msg := fmt.Sprintf(`{"message":"Too many requests, please try again after %d seconds","code":"RATE_LIMITED"}`, secs)
	_, _ = w.Write([]byte(msg))
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers for proxied requests.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
