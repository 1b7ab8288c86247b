package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Limiter is the part of *tokenfence.IntervalRateLimiter the middleware needs.
type Limiter interface {
	Accept(count int64) bool
	AddTime(d time.Duration)
	Limit() int64
	Remaining() int64
	Interval() time.Duration
}

// CostFunc returns how many tokens a request spends.
type CostFunc func(*http.Request) int64

// Config for the rate limiting middleware
type Config struct {
	Limiter Limiter      // Required
	Cost    CostFunc     // Optional: defaults to one token per request
	Logger  *slog.Logger // Optional: logs rejected requests
	Timed   bool         // Optional: feed handler latency into AddTime
}

// RateLimit wraps an http.Handler so every request spends tokens from the
// configured limiter. Rejected requests get 429 Too Many Requests.
func RateLimit(config Config) func(http.Handler) http.Handler {
	if config.Cost == nil {
		config.Cost = func(*http.Request) int64 { return 1 }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := config.Limiter
			cost := config.Cost(r)

			allowed := l.Accept(cost)

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.Limit(), 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(l.Remaining(), 10))

			if !allowed {
				if config.Logger != nil {
					config.Logger.Info("request rate limited", "path", r.URL.Path, "cost", cost)
				}

				retryAfterSec := int64(l.Interval().Seconds())
				if retryAfterSec == 0 {
					retryAfterSec = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSec, 10))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				json.NewEncoder(w).Encode(map[string]any{
					"error":   "rate_limit_exceeded",
					"message": "Too many requests. Please try again later.",
				})
				return
			}

			if !config.Timed {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			next.ServeHTTP(w, r)
			l.AddTime(time.Since(start))
		})
	}
}
