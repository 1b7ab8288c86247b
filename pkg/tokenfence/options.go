package tokenfence

import (
	"fmt"
	"log/slog"
	"time"
)

// Option is a functional option for configuring an IntervalRateLimiter.
type Option func(*IntervalRateLimiter) error

// WithStatCallback registers fn to receive the Stat of every finished
// window. fn runs synchronously inside the Accept call that closed the
// window, after the limiter's lock is released. Callbacks are not
// serialized, but two rollovers are at least one interval apart, so stats
// arrive in window order unless a callback stalls for longer than that.
func WithStatCallback(fn StatCallback) Option {
	return func(l *IntervalRateLimiter) error {
		if fn == nil {
			return fmt.Errorf("%w: stat callback cannot be nil", ErrInvalidArgument)
		}
		l.statCallback = fn
		return nil
	}
}

// WithLogger enables debug logging of window rollovers.
func WithLogger(logger *slog.Logger) Option {
	return func(l *IntervalRateLimiter) error {
		l.logger = logger
		return nil
	}
}

// WithNow replaces the wall clock. Intended for tests.
func WithNow(now func() time.Time) Option {
	return func(l *IntervalRateLimiter) error {
		if now == nil {
			return fmt.Errorf("%w: time source cannot be nil", ErrInvalidArgument)
		}
		l.now = now
		return nil
	}
}
