package tokenfence

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KanavDutta/tokenfence/core"
)

// Stat describes the most recently completed interval window.
type Stat struct {
	// Accepted is the number of tokens granted in the window
	Accepted int64 `json:"accepted"`

	// Incoming is the number of Accept calls seen in the window, granted or not
	Incoming int64 `json:"incoming"`

	// AverageTimeMs is the mean of the AddTime samples per accepted token,
	// rounded down. It is 0 when AddTime was never called.
	AverageTimeMs int64 `json:"average_time_ms"`

	// Limit is the per-window token cap
	Limit int64 `json:"limit"`
}

// StatCallback is invoked once per window rollover with the finished
// window's Stat.
type StatCallback func(Stat)

// IntervalRateLimiter pairs a token bucket with a hard cap on the tokens
// granted within each fixed interval window.
//
// The bucket alone would allow a burst that straddles a window boundary;
// the window cap guarantees no window ever grants more than
// tokensPerInterval tokens. Windows advance lazily: a window only closes
// when a call observes that its interval has elapsed.
//
// All methods are safe for concurrent use.
type IntervalRateLimiter struct {
	mu sync.Mutex

	bucket            *core.TokenBucket
	tokensPerInterval int64
	interval          time.Duration

	curIntervalStart     time.Time
	tokensThisInterval   int64
	incomingThisInterval int64
	timeSum              time.Duration

	// Finished window
	accepted    int64
	incoming    int64
	averageTime int64

	statCallback StatCallback
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a limiter granting at most tokensPerInterval tokens per
// interval. The limiter starts with a full bucket.
//
// Example:
//
//	limiter, err := tokenfence.New(5000, core.Hour,
//	    tokenfence.WithStatCallback(func(s tokenfence.Stat) {
//	        log.Printf("accepted %d of %d", s.Accepted, s.Incoming)
//	    }),
//	)
func New(tokensPerInterval int64, interval core.Interval, opts ...Option) (*IntervalRateLimiter, error) {
	if tokensPerInterval <= 0 {
		return nil, fmt.Errorf("%w: tokens per interval must be positive, got %d", ErrInvalidArgument, tokensPerInterval)
	}

	l := &IntervalRateLimiter{
		tokensPerInterval: tokensPerInterval,
		now:               time.Now,
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	bucket, err := core.NewTokenBucketWithClock(float64(tokensPerInterval), float64(tokensPerInterval), interval, l.now)
	if err != nil {
		return nil, err
	}
	bucket.Fill()

	l.bucket = bucket
	l.interval = bucket.Interval()
	l.curIntervalStart = l.now()

	return l, nil
}

// Accept reports whether count tokens may be spent now. Every call counts
// as incoming for the current window, including rejected ones.
func (l *IntervalRateLimiter) Accept(count int64) bool {
	l.mu.Lock()

	l.incomingThisInterval++

	if count < 1 || float64(count) > l.bucket.BucketSize() {
		l.mu.Unlock()
		return false
	}

	finished, rolled := l.rollover()

	var allowed bool
	if count <= l.tokensPerInterval-l.tokensThisInterval {
		allowed = l.bucket.Accept(count)
		if allowed {
			l.tokensThisInterval += count
		}
	}

	cb := l.statCallback
	l.mu.Unlock()

	if rolled && cb != nil {
		cb(finished)
	}

	return allowed
}

// rollover closes the current window if its interval has elapsed.
// MUST be called with l.mu locked.
func (l *IntervalRateLimiter) rollover() (Stat, bool) {
	now := l.now()
	elapsed := now.Sub(l.curIntervalStart)
	if elapsed < l.interval {
		return Stat{}, false
	}

	// Two or more intervals since the window opened means the last full
	// window saw no calls at all.
	if elapsed-l.interval >= l.interval {
		l.accepted, l.incoming, l.averageTime = 0, 0, 0
	} else {
		l.accepted = l.tokensThisInterval
		l.incoming = l.incomingThisInterval
		l.averageTime = 0
		if l.tokensThisInterval > 0 {
			l.averageTime = int64(l.timeSum / time.Duration(l.tokensThisInterval) / time.Millisecond)
		}
	}

	l.tokensThisInterval = 0
	l.incomingThisInterval = 0
	l.timeSum = 0
	l.curIntervalStart = now

	stat := Stat{
		Accepted:      l.accepted,
		Incoming:      l.incoming,
		AverageTimeMs: l.averageTime,
		Limit:         l.tokensPerInterval,
	}

	if l.logger != nil {
		l.logger.Debug("interval window rolled over",
			"accepted", stat.Accepted,
			"incoming", stat.Incoming,
			"average_time_ms", stat.AverageTimeMs,
			"limit", stat.Limit,
		)
	}

	return stat, true
}

// AddTime adds a latency sample used for AverageTimeMs of the current
// window.
func (l *IntervalRateLimiter) AddTime(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.timeSum += d
}

// Stat returns the statistics of the most recently completed window. If
// the current window has already expired but no Accept has closed it yet,
// the counters are reported as zero.
func (l *IntervalRateLimiter) Stat() Stat {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.now().Sub(l.curIntervalStart) >= l.interval {
		return Stat{Limit: l.tokensPerInterval}
	}

	return Stat{
		Accepted:      l.accepted,
		Incoming:      l.incoming,
		AverageTimeMs: l.averageTime,
		Limit:         l.tokensPerInterval,
	}
}

// SetLimit changes the per-window cap and the bucket capacity together.
// Tokens already in the bucket are not adjusted.
func (l *IntervalRateLimiter) SetLimit(tokensPerInterval int64) error {
	if tokensPerInterval <= 0 {
		return fmt.Errorf("%w: tokens per interval must be positive, got %d", ErrInvalidArgument, tokensPerInterval)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokensPerInterval = tokensPerInterval
	l.bucket.SetRate(float64(tokensPerInterval), float64(tokensPerInterval))
	return nil
}

// Limit returns the per-window token cap.
func (l *IntervalRateLimiter) Limit() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokensPerInterval
}

// Interval returns the window length.
func (l *IntervalRateLimiter) Interval() time.Duration {
	return l.interval
}

// Remaining returns how many tokens the current window can still grant,
// ignoring the bucket's own content.
func (l *IntervalRateLimiter) Remaining() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.now().Sub(l.curIntervalStart) >= l.interval {
		return l.tokensPerInterval
	}
	remaining := l.tokensPerInterval - l.tokensThisInterval
	if remaining < 0 {
		return 0
	}
	return remaining
}
