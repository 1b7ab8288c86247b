package core

import (
	"fmt"
	"math"
	"time"
)

// TokenBucket implements the token bucket algorithm with lazy replenishment.
// Tokens are added on every Accept in proportion to the time elapsed since
// the previous one; there is no background ticker.
//
// A TokenBucket is not safe for concurrent use. It is meant to be owned by
// a single limiter that serializes access.
type TokenBucket struct {
	bucketSize        float64
	tokensPerInterval float64
	interval          time.Duration
	content           float64
	lastDrip          time.Time
	now               func() time.Time
}

// NewTokenBucket creates an empty bucket holding at most bucketSize tokens
// and gaining tokensPerInterval tokens per interval.
func NewTokenBucket(bucketSize, tokensPerInterval float64, interval Interval) (*TokenBucket, error) {
	return newTokenBucket(bucketSize, tokensPerInterval, interval, time.Now)
}

// NewTokenBucketWithClock is NewTokenBucket with an explicit time source.
func NewTokenBucketWithClock(bucketSize, tokensPerInterval float64, interval Interval, now func() time.Time) (*TokenBucket, error) {
	if now == nil {
		now = time.Now
	}
	return newTokenBucket(bucketSize, tokensPerInterval, interval, now)
}

func newTokenBucket(bucketSize, tokensPerInterval float64, interval Interval, now func() time.Time) (*TokenBucket, error) {
	d, err := interval.Duration()
	if err != nil {
		return nil, err
	}
	if bucketSize < 0 {
		return nil, fmt.Errorf("%w: bucket size %v must not be negative", ErrInvalidArgument, bucketSize)
	}

	return &TokenBucket{
		bucketSize:        bucketSize,
		tokensPerInterval: tokensPerInterval,
		interval:          d,
		lastDrip:          now(),
		now:               now,
	}, nil
}

// Accept removes count tokens if the bucket holds that many and reports
// whether it did. A count larger than the bucket can ever hold is rejected
// without touching the bucket.
func (tb *TokenBucket) Accept(count int64) bool {
	if float64(count) > tb.bucketSize {
		return false
	}

	tb.drip()

	if tb.content < float64(count) {
		return false
	}
	tb.content -= float64(count)
	return true
}

// drip adds the tokens earned since lastDrip. lastDrip always moves to now,
// so sub-token remainders are not carried over between calls.
func (tb *TokenBucket) drip() {
	now := tb.now()
	elapsed := now.Sub(tb.lastDrip)
	tb.lastDrip = now

	if elapsed <= 0 {
		tb.content = math.Min(tb.content, tb.bucketSize)
		return
	}

	added := float64(elapsed) / float64(tb.interval) * tb.tokensPerInterval
	tb.content = math.Min(tb.bucketSize, tb.content+added)
}

// Fill tops the bucket up to its capacity.
func (tb *TokenBucket) Fill() {
	tb.content = tb.bucketSize
	tb.lastDrip = tb.now()
}

// SetRate changes capacity and refill rate. The current content is left
// alone; the next drip clamps it to the new capacity.
func (tb *TokenBucket) SetRate(bucketSize, tokensPerInterval float64) {
	tb.bucketSize = bucketSize
	tb.tokensPerInterval = tokensPerInterval
}

// Content returns the token count as of the last drip.
func (tb *TokenBucket) Content() float64 {
	return tb.content
}

func (tb *TokenBucket) BucketSize() float64 {
	return tb.bucketSize
}

func (tb *TokenBucket) TokensPerInterval() float64 {
	return tb.tokensPerInterval
}

func (tb *TokenBucket) Interval() time.Duration {
	return tb.interval
}
