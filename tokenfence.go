package tokenfence

import (
	"github.com/KanavDutta/tokenfence/core"
	"github.com/KanavDutta/tokenfence/middleware"
	tf "github.com/KanavDutta/tokenfence/pkg/tokenfence"
)

// Re-export main types for convenience
type (
	Interval            = core.Interval
	IntervalRateLimiter = tf.IntervalRateLimiter
	Stat                = tf.Stat
	Config              = tf.Config
	Registry            = tf.Registry
	MiddlewareConfig    = middleware.Config
)

// Interval units
const (
	Second = core.Second
	Minute = core.Minute
	Hour   = core.Hour
	Day    = core.Day
)

var (
	// New creates a new interval rate limiter
	New = tf.New

	// LoadConfigFromFile reads named limiter definitions from YAML
	LoadConfigFromFile = tf.LoadConfigFromFile

	// NewRegistry builds named limiters from a Config
	NewRegistry = tf.NewRegistry

	// RateLimit wraps an http.Handler with a limiter
	RateLimit = middleware.RateLimit
)
