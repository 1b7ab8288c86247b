package tokenfence

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Observer receives the Stat of every finished window of a named limiter.
type Observer interface {
	Observe(name string, stat Stat)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(name string, stat Stat)

func (f ObserverFunc) Observe(name string, stat Stat) { f(name, stat) }

// Observers fans a Stat out to several observers in order.
func Observers(obs ...Observer) Observer {
	return ObserverFunc(func(name string, stat Stat) {
		for _, o := range obs {
			if o != nil {
				o.Observe(name, stat)
			}
		}
	})
}

// Registry holds named limiters built from a Config.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*entry
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type entry struct {
	limiter *IntervalRateLimiter
	config  LimiterConfig
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry) error

// WithObserver sets the observer notified on every window rollover.
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) error {
		if o == nil {
			return fmt.Errorf("%w: observer cannot be nil", ErrInvalidConfig)
		}
		r.observer = o
		return nil
	}
}

// WithRegistryLogger sets the logger used by the registry and its limiters.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) error {
		r.logger = logger
		return nil
	}
}

// WithRegistryNow replaces the wall clock of every limiter. Intended for tests.
func WithRegistryNow(now func() time.Time) RegistryOption {
	return func(r *Registry) error {
		if now == nil {
			return fmt.Errorf("%w: time source cannot be nil", ErrInvalidConfig)
		}
		r.now = now
		return nil
	}
}

// NewRegistry builds one limiter per entry in cfg.
func NewRegistry(cfg *Config, opts ...RegistryOption) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
	}

	r := &Registry{
		limiters: make(map[string]*entry),
		now:      time.Now,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := r.Apply(cfg); err != nil {
		return nil, err
	}

	return r, nil
}

// Get returns the limiter registered under name.
func (r *Registry) Get(name string) (*IntervalRateLimiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.limiters[name]
	if !ok {
		return nil, false
	}
	return e.limiter, true
}

// Names returns the registered limiter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply brings the registry in line with cfg. Limiters whose interval is
// unchanged keep their window state and only get SetLimit; limiters with a
// new interval are rebuilt; limiters missing from cfg are dropped.
func (r *Registry) Apply(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*entry, len(cfg.Limiters))
	for _, name := range cfg.Names() {
		lc := cfg.Limiters[name]

		if cur, ok := r.limiters[name]; ok && cur.config.Interval == lc.Interval {
			if cur.config.TokensPerInterval != lc.TokensPerInterval {
				if err := cur.limiter.SetLimit(lc.TokensPerInterval); err != nil {
					return fmt.Errorf("limiter %s: %w", name, err)
				}
				r.log("limiter resized", "limiter", name, "from", cur.config.TokensPerInterval, "to", lc.TokensPerInterval)
			}
			next[name] = &entry{limiter: cur.limiter, config: lc}
			continue
		}

		l, err := r.build(name, lc)
		if err != nil {
			return fmt.Errorf("limiter %s: %w", name, err)
		}
		r.log("limiter created", "limiter", name, "tokens_per_interval", lc.TokensPerInterval, "interval", string(lc.Interval))
		next[name] = &entry{limiter: l, config: lc}
	}

	for name := range r.limiters {
		if _, ok := next[name]; !ok {
			r.log("limiter removed", "limiter", name)
		}
	}

	r.limiters = next
	return nil
}

func (r *Registry) build(name string, lc LimiterConfig) (*IntervalRateLimiter, error) {
	opts := []Option{WithNow(r.now)}
	if r.logger != nil {
		opts = append(opts, WithLogger(r.logger.With("limiter", name)))
	}
	if r.observer != nil {
		obs := r.observer
		opts = append(opts, WithStatCallback(func(s Stat) {
			obs.Observe(name, s)
		}))
	}
	return New(lc.TokensPerInterval, lc.Interval, opts...)
}

func (r *Registry) log(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}
