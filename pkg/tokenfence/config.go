package tokenfence

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/KanavDutta/tokenfence/core"
)

// Config holds a set of named limiters.
type Config struct {
	// Limiters maps a limiter name to its policy.
	// Example: "github" -> 5000 per hour, "search" -> 10 per second
	Limiters map[string]LimiterConfig `yaml:"limiters"`
}

// LimiterConfig defines one interval rate limiter.
type LimiterConfig struct {
	// TokensPerInterval is both the per-window cap and the bucket capacity
	TokensPerInterval int64 `yaml:"tokens_per_interval" validate:"gt=0"`

	// Interval is "second", "minute", "hour", "day", a millisecond count
	// or a Go duration string
	Interval core.Interval `yaml:"interval" validate:"required,interval"`
}

// NewConfig creates an empty Config.
func NewConfig() *Config {
	return &Config{
		Limiters: make(map[string]LimiterConfig),
	}
}

// LoadConfigFromFile loads configuration from a YAML file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalidConfig, err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidConfig, err)
	}

	if config.Limiters == nil {
		config.Limiters = make(map[string]LimiterConfig)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks every limiter definition.
func (c *Config) Validate() error {
	for _, name := range c.Names() {
		if name == "" {
			return fmt.Errorf("%w: limiter name cannot be empty", ErrInvalidConfig)
		}
		lc := c.Limiters[name]
		if err := lc.Validate(); err != nil {
			return fmt.Errorf("%w: invalid limiter %s: %w", ErrInvalidConfig, name, err)
		}
	}
	return nil
}

// Validate checks a single limiter definition.
func (lc LimiterConfig) Validate() error {
	return Validate(lc)
}

// SetLimiter adds or replaces a limiter definition.
func (c *Config) SetLimiter(name string, lc LimiterConfig) error {
	if name == "" {
		return fmt.Errorf("%w: limiter name cannot be empty", ErrInvalidConfig)
	}
	if err := lc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Limiters == nil {
		c.Limiters = make(map[string]LimiterConfig)
	}
	c.Limiters[name] = lc
	return nil
}

// Names returns the limiter names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Limiters))
	for name := range c.Limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
