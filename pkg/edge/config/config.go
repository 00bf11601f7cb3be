// Package config loads and reads edge client settings.
//
// Settings come from a plain key/value map (typically parsed from a YAML or
// JSON file). All accessors return default values when a key is missing or
// holds a value of the wrong type; configuration reading never fails the
// caller.
package config

import (
	"time"
)

// Default values applied by Settings().
const (
	DefaultEnvironment = "prod"
	DefaultPendingTTL  = 5 * time.Minute
	DefaultHintTimeout = 5 * time.Second
)

// Config wraps a map[string]any for type-safe value extraction.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map.
// If data is nil, an empty Config is returned.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// Raw returns the underlying map.
func (c Config) Raw() map[string]any {
	return c.data
}

// String returns the string value for key, or defaultVal if missing or not a string.
func (c Config) String(key, defaultVal string) string {
	v, ok := c.data[key]
	if !ok {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or not a bool.
func (c Config) Bool(key string, defaultVal bool) bool {
	v, ok := c.data[key]
	if !ok {
		return defaultVal
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not convertible.
//
// Accepts:
//   - int: used directly
//   - int64: converted to int
//   - float64: converted to int (only if no fractional part)
func (c Config) Int(key string, defaultVal int) int {
	v, ok := c.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Duration returns the duration value for key, or defaultVal if missing or invalid.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int, int64, float64: interpreted as seconds
//   - time.Duration: used directly
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	v, ok := c.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(time.Second))
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case time.Duration:
		return val
	}
	return defaultVal
}

// Settings are the edge client settings extracted from a Config.
type Settings struct {
	// DatastreamID identifies the upstream datastream requests are sent to.
	DatastreamID string

	// Environment selects the upstream environment (e.g. "prod", "pre-prod").
	Environment string

	// Domain overrides the upstream domain, if set.
	Domain string

	// PendingTTL bounds how long a registered completion callback may wait
	// for a terminal signal before it is cancelled.
	PendingTTL time.Duration

	// HintTimeout bounds the one-shot location hint exchange.
	HintTimeout time.Duration
}

// Settings extracts the edge client settings, applying defaults for any
// missing or malformed value.
func (c Config) Settings() Settings {
	return Settings{
		DatastreamID: c.String("edge.datastreamId", ""),
		Environment:  c.String("edge.environment", DefaultEnvironment),
		Domain:       c.String("edge.domain", ""),
		PendingTTL:   c.Duration("edge.pendingTTL", DefaultPendingTTL),
		HintTimeout:  c.Duration("edge.hintTimeout", DefaultHintTimeout),
	}
}
