// Package cache provides a unified interface for benchmarking cache backends.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBackendUnavailable is returned when the connection to a backend is lost mid-call.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrNotFound is returned by Incr when the counter key does not exist.
	ErrNotFound = errors.New("key not found")
	// ErrNotInteger is returned by Incr when the stored value is not a decimal integer.
	ErrNotInteger = errors.New("value is not an integer")
)

// Backend is the capability set every benchmarked cache exposes.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Set writes value unconditionally. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the stored value; found is false on a miss, which is
	// distinct from a stored empty string.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Incr atomically adds delta to the integer stored at key.
	// Missing keys are not created: ErrNotFound is returned instead.
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	// Flush evicts every key.
	Flush(ctx context.Context) error
	// Configure applies a tuning profile. Fields the backend cannot honor
	// are logged and skipped.
	Configure(ctx context.Context, p Profile) error
	Name() string
	Close() error
}

// Profile is a backend tuning profile. Zero values mean "leave as is".
type Profile struct {
	MaxMemoryMB    int64  `yaml:"max_memory_mb" json:"maxMemoryMB,omitempty"`
	EvictionPolicy string `yaml:"eviction_policy" json:"evictionPolicy,omitempty"`
	Samples        int    `yaml:"samples" json:"samples,omitempty"`
}

// IsZero reports whether the profile requests no tuning at all.
func (p Profile) IsZero() bool {
	return p.MaxMemoryMB == 0 && p.EvictionPolicy == "" && p.Samples == 0
}
