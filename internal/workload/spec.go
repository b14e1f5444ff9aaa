package workload

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

var (
	// ErrInvalidWorkloadSize is returned when N is not positive.
	ErrInvalidWorkloadSize = errors.New("workload size must be positive")
	// ErrInvalidRatio is returned when a ratio-miss hit ratio is outside (0, 1].
	ErrInvalidRatio = errors.New("hit ratio must be in (0, 1]")
	// ErrInvalidTheta is returned when a zipf skew is outside (0, 1).
	ErrInvalidTheta = errors.New("zipf theta must be in (0, 1)")
	// ErrUnknownWorkload is returned for names not listed by Names.
	ErrUnknownWorkload = errors.New("unknown workload")
	// ErrMissingPath is returned when an API workload has no URL.
	ErrMissingPath = errors.New("api workload requires a path")
)

// Name identifies a workload.
type Name string

// Workload names.
const (
	Set       Name = "set"
	GetHit    Name = "get-hit"
	GetMiss   Name = "get-miss"
	HalfMiss  Name = "half-miss"
	RatioMiss Name = "ratio-miss"
	Increment Name = "increment"
	Zipf      Name = "zipf"
	Factorial Name = "factorial"
	APIProxy  Name = "api-proxy"
	APIDirect Name = "api-direct"
)

// Names returns every workload in suite order.
func Names() []Name {
	return []Name{Set, GetHit, GetMiss, HalfMiss, RatioMiss, Increment, Zipf, Factorial, APIProxy, APIDirect}
}

// ParseName validates a workload name.
func ParseName(s string) (Name, error) {
	for _, n := range Names() {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWorkload, s)
}

const (
	defaultAmount = 1
	defaultTheta  = 0.99
)

// Spec is an immutable workload description.
type Spec struct {
	Name Name
	// N is the key-space size and the number of timed operations.
	N int
	// Ratio is the expected hit probability for ratio-miss.
	Ratio float64
	// Amount is the increment delta. Zero means 1.
	Amount int64
	// Theta is the zipf skew. Zero means 0.99.
	Theta float64
	// Seed makes probabilistic key sequences reproducible.
	Seed uint64
	// TTL is applied to every write the workload or its setup issues.
	TTL time.Duration

	// Path and Params address the upstream API for api-proxy and api-direct.
	Path   string
	Params map[string]string
	// Compress stores api-proxy payloads zstd-compressed.
	Compress bool
}

// Validate rejects malformed specs before any operation is issued.
func (s Spec) Validate() error {
	if _, err := ParseName(string(s.Name)); err != nil {
		return err
	}
	if s.N <= 0 {
		return fmt.Errorf("%s: n=%d: %w", s.Name, s.N, ErrInvalidWorkloadSize)
	}
	switch s.Name {
	case RatioMiss:
		if math.IsNaN(s.Ratio) || s.Ratio <= 0 || s.Ratio > 1 {
			return fmt.Errorf("%s: ratio=%v: %w", s.Name, s.Ratio, ErrInvalidRatio)
		}
	case Zipf:
		if t := s.Skew(); math.IsNaN(t) || t <= 0 || t >= 1 {
			return fmt.Errorf("%s: theta=%v: %w", s.Name, t, ErrInvalidTheta)
		}
	case APIProxy, APIDirect:
		if s.Path == "" {
			return fmt.Errorf("%s: %w", s.Name, ErrMissingPath)
		}
	}
	return nil
}

// Delta returns the increment amount, defaulting to 1.
func (s Spec) Delta() int64 {
	if s.Amount == 0 {
		return defaultAmount
	}
	return s.Amount
}

// Skew returns the zipf theta, defaulting to 0.99.
func (s Spec) Skew() float64 {
	if s.Theta == 0 {
		return defaultTheta
	}
	return s.Theta
}

// Preload is the untimed state a workload expects before it runs.
type Preload int

const (
	// PreloadNone starts from an empty cache.
	PreloadNone Preload = iota
	// PreloadValues sets keys [0, N) to their own name.
	PreloadValues
	// PreloadCounters sets keys [0, N) to "0".
	PreloadCounters
)

// Preload reports the setup the workload needs.
func (s Spec) Preload() Preload {
	switch s.Name {
	case GetHit, GetMiss, HalfMiss, RatioMiss, Zipf:
		return PreloadValues
	case Increment:
		return PreloadCounters
	}
	return PreloadNone
}

// HasLogicalResult reports whether every backend must produce the same
// logical value for the workload.
func (s Spec) HasLogicalResult() bool {
	return s.Name == Factorial
}

// Key formats an integer key as stored in the backends.
func Key(i int) string {
	return strconv.Itoa(i)
}
