// Package benchmark times workloads against cache backends and reduces the
// samples into comparable results.
package benchmark

import (
	"fmt"
	"time"
)

// Clock reads a monotonically increasing time source.
type Clock interface {
	Now() time.Duration
}

// WallClock measures elapsed real time.
type WallClock struct{}

var wallEpoch = time.Now()

// Now returns the time since process start, using the monotonic clock.
func (WallClock) Now() time.Duration {
	return time.Since(wallEpoch)
}

// CPUClock measures CPU time consumed by the whole process. Time spent
// blocked on the network is not counted, so remote backends look faster
// than their true latency.
type CPUClock struct{}

// ClockNamed returns the clock for "cpu" or "wall".
func ClockNamed(name string) (Clock, error) {
	switch name {
	case "", "cpu":
		return CPUClock{}, nil
	case "wall":
		return WallClock{}, nil
	}
	return nil, fmt.Errorf("unknown clock %q (want cpu or wall)", name)
}

// Sampler times single operations.
type Sampler struct {
	Clock Clock
}

// Time runs fn and returns its elapsed duration, never negative.
func (s Sampler) Time(fn func() error) (time.Duration, error) {
	c := s.Clock
	if c == nil {
		c = CPUClock{}
	}
	start := c.Now()
	err := fn()
	d := c.Now() - start
	if d < 0 {
		d = 0
	}
	return d, err
}
