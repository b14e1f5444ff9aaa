//go:build !linux && !darwin

package benchmark

import "time"

// Now falls back to wall time where no process CPU clock is available.
func (CPUClock) Now() time.Duration {
	return WallClock{}.Now()
}
