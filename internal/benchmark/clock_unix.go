//go:build linux || darwin

package benchmark

import (
	"time"

	"golang.org/x/sys/unix"
)

// Now returns process CPU time, falling back to wall time if the kernel
// clock is unavailable.
func (CPUClock) Now() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_PROCESS_CPUTIME_ID, &ts); err != nil {
		return WallClock{}.Now()
	}
	return time.Duration(ts.Nano())
}
