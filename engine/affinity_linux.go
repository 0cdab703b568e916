//go:build linux

package engine

import (
	"log/slog"
	"runtime"

	"golang.org/x/sys/unix"
)

// pinHotLane requests CPU affinity and a best-effort elevated scheduling
// priority for the calling goroutine's OS thread, per §5's "the sensing
// thread is RT-critical; the implementation is expected to request CPU
// pinning and, where available, an elevated scheduling class." Must be
// called from the goroutine that will run Lane 1; it locks that goroutine
// to its OS thread itself before changing affinity or priority.
func pinHotLane(logger *slog.Logger, cpu int) {
	runtime.LockOSThread()

	if cpu >= 0 {
		var set unix.CPUSet
		set.Zero()
		set.Set(cpu)
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			logger.Warn("engine: CPU pinning failed, continuing unpinned", "cpu", cpu, "err", err)
		}
	}

	// Setpriority requires privileges this process may not have; treat
	// failure as informational, never fatal, matching the hot lane's
	// degrade-don't-die posture.
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, -10); err != nil {
		logger.Debug("engine: could not raise scheduling priority", "err", err)
	}
}
