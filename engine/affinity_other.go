//go:build !linux

package engine

import (
	"log/slog"
	"runtime"
)

// pinHotLane is a no-op outside Linux: CPU affinity and scheduling class
// control are not portably exposed by golang.org/x/sys on every target
// platform. Lane 1 still gets its own locked OS thread.
func pinHotLane(logger *slog.Logger, cpu int) {
	runtime.LockOSThread()
	logger.Debug("engine: CPU pinning not supported on this platform")
}
