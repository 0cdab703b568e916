// Package failsafe holds the minimal surface the engine exposes to the
// failsafe monitor: the engine only updates signal values and the
// monitor only reads a status, per spec §1/§6. The monitor's evaluation
// policy (thresholds, hysteresis, degraded-mode response) is an external
// collaborator and is out of scope here.
package failsafe

import (
	"math"
	"sync/atomic"

	"github.com/orionlabs/sensing-core/types"
)

// Signal is a single named value the engine writes to every cycle — in
// this pipeline, the control-latency value named in §4.3 step 6. A real
// monitor would read Value and LastUpdateUnixNano to decide WARNING/CRITICAL; this core
// never branches on that decision itself.
type Signal struct {
	name       string
	value      atomic.Uint64 // float64 bits
	lastUpdate atomic.Int64  // unix nanos
}

// NewSignal returns a named, zero-valued Signal.
func NewSignal(name string) *Signal {
	return &Signal{name: name}
}

// Name returns the signal's identifier.
func (s *Signal) Name() string { return s.name }

// Update writes a new value, stamped with the current time. Called from
// the lane that owns this signal — for the latency signal, Lane 1.
func (s *Signal) Update(value float64, nowUnixNano int64) {
	s.value.Store(math.Float64bits(value))
	s.lastUpdate.Store(nowUnixNano)
}

// Value returns the last-written value.
func (s *Signal) Value() float64 {
	return math.Float64frombits(s.value.Load())
}

// LastUpdateUnixNano returns the timestamp of the last Update call.
func (s *Signal) LastUpdateUnixNano() int64 {
	return s.lastUpdate.Load()
}

// Status is a trivial, bounds-only evaluation of a latency signal,
// provided as a convenience default — a real deployment's failsafe
// monitor is an external collaborator and may ignore this entirely.
func (s *Signal) Status(warnMS, critMS float64) types.FailsafeStatus {
	v := s.Value()
	switch {
	case v >= critMS:
		return types.FailsafeCritical
	case v >= warnMS:
		return types.FailsafeWarning
	default:
		return types.FailsafeOK
	}
}
