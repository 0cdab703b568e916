// Package callback implements Lane 6: a merged MPSC queue of callback
// jobs produced by Lane 1 (CONTROL) and Lane 4 (UPLINK). Because the
// ring transport is strictly SPSC, the two producers serialize their
// pushes behind a dedicated mutex; the dispatch loop itself is
// single-consumer and therefore lock-free once a job is dequeued.
package callback

import (
	"sync"
	"sync/atomic"

	"github.com/orionlabs/sensing-core/types"
)

// ControlHook and UplinkHook are the two user-provided callback
// signatures named in §6. Either may be nil, in which case the
// corresponding job is simply dropped after being counted.
type ControlHook func(types.ControlDecision)
type UplinkHook func(types.UplinkPayload)

// job is the tagged union pushed onto the merged queue. Exactly one of
// Control/Uplink is populated, selected by Kind.
type kind uint8

const (
	kindControl kind = iota
	kindUplink
)

type job struct {
	kind    kind
	control types.ControlDecision
	uplink  types.UplinkPayload
}

// Dispatcher is Lane 6. PushControl and PushUplink may be called from any
// number of producer goroutines (in practice exactly Lane 1 and Lane 4);
// Run must be called from exactly one goroutine.
type Dispatcher struct {
	pushMu sync.Mutex
	queue  []job
	notify chan struct{}

	controlHook ControlHook
	uplinkHook  UplinkHook

	controlDispatched atomic.Uint64
	uplinkDispatched  atomic.Uint64
	dropped           atomic.Uint64

	capacity int
}

// New constructs a Dispatcher bounded at capacity queued jobs. Beyond
// that, pushes are dropped and counted, matching the hot lanes' general
// "prefer the next cycle's correctness over guaranteed delivery" policy.
func New(capacity int, controlHook ControlHook, uplinkHook UplinkHook) *Dispatcher {
	return &Dispatcher{
		queue:       make([]job, 0, capacity),
		notify:      make(chan struct{}, 1),
		controlHook: controlHook,
		uplinkHook:  uplinkHook,
		capacity:    capacity,
	}
}

func (d *Dispatcher) push(j job) {
	d.pushMu.Lock()
	if len(d.queue) >= d.capacity {
		d.pushMu.Unlock()
		d.dropped.Add(1)
		return
	}
	d.queue = append(d.queue, j)
	d.pushMu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// PushControl enqueues a CONTROL job. Called by Lane 1.
func (d *Dispatcher) PushControl(decision types.ControlDecision) {
	d.push(job{kind: kindControl, control: decision})
}

// PushUplink enqueues an UPLINK job. Called by Lane 4.
func (d *Dispatcher) PushUplink(payload types.UplinkPayload) {
	d.push(job{kind: kindUplink, uplink: payload})
}

// drain takes the whole queue under the producer-side mutex and hands it
// back to the single consumer, preserving push order — which in turn
// preserves the contractual CONTROL-before-UPLINK ordering within a
// frame, since Lane 1 pushes CONTROL before Lane 4 pushes UPLINK for the
// same frame_id (see DESIGN.md Open Question 2).
func (d *Dispatcher) drain() []job {
	d.pushMu.Lock()
	defer d.pushMu.Unlock()
	if len(d.queue) == 0 {
		return nil
	}
	out := d.queue
	d.queue = make([]job, 0, d.capacity)
	return out
}

// Run blocks, dispatching jobs to the user hooks, until stop is closed.
// This must run on exactly one goroutine — it is Lane 6's loop body.
func (d *Dispatcher) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			d.drainOnce()
			return
		case <-d.notify:
			d.drainOnce()
		}
	}
}

func (d *Dispatcher) drainOnce() {
	for _, j := range d.drain() {
		switch j.kind {
		case kindControl:
			if d.controlHook != nil {
				d.controlHook(j.control)
			}
			d.controlDispatched.Add(1)
		case kindUplink:
			if d.uplinkHook != nil {
				d.uplinkHook(j.uplink)
			}
			d.uplinkDispatched.Add(1)
		}
	}
}

// Stats is a relaxed snapshot of the dispatcher's counters.
type Stats struct {
	ControlDispatched uint64
	UplinkDispatched  uint64
	Dropped           uint64
}

// Stats returns a point-in-time snapshot, safe to call from any
// goroutine.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		ControlDispatched: d.controlDispatched.Load(),
		UplinkDispatched:  d.uplinkDispatched.Load(),
		Dropped:           d.dropped.Load(),
	}
}
