// Package ring implements the bounded single-producer single-consumer
// transport that connects lanes. Capacity must be a power of two. Exactly
// one goroutine may call the producer methods and exactly one goroutine
// may call the consumer methods — this is a static contract, not enforced
// at runtime: using a ring from more than one producer or consumer is a
// configuration error (spec ContractViolation), not a recoverable fault.
package ring

import (
	"runtime"
	"sync/atomic"
	"time"
)

// backoff implements the spin → yield → short sleep → longer sleep
// progression used by the blocking wait variants.
type backoff struct{ n uint32 }

func (b *backoff) spin() {
	switch {
	case b.n < 8:
		// busy spin, L1-latency range
	case b.n < 16:
		runtime.Gosched()
	case b.n < 32:
		time.Sleep(time.Microsecond)
	default:
		time.Sleep(10 * time.Microsecond)
	}
	b.n++
}

// Ring is a bounded SPSC queue of capacity N (rounded up to the next
// power of two by New). Each endpoint keeps a private cached copy of the
// other endpoint's counter so the fast path never touches the remote
// cache line unless the local cache says the ring is exhausted.
type Ring[T any] struct {
	mask uint64

	tail       atomic.Uint64
	_          [56]byte // pad: tail and cachedHead on separate cache lines
	cachedHead uint64   // producer-private

	head       atomic.Uint64
	_          [56]byte
	cachedTail uint64 // consumer-private

	pushCount atomic.Uint64
	popCount  atomic.Uint64
	dropCount atomic.Uint64

	buf []T
}

// New returns a ring whose capacity is the smallest power of two ≥ n (n
// must be ≥ 1).
func New[T any](n int) *Ring[T] {
	if n < 1 {
		n = 1
	}
	cap := 1
	for cap < n {
		cap <<= 1
	}
	return &Ring[T]{
		mask: uint64(cap - 1),
		buf:  make([]T, cap),
	}
}

// Capacity returns the ring's fixed capacity.
func (r *Ring[T]) Capacity() int { return int(r.mask) + 1 }

// TryPush attempts a non-blocking push. It returns false if the ring is
// full, in which case the drop counter has been incremented. PRODUCER
// THREAD ONLY.
func (r *Ring[T]) TryPush(v T) bool {
	tail := r.tail.Load()
	if tail-r.cachedHead >= uint64(len(r.buf)) {
		r.cachedHead = r.head.Load()
		if tail-r.cachedHead >= uint64(len(r.buf)) {
			r.dropCount.Add(1)
			return false
		}
	}
	r.buf[tail&r.mask] = v
	r.tail.Store(tail + 1) // publish: release-equivalent under Go's happens-before via atomic store
	r.pushCount.Add(1)
	return true
}

// PushWait blocks with a spin/yield/sleep backoff until the push succeeds
// or the deadline passes. It returns false on timeout. PRODUCER THREAD
// ONLY.
func (r *Ring[T]) PushWait(v T, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	var bo backoff
	for !r.TryPush(v) {
		if time.Now().After(deadline) {
			return false
		}
		bo.spin()
	}
	return true
}

// TryPop attempts a non-blocking pop. It reports false if the ring is
// empty. CONSUMER THREAD ONLY.
func (r *Ring[T]) TryPop() (T, bool) {
	var zero T
	head := r.head.Load()
	if head == r.cachedTail {
		r.cachedTail = r.tail.Load()
		if head == r.cachedTail {
			return zero, false
		}
	}
	v := r.buf[head&r.mask]
	r.buf[head&r.mask] = zero
	r.head.Store(head + 1)
	r.popCount.Add(1)
	return v, true
}

// PopWait blocks with a spin/yield/sleep backoff until an item is
// available or the deadline passes. CONSUMER THREAD ONLY.
func (r *Ring[T]) PopWait(timeout time.Duration) (T, bool) {
	deadline := time.Now().Add(timeout)
	var bo backoff
	for {
		if v, ok := r.TryPop(); ok {
			return v, true
		}
		if time.Now().After(deadline) {
			var zero T
			return zero, false
		}
		bo.spin()
	}
}

// TryPopBatch drains up to len(dst) items and returns the number popped.
// Used by Lane 4 to batch uplink payloads into fewer sink calls.
func (r *Ring[T]) TryPopBatch(dst []T) int {
	n := 0
	for n < len(dst) {
		v, ok := r.TryPop()
		if !ok {
			break
		}
		dst[n] = v
		n++
	}
	return n
}

// Empty reports whether the ring currently holds no items. Callable from
// any thread; the result is approximate under concurrent use.
func (r *Ring[T]) Empty() bool {
	return r.head.Load() == r.tail.Load()
}

// Full reports whether the ring is currently at capacity.
func (r *Ring[T]) Full() bool {
	return r.sizeApprox() >= uint64(len(r.buf))
}

func (r *Ring[T]) sizeApprox() uint64 {
	return r.tail.Load() - r.head.Load()
}

// Stats is a point-in-time, relaxed snapshot of a ring's counters,
// readable from any goroutine (e.g. a metrics poller).
type Stats struct {
	PushCount   uint64
	PopCount    uint64
	DropCount   uint64
	CurrentSize uint64
	Capacity    uint64
	FillRatio   float32
}

// Stats returns a snapshot of the ring's counters.
func (r *Ring[T]) Stats() Stats {
	sz := r.sizeApprox()
	cap := uint64(len(r.buf))
	return Stats{
		PushCount:   r.pushCount.Load(),
		PopCount:    r.popCount.Load(),
		DropCount:   r.dropCount.Load(),
		CurrentSize: sz,
		Capacity:    cap,
		FillRatio:   float32(sz) / float32(cap),
	}
}

// ResetStats zeroes the push/pop/drop counters without disturbing queued
// items.
func (r *Ring[T]) ResetStats() {
	r.pushCount.Store(0)
	r.popCount.Store(0)
	r.dropCount.Store(0)
}
