// Package snapshot implements the double-buffered, sequence-stamped
// publication cell shared across lanes: one writer, any number of
// readers, whole-record coherence without a lock on either side.
package snapshot

import "sync/atomic"

// Publisher holds two slots of T and an atomic index selecting which one
// is "active". The writer always mutates the inactive slot, then flips
// the index — so a reader never observes a torn record, and the slot it
// copied always carries the sequence_id it was stamped with.
//
// Exactly one goroutine may call Publish; any number of goroutines may
// call Load concurrently with it and with each other.
type Publisher[T any] struct {
	slots   [2]T
	seq     [2]uint32 // per-slot last-published sequence id
	active  atomic.Uint32
	nextSeq atomic.Uint32
}

// NewPublisher returns a Publisher seeded with the given initial value in
// both slots.
func NewPublisher[T any](initial T) *Publisher[T] {
	p := &Publisher[T]{}
	p.slots[0] = initial
	p.slots[1] = initial
	return p
}

// Publish writes payload into the inactive slot and flips the active
// index, following the protocol: copy into inactive slot, stamp its
// sequence id after the copy, fence, flip with release ordering. It
// returns the sequence id that was assigned.
func (p *Publisher[T]) Publish(payload T) uint32 {
	cur := p.active.Load()
	inactive := 1 - cur
	seq := p.nextSeq.Add(1)

	p.slots[inactive] = payload
	p.seq[inactive] = seq // stamped after the copy, per protocol

	// atomic.Uint32.Store on the active index acts as the release fence:
	// all writes above are visible to any goroutine that later Loads the
	// new index with acquire ordering.
	p.active.Store(inactive)
	return seq
}

// Load returns a structural copy of the currently active payload and its
// sequence id. Safe to call from any number of goroutines concurrently
// with each other and with a single writer's Publish.
func (p *Publisher[T]) Load() (T, uint32) {
	idx := p.active.Load()
	return p.slots[idx], p.seq[idx]
}

// LoadSeq returns only the current sequence id, for callers that just
// need the sequence-equality guard (temporal consistency filters) without
// paying for a full payload copy.
func (p *Publisher[T]) LoadSeq() uint32 {
	idx := p.active.Load()
	return p.seq[idx]
}
