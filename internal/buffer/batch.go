package buffer

import (
	"slices"
	"sync/atomic"
	"time"
)

type cellState int

const (
	stateIdle cellState = iota
	stateOutstanding
)

// cell is the pending-batch slot. Exactly one exists per buffer and it is
// only touched by whoever holds the lease.
//
//	idle --acquire+drain--> outstanding --commit--> idle
//
// Release and replay leave an outstanding cell outstanding.
type cell[T any] struct {
	state      cellState
	items      []T
	offsets    []uint64
	start, end uint64
	formedAt   time.Time
	deliveries int
}

func (c *cell[T]) hold(items []T, offsets []uint64, now time.Time) {
	c.state = stateOutstanding
	c.items = items
	c.offsets = offsets
	c.start, c.end = 0, 0
	if n := len(offsets); n > 0 {
		c.start = offsets[0]
		c.end = offsets[n-1]
	}
	c.formedAt = now
	c.deliveries = 0
}

func (c *cell[T]) reset() {
	*c = cell[T]{}
}

// releaseToken is the single-use right to hand a cell back to its buffer.
type releaseToken[T any] struct {
	owner *PublicationBuffer[T]
	cell  atomic.Pointer[cell[T]]
}

func (t *releaseToken[T]) grant(owner *PublicationBuffer[T], c *cell[T]) {
	t.owner = owner
	t.cell.Store(c)
}

// redeem returns the cell once, and only to the buffer that granted it.
func (t *releaseToken[T]) redeem(owner *PublicationBuffer[T]) *cell[T] {
	if t.owner != owner {
		return nil
	}
	return t.cell.Swap(nil)
}

// Batch is a handle on the outstanding batch. It owns a copy of the batch
// items and holds the buffer's lease until passed to Commit or Release.
type Batch[T any] struct {
	items      []T
	offsets    []uint64
	size       int
	start, end uint64
	replayed   bool
	deliveries int
	token      releaseToken[T]
}

// TakeItems moves the items out of the handle. A second call returns an
// empty slice. The lease is unaffected.
func (b *Batch[T]) TakeItems() []T {
	items := b.items
	b.items = nil
	return items
}

// Items returns the items still held by the handle.
func (b *Batch[T]) Items() []T {
	return b.items
}

// Len returns the number of items still held by the handle.
func (b *Batch[T]) Len() int {
	return len(b.items)
}

// Size returns the number of items the batch was issued with.
func (b *Batch[T]) Size() int {
	return b.size
}

// Offsets returns the offset of every item the batch was issued with, in
// item order. Offsets ascend but are not guaranteed to be contiguous, so
// callers should not derive them from Start.
func (b *Batch[T]) Offsets() []uint64 {
	return slices.Clone(b.offsets)
}

// Start returns the offset of the first item, or 0 for an empty batch.
func (b *Batch[T]) Start() uint64 {
	return b.start
}

// End returns the offset of the last item, or 0 for an empty batch.
func (b *Batch[T]) End() uint64 {
	return b.end
}

// Replayed reports whether the handle re-delivers a batch issued before.
func (b *Batch[T]) Replayed() bool {
	return b.replayed
}

// Deliveries returns how many handles have been issued for this batch,
// counting this one.
func (b *Batch[T]) Deliveries() int {
	return b.deliveries
}

// Held reports whether the handle still holds the lease.
func (b *Batch[T]) Held() bool {
	return b.token.cell.Load() != nil
}
