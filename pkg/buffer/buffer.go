// Package buffer defines interfaces for the publication buffer.
//
// Producers only need Pusher; health checks and metrics only need Inspector.
// Consumers use the concrete buffer type because batch handles are generic.
package buffer

import (
	"time"
)

// Pusher appends items to a buffer.
// All implementations must be safe for concurrent use and must never block.
type Pusher[T any] interface {
	// Push assigns the next offset to item and enqueues it.
	Push(item T)
}

// Inspector exposes buffer state without taking the batch lease.
type Inspector interface {
	// Stats returns a point-in-time snapshot of the buffer.
	Stats() Stats
}

// Stats is a snapshot of buffer state.
type Stats struct {
	// QueueDepth is the number of pushed items not yet drained into a batch.
	QueueDepth int
	// NextOffset is the offset the next Push will receive.
	NextOffset uint64
	// Outstanding is true while a drained batch awaits commit.
	Outstanding      bool
	OutstandingSize  int
	OutstandingStart uint64
	OutstandingEnd   uint64
	// Deliveries counts how many handles were issued for the outstanding batch.
	Deliveries int
	// LeaseAge is the time since the outstanding batch was formed.
	LeaseAge time.Duration
	Closed   bool
}
