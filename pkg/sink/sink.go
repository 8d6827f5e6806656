// Package sink defines interfaces for publication egress.
//
// Egress workers hand each batch to a Sink before committing it. A batch is only
// committed in the buffer after Write returns nil, so a Sink must tolerate
// seeing the same batch again after a failure.
package sink

import (
	"context"

	"github.com/jittakal/mqttpubstore/pkg/publication"
)

// Batch is the egress view of one buffer batch.
type Batch struct {
	// Start and End are the buffer offsets of the first and last publication.
	Start uint64
	End   uint64
	// Replayed is true when the batch was delivered before without commit.
	Replayed     bool
	Publications []publication.Publication
	// Offsets holds the offset of each publication when the batch is not
	// contiguous, for example after failed publications were removed.
	Offsets []uint64
}

// Len returns the number of publications in the batch.
func (b Batch) Len() int {
	return len(b.Publications)
}

// Offset returns the buffer offset of the i-th publication.
func (b Batch) Offset(i int) uint64 {
	if i < len(b.Offsets) {
		return b.Offsets[i]
	}
	return b.Start + uint64(i)
}

// Sink delivers batches of publications.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Write delivers the whole batch or returns an error.
	// Implementations must be safe to call again with the same batch.
	Write(ctx context.Context, batch Batch) error

	// Close flushes and releases resources.
	Close() error
}

// DeadLetter receives publications that could not be processed or delivered.
type DeadLetter interface {
	// Publish sends a publication to the dead letter queue with the failure reason.
	Publish(ctx context.Context, pub publication.Publication, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
