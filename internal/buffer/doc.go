// Package buffer provides the at-least-once publication buffer.
//
// Producers push items without waiting on consumers. Consumers draw bounded batches
// and must commit each batch before the buffer hands out a new one, so a
// consumer that fails mid-batch never loses items: the next consumer gets the
// same batch again.
//
// # PublicationBuffer
//
// A buffer is created once and passed to every producer and consumer:
//
//	buf := buffer.New(buffer.Config[publication.Publication]{
//	    Clone:  publication.Publication.Clone,
//	    Logger: logger,
//	})
//
//	buf.Push(pub) // offset 0
//	buf.Push(pub) // offset 1
//
// # Batch Lifecycle
//
// 1. Acquire: take the lease and get a batch of up to maxSize items
//
//	batch, err := buf.AcquireBatch(ctx, 10)
//	if err != nil {
//	    // ctx ended or the buffer was closed
//	}
//
// 2. Process: move the items out of the handle
//
//	for _, pub := range batch.TakeItems() {
//	    deliver(pub)
//	}
//
// 3. Acknowledge or give up
//
//	buf.Commit(batch)  // batch is gone, next acquire drains new items
//	buf.Release(batch) // batch stays, next acquire replays it
//
// # Replay
//
// While a batch is outstanding, AcquireBatch never drains the queue. It
// returns a new handle with a copy of the same items and the same Start and
// End offsets, whatever maxSize is passed. Batch.Replayed and
// Batch.Deliveries tell a consumer it is seeing the batch again.
//
// # Waiting
//
// A consumer that takes the lease while the queue is empty waits for one wake
// notification. Pushes coalesce into at most one pending notification, so
// many pushes guarantee at least one wake-up, not one per push. A wake-up
// that finds the queue empty yields an empty batch; commit it and acquire
// again.
//
// # Thread Safety
//
// All methods are safe for concurrent use:
//
//   - Push takes a short mutex around the queue and never waits
//   - AcquireBatch waits first for the lease, then for a wake notification
//   - Commit and Release never wait
//   - Stats and Len read a snapshot without touching the lease
//
// Only one batch is in flight for the whole buffer. A consumer that neither
// commits nor releases its handle stalls every other consumer; there is no
// lease expiry.
package buffer
