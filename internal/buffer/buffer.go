// Package buffer implements the at-least-once publication buffer.
package buffer

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/buffer"
)

// Ensure implementation satisfies interfaces at compile time.
var (
	_ buffer.Pusher[int] = (*PublicationBuffer[int])(nil)
	_ buffer.Inspector   = (*PublicationBuffer[int])(nil)
)

// Batch outcomes reported to MetricsCollector.ObserveBatch.
const (
	OutcomeFormed   = "formed"
	OutcomeReplayed = "replayed"
)

// MetricsCollector receives buffer state transitions.
type MetricsCollector interface {
	IncPushed()
	SetQueueDepth(depth int)
	IncWaits()
	ObserveBatch(outcome string, size int)
	IncCommits()
	IncReleases()
	ObserveLeaseDuration(d time.Duration)
}

// Config configures a PublicationBuffer. The zero value is usable.
type Config[T any] struct {
	// Clone copies one item when a batch handle is issued. When nil, handles
	// receive a shallow copy of the item slice.
	Clone   func(T) T
	Logger  *slog.Logger
	Metrics MetricsCollector
}

type entry[T any] struct {
	offset uint64
	item   T
}

// PublicationBuffer is an unbounded queue of offset-stamped items from which
// consumers draw batches that stay outstanding until committed.
//
// At most one batch is in flight for the whole buffer. While a batch is
// outstanding every AcquireBatch either waits for the lease or replays that
// same batch; new items are never drained until it is committed.
//
// Push never waits on the lease or on consumers, but it shares a short mutex
// with the drain that forms a batch, so a large maxSize can briefly delay
// producers.
type PublicationBuffer[T any] struct {
	mu    sync.Mutex // guards items and view
	items *queue.Queue
	view  leaseView
	next  atomic.Uint64

	// wake buffers at most one notification for a consumer blocked on an
	// empty queue.
	wake chan struct{}
	// lease holds the pending cell while nobody owns it. Receiving the cell
	// is acquiring the lease.
	lease chan *cell[T]

	closed    chan struct{}
	closeOnce sync.Once

	clone   func(T) T
	logger  *slog.Logger
	metrics MetricsCollector
}

// leaseView mirrors the pending cell for Stats, which must not take the lease.
type leaseView struct {
	outstanding bool
	size        int
	start, end  uint64
	deliveries  int
	formedAt    time.Time
	closed      bool
}

// New creates an empty buffer whose first pushed item receives offset 0.
func New[T any](cfg Config[T]) *PublicationBuffer[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	b := &PublicationBuffer[T]{
		items:   queue.New(),
		wake:    make(chan struct{}, 1),
		lease:   make(chan *cell[T], 1),
		closed:  make(chan struct{}),
		clone:   cfg.Clone,
		logger:  logger,
		metrics: metrics,
	}
	b.lease <- &cell[T]{}
	return b
}

// Push assigns the next offset to item, enqueues it and wakes one waiting
// consumer. It never fails, including after Close, and only waits for a
// concurrent drain to finish.
func (b *PublicationBuffer[T]) Push(item T) {
	b.mu.Lock()
	offset := b.next.Add(1) - 1
	b.items.Add(entry[T]{offset: offset, item: item})
	depth := b.items.Length()
	b.mu.Unlock()

	b.notify()

	b.logger.Debug("push", "offset", offset, "queue_depth", depth)
	b.metrics.IncPushed()
	b.metrics.SetQueueDepth(depth)
}

// notify posts a wake notification unless one is already pending.
func (b *PublicationBuffer[T]) notify() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// AcquireBatch returns the outstanding batch if there is one, otherwise it
// waits for the queue to become non-empty and drains up to maxSize items into
// a new outstanding batch. The returned handle holds the buffer's lease until
// it is passed to Commit or Release.
//
// A negative maxSize is treated as 0. A wake-up that finds the queue already
// drained yields an empty batch, which must be committed like any other.
//
// The only errors are *errors.BufferError values caused by ctx ending while
// waiting or by Close.
func (b *PublicationBuffer[T]) AcquireBatch(ctx context.Context, maxSize int) (*Batch[T], error) {
	maxSize = max(maxSize, 0)

	b.logger.Debug("requesting a batch", "max_size", maxSize)

	if b.isClosed() {
		return nil, &errors.BufferError{Op: "acquire", Err: errors.ErrBufferClosed}
	}

	var c *cell[T]
	select {
	case c = <-b.lease:
	case <-ctx.Done():
		return nil, &errors.BufferError{Op: "acquire", Err: ctx.Err()}
	case <-b.closed:
		return nil, &errors.BufferError{Op: "acquire", Err: errors.ErrBufferClosed}
	}

	if c.state == stateOutstanding {
		return b.replay(c), nil
	}

	if b.Len() == 0 {
		if err := b.wait(ctx); err != nil {
			b.lease <- c
			return nil, err
		}
	}

	return b.form(c, maxSize), nil
}

// wait blocks for one wake notification.
func (b *PublicationBuffer[T]) wait(ctx context.Context) error {
	b.logger.Debug("waiting for publications")
	b.metrics.IncWaits()

	select {
	case <-b.wake:
		b.logger.Debug("woken", "queue_depth", b.Len())
		return nil
	case <-ctx.Done():
		return &errors.BufferError{Op: "wait", Err: ctx.Err()}
	case <-b.closed:
		return &errors.BufferError{Op: "wait", Err: errors.ErrBufferClosed}
	}
}

// form drains up to maxSize entries into c and issues a handle for them.
func (b *PublicationBuffer[T]) form(c *cell[T], maxSize int) *Batch[T] {
	b.mu.Lock()
	n := min(maxSize, b.items.Length())
	items := make([]T, 0, n)
	offsets := make([]uint64, 0, n)
	for range n {
		e := b.items.Remove().(entry[T])
		items = append(items, e.item)
		offsets = append(offsets, e.offset)
	}
	depth := b.items.Length()
	if depth == 0 {
		// Every queued item is accounted for, so a pending wake is stale.
		// Pushes that have not enqueued yet will post their own.
		select {
		case <-b.wake:
		default:
		}
	}

	c.hold(items, offsets, time.Now())
	b.syncView(c)
	b.mu.Unlock()

	b.logger.Debug("batch formed", "start", c.start, "end", c.end, "size", len(items), "queue_depth", depth)
	b.metrics.SetQueueDepth(depth)
	b.metrics.ObserveBatch(OutcomeFormed, len(items))

	return b.issue(c, false)
}

// replay issues a fresh handle for the batch already held in c.
func (b *PublicationBuffer[T]) replay(c *cell[T]) *Batch[T] {
	batch := b.issue(c, true)

	b.logger.Debug("batch replayed",
		"start", c.start, "end", c.end, "size", len(c.items), "deliveries", c.deliveries)
	b.metrics.ObserveBatch(OutcomeReplayed, len(c.items))

	return batch
}

func (b *PublicationBuffer[T]) issue(c *cell[T], replayed bool) *Batch[T] {
	c.deliveries++

	b.mu.Lock()
	b.view.deliveries = c.deliveries
	b.mu.Unlock()

	batch := &Batch[T]{
		items:      b.copyItems(c.items),
		offsets:    c.offsets,
		size:       len(c.items),
		start:      c.start,
		end:        c.end,
		replayed:   replayed,
		deliveries: c.deliveries,
	}
	batch.token.grant(b, c)
	return batch
}

// syncView copies the cell state into view. Callers hold b.mu and the lease.
func (b *PublicationBuffer[T]) syncView(c *cell[T]) {
	b.view.outstanding = c.state == stateOutstanding
	b.view.size = len(c.items)
	b.view.start = c.start
	b.view.end = c.end
	b.view.deliveries = c.deliveries
	b.view.formedAt = c.formedAt
}

func (b *PublicationBuffer[T]) copyItems(items []T) []T {
	out := slices.Clone(items)
	if b.clone != nil {
		for i := range out {
			out[i] = b.clone(out[i])
		}
	}
	return out
}

// Commit acknowledges batch: the outstanding batch is discarded and the lease
// is handed to the next consumer. Committing a handle whose lease was already
// given back, or a handle from another buffer, does nothing.
func (b *PublicationBuffer[T]) Commit(batch *Batch[T]) {
	c := b.redeem(batch, "commit")
	if c == nil {
		return
	}

	size, start, end := len(c.items), c.start, c.end
	held := time.Since(c.formedAt)
	c.reset()

	b.mu.Lock()
	b.syncView(c)
	b.mu.Unlock()

	b.lease <- c

	b.logger.Debug("batch committed", "start", start, "end", end, "size", size, "held", held)
	b.metrics.IncCommits()
	b.metrics.ObserveLeaseDuration(held)
}

// Release gives the lease back without acknowledging batch. The batch stays
// outstanding and the next AcquireBatch replays it.
func (b *PublicationBuffer[T]) Release(batch *Batch[T]) {
	c := b.redeem(batch, "release")
	if c == nil {
		return
	}

	// c belongs to the next lease holder once sent.
	size, start, end := len(c.items), c.start, c.end
	b.lease <- c

	b.logger.Debug("batch released", "start", start, "end", end, "size", size)
	b.metrics.IncReleases()
}

func (b *PublicationBuffer[T]) redeem(batch *Batch[T], op string) *cell[T] {
	if batch == nil {
		return nil
	}
	c := batch.token.redeem(b)
	if c == nil {
		b.logger.Debug("ignoring spent batch handle", "op", op, "start", batch.start, "end", batch.end)
	}
	return c
}

// Close makes current and future AcquireBatch calls fail with
// errors.ErrBufferClosed. Outstanding handles may still be committed or
// released. Close is idempotent.
func (b *PublicationBuffer[T]) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)

		b.mu.Lock()
		b.view.closed = true
		depth := b.items.Length()
		b.mu.Unlock()

		b.logger.Debug("buffer closed", "queue_depth", depth)
	})
	return nil
}

func (b *PublicationBuffer[T]) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// Len returns the number of queued items not yet drained into a batch.
func (b *PublicationBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.Length()
}

// Stats returns a snapshot of the buffer without taking the lease.
func (b *PublicationBuffer[T]) Stats() buffer.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := buffer.Stats{
		QueueDepth:       b.items.Length(),
		NextOffset:       b.next.Load(),
		Outstanding:      b.view.outstanding,
		OutstandingSize:  b.view.size,
		OutstandingStart: b.view.start,
		OutstandingEnd:   b.view.end,
		Deliveries:       b.view.deliveries,
		Closed:           b.view.closed,
	}
	if b.view.outstanding {
		s.LeaseAge = time.Since(b.view.formedAt)
	}
	return s
}

type noopMetrics struct{}

func (noopMetrics) IncPushed()                         {}
func (noopMetrics) SetQueueDepth(int)                  {}
func (noopMetrics) IncWaits()                          {}
func (noopMetrics) ObserveBatch(string, int)           {}
func (noopMetrics) IncCommits()                        {}
func (noopMetrics) IncReleases()                       {}
func (noopMetrics) ObserveLeaseDuration(time.Duration) {}
