// Package egress drains the publication buffer into a sink.
package egress

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jittakal/mqttpubstore/internal/buffer"
	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/publication"
	"github.com/jittakal/mqttpubstore/pkg/sink"
)

// Batch statuses reported to MetricsCollector.IncEgressBatches.
const (
	StatusCommitted    = "committed"
	StatusEmpty        = "empty"
	StatusDeadLettered = "dead_lettered"
	StatusReleased     = "released"
)

// Dead letter reasons reported to MetricsCollector.IncDeadLetters.
const (
	ReasonProcessing = "processing"
	ReasonDelivery   = "delivery"
)

// MetricsCollector receives egress counters.
type MetricsCollector interface {
	IncEgressBatches(worker int, status string)
	ObserveSinkWrite(sink string, duration float64)
	IncSinkRetries(sink string)
	IncDeadLetters(reason string)
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	ID              int
	MaxBatchSize    int
	ItemConcurrency int
	Retry           RetryConfig
}

// Worker repeatedly acquires a batch, processes its publications, delivers
// them to the sink and commits the batch.
//
// A batch is committed only once the sink or the dead letter queue holds all
// of its publications. Otherwise it is released and delivered again.
type Worker struct {
	config    WorkerConfig
	buffer    *buffer.PublicationBuffer[publication.Publication]
	processor Processor
	sink      sink.Sink
	dlq       sink.DeadLetter
	logger    *slog.Logger
	metrics   MetricsCollector
}

// NewWorker creates an egress worker. processor, dlq and metrics may be nil.
func NewWorker(
	cfg WorkerConfig,
	buf *buffer.PublicationBuffer[publication.Publication],
	processor Processor,
	snk sink.Sink,
	dlq sink.DeadLetter,
	logger *slog.Logger,
	metrics MetricsCollector,
) *Worker {
	if cfg.ItemConcurrency < 1 {
		cfg.ItemConcurrency = 1
	}
	if processor == nil {
		processor = Passthrough
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Worker{
		config:    cfg,
		buffer:    buf,
		processor: processor,
		sink:      snk,
		dlq:       dlq,
		logger:    logger.With("worker", cfg.ID),
		metrics:   metrics,
	}
}

// Run processes batches until ctx is done or the buffer is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("egress worker started", "sink", w.sink.Name(), "max_batch_size", w.config.MaxBatchSize)
	defer w.logger.Info("egress worker stopped")

	for {
		batch, err := w.buffer.AcquireBatch(ctx, w.config.MaxBatchSize)
		if err != nil {
			var bufErr *errors.BufferError
			if stderrors.As(err, &bufErr) && (bufErr.Canceled() || stderrors.Is(err, errors.ErrBufferClosed)) {
				return nil
			}
			return fmt.Errorf("failed to acquire batch: %w", err)
		}

		if err := w.handle(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// handle delivers one batch and either commits or releases it.
func (w *Worker) handle(ctx context.Context, batch *buffer.Batch[publication.Publication]) error {
	start, end, replayed := batch.Start(), batch.End(), batch.Replayed()
	items := batch.TakeItems()

	if len(items) == 0 {
		w.buffer.Commit(batch)
		w.metrics.IncEgressBatches(w.config.ID, StatusEmpty)
		return nil
	}

	if replayed {
		w.logger.Warn("redelivering batch",
			"start", start, "end", end, "size", len(items), "deliveries", batch.Deliveries())
	}

	out, err := w.process(ctx, items, batch.Offsets())
	if err != nil {
		w.buffer.Release(batch)
		w.metrics.IncEgressBatches(w.config.ID, StatusReleased)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("batch released for redelivery", "start", start, "end", end, "error", err)
		return w.pause(ctx, batch.Deliveries())
	}
	out.End = end
	out.Replayed = replayed

	if out.Len() > 0 {
		attempts, err := w.deliver(ctx, out)
		if err != nil {
			if ctx.Err() != nil {
				w.buffer.Release(batch)
				w.metrics.IncEgressBatches(w.config.ID, StatusReleased)
				return ctx.Err()
			}
			return w.fail(ctx, batch, out, &errors.DeliveryError{Start: start, End: end, Attempts: attempts, Err: err})
		}
	}

	w.buffer.Commit(batch)
	w.metrics.IncEgressBatches(w.config.ID, StatusCommitted)

	w.logger.Debug("batch delivered", "start", start, "end", end, "delivered", out.Len(), "size", len(items))
	return nil
}

// process runs the processor over items with bounded concurrency and returns
// the publications to deliver in offset order. Publications that fail
// processing are dead-lettered and left out. An error means the batch could
// not be fully accounted for and must be released.
func (w *Worker) process(ctx context.Context, items []publication.Publication, offsets []uint64) (sink.Batch, error) {
	results := make([]publication.Publication, len(items))
	failures := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(w.config.ItemConcurrency)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i], failures[i] = w.processor.Process(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return sink.Batch{}, err
	}

	out := sink.Batch{
		Publications: make([]publication.Publication, 0, len(items)),
		Offsets:      make([]uint64, 0, len(items)),
	}
	for i, failure := range failures {
		offset := offsets[i]
		if failure == nil {
			out.Publications = append(out.Publications, results[i])
			out.Offsets = append(out.Offsets, offset)
			continue
		}

		w.logger.Warn("publication processing failed", "offset", offset, "id", items[i].ID, "error", failure)
		if err := w.deadLetter(ctx, items[i], ReasonProcessing, failure); err != nil {
			return sink.Batch{}, err
		}
	}
	if len(out.Offsets) > 0 {
		out.Start = out.Offsets[0]
	}

	return out, nil
}

// deliver writes batch to the sink with retries.
func (w *Worker) deliver(ctx context.Context, batch sink.Batch) (int, error) {
	name := w.sink.Name()

	write := func(ctx context.Context) error {
		begin := time.Now()
		err := w.sink.Write(ctx, batch)
		w.metrics.ObserveSinkWrite(name, time.Since(begin).Seconds())
		return err
	}
	onRetry := func(attempt int, err error) {
		w.metrics.IncSinkRetries(name)
		w.logger.Warn("sink write failed, retrying",
			"sink", name, "attempt", attempt, "start", batch.Start, "end", batch.End, "error", err)
	}

	return retry(ctx, w.config.Retry, write, onRetry)
}

// fail dead-letters every publication of an undeliverable batch and commits
// it. When the dead letter queue cannot take them the batch is released.
func (w *Worker) fail(ctx context.Context, batch *buffer.Batch[publication.Publication], out sink.Batch, cause *errors.DeliveryError) error {
	w.logger.Error("batch delivery failed",
		"start", cause.Start, "end", cause.End, "attempts", cause.Attempts, "error", cause.Err)

	for _, pub := range out.Publications {
		if err := w.deadLetter(ctx, pub, ReasonDelivery, cause); err != nil {
			w.buffer.Release(batch)
			w.metrics.IncEgressBatches(w.config.ID, StatusReleased)
			w.logger.Warn("batch released for redelivery", "start", cause.Start, "end", cause.End, "error", err)
			return w.pause(ctx, batch.Deliveries())
		}
	}

	w.buffer.Commit(batch)
	w.metrics.IncEgressBatches(w.config.ID, StatusDeadLettered)
	return nil
}

// deadLetter publishes pub to the dead letter queue. Without a dead letter
// queue, publications that failed processing are dropped and delivery
// failures are reported so the batch is kept.
func (w *Worker) deadLetter(ctx context.Context, pub publication.Publication, reason string, cause error) error {
	err := errors.ErrDLQDisabled
	if w.dlq != nil {
		err = w.dlq.Publish(ctx, pub, fmt.Sprintf("%s: %v", reason, cause))
	}

	switch {
	case err == nil:
		w.metrics.IncDeadLetters(reason)
		return nil
	case reason == ReasonProcessing && stderrors.Is(err, errors.ErrDLQDisabled):
		w.logger.Error("dropping publication without dead letter queue", "id", pub.ID, "error", cause)
		return nil
	default:
		return err
	}
}

// pause waits before a released batch is acquired again.
func (w *Worker) pause(ctx context.Context, deliveries int) error {
	timer := time.NewTimer(w.config.Retry.Backoff(deliveries))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopMetrics struct{}

func (noopMetrics) IncEgressBatches(int, string)     {}
func (noopMetrics) ObserveSinkWrite(string, float64) {}
func (noopMetrics) IncSinkRetries(string)            {}
func (noopMetrics) IncDeadLetters(string)            {}
