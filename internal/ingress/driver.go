package ingress

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/buffer"
	"github.com/jittakal/mqttpubstore/pkg/publication"
	"github.com/jittakal/mqttpubstore/pkg/sink"
	"github.com/jittakal/mqttpubstore/pkg/source"
)

// Ingestion statuses reported to MetricsCollector.IncIngested.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Validator checks a publication before it enters the buffer.
type Validator interface {
	Validate(p publication.Publication) error
}

// MetricsCollector receives ingress counters.
type MetricsCollector interface {
	IncIngested(source, status string)
	IncDeadLetters(reason string)
}

// Driver validates publications from a source and pushes them into the buffer.
type Driver struct {
	pusher    buffer.Pusher[publication.Publication]
	validator Validator
	dlq       sink.DeadLetter
	logger    *slog.Logger
	metrics   MetricsCollector
	now       func() time.Time

	accepted atomic.Int64
	rejected atomic.Int64
}

// NewDriver creates a driver. dlq and metrics may be nil.
func NewDriver(
	pusher buffer.Pusher[publication.Publication],
	validator Validator,
	dlq sink.DeadLetter,
	logger *slog.Logger,
	metrics MetricsCollector,
) *Driver {
	return &Driver{
		pusher:    pusher,
		validator: validator,
		dlq:       dlq,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Run runs src until it stops, feeding every publication through Emit.
func (d *Driver) Run(ctx context.Context, src source.Source) error {
	d.logger.Info("ingress started", "source", src.Name())

	err := src.Run(ctx, d.Emit(src.Name()))

	d.logger.Info("ingress stopped",
		"source", src.Name(),
		"accepted", d.accepted.Load(),
		"rejected", d.rejected.Load(),
	)
	return err
}

// Emit returns the callback a source named sourceName hands publications to.
//
// Valid publications are stamped with the ingestion time and pushed.
// Invalid ones are dead-lettered when a DLQ is configured and reported to
// the source as a *errors.ValidationError.
func (d *Driver) Emit(sourceName string) source.Emit {
	return func(ctx context.Context, pub publication.Publication) error {
		if err := d.validator.Validate(pub); err != nil {
			d.reject(ctx, sourceName, pub, err)
			return err
		}

		pub = pub.WithProperty(publication.PropertyIngestedAt, d.now().UTC().Format(time.RFC3339Nano))
		d.pusher.Push(pub)

		d.accepted.Add(1)
		if d.metrics != nil {
			d.metrics.IncIngested(sourceName, StatusAccepted)
		}
		return nil
	}
}

func (d *Driver) reject(ctx context.Context, sourceName string, pub publication.Publication, cause error) {
	d.rejected.Add(1)
	if d.metrics != nil {
		d.metrics.IncIngested(sourceName, StatusRejected)
	}

	d.logger.Warn("publication rejected",
		"source", sourceName,
		"id", pub.ID,
		"topic", pub.Topic,
		"error", cause,
	)

	if d.dlq == nil {
		return
	}
	if err := d.dlq.Publish(ctx, pub, cause.Error()); err != nil {
		if !stderrors.Is(err, errors.ErrDLQDisabled) {
			d.logger.Error("failed to dead-letter rejected publication", "id", pub.ID, "error", err)
		}
		return
	}
	if d.metrics != nil {
		d.metrics.IncDeadLetters("validation")
	}
}

// Accepted returns the number of publications pushed into the buffer.
func (d *Driver) Accepted() int64 {
	return d.accepted.Load()
}

// Rejected returns the number of publications that failed validation.
func (d *Driver) Rejected() int64 {
	return d.rejected.Load()
}
