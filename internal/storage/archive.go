package storage

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"time"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/encoder"
	"github.com/jittakal/mqttpubstore/pkg/sink"
	pkgstorage "github.com/jittakal/mqttpubstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*ArchiveSink)(nil)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncObjectsWritten(backend, format, status string)
	ObserveObjectSize(backend, format string, size float64)
	ObserveStorageWriteDuration(backend string, duration float64)
	IncStorageErrors(backend string, operation string)
}

// ArchiveSink writes each batch as one encoded object per MQTT topic.
//
// Objects are named by the batch offset range, so a replayed batch rewrites
// the objects of its first delivery instead of creating duplicates.
type ArchiveSink struct {
	writer  pkgstorage.Writer
	router  pkgstorage.Router
	encoder encoder.Encoder
	logger  *slog.Logger
	metrics MetricsCollector
}

// NewArchiveSink creates an archive sink.
func NewArchiveSink(
	writer pkgstorage.Writer,
	router pkgstorage.Router,
	enc encoder.Encoder,
	logger *slog.Logger,
	metrics MetricsCollector,
) *ArchiveSink {
	return &ArchiveSink{
		writer:  writer,
		router:  router,
		encoder: enc,
		logger:  logger,
		metrics: metrics,
	}
}

// Name returns the sink name.
func (s *ArchiveSink) Name() string {
	return "archive:" + s.writer.Backend()
}

// topicGroup holds the records of one topic in offset order.
type topicGroup struct {
	topic   string
	records []encoder.Record
}

// groupByTopic splits a batch by topic, keeping first-seen topic order.
func groupByTopic(batch sink.Batch) []*topicGroup {
	var groups []*topicGroup
	index := make(map[string]*topicGroup)

	for i, p := range batch.Publications {
		g, ok := index[p.Topic]
		if !ok {
			g = &topicGroup{topic: p.Topic}
			index[p.Topic] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, encoder.Record{
			Offset:      batch.Offset(i),
			Publication: p,
		})
	}

	return groups
}

// objectPath returns the object path for one topic group of a batch.
func (s *ArchiveSink) objectPath(batch sink.Batch, g *topicGroup) string {
	eventTime := g.records[0].Publication.EventTime()
	if eventTime.IsZero() {
		eventTime = time.Now()
	}

	dir := s.router.Route(g.topic, eventTime)
	return path.Join(dir, s.router.ObjectName(batch.Start, batch.End, s.encoder.FileExtension()))
}

// Write encodes and stores every topic group of the batch.
func (s *ArchiveSink) Write(ctx context.Context, batch sink.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	backend := s.writer.Backend()
	format := string(s.encoder.Format())

	for _, g := range groupByTopic(batch) {
		objectPath := s.objectPath(batch, g)

		var buf bytes.Buffer
		stats, err := s.encoder.Encode(&buf, g.records)
		if err != nil {
			if s.metrics != nil {
				s.metrics.IncStorageErrors(backend, "encode")
			}
			return &errors.SinkError{Sink: s.Name(), Operation: "encode", Path: objectPath, Err: err}
		}

		written, err := s.writer.Put(ctx, objectPath, buf.Bytes(), s.encoder.ContentType())
		if err != nil {
			if s.metrics != nil {
				s.metrics.IncObjectsWritten(backend, format, "error")
			}
			return err
		}

		if s.metrics != nil {
			s.metrics.IncObjectsWritten(backend, format, "success")
			s.metrics.ObserveObjectSize(backend, format, float64(written))
		}

		s.logger.Info("archived publications",
			"path", objectPath,
			"topic", g.topic,
			"record_count", stats.Count,
			"file_size", written,
			"start", batch.Start,
			"end", batch.End,
			"replayed", batch.Replayed,
		)
	}

	return nil
}

// Close closes the underlying writer.
func (s *ArchiveSink) Close() error {
	return s.writer.Close()
}
