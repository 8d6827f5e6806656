// Package sink provides sinks that need no external system.
package sink

import (
	"context"
	"log/slog"

	"github.com/jittakal/mqttpubstore/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*LogSink)(nil)

// LogSink logs every publication of a batch.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a sink that logs publications at level.
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	return &LogSink{logger: logger, level: level}
}

// Name returns "log".
func (s *LogSink) Name() string {
	return "log"
}

// Write logs each publication with its offset.
func (s *LogSink) Write(ctx context.Context, batch sink.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, p := range batch.Publications {
		s.logger.Log(ctx, s.level, "publication",
			"offset", batch.Offset(i),
			"id", p.ID,
			"topic", p.Topic,
			"qos", p.QoS,
			"retain", p.Retain,
			"content_type", p.ContentType,
			"size", len(p.Payload),
			"replayed", batch.Replayed,
		)
	}
	return nil
}

// Close does nothing.
func (s *LogSink) Close() error {
	return nil
}
