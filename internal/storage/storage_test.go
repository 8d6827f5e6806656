package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jittakal/mqttpubstore/pkg/encoder"
	"github.com/jittakal/mqttpubstore/pkg/publication"
)

// mockMetricsCollector implements MetricsCollector for testing
type mockMetricsCollector struct {
	mu                 sync.Mutex
	objectsWritten     map[string]int
	objectSizes        []float64
	storageDurations   []float64
	storageErrors      int
	lastErrorBackend   string
	lastErrorOperation string
}

func newMockMetrics() *mockMetricsCollector {
	return &mockMetricsCollector{objectsWritten: make(map[string]int)}
}

func (m *mockMetricsCollector) IncObjectsWritten(backend, format, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectsWritten[status]++
}

func (m *mockMetricsCollector) ObserveObjectSize(backend, format string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectSizes = append(m.objectSizes, size)
}

func (m *mockMetricsCollector) ObserveStorageWriteDuration(backend string, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageDurations = append(m.storageDurations, duration)
}

func (m *mockMetricsCollector) IncStorageErrors(backend string, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageErrors++
	m.lastErrorBackend = backend
	m.lastErrorOperation = operation
}

// memoryWriter keeps objects in a map.
type memoryWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	puts    int
	err     error
	closed  bool
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (w *memoryWriter) Put(ctx context.Context, path string, body []byte, contentType string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.puts++
	if w.err != nil {
		return 0, w.err
	}
	w.objects[path] = append([]byte(nil), body...)
	w.types[path] = contentType
	return int64(len(body)), nil
}

func (w *memoryWriter) Backend() string {
	return "memory"
}

func (w *memoryWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// failingEncoder rejects every batch.
type failingEncoder struct{}

func (failingEncoder) Encode(w io.Writer, records []encoder.Record) (*publication.Stats, error) {
	return nil, fmt.Errorf("encoder broken")
}

func (failingEncoder) Format() encoder.Format {
	return encoder.FormatJSON
}

func (failingEncoder) FileExtension() string {
	return ".bad"
}

func (failingEncoder) ContentType() string {
	return "application/octet-stream"
}
