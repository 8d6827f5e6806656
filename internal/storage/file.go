package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*FileWriter)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter implements storage.Writer for local filesystem storage.
// Objects are written to a temporary file and renamed into place, so readers
// never observe a partial object and a rewrite replaces the old one whole.
type FileWriter struct {
	basePath string
	logger   *slog.Logger
	metrics  MetricsCollector
}

// NewFileWriter creates a new filesystem storage writer.
func NewFileWriter(config FileConfig, logger *slog.Logger, metrics MetricsCollector) (*FileWriter, error) {
	// Ensure base path exists
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem writer created", "base_path", config.BasePath)

	return &FileWriter{
		basePath: config.BasePath,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Backend returns "file".
func (w *FileWriter) Backend() string {
	return "file"
}

// Put writes body to path below the base directory.
func (w *FileWriter) Put(ctx context.Context, path string, body []byte, contentType string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	startTime := time.Now()

	cleanPath := filepath.FromSlash(strings.TrimPrefix(path, "file://"))
	fullPath := filepath.Join(w.basePath, cleanPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, w.fail("mkdir", fullPath, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(fullPath)+"-*")
	if err != nil {
		return 0, w.fail("create", fullPath, err)
	}
	tmpName := tmp.Name()

	n, err := tmp.Write(body)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, w.fail("write", fullPath, err)
	}

	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return 0, w.fail("rename", fullPath, err)
	}

	duration := time.Since(startTime)
	if w.metrics != nil {
		w.metrics.ObserveStorageWriteDuration(w.Backend(), duration.Seconds())
	}

	w.logger.Debug("wrote object to file",
		"path", fullPath,
		"content_type", contentType,
		"file_size", n,
		"duration_ms", duration.Milliseconds(),
	)

	return int64(n), nil
}

func (w *FileWriter) fail(operation, path string, err error) error {
	if w.metrics != nil {
		w.metrics.IncStorageErrors(w.Backend(), operation)
	}
	return &errors.SinkError{Sink: w.Backend(), Operation: operation, Path: path, Err: err}
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.logger.Info("closing filesystem writer")
	return nil
}
