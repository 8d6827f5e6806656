// Package storage defines interfaces for archive storage operations.
//
// This package provides abstractions for writing encoded publication batches
// to various storage backends (S3, GCS, Azure Blob, local filesystem).
package storage

import (
	"context"
	"time"
)

// Writer stores encoded objects.
type Writer interface {
	// Put stores body at path, replacing any existing object.
	// Returns the number of bytes written.
	Put(ctx context.Context, path string, body []byte, contentType string) (int64, error)

	// Backend returns the backend name (e.g. "s3", "file").
	Backend() string

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines storage paths for archived batches.
type Router interface {
	// Route returns the storage directory for a topic at the given event time.
	Route(topic string, eventTime time.Time) string

	// ObjectName returns the file name for the batch covering offsets start..end.
	ObjectName(start, end uint64, extension string) string
}
