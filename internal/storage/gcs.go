package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/mqttpubstore/internal/errors"
	pkgstorage "github.com/jittakal/mqttpubstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.Writer = (*GCSWriter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// GCSWriter implements storage.Writer for Google Cloud Storage.
// It supports service account file, JSON and default credentials.
type GCSWriter struct {
	client  *storage.Client
	bucket  string
	logger  *slog.Logger
	metrics MetricsCollector
}

// gcsClientOptions returns client options for the configured authentication method.
// An explicit endpoint without credentials targets an emulator and skips authentication.
func gcsClientOptions(cfg GCSConfig) []option.ClientOption {
	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		// GOOGLE_APPLICATION_CREDENTIALS or the attached service account
	case cfg.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.Endpoint != "":
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	}

	return clientOpts
}

// NewGCSWriter creates a new Google Cloud Storage writer.
func NewGCSWriter(ctx context.Context, cfg GCSConfig, logger *slog.Logger, metrics MetricsCollector) (*GCSWriter, error) {
	client, err := storage.NewClient(ctx, gcsClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS writer created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
		"endpoint", cfg.Endpoint,
	)

	return &GCSWriter{
		client:  client,
		bucket:  cfg.Bucket,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Backend returns "gcs".
func (w *GCSWriter) Backend() string {
	return "gcs"
}

// objectPath strips an optional gs://bucket/ prefix from path.
func (w *GCSWriter) objectPath(path string) string {
	objectPath := path
	if strings.HasPrefix(path, "gs://") {
		parts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
		if len(parts) == 2 {
			objectPath = parts[1]
		} else {
			objectPath = ""
		}
	}
	return strings.TrimPrefix(objectPath, "/")
}

// Put uploads body as a GCS object.
func (w *GCSWriter) Put(ctx context.Context, path string, body []byte, contentType string) (int64, error) {
	startTime := time.Now()
	objectPath := w.objectPath(path)

	gcsWriter := w.client.Bucket(w.bucket).Object(objectPath).NewWriter(ctx)
	gcsWriter.ContentType = contentType

	bytesWritten, err := io.Copy(gcsWriter, bytes.NewReader(body))
	if err != nil {
		gcsWriter.Close()
		return 0, w.fail("upload", objectPath, err)
	}

	// Close finalizes the upload
	if err := gcsWriter.Close(); err != nil {
		return 0, w.fail("upload", objectPath, err)
	}

	duration := time.Since(startTime)
	if w.metrics != nil {
		w.metrics.ObserveStorageWriteDuration(w.Backend(), duration.Seconds())
	}

	w.logger.Debug("wrote object to GCS",
		"bucket", w.bucket,
		"object", objectPath,
		"bytes_written", bytesWritten,
		"duration_ms", duration.Milliseconds(),
	)

	return bytesWritten, nil
}

func (w *GCSWriter) fail(operation, path string, err error) error {
	if w.metrics != nil {
		w.metrics.IncStorageErrors(w.Backend(), operation)
	}
	return &errors.SinkError{Sink: w.Backend(), Operation: operation, Path: path, Err: err}
}

// Close closes the GCS writer.
func (w *GCSWriter) Close() error {
	w.logger.Info("closing GCS writer")
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
