package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*AzureWriter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName      string
	AccountKey       string
	ContainerName    string
	Endpoint         string
	ConnectionString string
}

// connectionString returns the configured connection string or builds one
// from the account credentials.
func (c AzureConfig) connectionString() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// blobUploader is the part of azblob.Client used by AzureWriter.
type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureWriter implements storage.Writer for Azure Blob Storage.
type AzureWriter struct {
	client        blobUploader
	containerName string
	logger        *slog.Logger
	metrics       MetricsCollector
}

// NewAzureWriter creates a new Azure Blob storage writer.
func NewAzureWriter(cfg AzureConfig, logger *slog.Logger, metrics MetricsCollector) (*AzureWriter, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.connectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure writer created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
	)

	return newAzureWriter(client, cfg.ContainerName, logger, metrics), nil
}

func newAzureWriter(client blobUploader, container string, logger *slog.Logger, metrics MetricsCollector) *AzureWriter {
	return &AzureWriter{
		client:        client,
		containerName: container,
		logger:        logger,
		metrics:       metrics,
	}
}

// Backend returns "azure".
func (w *AzureWriter) Backend() string {
	return "azure"
}

// blobPath strips an optional wasbs://container/ prefix from path.
func (w *AzureWriter) blobPath(path string) string {
	blobPath := path
	if strings.HasPrefix(path, "wasbs://") {
		parts := strings.SplitN(strings.TrimPrefix(path, "wasbs://"), "/", 2)
		if len(parts) == 2 {
			blobPath = parts[1]
		} else {
			blobPath = ""
		}
	}
	return strings.TrimPrefix(blobPath, "/")
}

// Put uploads body as a block blob, replacing any existing blob.
func (w *AzureWriter) Put(ctx context.Context, path string, body []byte, contentType string) (int64, error) {
	startTime := time.Now()
	blobPath := w.blobPath(path)

	_, err := w.client.UploadBuffer(ctx, w.containerName, blobPath, body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		if w.metrics != nil {
			w.metrics.IncStorageErrors(w.Backend(), "upload")
		}
		return 0, &errors.SinkError{Sink: w.Backend(), Operation: "upload", Path: blobPath, Err: err}
	}

	duration := time.Since(startTime)
	if w.metrics != nil {
		w.metrics.ObserveStorageWriteDuration(w.Backend(), duration.Seconds())
	}

	w.logger.Debug("wrote object to Azure Blob",
		"container", w.containerName,
		"blob", blobPath,
		"file_size", len(body),
		"duration_ms", duration.Milliseconds(),
	)

	return int64(len(body)), nil
}

// Close closes the Azure writer.
func (w *AzureWriter) Close() error {
	w.logger.Info("Azure writer closed")
	return nil
}
