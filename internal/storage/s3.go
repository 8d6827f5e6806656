package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*S3Writer)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// s3Uploader is the part of manager.Uploader used by S3Writer.
type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Writer implements storage.Writer for AWS S3 storage.
// It provides multipart upload support and server-side encryption (SSE).
type S3Writer struct {
	uploader    s3Uploader
	bucket      string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *slog.Logger
	metrics     MetricsCollector
}

// NewS3Writer creates a new S3 storage writer.
func NewS3Writer(ctx context.Context, cfg S3Config, logger *slog.Logger, metrics MetricsCollector) (*S3Writer, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 5
	})

	logger.Info("S3 writer created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"sse_enabled", cfg.SSEEnabled,
	)

	return newS3Writer(uploader, cfg, logger, metrics), nil
}

func newS3Writer(uploader s3Uploader, cfg S3Config, logger *slog.Logger, metrics MetricsCollector) *S3Writer {
	return &S3Writer{
		uploader:    uploader,
		bucket:      cfg.Bucket,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
		metrics:     metrics,
	}
}

// Backend returns "s3".
func (w *S3Writer) Backend() string {
	return "s3"
}

// objectKey strips an optional s3://bucket/ prefix from path.
func (w *S3Writer) objectKey(path string) string {
	key := path
	if strings.HasPrefix(path, "s3://") {
		parts := strings.SplitN(strings.TrimPrefix(path, "s3://"), "/", 2)
		if len(parts) == 2 {
			key = parts[1]
		} else {
			key = ""
		}
	}
	return strings.TrimPrefix(key, "/")
}

// Put uploads body to the configured bucket.
func (w *S3Writer) Put(ctx context.Context, path string, body []byte, contentType string) (int64, error) {
	startTime := time.Now()
	key := w.objectKey(path)

	uploadInput := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}

	if w.sseEnabled {
		if w.sseKMSKeyID != "" {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			uploadInput.SSEKMSKeyId = aws.String(w.sseKMSKeyID)
		} else {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	result, err := w.uploader.Upload(ctx, uploadInput)
	if err != nil {
		if w.metrics != nil {
			w.metrics.IncStorageErrors(w.Backend(), "upload")
		}
		return 0, &errors.SinkError{Sink: w.Backend(), Operation: "upload", Path: key, Err: err}
	}

	duration := time.Since(startTime)
	if w.metrics != nil {
		w.metrics.ObserveStorageWriteDuration(w.Backend(), duration.Seconds())
	}

	w.logger.Debug("wrote object to S3",
		"bucket", w.bucket,
		"key", key,
		"file_size", len(body),
		"location", result.Location,
		"duration_ms", duration.Milliseconds(),
	)

	return int64(len(body)), nil
}

// Close closes the S3 writer.
func (w *S3Writer) Close() error {
	w.logger.Info("closing S3 writer")
	return nil
}
