package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jittakal/mqttpubstore/internal/config/dto"
	"github.com/jittakal/mqttpubstore/internal/egress"
	"github.com/jittakal/mqttpubstore/internal/encoder"
	"github.com/jittakal/mqttpubstore/internal/ingress"
	"github.com/jittakal/mqttpubstore/internal/kafka"
	"github.com/jittakal/mqttpubstore/internal/observability"
	logsink "github.com/jittakal/mqttpubstore/internal/sink"
	"github.com/jittakal/mqttpubstore/internal/storage"
	pkgencoder "github.com/jittakal/mqttpubstore/pkg/encoder"
	"github.com/jittakal/mqttpubstore/pkg/publication"
	"github.com/jittakal/mqttpubstore/pkg/sink"
	"github.com/jittakal/mqttpubstore/pkg/source"
	pkgstorage "github.com/jittakal/mqttpubstore/pkg/storage"
)

// newSink creates the configured egress sink.
func newSink(ctx context.Context, cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (sink.Sink, error) {
	switch cfg.Egress.Sink {
	case "log":
		return logsink.NewLogSink(logger.With("component", "log-sink"), slog.LevelInfo), nil
	case "kafka":
		return kafka.NewSink(producerConfig(cfg), topicMapper(cfg), logger, metrics)
	}

	writer, basePath, err := newWriter(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	enc, err := encoder.NewFactory(pkgencoder.Format(cfg.Storage.Format), cfg.Storage.Compression).CreateEncoder()
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("archive sink configured",
		"backend", writer.Backend(),
		"format", enc.Format(),
		"compression", cfg.Storage.Compression,
		"base_path", basePath,
	)
	return storage.NewArchiveSink(writer, storage.NewRouter(basePath), enc, logger, metrics), nil
}

// newWriter creates the storage writer for an archive sink and returns the
// base path objects are routed under.
func newWriter(ctx context.Context, cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (pkgstorage.Writer, string, error) {
	switch cfg.Egress.Sink {
	case "file":
		w, err := storage.NewFileWriter(storage.FileConfig{BasePath: cfg.Storage.File.BasePath}, logger, metrics)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create filesystem writer: %w", err)
		}
		return w, cfg.Storage.File.BasePath, nil
	case "s3":
		w, err := storage.NewS3Writer(ctx, storage.S3Config{
			Bucket:       cfg.Storage.S3.Bucket,
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
			SSEEnabled:   cfg.Storage.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Storage.S3.SSEKMSKeyID,
		}, logger, metrics)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create S3 writer: %w", err)
		}
		return w, cfg.Storage.S3.BasePath, nil
	case "gcs":
		w, err := storage.NewGCSWriter(ctx, storage.GCSConfig{
			Bucket:               cfg.Storage.GCS.Bucket,
			ProjectID:            cfg.Storage.GCS.ProjectID,
			CredentialsFile:      cfg.Storage.GCS.CredentialsFile,
			CredentialsJSON:      cfg.Storage.GCS.CredentialsJSON,
			Endpoint:             cfg.Storage.GCS.Endpoint,
			UseDefaultCredential: cfg.Storage.GCS.UseDefaultCredential,
		}, logger, metrics)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create GCS writer: %w", err)
		}
		return w, cfg.Storage.GCS.BasePath, nil
	case "azure":
		w, err := storage.NewAzureWriter(storage.AzureConfig{
			AccountName:      cfg.Storage.Azure.AccountName,
			AccountKey:       cfg.Storage.Azure.AccountKey,
			ContainerName:    cfg.Storage.Azure.Container,
			Endpoint:         cfg.Storage.Azure.Endpoint,
			ConnectionString: cfg.Storage.Azure.ConnectionString,
		}, logger, metrics)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create Azure Blob writer: %w", err)
		}
		return w, cfg.Storage.Azure.BasePath, nil
	default:
		return nil, "", fmt.Errorf("unsupported sink: %s (supported: log, kafka, file, s3, gcs, azure)", cfg.Egress.Sink)
	}
}

// newDeadLetter returns nil when the dead letter queue is disabled.
func newDeadLetter(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (sink.DeadLetter, error) {
	if !cfg.Egress.DLQ.Enabled {
		return nil, nil
	}

	dlq, err := kafka.NewDLQPublisher(
		producerConfig(cfg),
		topicMapper(cfg),
		kafka.DLQConfig{Enabled: true, TopicSuffix: cfg.Egress.DLQ.TopicSuffix},
		logger,
		metrics,
		cfg.Application.Name,
	)
	if err != nil {
		return nil, err
	}
	return dlq, nil
}

// newSource creates the configured ingress source.
func newSource(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (source.Source, error) {
	switch cfg.Ingress.Source {
	case "generator":
		gen := cfg.Ingress.Generator
		return ingress.NewGenerator(ingress.GeneratorConfig{
			Interval:    gen.Interval(),
			Burst:       gen.Burst,
			Count:       gen.Count,
			TopicPrefix: gen.TopicPrefix,
			QoS:         publication.QoS(gen.QoS),
			EventSource: gen.Source,
		}, logger.With("component", "generator")), nil
	case "kafka":
		return kafka.NewSource(kafka.SourceConfig{
			BootstrapServers:    cfg.Kafka.BootstrapServers,
			GroupID:             cfg.Ingress.Kafka.GroupID,
			Topics:              cfg.Ingress.Kafka.Topics,
			ClientID:            cfg.Kafka.ClientID,
			Security:            securityConfig(cfg.Kafka),
			AutoOffsetReset:     cfg.Ingress.Kafka.AutoOffsetReset,
			SessionTimeoutMS:    cfg.Ingress.Kafka.SessionTimeoutMS,
			HeartbeatIntervalMS: cfg.Ingress.Kafka.HeartbeatIntervalMS,
		}, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported ingress source: %s (supported: generator, kafka)", cfg.Ingress.Source)
	}
}

func producerConfig(cfg *dto.ApplicationConfig) kafka.ProducerConfig {
	return kafka.ProducerConfig{
		BootstrapServers: cfg.Kafka.BootstrapServers,
		ClientID:         cfg.Kafka.ClientID,
		Security:         securityConfig(cfg.Kafka),
		RequiredAcks:     cfg.Kafka.Producer.RequiredAcks,
		Compression:      cfg.Kafka.Producer.Compression,
		Idempotent:       cfg.Kafka.Producer.Idempotent,
		MaxRetries:       cfg.Kafka.Producer.MaxRetries,
		RetryBackoffMS:   cfg.Kafka.Producer.RetryBackoffMS,
	}
}

func topicMapper(cfg *dto.ApplicationConfig) kafka.TopicMapper {
	return kafka.TopicMapper{
		Topic:  cfg.Kafka.Producer.Topic,
		Prefix: cfg.Kafka.Producer.TopicPrefix,
	}
}

func securityConfig(cfg dto.KafkaConfig) kafka.SecurityConfig {
	return kafka.SecurityConfig{
		SecurityProtocol: cfg.SecurityProtocol,
		SASLMechanism:    cfg.SASLMechanism,
		SASLUsername:     cfg.SASLUsername,
		SASLPassword:     cfg.SASLPassword,
		AWSMSKRegion:     cfg.AWSMSKRegion,
		TLS: kafka.TLSConfig{
			CACertFile:         cfg.TLS.CACertFile,
			ClientCertFile:     cfg.TLS.ClientCertFile,
			ClientKeyFile:      cfg.TLS.ClientKeyFile,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		},
	}
}

func retryConfig(cfg dto.RetryConfig) egress.RetryConfig {
	return egress.RetryConfig{
		MaxAttempts:       cfg.MaxAttempts,
		InitialBackoff:    time.Duration(cfg.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:        time.Duration(cfg.MaxBackoffMS) * time.Millisecond,
		BackoffMultiplier: cfg.BackoffMultiplier,
		Jitter:            cfg.Jitter,
	}
}
