package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/mqttpubstore/internal/buffer"
	"github.com/jittakal/mqttpubstore/internal/config"
	"github.com/jittakal/mqttpubstore/internal/egress"
	"github.com/jittakal/mqttpubstore/internal/ingress"
	"github.com/jittakal/mqttpubstore/internal/observability"
	"github.com/jittakal/mqttpubstore/internal/server"
	"github.com/jittakal/mqttpubstore/internal/validator"
	"github.com/jittakal/mqttpubstore/pkg/publication"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Load configuration
	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize observability
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	slog.SetDefault(logger)
	logger.Info("starting mqtt publication store",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"ingress", cfg.Ingress.Source,
		"sink", cfg.Egress.Sink,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Cleanups run in reverse registration order
	var cleanups []cleanup
	addCleanup := func(name string, fn func() error) {
		cleanups = append(cleanups, cleanup{name: name, fn: fn})
		logger.Debug("registered cleanup", "component", name)
	}
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i].fn(); err != nil {
				logger.Error("cleanup failed", "component", cleanups[i].name, "error", err)
			}
		}
	}()

	bufferConfig := buffer.Config[publication.Publication]{
		Logger:  logger.With("component", "buffer"),
		Metrics: metrics,
	}
	if cfg.Buffer.CloneItems {
		bufferConfig.Clone = publication.Publication.Clone
	}
	buf := buffer.New(bufferConfig)

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelSetup()

	snk, err := newSink(setupCtx, cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}
	addCleanup("sink", snk.Close)

	dlq, err := newDeadLetter(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	if dlq != nil {
		addCleanup("dlq-publisher", dlq.Close)
	}

	src, err := newSource(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	addCleanup("source", src.Close)

	pool := egress.NewPool(
		cfg.Egress.Workers,
		egress.WorkerConfig{
			MaxBatchSize:    cfg.Buffer.MaxBatchSize,
			ItemConcurrency: cfg.Egress.ItemConcurrency,
			Retry:           retryConfig(cfg.Egress.Retry),
		},
		buf,
		egress.CloudEventProcessor{},
		snk,
		dlq,
		logger.With("component", "egress"),
		metrics,
	)
	driver := ingress.NewDriver(
		buf,
		validator.NewPublicationValidator(cfg.Ingress.MaxPayloadBytes),
		dlq,
		logger.With("component", "ingress"),
		metrics,
	)

	// Start HTTP server
	health := server.NewBufferHealth(buf, time.Duration(cfg.Observability.Health.MaxLeaseAgeSeconds)*time.Second)
	httpServer := server.NewServer(
		server.Config{
			HealthPort:     cfg.Observability.Health.Port,
			MetricsEnabled: cfg.Observability.Metrics.Enabled,
			MetricsPort:    cfg.Observability.Metrics.Port,
			MetricsPath:    cfg.Observability.Metrics.Path,
		},
		health,
		registry,
		logger,
	)
	httpServer.Start()
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	egressCtx, stopEgress := context.WithCancel(context.Background())
	defer stopEgress()
	egressDone := make(chan error, 1)
	go func() {
		egressDone <- pool.Run(egressCtx)
	}()

	ingressCtx, stopIngress := context.WithCancel(context.Background())
	defer stopIngress()
	ingressDone := make(chan error, 1)
	go func() {
		ingressDone <- driver.Run(ingressCtx, src)
	}()

	health.MarkReady(true)
	logger.Info("application started successfully")

	// Wait for termination signal or the end of ingress
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	var runErr error
	ingressRunning := true
	select {
	case <-sigCtx.Done():
		logger.Info("received termination signal")
	case err := <-ingressDone:
		ingressRunning = false
		if err != nil {
			logger.Error("ingress failed", "error", err)
			runErr = err
		} else {
			logger.Info("ingress finished")
		}
	case err := <-egressDone:
		logger.Error("egress stopped unexpectedly", "error", err)
		health.MarkReady(false)
		stopIngress()
		if ingressRunning {
			<-ingressDone
		}
		return fmt.Errorf("egress failed: %w", err)
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")
	health.MarkReady(false)
	stopIngress()
	if ingressRunning {
		if err := <-ingressDone; err != nil {
			logger.Error("ingress stopped with error", "error", err)
		}
	}

	drain(buf, cfg.Shutdown.GracePeriod(), logger)
	if err := buf.Close(); err != nil {
		logger.Error("failed to close buffer", "error", err)
	}
	stopEgress()
	if err := <-egressDone; err != nil {
		logger.Error("egress stopped with error", "error", err)
	}

	stats := buf.Stats()
	logger.Info("application stopped",
		"accepted", driver.Accepted(),
		"rejected", driver.Rejected(),
		"undelivered", stats.QueueDepth+stats.OutstandingSize,
	)
	return runErr
}

type cleanup struct {
	name string
	fn   func() error
}

// drain waits until egress has committed everything pushed so far or the
// grace period ends.
func drain(buf *buffer.PublicationBuffer[publication.Publication], grace time.Duration, logger *slog.Logger) {
	deadline := time.Now().Add(grace)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		stats := buf.Stats()
		if stats.QueueDepth == 0 && !stats.Outstanding {
			logger.Info("buffer drained", "next_offset", stats.NextOffset)
			return
		}
		if time.Now().After(deadline) {
			logger.Warn("grace period expired before buffer drained",
				"queue_depth", stats.QueueDepth,
				"outstanding", stats.OutstandingSize,
			)
			return
		}
		<-ticker.C
	}
}
