package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jittakal/mqttpubstore/internal/config/dto"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("expected non-nil loader")
	}
	if loader.v == nil {
		t.Fatal("expected non-nil viper instance")
	}
}

func TestLoader_LoadWithValidConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "application.yaml")

	configContent := `
application:
  name: test-app
  version: 1.0.0

buffer:
  max_batch_size: 25

ingress:
  source: generator
  generator:
    interval_ms: 5
    count: 100

egress:
  workers: 3
  sink: file

storage:
  format: avro
  file:
    base_path: /tmp/test
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	loader := NewLoader()
	config, err := loader.Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Application.Name != "test-app" {
		t.Errorf("Application.Name = %s, want test-app", config.Application.Name)
	}
	if config.Buffer.MaxBatchSize != 25 {
		t.Errorf("Buffer.MaxBatchSize = %d, want 25", config.Buffer.MaxBatchSize)
	}
	if config.Ingress.Generator.Count != 100 {
		t.Errorf("Generator.Count = %d, want 100", config.Ingress.Generator.Count)
	}
	if config.Egress.Workers != 3 {
		t.Errorf("Egress.Workers = %d, want 3", config.Egress.Workers)
	}
	if config.Storage.Format != "avro" {
		t.Errorf("Storage.Format = %s, want avro", config.Storage.Format)
	}
	// Defaults fill the rest.
	if config.Egress.ItemConcurrency != 2 {
		t.Errorf("Egress.ItemConcurrency = %d, want 2", config.Egress.ItemConcurrency)
	}
	if config.Egress.Retry.MaxAttempts != 5 {
		t.Errorf("Retry.MaxAttempts = %d, want 5", config.Egress.Retry.MaxAttempts)
	}
}

func TestLoader_LoadWithMissingFile(t *testing.T) {
	loader := NewLoader()

	// Defaults alone form a valid configuration.
	config, err := loader.Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Ingress.Source != "generator" {
		t.Errorf("Ingress.Source = %s, want generator", config.Ingress.Source)
	}
	if config.Egress.Sink != "log" {
		t.Errorf("Egress.Sink = %s, want log", config.Egress.Sink)
	}
	if config.Buffer.MaxBatchSize != 10 {
		t.Errorf("Buffer.MaxBatchSize = %d, want 10", config.Buffer.MaxBatchSize)
	}
}

func TestLoader_LoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_ARCHIVE_DIR", "/var/archive")
	configFile := filepath.Join(t.TempDir(), "application.yaml")

	configContent := `
egress:
  sink: file
storage:
  file:
    base_path: ${TEST_ARCHIVE_DIR}/publications
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	config, err := NewLoader().Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Storage.File.BasePath != "/var/archive/publications" {
		t.Errorf("BasePath = %s, want /var/archive/publications", config.Storage.File.BasePath)
	}
}

func TestLoader_LoadEnvOverride(t *testing.T) {
	t.Setenv("APP_BUFFER_MAX_BATCH_SIZE", "64")
	t.Setenv("APP_EGRESS_WORKERS", "4")

	config, err := NewLoader().Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Buffer.MaxBatchSize != 64 {
		t.Errorf("Buffer.MaxBatchSize = %d, want 64", config.Buffer.MaxBatchSize)
	}
	if config.Egress.Workers != 4 {
		t.Errorf("Egress.Workers = %d, want 4", config.Egress.Workers)
	}
}

func validConfig() *dto.ApplicationConfig {
	return &dto.ApplicationConfig{
		Buffer: dto.BufferConfig{MaxBatchSize: 10},
		Ingress: dto.IngressConfig{
			Source:    "generator",
			Generator: dto.GeneratorConfig{IntervalMS: 20, QoS: 1},
		},
		Egress: dto.EgressConfig{
			Workers:         2,
			ItemConcurrency: 2,
			Sink:            "log",
			Retry: dto.RetryConfig{
				MaxAttempts:       3,
				InitialBackoffMS:  10,
				MaxBackoffMS:      100,
				BackoffMultiplier: 2,
			},
		},
		Storage: dto.StorageConfig{Format: "parquet"},
		Observability: dto.ObservabilityConfig{
			Metrics: dto.MetricsConfig{Enabled: true, Port: 9090},
			Health:  dto.HealthConfig{Port: 8080},
		},
	}
}

func TestLoader_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *dto.ApplicationConfig)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *dto.ApplicationConfig) {},
			wantErr: false,
		},
		{
			name:    "zero batch size allowed",
			mutate:  func(c *dto.ApplicationConfig) { c.Buffer.MaxBatchSize = 0 },
			wantErr: false,
		},
		{
			name:    "negative batch size",
			mutate:  func(c *dto.ApplicationConfig) { c.Buffer.MaxBatchSize = -1 },
			wantErr: true,
		},
		{
			name:    "unknown source",
			mutate:  func(c *dto.ApplicationConfig) { c.Ingress.Source = "mqtt" },
			wantErr: true,
		},
		{
			name:    "invalid generator qos",
			mutate:  func(c *dto.ApplicationConfig) { c.Ingress.Generator.QoS = 3 },
			wantErr: true,
		},
		{
			name: "kafka source without topics",
			mutate: func(c *dto.ApplicationConfig) {
				c.Ingress.Source = "kafka"
				c.Ingress.Kafka.GroupID = "group"
				c.Kafka.BootstrapServers = []string{"localhost:9092"}
			},
			wantErr: true,
		},
		{
			name: "kafka source without bootstrap servers",
			mutate: func(c *dto.ApplicationConfig) {
				c.Ingress.Source = "kafka"
				c.Ingress.Kafka.GroupID = "group"
				c.Ingress.Kafka.Topics = []string{"publications"}
			},
			wantErr: true,
		},
		{
			name: "valid kafka source",
			mutate: func(c *dto.ApplicationConfig) {
				c.Ingress.Source = "kafka"
				c.Ingress.Kafka.GroupID = "group"
				c.Ingress.Kafka.Topics = []string{"publications"}
				c.Kafka.BootstrapServers = []string{"localhost:9092"}
			},
			wantErr: false,
		},
		{
			name:    "no workers",
			mutate:  func(c *dto.ApplicationConfig) { c.Egress.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "no item concurrency",
			mutate:  func(c *dto.ApplicationConfig) { c.Egress.ItemConcurrency = 0 },
			wantErr: true,
		},
		{
			name:    "invalid retry",
			mutate:  func(c *dto.ApplicationConfig) { c.Egress.Retry.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "unknown sink",
			mutate:  func(c *dto.ApplicationConfig) { c.Egress.Sink = "ftp" },
			wantErr: true,
		},
		{
			name:    "file sink without base path",
			mutate:  func(c *dto.ApplicationConfig) { c.Egress.Sink = "file" },
			wantErr: true,
		},
		{
			name: "s3 sink",
			mutate: func(c *dto.ApplicationConfig) {
				c.Egress.Sink = "s3"
				c.Storage.S3 = dto.S3Config{Bucket: "archive", Region: "us-east-1"}
			},
			wantErr: false,
		},
		{
			name: "s3 sink without region",
			mutate: func(c *dto.ApplicationConfig) {
				c.Egress.Sink = "s3"
				c.Storage.S3.Bucket = "archive"
			},
			wantErr: true,
		},
		{
			name:    "gcs sink without bucket",
			mutate:  func(c *dto.ApplicationConfig) { c.Egress.Sink = "gcs" },
			wantErr: true,
		},
		{
			name: "azure sink with connection string",
			mutate: func(c *dto.ApplicationConfig) {
				c.Egress.Sink = "azure"
				c.Storage.Azure = dto.AzureConfig{ConnectionString: "UseDevelopmentStorage=true", Container: "archive"}
			},
			wantErr: false,
		},
		{
			name:    "unsupported format",
			mutate:  func(c *dto.ApplicationConfig) { c.Storage.Format = "csv" },
			wantErr: true,
		},
		{
			name: "kafka sink without topic",
			mutate: func(c *dto.ApplicationConfig) {
				c.Egress.Sink = "kafka"
				c.Kafka.BootstrapServers = []string{"localhost:9092"}
			},
			wantErr: true,
		},
		{
			name: "dlq without bootstrap servers",
			mutate: func(c *dto.ApplicationConfig) {
				c.Egress.DLQ.Enabled = true
			},
			wantErr: true,
		},
		{
			name:    "invalid metrics port",
			mutate:  func(c *dto.ApplicationConfig) { c.Observability.Metrics.Port = 70000 },
			wantErr: true,
		},
		{
			name: "metrics port ignored when disabled",
			mutate: func(c *dto.ApplicationConfig) {
				c.Observability.Metrics.Enabled = false
				c.Observability.Metrics.Port = 0
			},
			wantErr: false,
		},
		{
			name:    "invalid health port",
			mutate:  func(c *dto.ApplicationConfig) { c.Observability.Health.Port = 0 },
			wantErr: true,
		},
	}

	loader := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)

			err := loader.Validate(config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_setDefaults(t *testing.T) {
	loader := NewLoader()
	loader.setDefaults()

	if loader.v.GetString("application.name") != "mqtt-publication-store" {
		t.Error("default application.name not set correctly")
	}
	if loader.v.GetInt("buffer.max_batch_size") != 10 {
		t.Error("default buffer.max_batch_size not set correctly")
	}
	if loader.v.GetInt("ingress.generator.interval_ms") != 20 {
		t.Error("default ingress.generator.interval_ms not set correctly")
	}
	if loader.v.GetString("storage.format") != "parquet" {
		t.Error("default storage.format not set correctly")
	}
}
