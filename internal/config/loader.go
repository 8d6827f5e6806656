package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/mqttpubstore/internal/config/dto"
)

var (
	ingressSources = []string{"generator", "kafka"}
	egressSinks    = []string{"log", "file", "s3", "gcs", "azure", "kafka"}
	storageFormats = []string{"parquet", "avro", "json"}
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Only expand values containing ${...}
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "mqtt-publication-store")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Buffer defaults
	l.v.SetDefault("buffer.max_batch_size", 10)
	l.v.SetDefault("buffer.clone_items", true)

	// Ingress defaults
	l.v.SetDefault("ingress.source", "generator")
	l.v.SetDefault("ingress.max_payload_bytes", 256*1024)
	l.v.SetDefault("ingress.generator.interval_ms", 20)
	l.v.SetDefault("ingress.generator.burst", 1)
	l.v.SetDefault("ingress.generator.count", 0)
	l.v.SetDefault("ingress.generator.topic_prefix", "library")
	l.v.SetDefault("ingress.generator.qos", 1)
	l.v.SetDefault("ingress.generator.source", "urn:mqttpubstore:generator")
	l.v.SetDefault("ingress.kafka.group_id", "mqttpubstore")
	l.v.SetDefault("ingress.kafka.auto_offset_reset", "earliest")
	l.v.SetDefault("ingress.kafka.session_timeout_ms", 30000)
	l.v.SetDefault("ingress.kafka.heartbeat_interval_ms", 10000)

	// Egress defaults
	l.v.SetDefault("egress.workers", 2)
	l.v.SetDefault("egress.item_concurrency", 2)
	l.v.SetDefault("egress.sink", "log")
	l.v.SetDefault("egress.retry.max_attempts", 5)
	l.v.SetDefault("egress.retry.initial_backoff_ms", 100)
	l.v.SetDefault("egress.retry.max_backoff_ms", 30000)
	l.v.SetDefault("egress.retry.backoff_multiplier", 2.0)
	l.v.SetDefault("egress.retry.jitter", true)
	l.v.SetDefault("egress.dlq.enabled", false)
	l.v.SetDefault("egress.dlq.topic_suffix", "-dlq")

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.client_id", "mqttpubstore")
	l.v.SetDefault("kafka.producer.topic_prefix", "mqtt.")
	l.v.SetDefault("kafka.producer.required_acks", -1)
	l.v.SetDefault("kafka.producer.compression", "snappy")
	l.v.SetDefault("kafka.producer.idempotent", true)
	l.v.SetDefault("kafka.producer.max_retries", 3)
	l.v.SetDefault("kafka.producer.retry_backoff_ms", 100)

	// Storage defaults
	l.v.SetDefault("storage.format", "parquet")
	l.v.SetDefault("storage.compression", "snappy")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.max_lease_age_seconds", 300)

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 5)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	// Buffer validation
	if config.Buffer.MaxBatchSize < 0 {
		return fmt.Errorf("buffer.max_batch_size must not be negative: %d", config.Buffer.MaxBatchSize)
	}

	// Ingress validation
	if !slices.Contains(ingressSources, config.Ingress.Source) {
		return fmt.Errorf("unsupported ingress source: %s", config.Ingress.Source)
	}
	switch config.Ingress.Source {
	case "generator":
		if config.Ingress.Generator.IntervalMS < 0 {
			return errors.New("ingress.generator.interval_ms must not be negative")
		}
		if config.Ingress.Generator.QoS < 0 || config.Ingress.Generator.QoS > 2 {
			return fmt.Errorf("invalid ingress.generator.qos: %d", config.Ingress.Generator.QoS)
		}
	case "kafka":
		if len(config.Ingress.Kafka.Topics) == 0 {
			return errors.New("ingress.kafka.topics is required for kafka source")
		}
		if config.Ingress.Kafka.GroupID == "" {
			return errors.New("ingress.kafka.group_id is required for kafka source")
		}
	}

	// Egress validation
	if config.Egress.Workers < 1 {
		return fmt.Errorf("egress.workers must be at least 1: %d", config.Egress.Workers)
	}
	if config.Egress.ItemConcurrency < 1 {
		return fmt.Errorf("egress.item_concurrency must be at least 1: %d", config.Egress.ItemConcurrency)
	}
	if err := config.Egress.Retry.Validate(); err != nil {
		return fmt.Errorf("egress.retry: %w", err)
	}
	if !slices.Contains(egressSinks, config.Egress.Sink) {
		return fmt.Errorf("unsupported egress sink: %s", config.Egress.Sink)
	}

	// Storage validation
	var err error
	switch config.Egress.Sink {
	case "s3":
		err = config.Storage.S3.Validate()
	case "azure":
		err = config.Storage.Azure.Validate()
	case "gcs":
		err = config.Storage.GCS.Validate()
	case "file":
		err = config.Storage.File.Validate()
	}
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if !slices.Contains(storageFormats, config.Storage.Format) {
		return fmt.Errorf("unsupported storage format: %s", config.Storage.Format)
	}

	// Kafka validation
	if config.UsesKafka() && len(config.Kafka.BootstrapServers) == 0 {
		return errors.New("kafka.bootstrap_servers is required when kafka source, sink or dlq is used")
	}
	if config.Egress.Sink == "kafka" && config.Kafka.Producer.Topic == "" && config.Kafka.Producer.TopicPrefix == "" {
		return errors.New("kafka.producer.topic or kafka.producer.topic_prefix is required for kafka sink")
	}

	// Port validation
	if config.Observability.Metrics.Enabled {
		if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
		}
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}

	return nil
}
