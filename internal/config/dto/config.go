package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Buffer        BufferConfig        `mapstructure:"buffer"`
	Ingress       IngressConfig       `mapstructure:"ingress"`
	Egress        EgressConfig        `mapstructure:"egress"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BufferConfig contains publication buffer settings
type BufferConfig struct {
	MaxBatchSize int  `mapstructure:"max_batch_size"`
	CloneItems   bool `mapstructure:"clone_items"`
}

// IngressConfig selects and configures the publication source
type IngressConfig struct {
	Source          string            `mapstructure:"source"`
	MaxPayloadBytes int               `mapstructure:"max_payload_bytes"`
	Generator       GeneratorConfig   `mapstructure:"generator"`
	Kafka           KafkaSourceConfig `mapstructure:"kafka"`
}

// GeneratorConfig contains synthetic publication generator settings
type GeneratorConfig struct {
	IntervalMS  int    `mapstructure:"interval_ms"`
	Burst       int    `mapstructure:"burst"`
	Count       int    `mapstructure:"count"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
	Source      string `mapstructure:"source"`
}

// Interval returns the generator interval as a duration
func (c GeneratorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// KafkaSourceConfig contains Kafka consumer group settings for ingress
type KafkaSourceConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
}

// EgressConfig contains egress worker settings
type EgressConfig struct {
	Workers         int         `mapstructure:"workers"`
	ItemConcurrency int         `mapstructure:"item_concurrency"`
	Sink            string      `mapstructure:"sink"`
	Retry           RetryConfig `mapstructure:"retry"`
	DLQ             DLQConfig   `mapstructure:"dlq"`
}

// RetryConfig contains retry settings
type RetryConfig struct {
	MaxAttempts       int     `mapstructure:"max_attempts"`
	InitialBackoffMS  int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMS      int     `mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	Jitter            bool    `mapstructure:"jitter"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
}

// KafkaConfig contains Kafka connectivity and producer configuration
type KafkaConfig struct {
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	AWSMSKRegion     string         `mapstructure:"aws_msk_region"`
	ClientID         string         `mapstructure:"client_id"`
	TLS              TLSConfig      `mapstructure:"tls"`
	Producer         ProducerConfig `mapstructure:"producer"`
}

// TLSConfig contains TLS settings for Kafka connections
type TLSConfig struct {
	CACertFile         string `mapstructure:"ca_cert_file"`
	ClientCertFile     string `mapstructure:"client_cert_file"`
	ClientKeyFile      string `mapstructure:"client_key_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// ProducerConfig contains Kafka producer configuration
type ProducerConfig struct {
	Topic          string `mapstructure:"topic"`
	TopicPrefix    string `mapstructure:"topic_prefix"`
	RequiredAcks   int    `mapstructure:"required_acks"`
	Compression    string `mapstructure:"compression"`
	Idempotent     bool   `mapstructure:"idempotent"`
	MaxRetries     int    `mapstructure:"max_retries"`
	RetryBackoffMS int    `mapstructure:"retry_backoff_ms"`
}

// StorageConfig contains archive storage configuration
type StorageConfig struct {
	Format      string      `mapstructure:"format"`
	Compression string      `mapstructure:"compression"`
	S3          S3Config    `mapstructure:"s3"`
	Azure       AzureConfig `mapstructure:"azure"`
	GCS         GCSConfig   `mapstructure:"gcs"`
	File        FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	BasePath         string `mapstructure:"base_path"`
	ConnectionString string `mapstructure:"connection_string"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port int `mapstructure:"port"`
	// MaxLeaseAgeSeconds fails liveness once a batch is outstanding longer; 0 disables
	MaxLeaseAgeSeconds int `mapstructure:"max_lease_age_seconds"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// GracePeriod returns the shutdown grace period as a duration
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// UsesKafka reports whether any configured component talks to Kafka
func (c *ApplicationConfig) UsesKafka() bool {
	return c.Ingress.Source == "kafka" || c.Egress.Sink == "kafka" || c.Egress.DLQ.Enabled
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.ConnectionString == "" && (c.AccountName == "" || c.AccountKey == "") {
		return fmt.Errorf("azure account name and key, or a connection string, are required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}

// Validate validates retry configuration.
func (c *RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialBackoffMS < 0 || c.MaxBackoffMS < c.InitialBackoffMS {
		return fmt.Errorf("invalid retry backoff range: %dms..%dms", c.InitialBackoffMS, c.MaxBackoffMS)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("retry backoff multiplier must be >= 1, got %v", c.BackoffMultiplier)
	}
	return nil
}
