package kafka

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/publication"
	"github.com/jittakal/mqttpubstore/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Sink = (*Sink)(nil)

// Header keys carrying MQTT metadata on produced messages.
const (
	HeaderTopic          = "mqtt_topic"
	HeaderQoS            = "mqtt_qos"
	HeaderRetain         = "mqtt_retain"
	HeaderContentType    = "mqtt_content_type"
	HeaderSource         = "mqtt_source"
	HeaderID             = "mqtt_id"
	HeaderOffset         = "buffer_offset"
	HeaderPropertyPrefix = "mqtt_prop_"
)

// ProducerConfig contains Kafka producer configuration.
type ProducerConfig struct {
	BootstrapServers []string
	ClientID         string
	Security         SecurityConfig
	RequiredAcks     int
	Compression      string
	Idempotent       bool
	MaxRetries       int
	RetryBackoffMS   int
}

// newSaramaProducerConfig builds a Sarama config for synchronous producers.
func newSaramaProducerConfig(cfg ProducerConfig) (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	if cfg.ClientID != "" {
		saramaConfig.ClientID = cfg.ClientID
	}

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	saramaConfig.Producer.Compression = compressionCodec(cfg.Compression)
	saramaConfig.Producer.Retry.Max = cfg.MaxRetries
	saramaConfig.Producer.Retry.Backoff = time.Duration(cfg.RetryBackoffMS) * time.Millisecond

	// Idempotent producer requires acks=all and Net.MaxOpenRequests to be 1
	if cfg.Idempotent {
		saramaConfig.Producer.Idempotent = true
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
		saramaConfig.Net.MaxOpenRequests = 1
	}

	if err := configureSecurity(saramaConfig, cfg.Security); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	return saramaConfig, nil
}

// Sink publishes batches to Kafka with a synchronous producer.
// A batch is sent with one SendMessages call; the call fails if any message fails.
type Sink struct {
	producer sarama.SyncProducer
	topics   TopicMapper
	logger   *slog.Logger
	metrics  MetricsCollector
	mu       sync.RWMutex
	closed   bool
}

// NewSink creates a Kafka sink.
func NewSink(cfg ProducerConfig, topics TopicMapper, logger *slog.Logger, metrics MetricsCollector) (*Sink, error) {
	saramaConfig, err := newSaramaProducerConfig(cfg)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("kafka sink created",
		"bootstrap_servers", cfg.BootstrapServers,
		"topic", topics.Topic,
		"topic_prefix", topics.Prefix,
		"security_protocol", cfg.Security.SecurityProtocol,
	)

	return newSink(producer, topics, logger, metrics), nil
}

func newSink(producer sarama.SyncProducer, topics TopicMapper, logger *slog.Logger, metrics MetricsCollector) *Sink {
	return &Sink{
		producer: producer,
		topics:   topics,
		logger:   logger,
		metrics:  metrics,
	}
}

// Name returns "kafka".
func (s *Sink) Name() string {
	return "kafka"
}

// Write sends every publication of the batch.
func (s *Sink) Write(ctx context.Context, batch sink.Batch) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errors.ErrSinkClosed
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msgs := make([]*sarama.ProducerMessage, batch.Len())
	for i, p := range batch.Publications {
		msgs[i] = s.message(p, batch.Offset(i))
	}

	if err := s.producer.SendMessages(msgs); err != nil {
		s.recordFailures(msgs, err)
		return &errors.SinkError{Sink: s.Name(), Operation: "send", Err: err}
	}

	if s.metrics != nil {
		for _, msg := range msgs {
			s.metrics.IncMessagesProduced(msg.Topic, "success")
		}
	}

	s.logger.Debug("produced batch",
		"start", batch.Start,
		"end", batch.End,
		"messages", len(msgs),
		"replayed", batch.Replayed,
	)

	return nil
}

// recordFailures counts per-message failures when Sarama reports them.
func (s *Sink) recordFailures(msgs []*sarama.ProducerMessage, err error) {
	if s.metrics == nil {
		return
	}

	var producerErrs sarama.ProducerErrors
	if stderrors.As(err, &producerErrs) {
		for _, perr := range producerErrs {
			s.metrics.IncMessagesProduced(perr.Msg.Topic, "error")
		}
		return
	}
	for _, msg := range msgs {
		s.metrics.IncMessagesProduced(msg.Topic, "error")
	}
}

// message converts a publication into a producer message.
func (s *Sink) message(p publication.Publication, offset uint64) *sarama.ProducerMessage {
	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderID), Value: []byte(p.ID)},
		{Key: []byte(HeaderTopic), Value: []byte(p.Topic)},
		{Key: []byte(HeaderQoS), Value: []byte(p.QoS.String())},
		{Key: []byte(HeaderRetain), Value: []byte(strconv.FormatBool(p.Retain))},
		{Key: []byte(HeaderOffset), Value: []byte(strconv.FormatUint(offset, 10))},
	}
	if p.ContentType != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte(HeaderContentType), Value: []byte(p.ContentType)})
	}
	if p.Source != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte(HeaderSource), Value: []byte(p.Source)})
	}
	for k, v := range p.Properties {
		headers = append(headers, sarama.RecordHeader{Key: []byte(HeaderPropertyPrefix + k), Value: []byte(v)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   s.topics.Map(p.Topic),
		Key:     sarama.StringEncoder(p.ID),
		Value:   sarama.ByteEncoder(p.Payload),
		Headers: headers,
	}
	if !p.CreatedAt.IsZero() {
		msg.Timestamp = p.CreatedAt
	}
	return msg
}

// Close closes the producer.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Info("closing kafka sink")
	return s.producer.Close()
}
