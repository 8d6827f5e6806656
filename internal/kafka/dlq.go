package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/publication"
	"github.com/jittakal/mqttpubstore/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.DeadLetter = (*DLQPublisher)(nil)

// DLQPublication is the publication part of a dead letter envelope.
type DLQPublication struct {
	ID          string            `json:"id"`
	Topic       string            `json:"topic"`
	QoS         int               `json:"qos"`
	Retain      bool              `json:"retain"`
	Payload     []byte            `json:"payload"`
	ContentType string            `json:"content_type,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	Source      string            `json:"source,omitempty"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
}

// DLQEvent represents a publication published to the dead letter queue.
type DLQEvent struct {
	OriginalPublication DLQPublication `json:"original_publication"`
	OriginalTopic       string         `json:"original_topic"`
	FailureReason       string         `json:"failure_reason"`
	FailureTimestamp    time.Time      `json:"failure_timestamp"`
	ProcessorID         string         `json:"processor_id"`
}

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled     bool
	TopicSuffix string
}

// DLQPublisher publishes failed publications to a dead letter topic.
// The DLQ topic is the mapped Kafka topic of the publication plus the suffix.
type DLQPublisher struct {
	producer    sarama.SyncProducer
	topics      TopicMapper
	config      DLQConfig
	logger      *slog.Logger
	metrics     MetricsCollector
	processorID string
	mu          sync.RWMutex
	closed      bool
}

// NewDLQPublisher creates a new DLQ publisher.
func NewDLQPublisher(
	producerConfig ProducerConfig,
	topics TopicMapper,
	dlqConfig DLQConfig,
	logger *slog.Logger,
	metrics MetricsCollector,
	processorID string,
) (*DLQPublisher, error) {
	if !dlqConfig.Enabled {
		logger.Info("DLQ is disabled")
		return &DLQPublisher{
			config:      dlqConfig,
			logger:      logger,
			processorID: processorID,
		}, nil
	}

	// DLQ writes are always acknowledged by all replicas
	producerConfig.RequiredAcks = int(sarama.WaitForAll)
	saramaConfig, err := newSaramaProducerConfig(producerConfig)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(producerConfig.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("DLQ publisher created",
		"bootstrap_servers", producerConfig.BootstrapServers,
		"topic_suffix", dlqConfig.TopicSuffix,
	)

	return newDLQPublisher(producer, topics, dlqConfig, logger, metrics, processorID), nil
}

func newDLQPublisher(
	producer sarama.SyncProducer,
	topics TopicMapper,
	dlqConfig DLQConfig,
	logger *slog.Logger,
	metrics MetricsCollector,
	processorID string,
) *DLQPublisher {
	return &DLQPublisher{
		producer:    producer,
		topics:      topics,
		config:      dlqConfig,
		logger:      logger,
		metrics:     metrics,
		processorID: processorID,
	}
}

// Topic returns the dead letter topic for an MQTT topic.
func (p *DLQPublisher) Topic(mqttTopic string) string {
	return p.topics.Map(mqttTopic) + p.config.TopicSuffix
}

// Publish publishes a failed publication to the DLQ.
func (p *DLQPublisher) Publish(ctx context.Context, pub publication.Publication, reason string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.config.Enabled {
		return errors.ErrDLQDisabled
	}
	if p.closed {
		return errors.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dlqTopic := p.Topic(pub.Topic)

	dlqEvent := DLQEvent{
		OriginalPublication: DLQPublication{
			ID:          pub.ID,
			Topic:       pub.Topic,
			QoS:         int(pub.QoS),
			Retain:      pub.Retain,
			Payload:     pub.Payload,
			ContentType: pub.ContentType,
			Properties:  pub.Properties,
			Source:      pub.Source,
		},
		OriginalTopic:    pub.Topic,
		FailureReason:    reason,
		FailureTimestamp: time.Now().UTC(),
		ProcessorID:      p.processorID,
	}
	if !pub.CreatedAt.IsZero() {
		createdAt := pub.CreatedAt
		dlqEvent.OriginalPublication.CreatedAt = &createdAt
	}

	dlqData, err := json.Marshal(dlqEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: dlqTopic,
		Key:   sarama.StringEncoder(pub.ID),
		Value: sarama.ByteEncoder(dlqData),
		Headers: []sarama.RecordHeader{
			{Key: []byte("failure_reason"), Value: []byte(reason)},
			{Key: []byte("original_topic"), Value: []byte(pub.Topic)},
			{Key: []byte("processor_id"), Value: []byte(p.processorID)},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		if p.metrics != nil {
			p.metrics.IncMessagesProduced(dlqTopic, "error")
		}
		p.logger.Error("failed to publish to DLQ",
			"error", err,
			"dlq_topic", dlqTopic,
			"publication_id", pub.ID,
		)
		return &errors.SinkError{Sink: "dlq", Operation: "send", Path: dlqTopic, Err: err}
	}

	if p.metrics != nil {
		p.metrics.IncMessagesProduced(dlqTopic, "success")
	}

	p.logger.Info("published publication to DLQ",
		"dlq_topic", dlqTopic,
		"partition", partition,
		"offset", offset,
		"publication_id", pub.ID,
		"reason", reason,
	)

	return nil
}

// Close closes the DLQ publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.producer != nil {
		p.logger.Info("closing DLQ publisher")
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
	}

	return nil
}
