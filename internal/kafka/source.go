package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/jittakal/mqttpubstore/pkg/publication"
	"github.com/jittakal/mqttpubstore/pkg/source"
)

// Ensure implementation satisfies interface at compile time.
var _ source.Source = (*Source)(nil)

// Properties added to publications consumed from Kafka.
const (
	PropertyKafkaTopic     = "kafka_topic"
	PropertyKafkaPartition = "kafka_partition"
	PropertyKafkaOffset    = "kafka_offset"
	PropertyCloudEventType = "ce_type"
)

// SourceConfig contains Kafka consumer group configuration.
type SourceConfig struct {
	BootstrapServers    []string
	GroupID             string
	Topics              []string
	ClientID            string
	Security            SecurityConfig
	AutoOffsetReset     string
	SessionTimeoutMS    int
	HeartbeatIntervalMS int
}

// Source consumes publications from Kafka topics with a consumer group.
//
// Offsets are marked only after emit accepted or rejected the publication,
// so messages in flight at shutdown are consumed again by the next member.
type Source struct {
	group   sarama.ConsumerGroup
	config  SourceConfig
	logger  *slog.Logger
	metrics MetricsCollector
	mu      sync.Mutex
	closed  bool
}

// NewSource creates a Kafka consumer group source.
func NewSource(cfg SourceConfig, logger *slog.Logger, metrics MetricsCollector) (*Source, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	if cfg.ClientID != "" {
		saramaConfig.ClientID = cfg.ClientID
	}
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = offsetInitial(cfg.AutoOffsetReset)
	saramaConfig.Consumer.Return.Errors = true

	if cfg.SessionTimeoutMS > 0 {
		saramaConfig.Consumer.Group.Session.Timeout = time.Duration(cfg.SessionTimeoutMS) * time.Millisecond
	}
	if cfg.HeartbeatIntervalMS > 0 {
		saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(cfg.HeartbeatIntervalMS) * time.Millisecond
	}

	if err := configureSecurity(saramaConfig, cfg.Security); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	group, err := sarama.NewConsumerGroup(cfg.BootstrapServers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Info("kafka source created",
		"group_id", cfg.GroupID,
		"topics", cfg.Topics,
		"bootstrap_servers", cfg.BootstrapServers,
	)

	return newSource(group, cfg, logger, metrics), nil
}

func newSource(group sarama.ConsumerGroup, cfg SourceConfig, logger *slog.Logger, metrics MetricsCollector) *Source {
	return &Source{
		group:   group,
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Name returns "kafka".
func (s *Source) Name() string {
	return "kafka"
}

// Run consumes until ctx is done or the group is closed.
func (s *Source) Run(ctx context.Context, emit source.Emit) error {
	handler := &groupHandler{source: s, emit: emit}

	go s.logErrors(ctx)

	for {
		if err := s.group.Consume(ctx, s.config.Topics, handler); err != nil {
			if stderrors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consumer group error: %w", err)
		}

		// Consume returns after every rebalance
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *Source) logErrors(ctx context.Context) {
	for {
		select {
		case err, ok := <-s.group.Errors():
			if !ok {
				return
			}
			s.logger.Error("consumer group error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the consumer group.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Info("closing kafka source")
	return s.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	source         *Source
	emit           source.Emit
	rebalanceStart time.Time
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *groupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.rebalanceStart = time.Now()

	h.source.logger.Info("consumer group session setup",
		"member_id", session.MemberID(),
		"generation_id", session.GenerationID(),
		"claims", session.Claims(),
	)

	if m := h.source.metrics; m != nil {
		m.IncRebalances(h.source.config.GroupID)
		for topic, partitions := range session.Claims() {
			m.SetPartitionsAssigned(topic, float64(len(partitions)))
		}
	}
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *groupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	if h.source.metrics != nil && !h.rebalanceStart.IsZero() {
		h.source.metrics.ObserveRebalanceDuration(h.source.config.GroupID, time.Since(h.rebalanceStart).Seconds())
	}

	h.source.logger.Info("consumer group session cleanup", "member_id", session.MemberID())
	return nil
}

// ConsumeClaim emits every message of a partition claim.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	h.source.logger.Info("started consuming partition",
		"topic", claim.Topic(),
		"partition", claim.Partition(),
		"initial_offset", claim.InitialOffset(),
	)

	ctx := session.Context()
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			if h.source.metrics != nil {
				h.source.metrics.IncMessagesConsumed(message.Topic, message.Partition)
			}

			pub := ToPublication(message)
			if err := h.emit(ctx, pub); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// Rejected publications are skipped; retrying them cannot succeed
				h.source.logger.Warn("publication rejected",
					"error", err,
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
				)
			}

			session.MarkMessage(message, "")

		case <-ctx.Done():
			return nil
		}
	}
}

// ToPublication converts a Kafka message into a publication.
//
// Structured-mode CloudEvents keep the whole event as payload. MQTT metadata
// is read from mqtt_* headers, falling back to the Kafka topic with dots
// turned into topic levels.
func ToPublication(message *sarama.ConsumerMessage) publication.Publication {
	headers := make(map[string]string, len(message.Headers))
	properties := map[string]string{
		PropertyKafkaTopic:     message.Topic,
		PropertyKafkaPartition: strconv.FormatInt(int64(message.Partition), 10),
		PropertyKafkaOffset:    strconv.FormatInt(message.Offset, 10),
	}
	for _, header := range message.Headers {
		if header == nil {
			continue
		}
		key := string(header.Key)
		if prop, ok := strings.CutPrefix(key, HeaderPropertyPrefix); ok {
			properties[prop] = string(header.Value)
			continue
		}
		headers[key] = string(header.Value)
	}

	pub := publication.Publication{
		ID:          headers[HeaderID],
		Topic:       headers[HeaderTopic],
		Retain:      headers[HeaderRetain] == "true",
		Payload:     message.Value,
		ContentType: headers[HeaderContentType],
		Source:      headers[HeaderSource],
		CreatedAt:   message.Timestamp,
		Properties:  properties,
	}
	if qos, err := strconv.ParseUint(headers[HeaderQoS], 10, 8); err == nil {
		pub.QoS = publication.QoS(qos)
	}

	if event, ok := parseCloudEvent(message.Value); ok {
		pub.ContentType = publication.ContentTypeCloudEvents
		properties[PropertyCloudEventType] = event.Type()
		if pub.ID == "" {
			pub.ID = event.ID()
		}
		if pub.Topic == "" {
			pub.Topic = event.Subject()
		}
		if pub.Source == "" {
			pub.Source = event.Source()
		}
		if !event.Time().IsZero() {
			pub.CreatedAt = event.Time()
		}
	}

	if pub.Topic == "" {
		pub.Topic = strings.ReplaceAll(message.Topic, ".", "/")
	}
	if pub.ID == "" {
		pub.ID = fmt.Sprintf("%s-%d-%d", message.Topic, message.Partition, message.Offset)
	}

	return pub
}

// parseCloudEvent decodes a structured-mode CloudEvent.
func parseCloudEvent(value []byte) (cloudevents.Event, bool) {
	if len(value) == 0 || value[0] != '{' {
		return cloudevents.Event{}, false
	}

	event := cloudevents.NewEvent()
	if err := json.Unmarshal(value, &event); err != nil {
		return cloudevents.Event{}, false
	}
	if err := event.Validate(); err != nil {
		return cloudevents.Event{}, false
	}
	return event, true
}
