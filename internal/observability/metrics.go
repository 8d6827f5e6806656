package observability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Buffer metrics
	PublicationsPushed prometheus.Counter
	QueueDepth         prometheus.Gauge
	ConsumerWaits      prometheus.Counter
	Batches            *prometheus.CounterVec
	BatchSize          *prometheus.HistogramVec
	BatchCommits       prometheus.Counter
	BatchReleases      prometheus.Counter
	LeaseDuration      prometheus.Histogram

	// Ingress metrics
	PublicationsIngested *prometheus.CounterVec

	// Egress metrics
	EgressBatches     *prometheus.CounterVec
	SinkWriteDuration *prometheus.HistogramVec
	SinkRetries       *prometheus.CounterVec
	DeadLetters       *prometheus.CounterVec

	// Kafka metrics
	MessagesConsumed   *prometheus.CounterVec
	MessagesProduced   *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec

	// Storage metrics
	ObjectsWritten       *prometheus.CounterVec
	StorageWriteDuration *prometheus.HistogramVec
	ObjectSize           *prometheus.HistogramVec
	StorageErrors        *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Buffer metrics
		PublicationsPushed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "buffer_publications_pushed_total",
				Help: "Total number of publications pushed into the buffer",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "buffer_queue_depth",
				Help: "Number of queued publications not yet drained into a batch",
			},
		),
		ConsumerWaits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "buffer_consumer_waits_total",
				Help: "Total number of times a consumer waited on an empty queue",
			},
		),
		Batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buffer_batches_total",
				Help: "Total number of batch handles issued",
			},
			[]string{"outcome"},
		),
		BatchSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buffer_batch_size",
				Help:    "Number of publications per issued batch",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"outcome"},
		),
		BatchCommits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "buffer_batch_commits_total",
				Help: "Total number of committed batches",
			},
		),
		BatchReleases: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "buffer_batch_releases_total",
				Help: "Total number of batches released without commit",
			},
		),
		LeaseDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "buffer_lease_duration_seconds",
				Help:    "Time from batch formation to commit",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0, 30.0},
			},
		),

		// Ingress metrics
		PublicationsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingress_publications_total",
				Help: "Total number of publications received from ingress sources",
			},
			[]string{"source", "status"},
		),

		// Egress metrics
		EgressBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "egress_batches_total",
				Help: "Total number of batches handled by egress workers",
			},
			[]string{"worker", "status"},
		),
		SinkWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "egress_sink_write_duration_seconds",
				Help:    "Duration of sink write attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sink"},
		),
		SinkRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "egress_sink_retries_total",
				Help: "Total number of sink write retries",
			},
			[]string{"sink"},
		),
		DeadLetters: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "egress_dead_letters_total",
				Help: "Total number of publications sent to the dead letter queue",
			},
			[]string{"reason"},
		),

		// Kafka metrics
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		MessagesProduced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_produced_total",
				Help: "Total number of messages produced to Kafka",
			},
			[]string{"topic", "status"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_rebalance_duration_seconds",
				Help:    "Duration of consumer group rebalances",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),

		// Storage metrics
		ObjectsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_objects_written_total",
				Help: "Total number of objects written to storage",
			},
			[]string{"backend", "format", "status"},
		),
		StorageWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_write_duration_seconds",
				Help:    "Duration of complete storage write operations including encoding",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		ObjectSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_object_size_bytes",
				Help:    "Size of objects written to storage",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
			},
			[]string{"backend", "format"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "error_type"},
		),
	}
}

// IncPushed increments the pushed publications counter.
func (m *Metrics) IncPushed() {
	m.PublicationsPushed.Inc()
}

// SetQueueDepth sets the queue depth gauge.
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// IncWaits increments the consumer waits counter.
func (m *Metrics) IncWaits() {
	m.ConsumerWaits.Inc()
}

// ObserveBatch records an issued batch handle.
func (m *Metrics) ObserveBatch(outcome string, size int) {
	m.Batches.WithLabelValues(outcome).Inc()
	m.BatchSize.WithLabelValues(outcome).Observe(float64(size))
}

// IncCommits increments the batch commits counter.
func (m *Metrics) IncCommits() {
	m.BatchCommits.Inc()
}

// IncReleases increments the batch releases counter.
func (m *Metrics) IncReleases() {
	m.BatchReleases.Inc()
}

// ObserveLeaseDuration observes how long a batch was outstanding.
func (m *Metrics) ObserveLeaseDuration(d time.Duration) {
	m.LeaseDuration.Observe(d.Seconds())
}

// IncIngested increments the ingested publications counter.
func (m *Metrics) IncIngested(source, status string) {
	m.PublicationsIngested.WithLabelValues(source, status).Inc()
}

// IncEgressBatches increments the egress batches counter.
func (m *Metrics) IncEgressBatches(worker int, status string) {
	m.EgressBatches.WithLabelValues(strconv.Itoa(worker), status).Inc()
}

// ObserveSinkWrite observes the duration of one sink write attempt.
func (m *Metrics) ObserveSinkWrite(sink string, duration float64) {
	m.SinkWriteDuration.WithLabelValues(sink).Observe(duration)
}

// IncSinkRetries increments the sink retries counter.
func (m *Metrics) IncSinkRetries(sink string) {
	m.SinkRetries.WithLabelValues(sink).Inc()
}

// IncDeadLetters increments the dead letters counter.
func (m *Metrics) IncDeadLetters(reason string) {
	m.DeadLetters.WithLabelValues(reason).Inc()
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// IncMessagesProduced increments messages produced counter.
func (m *Metrics) IncMessagesProduced(topic, status string) {
	m.MessagesProduced.WithLabelValues(topic, status).Inc()
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// IncObjectsWritten increments objects written counter.
func (m *Metrics) IncObjectsWritten(backend, format, status string) {
	m.ObjectsWritten.WithLabelValues(backend, format, status).Inc()
}

// ObserveObjectSize observes object size.
func (m *Metrics) ObserveObjectSize(backend, format string, size float64) {
	m.ObjectSize.WithLabelValues(backend, format).Observe(size)
}

// ObserveStorageWriteDuration observes storage write duration.
func (m *Metrics) ObserveStorageWriteDuration(backend string, duration float64) {
	m.StorageWriteDuration.WithLabelValues(backend).Observe(duration)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}
