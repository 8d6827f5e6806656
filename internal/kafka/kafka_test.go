package kafka

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

// recordingMetrics implements MetricsCollector for testing
type recordingMetrics struct {
	mu         sync.Mutex
	consumed   int
	produced   map[string]int
	rebalances int
	assigned   map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		produced: make(map[string]int),
		assigned: make(map[string]float64),
	}
}

func (m *recordingMetrics) IncMessagesConsumed(topic string, partition int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumed++
}

func (m *recordingMetrics) IncMessagesProduced(topic, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.produced[status]++
}

func (m *recordingMetrics) IncRebalances(groupID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebalances++
}

func (m *recordingMetrics) ObserveRebalanceDuration(groupID string, duration float64) {}

func (m *recordingMetrics) SetPartitionsAssigned(topic string, count float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assigned[topic] = count
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func mockProducer(t *testing.T) *mocks.SyncProducer {
	t.Helper()
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	return mocks.NewSyncProducer(t, config)
}
