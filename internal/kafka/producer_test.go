package kafka

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/publication"
	"github.com/jittakal/mqttpubstore/pkg/sink"
)

func headerValue(msg *sarama.ProducerMessage, key string) (string, bool) {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value), true
		}
	}
	return "", false
}

func TestNewSaramaProducerConfig(t *testing.T) {
	tests := []struct {
		name         string
		cfg          ProducerConfig
		wantAcks     sarama.RequiredAcks
		wantOpenReqs int
		wantErr      bool
	}{
		{
			name:         "idempotent forces acks all",
			cfg:          ProducerConfig{RequiredAcks: 1, Idempotent: true, Compression: "snappy"},
			wantAcks:     sarama.WaitForAll,
			wantOpenReqs: 1,
		},
		{
			name:         "leader ack",
			cfg:          ProducerConfig{RequiredAcks: 1},
			wantAcks:     sarama.WaitForLocal,
			wantOpenReqs: 5,
		},
		{
			name:    "bad security",
			cfg:     ProducerConfig{Security: SecurityConfig{SecurityProtocol: "BOGUS"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := newSaramaProducerConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newSaramaProducerConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if config.Producer.RequiredAcks != tt.wantAcks {
				t.Errorf("RequiredAcks = %v, want %v", config.Producer.RequiredAcks, tt.wantAcks)
			}
			if config.Net.MaxOpenRequests != tt.wantOpenReqs {
				t.Errorf("MaxOpenRequests = %d, want %d", config.Net.MaxOpenRequests, tt.wantOpenReqs)
			}
			if !config.Producer.Return.Successes {
				t.Error("sync producer requires Return.Successes")
			}
		})
	}
}

func TestSink_Write(t *testing.T) {
	producer := mockProducer(t)
	metrics := newRecordingMetrics()
	s := newSink(producer, TopicMapper{Prefix: "mqtt."}, testLogger(), metrics)

	created := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	batch := sink.Batch{
		Start: 7,
		End:   8,
		Publications: []publication.Publication{
			{
				ID:          "p1",
				Topic:       "library/books/issued",
				QoS:         publication.AtLeastOnce,
				Retain:      true,
				Payload:     []byte("one"),
				ContentType: "text/plain",
				Properties:  map[string]string{"member": "m-1"},
				CreatedAt:   created,
			},
			{ID: "p2", Topic: "library/books/returned", Payload: []byte("two")},
		},
	}

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "mqtt.library.books.issued" {
			return fmt.Errorf("topic = %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "p1" {
			return fmt.Errorf("key = %s", key)
		}
		checks := map[string]string{
			HeaderTopic:                     "library/books/issued",
			HeaderQoS:                       "1",
			HeaderRetain:                    "true",
			HeaderOffset:                    "7",
			HeaderContentType:               "text/plain",
			HeaderPropertyPrefix + "member": "m-1",
		}
		for k, want := range checks {
			if got, _ := headerValue(msg, k); got != want {
				return fmt.Errorf("header %s = %q, want %q", k, got, want)
			}
		}
		if !msg.Timestamp.Equal(created) {
			return fmt.Errorf("timestamp = %v", msg.Timestamp)
		}
		return nil
	})
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if got, _ := headerValue(msg, HeaderOffset); got != "8" {
			return fmt.Errorf("offset header = %s, want 8", got)
		}
		if _, ok := headerValue(msg, HeaderContentType); ok {
			return fmt.Errorf("empty content type should not be sent")
		}
		return nil
	})

	if err := s.Write(context.Background(), batch); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if metrics.produced["success"] != 2 {
		t.Errorf("produced success = %d, want 2", metrics.produced["success"])
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestSink_WriteFailure(t *testing.T) {
	producer := mockProducer(t)
	metrics := newRecordingMetrics()
	s := newSink(producer, TopicMapper{Topic: "publications"}, testLogger(), metrics)

	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	batch := sink.Batch{Start: 0, End: 1, Publications: []publication.Publication{
		{ID: "a", Topic: "t"},
		{ID: "b", Topic: "t"},
	}}

	err := s.Write(context.Background(), batch)
	var sinkErr *errors.SinkError
	if !stderrors.As(err, &sinkErr) || sinkErr.Operation != "send" {
		t.Fatalf("Write() error = %v, want send SinkError", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("send failures should be retryable")
	}
	if metrics.produced["error"] == 0 {
		t.Error("failed sends should be counted")
	}

	s.Close()
}

func TestSink_EmptyAndClosed(t *testing.T) {
	producer := mockProducer(t)
	s := newSink(producer, TopicMapper{Prefix: "mqtt."}, testLogger(), nil)

	if err := s.Write(context.Background(), sink.Batch{}); err != nil {
		t.Errorf("Write(empty) error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch := sink.Batch{Publications: []publication.Publication{{ID: "a", Topic: "t"}}}
	if err := s.Write(ctx, batch); !stderrors.Is(err, context.Canceled) {
		t.Errorf("Write(canceled) error = %v, want context.Canceled", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := s.Write(context.Background(), batch); !stderrors.Is(err, errors.ErrSinkClosed) {
		t.Errorf("Write() after Close error = %v, want ErrSinkClosed", err)
	}
	if s.Name() != "kafka" {
		t.Errorf("Name() = %s, want kafka", s.Name())
	}
}
