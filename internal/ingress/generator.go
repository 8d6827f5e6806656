// Package ingress feeds publications into the publication buffer.
package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/jaswdr/faker"
	"golang.org/x/time/rate"

	"github.com/jittakal/mqttpubstore/pkg/publication"
	"github.com/jittakal/mqttpubstore/pkg/source"
)

// Ensure implementation satisfies interface at compile time.
var _ source.Source = (*Generator)(nil)

// PropertyEventType carries the CloudEvent type of generated publications.
const PropertyEventType = "ce_type"

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	// Interval between publications. Zero or negative means unpaced.
	Interval time.Duration
	Burst    int
	// Count stops the generator after that many publications. Zero is unbounded.
	Count       int
	TopicPrefix string
	QoS         publication.QoS
	EventSource string
}

// Generator produces library CloudEvents wrapped as MQTT publications.
type Generator struct {
	config   GeneratorConfig
	faker    faker.Faker
	limiter  *rate.Limiter
	logger   *slog.Logger
	produced atomic.Int64
}

// NewGenerator creates a new publication generator.
func NewGenerator(cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.EventSource == "" {
		cfg.EventSource = DefaultEventSource
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	return &Generator{
		config:  cfg,
		faker:   faker.New(),
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger,
	}
}

// Name returns "generator".
func (g *Generator) Name() string {
	return "generator"
}

// Produced returns the number of publications emitted so far.
func (g *Generator) Produced() int64 {
	return g.produced.Load()
}

// Run emits publications until ctx is done or Count is reached.
// Rejected publications are logged and count towards Count.
func (g *Generator) Run(ctx context.Context, emit source.Emit) error {
	g.logger.Info("generator started",
		"interval", g.config.Interval,
		"burst", g.config.Burst,
		"count", g.config.Count,
		"topic_prefix", g.config.TopicPrefix,
	)

	for {
		if g.config.Count > 0 && g.produced.Load() >= int64(g.config.Count) {
			g.logger.Info("generator finished", "produced", g.produced.Load())
			return nil
		}

		if err := g.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rate limiter: %w", err)
		}

		pub, err := g.Next()
		if err != nil {
			return err
		}

		if err := emit(ctx, pub); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			g.logger.Warn("generated publication rejected", "id", pub.ID, "error", err)
		}
		g.produced.Add(1)
	}
}

// Close does nothing; the generator holds no resources.
func (g *Generator) Close() error {
	return nil
}

// Next builds one publication holding a random book issued or returned event.
func (g *Generator) Next() (publication.Publication, error) {
	var (
		event cloudevents.Event
		topic string
	)
	if g.faker.IntBetween(0, 1) == 0 {
		event, topic = g.bookIssuedEvent(), TopicBookIssued
	} else {
		event, topic = g.bookReturnedEvent(), TopicBookReturned
	}
	if err := event.Validate(); err != nil {
		return publication.Publication{}, fmt.Errorf("invalid generated event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return publication.Publication{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return publication.Publication{
		ID:          event.ID(),
		Topic:       g.config.TopicPrefix + "/" + topic,
		QoS:         g.config.QoS,
		Payload:     payload,
		ContentType: publication.ContentTypeCloudEvents,
		Source:      event.Source(),
		CreatedAt:   event.Time(),
		Properties:  map[string]string{PropertyEventType: event.Type()},
	}, nil
}

func (g *Generator) newEvent(eventType string) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetSpecVersion(cloudevents.VersionV1)
	event.SetID(uuid.New().String())
	event.SetType(eventType)
	event.SetSource(g.config.EventSource)
	event.SetTime(time.Now().UTC())
	return event
}

func (g *Generator) bookIssuedEvent() cloudevents.Event {
	event := g.newEvent(EventTypeBookIssued)
	now := event.Time()

	data := BookIssuedData{
		BookID:      g.bookID(),
		Title:       g.faker.Lorem().Sentence(5),
		ISBN:        g.isbn(),
		Author:      g.faker.Person().Name(),
		Category:    categories[g.faker.IntBetween(0, len(categories)-1)],
		MemberID:    g.memberID(),
		MemberName:  g.faker.Person().Name(),
		MemberEmail: g.faker.Internet().Email(),
		IssueDate:   now,
		DueDate:     now.Add(14 * 24 * time.Hour),
		LibraryID:   g.libraryID(),
		BranchName:  g.faker.Address().City() + " Branch",
	}

	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		g.logger.Error("failed to set event data", "error", err)
	}
	return event
}

func (g *Generator) bookReturnedEvent() cloudevents.Event {
	event := g.newEvent(EventTypeBookReturned)
	returnDate := event.Time()
	issueDate := returnDate.Add(-time.Duration(g.faker.IntBetween(7, 30)) * 24 * time.Hour)
	dueDate := issueDate.Add(14 * 24 * time.Hour)

	lateDays := 0
	if returnDate.After(dueDate) {
		lateDays = int(returnDate.Sub(dueDate).Hours() / 24)
	}

	data := BookReturnedData{
		BookID:        g.bookID(),
		Title:         g.faker.Lorem().Sentence(5),
		ISBN:          g.isbn(),
		MemberID:      g.memberID(),
		MemberName:    g.faker.Person().Name(),
		IssueDate:     issueDate,
		ReturnDate:    returnDate,
		DueDate:       dueDate,
		IsLate:        returnDate.After(dueDate),
		LateDays:      lateDays,
		LateFeeAmount: float64(lateDays) * 0.50,
		LibraryID:     g.libraryID(),
		BranchName:    g.faker.Address().City() + " Branch",
		Condition:     g.condition(),
	}

	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		g.logger.Error("failed to set event data", "error", err)
	}
	return event
}

func (g *Generator) bookID() string {
	return "B" + g.faker.UUID().V4()[0:8]
}

func (g *Generator) memberID() string {
	return "M" + g.faker.UUID().V4()[0:8]
}

func (g *Generator) libraryID() string {
	return "LIB" + g.faker.UUID().V4()[0:6]
}

func (g *Generator) isbn() string {
	return "978-" + g.faker.RandomStringWithLength(10)
}

// condition is good 70%, fair 25% and damaged 5% of the time.
func (g *Generator) condition() string {
	n := g.faker.IntBetween(1, 100)
	switch {
	case n <= 70:
		return "good"
	case n <= 95:
		return "fair"
	default:
		return "damaged"
	}
}
