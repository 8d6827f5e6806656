package egress

import (
	"context"
	"encoding/json"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/publication"
)

// Properties set by CloudEventProcessor.
const (
	PropertyEventType    = "ce_type"
	PropertyEventSource  = "ce_source"
	PropertyEventSubject = "ce_subject"
)

// Processor prepares one publication for delivery. An error removes the
// publication from its batch and sends it to the dead letter queue.
type Processor interface {
	Process(ctx context.Context, pub publication.Publication) (publication.Publication, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, pub publication.Publication) (publication.Publication, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, pub publication.Publication) (publication.Publication, error) {
	return f(ctx, pub)
}

// Passthrough delivers publications unchanged.
var Passthrough = ProcessorFunc(func(_ context.Context, pub publication.Publication) (publication.Publication, error) {
	return pub, nil
})

// CloudEventProcessor decodes structured CloudEvent payloads and copies their
// attributes into publication properties. Other publications pass through.
type CloudEventProcessor struct{}

// Process implements Processor.
func (CloudEventProcessor) Process(ctx context.Context, pub publication.Publication) (publication.Publication, error) {
	if pub.ContentType != publication.ContentTypeCloudEvents {
		return pub, nil
	}

	event := cloudevents.NewEvent()
	if err := json.Unmarshal(pub.Payload, &event); err != nil {
		return pub, &errors.ProcessingError{PublicationID: pub.ID, Topic: pub.Topic, Err: err}
	}
	if err := event.Validate(); err != nil {
		return pub, &errors.ProcessingError{PublicationID: pub.ID, Topic: pub.Topic, Err: err}
	}

	pub = pub.WithProperty(PropertyEventType, event.Type())
	pub = pub.WithProperty(PropertyEventSource, event.Source())
	if subject := event.Subject(); subject != "" {
		pub = pub.WithProperty(PropertyEventSubject, subject)
	}
	return pub, nil
}
