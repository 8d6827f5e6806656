package validator

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/publication"
)

func validPublication() publication.Publication {
	return publication.Publication{
		ID:        "pub-1",
		Topic:     "library/books/issued",
		QoS:       publication.AtLeastOnce,
		Payload:   []byte(`{"isbn":"978-0134190440"}`),
		CreatedAt: time.Now(),
	}
}

func cloudEventPayload(t *testing.T, id string) []byte {
	t.Helper()
	event := cloudevents.NewEvent()
	event.SetID(id)
	event.SetSource("urn:test")
	event.SetType("library.book.issued")
	if err := event.SetData(cloudevents.ApplicationJSON, map[string]string{"isbn": "1"}); err != nil {
		t.Fatalf("SetData() error = %v", err)
	}
	data, err := event.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	return data
}

func TestNewPublicationValidator(t *testing.T) {
	v := NewPublicationValidator(1024)
	if v == nil {
		t.Fatal("expected non-nil validator")
	}
}

func TestPublicationValidator_ValidateSuccess(t *testing.T) {
	v := NewPublicationValidator(1024)
	if err := v.Validate(validPublication()); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPublicationValidator_ValidateErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *publication.Publication)
		wantField string
	}{
		{"missing id", func(p *publication.Publication) { p.ID = "" }, "id"},
		{"missing topic", func(p *publication.Publication) { p.Topic = "" }, "topic"},
		{"single level wildcard", func(p *publication.Publication) { p.Topic = "library/+/issued" }, "topic"},
		{"multi level wildcard", func(p *publication.Publication) { p.Topic = "library/#" }, "topic"},
		{"nul in topic", func(p *publication.Publication) { p.Topic = "library/\x00" }, "topic"},
		{"invalid utf8", func(p *publication.Publication) { p.Topic = "library/\xff" }, "topic"},
		{"long topic", func(p *publication.Publication) { p.Topic = strings.Repeat("a", MaxTopicLength+1) }, "topic"},
		{"invalid qos", func(p *publication.Publication) { p.QoS = 3 }, "qos"},
		{"oversized payload", func(p *publication.Publication) { p.Payload = make([]byte, 2048) }, "payload"},
		{
			name: "malformed cloudevent",
			mutate: func(p *publication.Publication) {
				p.ContentType = publication.ContentTypeCloudEvents
				p.Payload = []byte("not json")
			},
			wantField: "payload",
		},
		{
			name: "cloudevent missing source",
			mutate: func(p *publication.Publication) {
				p.ContentType = publication.ContentTypeCloudEvents
				p.Payload = []byte(`{"specversion":"1.0","id":"1","type":"t"}`)
			},
			wantField: "payload",
		},
	}

	v := NewPublicationValidator(1024)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPublication()
			tt.mutate(&p)

			err := v.Validate(p)
			var validationErr *errors.ValidationError
			if !stderrors.As(err, &validationErr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if validationErr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", validationErr.Field, tt.wantField)
			}
			if !stderrors.Is(err, errors.ErrInvalidPublication) {
				t.Error("error should match ErrInvalidPublication")
			}
		})
	}
}

func TestPublicationValidator_CloudEventPayload(t *testing.T) {
	v := NewPublicationValidator(0)
	p := validPublication()
	p.ContentType = publication.ContentTypeCloudEvents
	p.Payload = cloudEventPayload(t, "ce-1")

	if err := v.Validate(p); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPublicationValidator_NoPayloadLimit(t *testing.T) {
	v := NewPublicationValidator(0)
	p := validPublication()
	p.Payload = make([]byte, 10*1024*1024)

	if err := v.Validate(p); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
