// Package validator provides publication validation.
package validator

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/jittakal/mqttpubstore/internal/errors"
	"github.com/jittakal/mqttpubstore/pkg/publication"
)

// MaxTopicLength is the MQTT limit on topic names in bytes.
const MaxTopicLength = 65535

// PublicationValidator validates publications against MQTT publish rules.
type PublicationValidator struct {
	maxPayloadBytes int
}

// NewPublicationValidator creates a validator. A maxPayloadBytes of 0
// disables the payload size check.
func NewPublicationValidator(maxPayloadBytes int) *PublicationValidator {
	return &PublicationValidator{maxPayloadBytes: maxPayloadBytes}
}

// Validate validates a publication.
func (v *PublicationValidator) Validate(p publication.Publication) error {
	if p.ID == "" {
		return &errors.ValidationError{
			PublicationID: p.ID,
			Field:         "id",
			Reason:        "required field is missing",
		}
	}

	if err := validateTopic(p); err != nil {
		return err
	}

	if !p.QoS.Valid() {
		return &errors.ValidationError{
			PublicationID: p.ID,
			Field:         "qos",
			Reason:        fmt.Sprintf("unsupported level: %d (supported: 0, 1, 2)", p.QoS),
		}
	}

	if v.maxPayloadBytes > 0 && len(p.Payload) > v.maxPayloadBytes {
		return &errors.ValidationError{
			PublicationID: p.ID,
			Field:         "payload",
			Reason:        fmt.Sprintf("size %d exceeds limit %d", len(p.Payload), v.maxPayloadBytes),
		}
	}

	if p.ContentType == publication.ContentTypeCloudEvents {
		return validateCloudEvent(p)
	}

	return nil
}

func validateTopic(p publication.Publication) error {
	reason := ""
	switch {
	case p.Topic == "":
		reason = "required field is missing"
	case len(p.Topic) > MaxTopicLength:
		reason = fmt.Sprintf("length %d exceeds %d bytes", len(p.Topic), MaxTopicLength)
	case !utf8.ValidString(p.Topic):
		reason = "not valid UTF-8"
	case strings.ContainsAny(p.Topic, "+#"):
		reason = "wildcards are not allowed in publish topics"
	case strings.ContainsRune(p.Topic, 0):
		reason = "contains NUL character"
	}
	if reason == "" {
		return nil
	}
	return &errors.ValidationError{
		PublicationID: p.ID,
		Field:         "topic",
		Reason:        reason,
	}
}

func validateCloudEvent(p publication.Publication) error {
	event := cloudevents.NewEvent()
	if err := json.Unmarshal(p.Payload, &event); err != nil {
		return &errors.ValidationError{
			PublicationID: p.ID,
			Field:         "payload",
			Reason:        fmt.Sprintf("malformed cloudevent: %v", err),
		}
	}
	if err := event.Validate(); err != nil {
		return &errors.ValidationError{
			PublicationID: p.ID,
			Field:         "payload",
			Reason:        fmt.Sprintf("invalid cloudevent: %v", err),
		}
	}
	return nil
}
