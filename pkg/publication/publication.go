// Package publication defines the publication type and its metadata.
package publication

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// QoS is the MQTT delivery guarantee requested by the publisher.
type QoS byte

const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
	ExactlyOnce QoS = 2
)

// String returns the numeric QoS level as text.
func (q QoS) String() string {
	return fmt.Sprintf("%d", byte(q))
}

// Valid reports whether q is one of the three MQTT QoS levels.
func (q QoS) Valid() bool {
	return q <= ExactlyOnce
}

// PropertyIngestedAt is set by ingress when a publication enters the buffer.
const PropertyIngestedAt = "ingested_at"

// ContentTypeCloudEvents marks a payload holding a structured-mode CloudEvent.
const ContentTypeCloudEvents = "application/cloudevents+json"

// Publication is a single message flowing through the buffer.
type Publication struct {
	ID          string
	Topic       string
	QoS         QoS
	Retain      bool
	Payload     []byte
	ContentType string
	Properties  map[string]string
	Source      string
	CreatedAt   time.Time
}

// Clone returns a deep copy of the publication.
func (p Publication) Clone() Publication {
	c := p
	c.Payload = slices.Clone(p.Payload)
	c.Properties = maps.Clone(p.Properties)
	return c
}

// Size estimates the in-memory footprint of the publication in bytes.
func (p Publication) Size() int {
	size := len(p.ID) + len(p.Topic) + len(p.Payload) + len(p.ContentType) + len(p.Source)
	for k, v := range p.Properties {
		size += len(k) + len(v)
	}
	// fixed fields
	size += 32
	return size
}

// EventTime returns the time the publication was created.
func (p Publication) EventTime() time.Time {
	if !p.CreatedAt.IsZero() {
		return p.CreatedAt
	}
	if v, ok := p.Properties[PropertyIngestedAt]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// TopicLevels splits the topic on the MQTT level separator.
func (p Publication) TopicLevels() []string {
	if p.Topic == "" {
		return nil
	}
	return strings.Split(p.Topic, "/")
}

// Property returns a user property and whether it was present.
func (p Publication) Property(key string) (string, bool) {
	v, ok := p.Properties[key]
	return v, ok
}

// WithProperty returns a copy of p with key set to value.
// The receiver's property map is never modified.
func (p Publication) WithProperty(key, value string) Publication {
	props := make(map[string]string, len(p.Properties)+1)
	maps.Copy(props, p.Properties)
	props[key] = value
	p.Properties = props
	return p
}

// Stats summarizes a group of publications.
type Stats struct {
	Count          int
	SizeBytes      int64
	FirstEventTime time.Time
	LastEventTime  time.Time
}

// Summarize computes Stats over pubs.
func Summarize(pubs []Publication) Stats {
	var s Stats
	for _, p := range pubs {
		s.Count++
		s.SizeBytes += int64(p.Size())
		t := p.EventTime()
		if t.IsZero() {
			continue
		}
		if s.FirstEventTime.IsZero() || t.Before(s.FirstEventTime) {
			s.FirstEventTime = t
		}
		if t.After(s.LastEventTime) {
			s.LastEventTime = t
		}
	}
	return s
}
