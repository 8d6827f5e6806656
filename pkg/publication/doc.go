// Package publication defines the item type carried through the publication buffer.
//
// A Publication is an MQTT-style message: a topic, a QoS level, a retain flag,
// an opaque payload and a set of user properties. Ingress sources build
// publications, the buffer assigns them offsets, and egress sinks deliver them.
//
// # Creating Publications
//
//	pub := publication.Publication{
//	    ID:          uuid.NewString(),
//	    Topic:       "library/books/issued",
//	    QoS:         publication.AtLeastOnce,
//	    Payload:     []byte(`{"isbn": "978-0134190440"}`),
//	    ContentType: "application/json",
//	    CreatedAt:   time.Now(),
//	}
//
// # Copy Semantics
//
// Payload and Properties are reference types. Use Clone when a publication
// must outlive a handle that may be consumed destructively:
//
//	replay := pub.Clone()
//
// # Event Time
//
// EventTime returns CreatedAt, falling back to the ingest time recorded in the
// "ingested_at" property, and finally to the zero time. Storage routing uses
// it to pick date partitions.
package publication
