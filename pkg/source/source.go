// Package source defines interfaces for publication ingress.
//
// A Source produces publications from somewhere outside the process (a Kafka
// topic, a generator) and hands each one to an Emit callback, which usually
// validates it and pushes it into the publication buffer.
package source

import (
	"context"

	"github.com/jittakal/mqttpubstore/pkg/publication"
)

// Emit receives one publication from a source. A non-nil error means the
// publication was not accepted; sources decide whether to skip or stop.
type Emit func(ctx context.Context, pub publication.Publication) error

// Source produces publications until its context ends or it runs dry.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Run emits publications until ctx is done or the source is exhausted.
	// It returns nil in both cases and an error only on failure.
	Run(ctx context.Context, emit Emit) error

	// Close releases resources held by the source.
	Close() error
}
