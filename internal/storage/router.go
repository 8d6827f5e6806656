// Package storage implements archive storage for publication batches.
package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jittakal/mqttpubstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Router = (*DefaultRouter)(nil)

// DefaultRouter implements Hive-style partitioning for storage paths.
type DefaultRouter struct {
	basePath string
}

// NewRouter creates a new storage router rooted at basePath.
func NewRouter(basePath string) *DefaultRouter {
	return &DefaultRouter{
		basePath: strings.Trim(basePath, "/"),
	}
}

// Route returns the storage directory for a topic at the given event time.
// Format: basePath/topic=<topic>/dt=YYYY-MM-DD/hr=HH/
// MQTT topic levels are joined with dots so one topic maps to one directory.
func (r *DefaultRouter) Route(topic string, eventTime time.Time) string {
	t := eventTime.UTC()

	return path.Join(
		r.basePath,
		"topic="+SanitizeTopic(topic),
		"dt="+t.Format("2006-01-02"),
		"hr="+t.Format("15"),
	) + "/"
}

// ObjectName returns the file name for the batch covering offsets start..end.
// Names are zero padded so they sort in offset order.
func (r *DefaultRouter) ObjectName(start, end uint64, extension string) string {
	return fmt.Sprintf("batch_%020d-%020d%s", start, end, extension)
}

// SanitizeTopic converts an MQTT topic into a single path segment.
func SanitizeTopic(topic string) string {
	topic = strings.Trim(topic, "/")
	if topic == "" {
		return "_"
	}

	var b strings.Builder
	b.Grow(len(topic))
	for _, ch := range topic {
		switch {
		case ch == '/':
			b.WriteByte('.')
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '-', ch == '_', ch == '.':
			b.WriteRune(ch)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
