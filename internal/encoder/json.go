package encoder

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jittakal/mqttpubstore/pkg/encoder"
	"github.com/jittakal/mqttpubstore/pkg/publication"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*JSONEncoder)(nil)

// PublicationJSON is one line of newline-delimited JSON output.
type PublicationJSON struct {
	BufferOffset uint64            `json:"buffer_offset"`
	ID           string            `json:"id"`
	Topic        string            `json:"topic"`
	QoS          int               `json:"qos"`
	Retain       bool              `json:"retain"`
	Payload      []byte            `json:"payload"`
	ContentType  string            `json:"content_type,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
	Source       string            `json:"source,omitempty"`
	CreatedAt    *time.Time        `json:"created_at,omitempty"`
	ArchivedAt   time.Time         `json:"archived_at"`
}

// JSONEncoder writes newline-delimited JSON, optionally gzip compressed.
type JSONEncoder struct {
	compression string
}

// NewJSONEncoder creates a new NDJSON encoder.
func NewJSONEncoder(compression string) *JSONEncoder {
	return &JSONEncoder{compression: compression}
}

func (e *JSONEncoder) gzipped() bool {
	return strings.EqualFold(e.compression, "gzip")
}

// Encode writes one JSON object per record.
func (e *JSONEncoder) Encode(w io.Writer, records []encoder.Record) (*publication.Stats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	counter := &countingWriter{w: w}
	var sink io.Writer = counter

	var gzipWriter *gzip.Writer
	if e.gzipped() {
		gzipWriter = gzip.NewWriter(counter)
		sink = gzipWriter
	}

	buffered := bufio.NewWriter(sink)
	enc := json.NewEncoder(buffered)
	archivedAt := time.Now().UTC()

	for _, record := range records {
		p := record.Publication
		line := PublicationJSON{
			BufferOffset: record.Offset,
			ID:           p.ID,
			Topic:        p.Topic,
			QoS:          int(p.QoS),
			Retain:       p.Retain,
			Payload:      p.Payload,
			ContentType:  p.ContentType,
			Properties:   p.Properties,
			Source:       p.Source,
			ArchivedAt:   archivedAt,
		}
		if !p.CreatedAt.IsZero() {
			createdAt := p.CreatedAt
			line.CreatedAt = &createdAt
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("failed to write record: %w", err)
		}
	}

	if err := buffered.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush records: %w", err)
	}
	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}

	return statsFor(records, counter.n), nil
}

// Format returns the file format.
func (e *JSONEncoder) Format() encoder.Format {
	return encoder.FormatJSON
}

// FileExtension returns the file extension.
func (e *JSONEncoder) FileExtension() string {
	if e.gzipped() {
		return ".ndjson.gz"
	}
	return ".ndjson"
}

// ContentType returns the MIME type of the encoded output.
func (e *JSONEncoder) ContentType() string {
	if e.gzipped() {
		return "application/gzip"
	}
	return "application/x-ndjson"
}
