package encoder

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/mqttpubstore/pkg/encoder"
	"github.com/jittakal/mqttpubstore/pkg/publication"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro binary format.
// It produces OCF (Object Container File) output. "gzip" wraps the whole
// container; "deflate" and "snappy" use the OCF block codecs.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

// avroSchema returns the Avro schema for archived publications.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "PublicationRecord",
		"namespace": "com.mqtt.publication.store",
		"fields": [
			{"name": "buffer_offset", "type": "long"},
			{"name": "id", "type": "string"},
			{"name": "topic", "type": "string"},
			{"name": "qos", "type": "int"},
			{"name": "retain", "type": "boolean"},
			{"name": "payload", "type": "bytes"},
			{"name": "content_type", "type": ["null", "string"], "default": null},
			{"name": "properties", "type": {"type": "map", "values": "string"}},
			{"name": "source", "type": "string"},
			{"name": "created_at", "type": ["null", "string"], "default": null},
			{"name": "archived_at", "type": "string"}
		]
	}`
}

// ocfCompression maps the configured compression to an OCF block codec.
func (e *AvroEncoder) ocfCompression() string {
	switch strings.ToLower(e.compression) {
	case "deflate":
		return goavro.CompressionDeflateLabel
	case "snappy":
		return goavro.CompressionSnappyLabel
	default:
		return goavro.CompressionNullLabel
	}
}

func (e *AvroEncoder) gzipped() bool {
	return strings.EqualFold(e.compression, "gzip")
}

// Encode writes records to w as an Avro object container.
func (e *AvroEncoder) Encode(w io.Writer, records []encoder.Record) (*publication.Stats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	counter := &countingWriter{w: w}
	var writer io.Writer = counter

	var gzipWriter *gzip.Writer
	if e.gzipped() {
		gzipWriter = gzip.NewWriter(counter)
		writer = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               writer,
		Codec:           e.codec,
		CompressionName: e.ocfCompression(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	archivedAt := time.Now().UTC()
	for _, record := range records {
		if err := ocfWriter.Append([]interface{}{e.convertToAvroMap(record, archivedAt)}); err != nil {
			return nil, fmt.Errorf("failed to write record: %w", err)
		}
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}

	return statsFor(records, counter.n), nil
}

// convertToAvroMap converts a Record to Avro map representation.
func (e *AvroEncoder) convertToAvroMap(record encoder.Record, archivedAt time.Time) map[string]interface{} {
	p := record.Publication

	properties := make(map[string]interface{}, len(p.Properties))
	for k, v := range p.Properties {
		properties[k] = v
	}

	payload := p.Payload
	if payload == nil {
		payload = []byte{}
	}

	avroMap := map[string]interface{}{
		"buffer_offset": int64(record.Offset),
		"id":            p.ID,
		"topic":         p.Topic,
		"qos":           int32(p.QoS),
		"retain":        p.Retain,
		"payload":       payload,
		"properties":    properties,
		"source":        p.Source,
		"archived_at":   archivedAt.Format(time.RFC3339Nano),
	}

	// Nullable fields use goavro.Union
	if p.ContentType != "" {
		avroMap["content_type"] = goavro.Union("string", p.ContentType)
	} else {
		avroMap["content_type"] = nil
	}

	if !p.CreatedAt.IsZero() {
		avroMap["created_at"] = goavro.Union("string", p.CreatedAt.Format(time.RFC3339Nano))
	} else {
		avroMap["created_at"] = nil
	}

	return avroMap
}

// Format returns the file format.
func (e *AvroEncoder) Format() encoder.Format {
	return encoder.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzipped() {
		return ".avro.gz"
	}
	return ".avro"
}

// ContentType returns the MIME type of the encoded output.
func (e *AvroEncoder) ContentType() string {
	if e.gzipped() {
		return "application/gzip"
	}
	return "application/avro"
}
