package encoder

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/mqttpubstore/pkg/encoder"
	"github.com/jittakal/mqttpubstore/pkg/publication"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// PublicationParquet represents the Parquet schema for archived publications.
// Uses native Parquet types for Athena compatibility, including TIMESTAMP_MICROS for time fields.
type PublicationParquet struct {
	BufferOffset int64  `parquet:"buffer_offset"`
	ID           string `parquet:"id"`
	Topic        string `parquet:"topic,dict"`
	QoS          int32  `parquet:"qos"`
	Retain       bool   `parquet:"retain"`
	Payload      []byte `parquet:"payload"`

	// Optional fields use pointers for proper NULL handling
	ContentType *string    `parquet:"content_type,dict,optional"`
	Properties  *string    `parquet:"properties,optional"`
	CreatedAt   *time.Time `parquet:"created_at,timestamp(microsecond),optional"`

	Source     string    `parquet:"source,dict"`
	ArchivedAt time.Time `parquet:"archived_at,timestamp(microsecond)"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar format.
// Supports multiple compression codecs: SNAPPY (default), GZIP, LZ4, ZSTD.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes records to w as a Parquet file.
func (e *ParquetEncoder) Encode(w io.Writer, records []encoder.Record) (*publication.Stats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	archivedAt := time.Now().UTC()
	rows := make([]PublicationParquet, len(records))
	for i, record := range records {
		row, err := convertToParquetRecord(record, archivedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to convert record %d: %w", i, err)
		}
		rows[i] = row
	}

	counter := &countingWriter{w: w}
	writer := parquet.NewGenericWriter[PublicationParquet](
		counter,
		parquet.SchemaOf(new(PublicationParquet)),
		compressionCodec(e.compressionName),
		parquet.CreatedBy("mqtt-publication-store", "1.0", "0"),
	)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write records: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return statsFor(records, counter.n), nil
}

// convertToParquetRecord converts a Record to PublicationParquet with native types.
func convertToParquetRecord(record encoder.Record, archivedAt time.Time) (PublicationParquet, error) {
	p := record.Publication

	properties, err := propertiesJSON(p.Properties)
	if err != nil {
		return PublicationParquet{}, err
	}

	row := PublicationParquet{
		BufferOffset: int64(record.Offset),
		ID:           p.ID,
		Topic:        p.Topic,
		QoS:          int32(p.QoS),
		Retain:       p.Retain,
		Payload:      p.Payload,
		Properties:   properties,
		Source:       p.Source,
		ArchivedAt:   archivedAt,
	}

	if p.ContentType != "" {
		contentType := p.ContentType
		row.ContentType = &contentType
	}
	if !p.CreatedAt.IsZero() {
		createdAt := p.CreatedAt
		row.CreatedAt = &createdAt
	}

	return row, nil
}

// Format returns the file format.
func (e *ParquetEncoder) Format() encoder.Format {
	return encoder.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}

// ContentType returns the MIME type of the encoded output.
func (e *ParquetEncoder) ContentType() string {
	return "application/vnd.apache.parquet"
}
