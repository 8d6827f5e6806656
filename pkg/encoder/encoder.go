// Package encoder defines interfaces for encoding publications to archive formats.
package encoder

import (
	"io"

	"github.com/jittakal/mqttpubstore/pkg/publication"
)

// Format represents the archive file format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatAvro    Format = "avro"
	FormatJSON    Format = "json"
)

// Record is one archived publication together with its buffer offset.
type Record struct {
	Offset      uint64
	Publication publication.Publication
}

// Records pairs pubs with consecutive offsets starting at start.
func Records(start uint64, pubs []publication.Publication) []Record {
	records := make([]Record, len(pubs))
	for i, p := range pubs {
		records[i] = Record{Offset: start + uint64(i), Publication: p}
	}
	return records
}

// Encoder encodes publications to a specific file format.
type Encoder interface {
	// Encode writes records to w and returns statistics about the written data.
	// SizeBytes in the returned stats is the number of bytes written to w.
	Encode(w io.Writer, records []Record) (*publication.Stats, error)

	// Format returns the file format this encoder produces.
	Format() Format

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string

	// ContentType returns the MIME type of the encoded output.
	ContentType() string
}
