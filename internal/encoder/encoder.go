package encoder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jittakal/mqttpubstore/pkg/encoder"
	"github.com/jittakal/mqttpubstore/pkg/publication"
)

// countingWriter counts bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// statsFor builds stats for records with the byte count of the encoded output.
func statsFor(records []encoder.Record, written int64) *publication.Stats {
	pubs := make([]publication.Publication, len(records))
	for i, r := range records {
		pubs[i] = r.Publication
	}
	stats := publication.Summarize(pubs)
	stats.SizeBytes = written
	return &stats
}

// propertiesJSON serializes user properties, or returns nil when there are none.
func propertiesJSON(props map[string]string) (*string, error) {
	if len(props) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	s := string(data)
	return &s, nil
}
