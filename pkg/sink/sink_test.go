package sink

import (
	"testing"

	"github.com/jittakal/mqttpubstore/pkg/publication"
)

func TestBatch_Offset(t *testing.T) {
	pubs := make([]publication.Publication, 3)

	tests := []struct {
		name  string
		batch Batch
		want  []uint64
	}{
		{name: "contiguous", batch: Batch{Start: 10, End: 12, Publications: pubs}, want: []uint64{10, 11, 12}},
		{name: "explicit", batch: Batch{Start: 10, End: 15, Publications: pubs, Offsets: []uint64{10, 13, 15}}, want: []uint64{10, 13, 15}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.batch.Len() != len(tt.want) {
				t.Fatalf("Len() = %d", tt.batch.Len())
			}
			for i, want := range tt.want {
				if got := tt.batch.Offset(i); got != want {
					t.Errorf("Offset(%d) = %d, want %d", i, got, want)
				}
			}
		})
	}
}
