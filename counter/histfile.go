package counter

import (
	"context"

	"github.com/kmtricks-go/kmtricks/format"
)

// WriteHistFile persists a sample's histogram to its *.hist file
// (spec §4.11: "histograms/<sample_id>.hist").
func WriteHistFile(ctx context.Context, path, sampleID string, k int, hist *Histogram) error {
	hdr := format.HistHeader{SampleID: sampleID, K: k}
	w, err := format.Create(ctx, path, format.KindHist, hdr, false)
	if err != nil {
		return err
	}
	buf := make([]byte, hdr.RecordSize())
	hist.Write(buf)
	if err := w.WriteRecord(buf); err != nil {
		return err
	}
	return w.Close(ctx)
}
