// Package counter implements the partition counter (spec §4.6, C6):
// it turns one sample's per-partition super-k-mer bin into a sorted
// per-sample count stream, via one of two memory strategies.
package counter

import (
	"encoding/binary"

	"github.com/kmtricks-go/kmtricks/format"
)

// Histogram tallies, for one sample, how many distinct k-mers were
// seen at each multiplicity 1..H, saturating at H (spec §3, Entity:
// Histogram; H = format.HistSize = 255).
type Histogram [format.HistSize]uint64

// Observe records one distinct k-mer's final count.
func (h *Histogram) Observe(count uint64) {
	if count == 0 {
		return
	}
	idx := count - 1
	if idx >= format.HistSize {
		idx = format.HistSize - 1
	}
	h[idx]++
}

// Write serializes the histogram as format.HistHeader's record body
// (HistSize consecutive u64 counts), matching the *.hist file layout.
func (h *Histogram) Write(buf []byte) {
	for i, v := range h {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
}
