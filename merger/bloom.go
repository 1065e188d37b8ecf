package merger

import (
	"context"

	"github.com/kmtricks-go/kmtricks/format"
)

// BloomVectorSink implements the hash-mode "per-sample Bloom vector"
// output (spec §4.7): one row per hash value in [lower, upper], each
// row a packed presence bit vector over samples; rows the merge never
// visits (no sample held that hash) are written as all-zero.
type BloomVectorSink struct {
	w       *format.Writer
	n       int
	lower   uint64
	upper   uint64
	current uint64
}

// NewBloomVectorSink opens the vector file for hash range
// [lower, upper] inclusive, covering n samples.
func NewBloomVectorSink(ctx context.Context, path string, lower, upper uint64, n int, id string, partition int) (*BloomVectorSink, error) {
	hdr := format.VectorHeader{Bits: n, ID: id, Partition: partition, LowerHash: lower, Count: upper - lower + 1}
	w, err := format.Create(ctx, path, format.KindVector, hdr, true)
	if err != nil {
		return nil, err
	}
	return &BloomVectorSink{w: w, n: n, lower: lower, upper: upper, current: lower}, nil
}

func packPresence(c []uint64) []byte {
	nbytes := (len(c) + 7) / 8
	rec := make([]byte, nbytes)
	for i, v := range c {
		if v > 0 {
			rec[i/8] |= 1 << uint(i%8)
		}
	}
	return rec
}

// writeZeroRows fills rows [s.current, upTo) with all-zero vectors.
func (s *BloomVectorSink) writeZeroRows(upTo uint64) error {
	zero := make([]byte, (s.n+7)/8)
	for s.current < upTo {
		if err := s.w.WriteRecord(zero); err != nil {
			return err
		}
		s.current++
	}
	return nil
}

// Emit implements Sink: it is only ever called with keys in
// ascending hash order (merge.Run's contract), so it can catch up
// with zero rows before writing the real one.
func (s *BloomVectorSink) Emit(key string, c []uint64) error {
	h := keyToHash(key)
	if err := s.writeZeroRows(h); err != nil {
		return err
	}
	if err := s.w.WriteRecord(packPresence(c)); err != nil {
		return err
	}
	s.current = h + 1
	return nil
}

// Close drains any remaining zero rows up to upper (inclusive) and
// closes the file, satisfying the invariant "rows written equals
// upper-lower+1".
func (s *BloomVectorSink) Close() error {
	if err := s.writeZeroRows(s.upper + 1); err != nil {
		return err
	}
	return s.w.Close(context.Background())
}

// PackedCountSink is BloomVectorSink's count-carrying twin: each row
// packs w-bit saturating counts per sample instead of presence bits
// (spec §4.7: "same as Bloom but with w-bit packed counts per
// sample").
type PackedCountSink struct {
	w       *format.Writer
	n       int
	bits    int
	lower   uint64
	upper   uint64
	current uint64
}

// NewPackedCountSink opens the packed-count vector file; bits is the
// per-sample count width (e.g. 4 or 8).
func NewPackedCountSink(ctx context.Context, path string, lower, upper uint64, n, bits int, id string, partition int) (*PackedCountSink, error) {
	hdr := format.VectorHeader{Bits: n * bits, ID: id, Partition: partition, LowerHash: lower, Count: upper - lower + 1}
	w, err := format.Create(ctx, path, format.KindVector, hdr, true)
	if err != nil {
		return nil, err
	}
	return &PackedCountSink{w: w, n: n, bits: bits, lower: lower, upper: upper, current: lower}, nil
}

func (s *PackedCountSink) rowBytes() int { return (s.n*s.bits + 7) / 8 }

func (s *PackedCountSink) packRow(c []uint64) []byte {
	rec := make([]byte, s.rowBytes())
	max := uint64(1)<<uint(s.bits) - 1
	for i, v := range c {
		if v > max {
			v = max
		}
		bitOff := i * s.bits
		for b := 0; b < s.bits; b++ {
			if v&(1<<uint(b)) != 0 {
				pos := bitOff + b
				rec[pos/8] |= 1 << uint(pos%8)
			}
		}
	}
	return rec
}

func (s *PackedCountSink) writeZeroRows(upTo uint64) error {
	zero := make([]byte, s.rowBytes())
	for s.current < upTo {
		if err := s.w.WriteRecord(zero); err != nil {
			return err
		}
		s.current++
	}
	return nil
}

// Emit implements Sink.
func (s *PackedCountSink) Emit(key string, c []uint64) error {
	h := keyToHash(key)
	if err := s.writeZeroRows(h); err != nil {
		return err
	}
	if err := s.w.WriteRecord(s.packRow(c)); err != nil {
		return err
	}
	s.current = h + 1
	return nil
}

// Close implements Sink.
func (s *PackedCountSink) Close() error {
	if err := s.writeZeroRows(s.upper + 1); err != nil {
		return err
	}
	return s.w.Close(context.Background())
}

// TransposeBloom implements the "Transposed Bloom" output shape (spec
// §4.7): read a completed Bloom vector ((upper-lower+1) rows x N-bit
// columns), transpose it into N rows x (upper-lower+1) bits, and
// write the transposed matrix to outPath.
func TransposeBloom(ctx context.Context, inPath, outPath string) error {
	var hdr format.VectorHeader
	r, err := format.Open(ctx, inPath, format.KindVector, &hdr)
	if err != nil {
		return err
	}
	defer r.Close(ctx)

	rows := int(hdr.Count)
	cols := hdr.Bits
	bits := make([][]bool, rows)
	var buf []byte
	for i := 0; i < rows; i++ {
		ok, err := r.ReadRecord(&buf)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row := make([]bool, cols)
		for j := 0; j < cols; j++ {
			row[j] = buf[j/8]&(1<<uint(j%8)) != 0
		}
		bits[i] = row
	}

	outHdr := format.VectorHeader{Bits: rows, ID: hdr.ID, Partition: hdr.Partition, LowerHash: hdr.LowerHash, Count: uint64(cols)}
	w, err := format.Create(ctx, outPath, format.KindVector, outHdr, true)
	if err != nil {
		return err
	}
	nbytes := (rows + 7) / 8
	for j := 0; j < cols; j++ {
		rec := make([]byte, nbytes)
		for i := 0; i < rows; i++ {
			if bits[i] != nil && bits[i][j] {
				rec[i/8] |= 1 << uint(i%8)
			}
		}
		if err := w.WriteRecord(rec); err != nil {
			return err
		}
	}
	return w.Close(ctx)
}
