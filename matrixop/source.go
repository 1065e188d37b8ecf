package matrixop

import (
	"context"

	"github.com/kmtricks-go/kmtricks/format"
)

// Source reads one run's matrix partition file as a stream of
// (key, vals) rows, where vals is always a []uint64 even for PA rows
// (presence becomes 1/0) — this lets Merge share one loop across the
// count and PA/hash variants, specializing only at decode/encode time
// (spec §4.8: "the same algorithm handles count and PA variants by
// specialization over the record type").
type Source struct {
	r         *format.Reader
	hashMode  bool
	isPA      bool
	kmerSlots int
	n         int
	width     format.CountWidth
	buf       []byte

	// Pos is this source's column offset in the merged row.
	Pos int
}

// OpenSource opens path as kind. It does not compare the file's header
// with the given parameters; kmerSlots, n and width are used as given
// to decode rows. n is the sample count this source contributes;
// pos is the column offset it should land at in the merged row.
func OpenSource(ctx context.Context, path string, kind format.Kind, hashMode, isPA bool, kmerSlots, n, pos int, width format.CountWidth) (*Source, error) {
	var hdr interface{}
	switch {
	case !hashMode && !isPA:
		hdr = &format.MatrixCountHeader{}
	case hashMode && !isPA:
		hdr = &format.MatrixHashCountHeader{}
	case !hashMode && isPA:
		hdr = &format.PAMatrixHeader{}
	default:
		hdr = &format.PAMatrixHashHeader{}
	}
	r, err := format.Open(ctx, path, kind, hdr)
	if err != nil {
		return nil, err
	}
	return &Source{r: r, hashMode: hashMode, isPA: isPA, kmerSlots: kmerSlots, n: n, width: width, Pos: pos}, nil
}

// Next returns the next row's internal key and its sample values, or
// ok=false at EOF.
func (s *Source) Next() (key string, vals []uint64, ok bool, err error) {
	ok, err = s.r.ReadRecord(&s.buf)
	if err != nil || !ok {
		return "", nil, false, err
	}
	switch {
	case !s.hashMode && !s.isPA:
		km, counts := format.UnmarshalMatrixCountRow(s.buf, s.kmerSlots, s.n, s.width)
		return keyBytes(km), counts, true, nil
	case s.hashMode && !s.isPA:
		h, counts := unmarshalHashMatrixRow(s.buf, s.n, s.width)
		return hashKeyBytes(h), counts, true, nil
	case !s.hashMode && s.isPA:
		km, present := format.UnmarshalPARow(s.buf, s.kmerSlots, s.n)
		return keyBytes(km), presentToCounts(present), true, nil
	default:
		h, present := unmarshalHashPARow(s.buf, s.n)
		return hashKeyBytes(h), presentToCounts(present), true, nil
	}
}

// Close closes the underlying file.
func (s *Source) Close(ctx context.Context) error { return s.r.Close(ctx) }

func presentToCounts(present []bool) []uint64 {
	vals := make([]uint64, len(present))
	for i, p := range present {
		if p {
			vals[i] = 1
		}
	}
	return vals
}

// unmarshalHashMatrixRow and unmarshalHashPARow fill the gap
// format.record.go leaves for hash-indexed matrix rows (it only
// defines the kmer-indexed helpers directly); they follow the exact
// same on-disk layout, key-first, little-endian, as their kmer-indexed
// counterparts, matching merger/sink.go's marshalHashRow.
func unmarshalHashMatrixRow(rec []byte, n int, width format.CountWidth) (uint64, []uint64) {
	h := leUint64(rec)
	counts := make([]uint64, n)
	off := 8
	for i := range counts {
		counts[i] = width.GetCount(rec[off:])
		off += width.Bytes()
	}
	return h, counts
}

func unmarshalHashPARow(rec []byte, n int) (uint64, []bool) {
	h := leUint64(rec)
	present := make([]bool, n)
	off := 8
	for i := range present {
		present[i] = rec[off+i/8]&(1<<uint(i%8)) != 0
	}
	return h, present
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << uint(8*i)
	}
	return v
}
