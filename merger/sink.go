package merger

import (
	"context"

	"github.com/kmtricks-go/kmtricks/format"
)

// CountMatrixSink writes key + c[0..N-1] rows to a count-matrix
// partition file (spec §4.7: "Count matrix: write key + c[0..N-1] in
// file order").
type CountMatrixSink struct {
	w        *format.Writer
	width    format.CountWidth
	hashMode bool
}

// NewCountMatrixSink opens a fresh count-matrix (or hash/count
// variant) partition file.
func NewCountMatrixSink(ctx context.Context, path string, k, kmerSlots, nbSamples int, width format.CountWidth, hashMode bool, id string, partition int) (*CountMatrixSink, error) {
	var w *format.Writer
	var err error
	if hashMode {
		w, err = format.Create(ctx, path, format.KindMatrixHashCount, format.MatrixHashCountHeader{
			CountSlots: width.Bytes(), NbSamples: nbSamples, ID: id, Partition: partition,
		}, true)
	} else {
		w, err = format.Create(ctx, path, format.KindMatrixCount, format.MatrixCountHeader{
			K: k, KmerSlots: kmerSlots, CountSlots: width.Bytes(), NbSamples: nbSamples, ID: id, Partition: partition,
		}, true)
	}
	if err != nil {
		return nil, err
	}
	return &CountMatrixSink{w: w, width: width, hashMode: hashMode}, nil
}

// Emit implements Sink.
func (s *CountMatrixSink) Emit(key string, c []uint64) error {
	if s.hashMode {
		return s.w.WriteRecord(marshalHashRow(keyToHash(key), c, s.width))
	}
	return s.w.WriteRecord(format.MarshalMatrixCountRow(keyToKmer(key), c, s.width))
}

// Close implements Sink.
func (s *CountMatrixSink) Close() error { return s.w.Close(context.Background()) }

// marshalHashRow is MarshalMatrixCountRow's hash-indexed twin: the
// format package only defines the kmer-indexed row helper directly,
// so hash-indexed rows are assembled the same way, key-first.
func marshalHashRow(hash uint64, counts []uint64, width format.CountWidth) []byte {
	rec := make([]byte, 8+len(counts)*width.Bytes())
	for i := 0; i < 8; i++ {
		rec[i] = byte(hash >> uint(8*i))
	}
	off := 8
	for _, c := range counts {
		width.PutCount(rec[off:], c)
		off += width.Bytes()
	}
	return rec
}

// PAMatrixSink writes key + packed presence bit vector rows (spec
// §4.7: "PA matrix: write key + packed bit vector where bit i =
// (c[i] > 0)").
type PAMatrixSink struct {
	w        *format.Writer
	hashMode bool
}

// NewPAMatrixSink opens a fresh presence/absence matrix partition
// file.
func NewPAMatrixSink(ctx context.Context, path string, k, kmerSlots, nbSamples int, hashMode bool, id string, partition int) (*PAMatrixSink, error) {
	nbytes := (nbSamples + 7) / 8
	var w *format.Writer
	var err error
	if hashMode {
		w, err = format.Create(ctx, path, format.KindPAMatrixHash, format.PAMatrixHashHeader{
			Bits: nbSamples, Bytes: nbytes, ID: id, Partition: partition,
		}, true)
	} else {
		w, err = format.Create(ctx, path, format.KindPAMatrix, format.PAMatrixHeader{
			K: k, KmerSlots: kmerSlots, Bits: nbSamples, Bytes: nbytes, ID: id, Partition: partition,
		}, true)
	}
	if err != nil {
		return nil, err
	}
	return &PAMatrixSink{w: w, hashMode: hashMode}, nil
}

// Emit implements Sink.
func (s *PAMatrixSink) Emit(key string, c []uint64) error {
	present := make([]bool, len(c))
	for i, v := range c {
		present[i] = v > 0
	}
	if s.hashMode {
		hash := keyToHash(key)
		nbytes := (len(c) + 7) / 8
		rec := make([]byte, 8+nbytes)
		for i := 0; i < 8; i++ {
			rec[i] = byte(hash >> uint(8*i))
		}
		for i, p := range present {
			if p {
				rec[8+i/8] |= 1 << uint(i%8)
			}
		}
		return s.w.WriteRecord(rec)
	}
	return s.w.WriteRecord(format.MarshalPARow(keyToKmer(key), present))
}

// Close implements Sink.
func (s *PAMatrixSink) Close() error { return s.w.Close(context.Background()) }
