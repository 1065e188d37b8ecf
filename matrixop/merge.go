package matrixop

import (
	"container/heap"
	"context"

	"github.com/kmtricks-go/kmtricks/format"
)

type mergeItem struct {
	key  string
	pos  int
	vals []uint64
	src  *Source
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].key < h[j].key }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// MergeConfig describes the target output geometry for Merge.
type MergeConfig struct {
	Kind      format.Kind
	HashMode  bool
	IsPA      bool
	K         int
	KmerSlots int
	NTotal    int // total sample columns across all sources
	Width     format.CountWidth
	ID        string
	Partition int
}

// Merge implements spec §4.8's merge operation: a k-way merge by key
// across independent runs that share a repartition table (the caller
// is responsible for checking Mergeable before calling this). Each
// source carries its column offset (Source.Pos) and sample count, so
// each emitted row is built in an accumulated, zero-initialized
// buffer at the correct column range (spec: "a merge element carries
// the sample-offset pos and the sample count n within the merged
// matrix").
//
// Precondition (spec §4.8): all sources' underlying runs must share
// byte-equal repartition tables and the same k — callers verify this
// via repartition.Mergeable and surface a violation as an InputError
// before invoking Merge, since Merge itself has no access to the
// tables.
func Merge(ctx context.Context, sources []*Source, cfg MergeConfig, outPath string) error {
	h := make(mergeHeap, 0, len(sources))
	for _, s := range sources {
		key, vals, ok, err := s.Next()
		if err != nil {
			return err
		}
		if ok {
			h = append(h, mergeItem{key: key, pos: s.Pos, vals: vals, src: s})
		}
	}
	heap.Init(&h)

	w, err := makeMergeWriter(ctx, cfg, outPath)
	if err != nil {
		return err
	}

	row := make([]uint64, cfg.NTotal)
	for h.Len() > 0 {
		key := h[0].key
		for i := range row {
			row[i] = 0
		}
		for h.Len() > 0 && h[0].key == key {
			item := heap.Pop(&h).(mergeItem)
			copy(row[item.pos:item.pos+len(item.vals)], item.vals)
			nk, nv, ok, err := item.src.Next()
			if err != nil {
				w.Close(ctx)
				return err
			}
			if ok {
				heap.Push(&h, mergeItem{key: nk, pos: item.pos, vals: nv, src: item.src})
			}
		}
		if err := emitMergedRow(w, cfg, key, row); err != nil {
			w.Close(ctx)
			return err
		}
	}
	return w.Close(ctx)
}

func makeMergeWriter(ctx context.Context, cfg MergeConfig, outPath string) (*format.Writer, error) {
	switch {
	case !cfg.HashMode && !cfg.IsPA:
		return format.Create(ctx, outPath, cfg.Kind, format.MatrixCountHeader{
			K: cfg.K, KmerSlots: cfg.KmerSlots, CountSlots: cfg.Width.Bytes(), NbSamples: cfg.NTotal, ID: cfg.ID, Partition: cfg.Partition,
		}, true)
	case cfg.HashMode && !cfg.IsPA:
		return format.Create(ctx, outPath, cfg.Kind, format.MatrixHashCountHeader{
			CountSlots: cfg.Width.Bytes(), NbSamples: cfg.NTotal, ID: cfg.ID, Partition: cfg.Partition,
		}, true)
	case !cfg.HashMode && cfg.IsPA:
		nbytes := (cfg.NTotal + 7) / 8
		return format.Create(ctx, outPath, cfg.Kind, format.PAMatrixHeader{
			K: cfg.K, KmerSlots: cfg.KmerSlots, Bits: cfg.NTotal, Bytes: nbytes, ID: cfg.ID, Partition: cfg.Partition,
		}, true)
	default:
		nbytes := (cfg.NTotal + 7) / 8
		return format.Create(ctx, outPath, cfg.Kind, format.PAMatrixHashHeader{
			Bits: cfg.NTotal, Bytes: nbytes, ID: cfg.ID, Partition: cfg.Partition,
		}, true)
	}
}

func emitMergedRow(w *format.Writer, cfg MergeConfig, key string, row []uint64) error {
	switch {
	case !cfg.HashMode && !cfg.IsPA:
		return w.WriteRecord(format.MarshalMatrixCountRow(keyToKmer(key), row, cfg.Width))
	case cfg.HashMode && !cfg.IsPA:
		return w.WriteRecord(marshalHashMatrixRow(keyToHash(key), row, cfg.Width))
	case !cfg.HashMode && cfg.IsPA:
		return w.WriteRecord(format.MarshalPARow(keyToKmer(key), toPresent(row)))
	default:
		return w.WriteRecord(marshalHashPARow(keyToHash(key), toPresent(row)))
	}
}

func toPresent(row []uint64) []bool {
	present := make([]bool, len(row))
	for i, v := range row {
		present[i] = v > 0
	}
	return present
}

func marshalHashMatrixRow(hash uint64, counts []uint64, width format.CountWidth) []byte {
	rec := make([]byte, 8+len(counts)*width.Bytes())
	putLE64(rec, hash)
	off := 8
	for _, c := range counts {
		width.PutCount(rec[off:], c)
		off += width.Bytes()
	}
	return rec
}

func marshalHashPARow(hash uint64, present []bool) []byte {
	nbytes := (len(present) + 7) / 8
	rec := make([]byte, 8+nbytes)
	putLE64(rec, hash)
	for i, p := range present {
		if p {
			rec[8+i/8] |= 1 << uint(i%8)
		}
	}
	return rec
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> uint(8*i))
	}
}
