package counter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kmtricks-go/kmtricks/format"
	"github.com/kmtricks-go/kmtricks/superkmer"
)

func buildBin(t *testing.T, dir string, k int, seqs []string) {
	t.Helper()
	store, err := superkmer.Create(dir, 1)
	if err != nil {
		t.Fatalf("Create store: %v", err)
	}
	cache := superkmer.NewCache(1 << 20)
	for _, s := range seqs {
		nK := len(s) - k + 1
		cache.Insert(superkmer.Encode(s, nK))
	}
	block, n := cache.Flush()
	if err := store.WriteBlock(0, block, uint64(n)); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestHashAggregateCountsAndFilters(t *testing.T) {
	k := 8
	dir := t.TempDir()
	// "ACGTACGTAC" contains 3 overlapping 8-mers as one super-k-mer run.
	buildBin(t, dir, k, []string{"ACGTACGTAC", "ACGTACGTAC"})

	r, err := superkmer.OpenReader(dir, 0)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	outPath := filepath.Join(dir, "s0.kmer")
	ctx := context.Background()
	hdr := format.CountHeader{K: k, KmerSlots: 1, CountSlots: 1, SampleID: "s0", Partition: 0}
	w, err := format.Create(ctx, outPath, format.KindKmerCount, hdr, false)
	if err != nil {
		t.Fatalf("format.Create: %v", err)
	}

	var hist Histogram
	cfg := Config{K: k, Width: format.Count8, AbundanceMin: 1, SpillThreshold: 1000000}
	if err := HashAggregate(r, dir, cfg, w, &hist); err != nil {
		t.Fatalf("HashAggregate: %v", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	var gotHdr format.CountHeader
	reader, err := format.Open(ctx, outPath, format.KindKmerCount, &gotHdr)
	if err != nil {
		t.Fatalf("format.Open: %v", err)
	}
	defer reader.Close(ctx)

	var buf []byte
	var total uint64
	for {
		ok, err := reader.ReadRecord(&buf)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if !ok {
			break
		}
		_, count := format.UnmarshalKmerCount(buf, 1, format.Count8)
		total += count
	}
	if total == 0 {
		t.Fatal("expected at least one surviving count record")
	}
}

func TestHashAggregateSpillsAndMerges(t *testing.T) {
	k := 6
	dir := t.TempDir()
	buildBin(t, dir, k, []string{"ACGTACGT", "TTTTTTTT", "GGGGGGGG", "CCCCCCCC"})

	r, err := superkmer.OpenReader(dir, 0)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	ctx := context.Background()
	outPath := filepath.Join(dir, "s0.kmer")
	hdr := format.CountHeader{K: k, KmerSlots: 1, CountSlots: 1}
	w, err := format.Create(ctx, outPath, format.KindKmerCount, hdr, false)
	if err != nil {
		t.Fatalf("format.Create: %v", err)
	}

	var hist Histogram
	// SpillThreshold 1 makes the table spill at the end of the block, so
	// the output comes through the spill-file merge path.
	cfg := Config{K: k, Width: format.Count8, AbundanceMin: 1, SpillThreshold: 1}
	if err := HashAggregate(r, dir, cfg, w, &hist); err != nil {
		t.Fatalf("HashAggregate: %v", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	var gotHdr format.CountHeader
	reader, err := format.Open(ctx, outPath, format.KindKmerCount, &gotHdr)
	if err != nil {
		t.Fatalf("format.Open: %v", err)
	}
	defer reader.Close(ctx)

	var buf []byte
	var prev []uint64
	var n int
	for {
		ok, err := reader.ReadRecord(&buf)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if !ok {
			break
		}
		km, _ := format.UnmarshalKmerCount(buf, 1, format.Count8)
		if prev != nil && km[0] <= prev[0] {
			t.Fatalf("records not strictly increasing: prev=%d cur=%d", prev[0], km[0])
		}
		prev = km
		n++
	}
	if n == 0 {
		t.Fatal("expected surviving records after merge")
	}
}

func TestHashAggregateHashModeStaysInPartitionWindow(t *testing.T) {
	k := 8
	dir := t.TempDir()
	buildBin(t, dir, k, []string{"ACGTACGTAC", "TTGGCCAAGT"})

	r, err := superkmer.OpenReader(dir, 0)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	ctx := context.Background()
	outPath := filepath.Join(dir, "s0.hash")
	hdr := format.HashCountHeader{CountSlots: 1, SampleID: "s0", Partition: 3}
	w, err := format.Create(ctx, outPath, format.KindHashCount, hdr, false)
	if err != nil {
		t.Fatalf("format.Create: %v", err)
	}

	const windowBits = 12
	var hist Histogram
	cfg := Config{
		K: k, Width: format.Count8, AbundanceMin: 1, SpillThreshold: 1000000,
		HashMode: true, Partition: 3, WindowSizeBits: windowBits,
	}
	if err := HashAggregate(r, dir, cfg, w, &hist); err != nil {
		t.Fatalf("HashAggregate: %v", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	var gotHdr format.HashCountHeader
	reader, err := format.Open(ctx, outPath, format.KindHashCount, &gotHdr)
	if err != nil {
		t.Fatalf("format.Open: %v", err)
	}
	defer reader.Close(ctx)

	windowSize := uint64(1) << windowBits
	lower := uint64(3) * windowSize
	upper := lower + windowSize - 1

	var buf []byte
	var n int
	for {
		ok, err := reader.ReadRecord(&buf)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if !ok {
			break
		}
		h, _ := format.UnmarshalHashCount(buf, format.Count8)
		if h < lower || h > upper {
			t.Fatalf("hash %d outside partition 3's window [%d, %d]", h, lower, upper)
		}
		n++
	}
	if n == 0 {
		t.Fatal("expected at least one surviving hash record")
	}
}
