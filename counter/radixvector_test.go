package counter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kmtricks-go/kmtricks/format"
	"github.com/kmtricks-go/kmtricks/superkmer"
)

func TestRadixVectorCountsAndSorts(t *testing.T) {
	k := 8
	dir := t.TempDir()
	buildBin(t, dir, k, []string{"ACGTACGTAC", "TTTTTTTTTT", "ACGTACGTAC"})

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
	cfg := RadixConfig{
		Config:         Config{K: k, Width: format.Count8, AbundanceMin: 1},
		EstimatedKmers: 64,
		Workers:        2,
	}
	if err := RadixVector(r, dir, cfg, w, &hist); err != nil {
		t.Fatalf("RadixVector: %v", err)
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
		t.Fatal("expected surviving records")
	}
}

func TestRadixVectorRejectsWideKmers(t *testing.T) {
	k := 40
	dir := t.TempDir()
	buildBin(t, dir, k, []string{"ACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTAC"})
	r, err := superkmer.OpenReader(dir, 0)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	cfg := RadixConfig{Config: Config{K: k, Width: format.Count8}, EstimatedKmers: 16}
	var hist Histogram
	if err := RadixVector(r, dir, cfg, nil, &hist); err == nil {
		t.Fatal("expected an error for k>32 in non-hash mode")
	}
}
