package format

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kmtricks-go/kmtricks/kmer"
)

func TestEnvelopeRoundTripRaw(t *testing.T) {
	roundTrip(t, false)
}

func TestEnvelopeRoundTripCompressed(t *testing.T) {
	roundTrip(t, true)
}

func roundTrip(t *testing.T, compressed bool) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "p0.kmer")

	hdr := CountHeader{K: 5, KmerSlots: 1, CountSlots: 1, SampleID: "s0", Partition: 0}
	w, err := Create(ctx, path, KindKmerCount, hdr, compressed)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	km1, _ := kmer.Pack("ACGTA", 5)
	km2, _ := kmer.Pack("CGTAC", 5)
	if err := w.WriteRecord(MarshalKmerCount(km1, 3, Count8)); err != nil {
		t.Fatalf("WriteRecord 1: %v", err)
	}
	if err := w.WriteRecord(MarshalKmerCount(km2, 200, Count8)); err != nil {
		t.Fatalf("WriteRecord 2: %v", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var gotHdr CountHeader
	r, err := Open(ctx, path, KindKmerCount, &gotHdr)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close(ctx)
	if gotHdr != hdr {
		t.Fatalf("header mismatch: got %+v, want %+v", gotHdr, hdr)
	}

	var buf []byte
	var got []string
	for {
		ok, err := r.ReadRecord(&buf)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if !ok {
			break
		}
		km, count := UnmarshalKmerCount(buf, gotHdr.KmerSlots, Count8)
		got = append(got, kmer.Unpack(km, 5))
		_ = count
	}
	if len(got) != 2 || got[0] != "ACGTA" || got[1] != "CGTAC" {
		t.Fatalf("unexpected records: %v", got)
	}
}

func TestOpenRejectsWrongKind(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "p0.kmer")
	hdr := CountHeader{K: 5, KmerSlots: 1, CountSlots: 1}
	w, err := Create(ctx, path, KindKmerCount, hdr, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatal(err)
	}
	var hashHdr HashCountHeader
	if _, err := Open(ctx, path, KindHashCount, &hashHdr); err == nil {
		t.Fatal("expected a FormatError for kind mismatch")
	}
}

func TestSaturatingAddNeverWraps(t *testing.T) {
	w := Count8
	v := w.Max()
	if got := w.SaturatingAdd(v, 10); got != w.Max() {
		t.Errorf("SaturatingAdd at max = %d, want %d", got, w.Max())
	}
}
