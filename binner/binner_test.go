package binner

import (
	"testing"

	"github.com/kmtricks-go/kmtricks/kmer"
	"github.com/kmtricks-go/kmtricks/repartition"
	"github.com/kmtricks-go/kmtricks/superkmer"
)

func TestReverseComplement(t *testing.T) {
	if got := reverseComplement("ACGT"); got != "ACGT" {
		t.Fatalf("reverseComplement(ACGT) = %q, want ACGT", got)
	}
	if got := reverseComplement("AACCGGTT"); got != "AACCGGTT" {
		t.Fatalf("reverseComplement(AACCGGTT) = %q, want AACCGGTT", got)
	}
	if got := reverseComplement("GATTACA"); got != "TGTAATC" {
		t.Fatalf("reverseComplement(GATTACA) = %q, want TGTAATC", got)
	}
}

func TestBinnerRoutesAndPersists(t *testing.T) {
	k, m, p := 12, 5, 4
	seq := "ACGTACGGTACGATTACAGATTACAGGGCCCTTAAGGCCTTAAGGCCAATTGGCCAATTGG"

	table := repartition.Build(repartition.NewSliceSource([]string{seq}), k, m, p, kmer.OrderLex, nil)

	dir := t.TempDir()
	b, err := New(dir, Config{K: k, M: m, Table: table, Order: kmer.OrderLex, CacheBudget: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.ProcessSequence(seq); err != nil {
		t.Fatalf("ProcessSequence: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := superkmer.ReadInfo(dir + "/skp.info")
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	var total uint64
	for i := 0; i < p; i++ {
		r, err := superkmer.OpenReader(dir, i)
		if err != nil {
			t.Fatalf("OpenReader(%d): %v", i, err)
		}
		var seen uint64
		for {
			block, ok, err := r.ReadBlock()
			if err != nil {
				t.Fatalf("ReadBlock: %v", err)
			}
			if !ok {
				break
			}
			superkmer.IterateSuperKmers(block, k, func(s string, nK int) {
				if len(s) != k+nK-1 {
					t.Fatalf("super-k-mer length %d != k+nK-1 = %d", len(s), k+nK-1)
				}
				seen++
			})
		}
		r.Close()
		if seen != info.SuperKmers[i] {
			t.Fatalf("partition %d: info says %d super-k-mers, read %d", i, info.SuperKmers[i], seen)
		}
		total += seen
	}
	if total == 0 {
		t.Fatal("expected at least one super-k-mer to be binned")
	}
}
