package repartition

import (
	"path/filepath"
	"testing"

	"github.com/kmtricks-go/kmtricks/kmer"
)

func seqs() []string {
	return []string{
		"ACGTACGTACGTACGTACGTACGT",
		"TTGGCCAATTGGCCAATTGGCCAA",
		"GATTACAGATTACAGATTACAGAT",
		"CCCCGGGGCCCCGGGGCCCCGGGG",
	}
}

func TestBuildProducesTotalTable(t *testing.T) {
	src := NewSliceSource(seqs())
	table := Build(src, 16, 6, 4, kmer.OrderLex, nil)
	if table.P != 4 {
		t.Fatalf("P = %d, want 4", table.P)
	}
	if len(table.Table) != table.MSize {
		t.Fatalf("table length = %d, want %d", len(table.Table), table.MSize)
	}
	for _, p := range table.Table {
		if int(p) >= table.P {
			t.Fatalf("partition index %d out of range [0,%d)", p, table.P)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	t1 := Build(NewSliceSource(seqs()), 16, 6, 4, kmer.OrderLex, nil)
	t2 := Build(NewSliceSource(seqs()), 16, 6, 4, kmer.OrderLex, nil)
	if !Mergeable(t1, t2) {
		t.Fatal("rebuilding from the same input should yield a byte-identical table")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	table := Build(NewSliceSource(seqs()), 16, 6, 4, kmer.OrderLex, nil)
	path := filepath.Join(t.TempDir(), "repartition.minimRepart")
	if err := table.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !Mergeable(table, got) {
		t.Fatal("loaded table should be byte-identical to the saved one")
	}
}

func TestFrequencyOrderingRanksMostFrequentFirst(t *testing.T) {
	// "CCCC" (C=1 -> packed 0b01010101) appears far more often than
	// "TTTT" (T=2 -> packed 0b10101010) across these two reads.
	src := NewSliceSource([]string{"CCCCGCCCCGCCCCG", "CCCCGTTTTG"})
	ranks := CountFrequencies(src, 4)
	var cccc, tttt uint64
	for i := 0; i < 4; i++ {
		cccc |= 1 << uint(2*i)
		tttt |= 2 << uint(2*i)
	}
	if ranks.Rank(cccc) >= ranks.Rank(tttt) {
		t.Fatalf("CCCC rank %d should be lower (more frequent) than TTTT rank %d", ranks.Rank(cccc), ranks.Rank(tttt))
	}
	neverSeen := ranks.Rank((cccc + 1) % uint64(len(ranks.ranks)))
	if neverSeen < ranks.Rank(tttt) {
		// only a meaningful check if that window really was unseen
		t.Skip("synthetic window happened to be seen in this input")
	}
}

func TestSampleRespectsCap(t *testing.T) {
	many := make([]string, 1000)
	for i := range many {
		many[i] = seqs()[i%len(seqs())]
	}
	s := NewSample(NewSliceSource(many), 1.0, 10)
	n := 0
	for {
		_, ok := s.Next()
		if !ok {
			break
		}
		n++
	}
	if n != 10 {
		t.Fatalf("sampled %d sequences, want 10", n)
	}
}
