package format

import (
	"testing"

	"github.com/kmtricks-go/kmtricks/kmer"
)

func TestHashWindowStaysInPartitionRange(t *testing.T) {
	km, _ := kmer.Pack("ACGTACGTA", 9)
	const windowBits = 10
	windowSize := uint64(1) << windowBits

	for p := 0; p < 4; p++ {
		h := HashWindow(km, p, windowBits)
		lower := uint64(p) * windowSize
		upper := lower + windowSize - 1
		if h < lower || h > upper {
			t.Fatalf("partition %d: hash %d outside [%d, %d]", p, h, lower, upper)
		}
	}
}

func TestHashWindowDeterministic(t *testing.T) {
	km, _ := kmer.Pack("TTTTGGGGC", 9)
	if HashWindow(km, 2, 12) != HashWindow(km, 2, 12) {
		t.Fatal("HashWindow is not deterministic for identical inputs")
	}
}

func TestHashWindowDiffersAcrossKmers(t *testing.T) {
	a, _ := kmer.Pack("AAAAAAAAA", 9)
	b, _ := kmer.Pack("CCCCCCCCC", 9)
	if HashWindow(a, 0, 16) == HashWindow(b, 0, 16) {
		t.Fatal("expected distinct k-mers to hash to distinct windowed values (flaky but astronomically unlikely)")
	}
}
