package kmer

import "testing"

func TestContainsAA(t *testing.T) {
	aa, _ := Pack("AA", 2)
	if !containsAA(aa[0], 2) {
		t.Error("expected AA to be flagged invalid")
	}
	ac, _ := Pack("AC", 2)
	if containsAA(ac[0], 2) {
		t.Error("AC should not be flagged invalid")
	}
}

func TestMinimizerIterNoAA(t *testing.T) {
	// k=5, m=3, sequence with no AA anywhere: CGTAC
	k, m := 5, 3
	seq := "CGTAC"
	km, ok := Pack(seq, k)
	if !ok {
		t.Fatal("pack failed")
	}
	it := NewMinimizerIter(k, m, OrderLex, nil)
	it.Reset()
	hit, ok := it.Advance(km, 0)
	if !ok {
		t.Fatal("expected a minimizer hit")
	}
	if hit.MinimizerPos < 0 || hit.MinimizerPos > k-m {
		t.Errorf("minimizer pos %d out of range [0,%d]", hit.MinimizerPos, k-m)
	}
}

func TestFastLexMinimizerRejectsAA(t *testing.T) {
	km, _ := Pack("AAACGT", 6)
	if _, ok := FastLexMinimizer(km, 6, 3); ok {
		t.Error("expected fallback signal for a k-mer containing AA")
	}
}

func TestFastLexMinimizerAgreesOnCleanInput(t *testing.T) {
	km, _ := Pack("CGTACGT", 7)
	hit, ok := FastLexMinimizer(km, 7, 3)
	if !ok {
		t.Fatal("expected fast path to succeed on AA-free input")
	}
	if hit.MinimizerPos < 0 || hit.MinimizerPos > 7-3 {
		t.Errorf("pos out of range: %d", hit.MinimizerPos)
	}
}
