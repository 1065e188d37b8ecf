package kmer

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []string{"ACGTAC", "TTTTTT", "AAAAAA", "GATTACAGATTACA"}
	for _, seq := range cases {
		k := len(seq)
		km, ok := Pack(seq, k)
		if !ok {
			t.Fatalf("Pack(%q) reported invalid", seq)
		}
		if got := Unpack(km, k); got != seq {
			t.Errorf("round trip: got %q, want %q", got, seq)
		}
	}
}

func TestPackInvalidBase(t *testing.T) {
	if _, ok := Pack("ACGTN", 5); ok {
		t.Fatal("expected Pack to reject N")
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	seqs := []string{"ACGTAC", "CGTAC", "AAAAA", "TTTTT", "GATTACA"}
	for _, seq := range seqs {
		k := len(seq)
		km, _ := Pack(seq, k)
		c1, _ := Canonical(km, k)
		c2, _ := Canonical(c1, k)
		if !c1.Equal(c2) {
			t.Errorf("canonical(%q) not idempotent: %v vs %v", seq, c1, c2)
		}
	}
}

func TestCanonicalPicksLexSmaller(t *testing.T) {
	// ACGTA vs its revcomp TACGT: lexicographically ACGTA < TACGT (A<T),
	// and packing preserves order in this codec.
	km, _ := Pack("ACGTA", 5)
	c, which := Canonical(km, 5)
	if which {
		t.Errorf("expected forward strand to be canonical for ACGTA")
	}
	if Unpack(c, 5) != "ACGTA" {
		t.Errorf("got %q", Unpack(c, 5))
	}
}

func TestRevCompSelfPalindromeLike(t *testing.T) {
	// AAAAAA revcomp is TTTTTT.
	km, _ := Pack("AAAAAA", 6)
	rc := RevComp(km, 6)
	if Unpack(rc, 6) != "TTTTTT" {
		t.Errorf("revcomp(AAAAAA) = %q, want TTTTTT", Unpack(rc, 6))
	}
	// Double revcomp is identity.
	rc2 := RevComp(rc, 6)
	if !rc2.Equal(km) {
		t.Errorf("revcomp(revcomp(x)) != x")
	}
}

func TestShiftInMatchesRepack(t *testing.T) {
	k := 5
	seq := "ACGTA"
	km, _ := Pack(seq, k)
	shifted, ok := ShiftIn(km, k, 'C')
	if !ok {
		t.Fatal("ShiftIn rejected valid base")
	}
	want, _ := Pack("CGTAC", k)
	if !shifted.Equal(want) {
		t.Errorf("ShiftIn result %q, want %q", Unpack(shifted, k), Unpack(want, k))
	}
}

func TestHashDeterministic(t *testing.T) {
	km, _ := Pack("ACGTACGTAC", 10)
	h1 := Hash(km)
	h2 := Hash(km.Clone())
	if h1 != h2 {
		t.Errorf("Hash not deterministic across clones")
	}
}

func TestSlotsMultiLimb(t *testing.T) {
	if Slots(32) != 1 {
		t.Errorf("Slots(32) = %d, want 1", Slots(32))
	}
	if Slots(33) != 2 {
		t.Errorf("Slots(33) = %d, want 2", Slots(33))
	}
	if Slots(64) != 2 {
		t.Errorf("Slots(64) = %d, want 2", Slots(64))
	}
	if Slots(65) != 3 {
		t.Errorf("Slots(65) = %d, want 3", Slots(65))
	}
}
