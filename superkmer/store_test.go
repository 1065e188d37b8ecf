package superkmer

import (
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	seq := "ACGTACGTAC"
	k := 7
	nK := len(seq) - k + 1
	payload := Encode(seq, nK)
	if len(payload) != PayloadSize(k, nK) {
		t.Fatalf("PayloadSize mismatch: got %d, want %d", PayloadSize(k, nK), len(payload))
	}
	gotSeq, gotNK := Decode(payload, k)
	if gotSeq != seq || gotNK != nK {
		t.Fatalf("Decode = (%q, %d), want (%q, %d)", gotSeq, gotNK, seq, nK)
	}
}

func TestCacheFlushThreshold(t *testing.T) {
	c := NewCache(10)
	if c.Insert(make([]byte, 4)) {
		t.Fatal("should not flush yet")
	}
	if !c.Insert(make([]byte, 8)) {
		t.Fatal("should signal flush once budget exceeded")
	}
	block, n := c.Flush()
	if len(block) != 4+12 {
		t.Fatalf("block length = %d, want %d", len(block), 4+12)
	}
	if n != 2 {
		t.Fatalf("flushed count = %d, want 2", n)
	}
	if c.Len() != 0 {
		t.Fatal("cache should be empty after flush")
	}
}

func TestCacheFlushEmpty(t *testing.T) {
	c := NewCache(10)
	if block, n := c.Flush(); block != nil || n != 0 {
		t.Fatalf("Flush on empty cache = (%v, %d), want (nil, 0)", block, n)
	}
}

func TestStoreWriteReadBlock(t *testing.T) {
	dir := t.TempDir()
	store, err := Create(dir, 4)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	k := 5
	seq1 := "ACGTAC"
	seq2 := "TACGTACG"
	p1 := Encode(seq1, len(seq1)-k+1)
	p2 := Encode(seq2, len(seq2)-k+1)

	cache := NewCache(1024)
	cache.Insert(p1)
	cache.Insert(p2)
	block, n := cache.Flush()

	if err := store.WriteBlock(2, block, uint64(n)); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(dir, 2)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	gotBlock, ok, err := r.ReadBlock()
	if err != nil || !ok {
		t.Fatalf("ReadBlock: ok=%v err=%v", ok, err)
	}

	var decoded []string
	IterateSuperKmers(gotBlock, k, func(seq string, nK int) {
		decoded = append(decoded, seq)
	})
	if len(decoded) != 2 || decoded[0] != seq1 || decoded[1] != seq2 {
		t.Fatalf("decoded = %v, want [%q %q]", decoded, seq1, seq2)
	}

	if _, ok, err := r.ReadBlock(); err != nil || ok {
		t.Fatalf("expected clean EOF, got ok=%v err=%v", ok, err)
	}

	info, err := ReadInfo(dir + "/skp.info")
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.FileCount != 4 || info.SuperKmers[2] != 2 || info.Bytes[2] != uint64(len(block)) {
		t.Fatalf("unexpected info: %+v", info)
	}
}
