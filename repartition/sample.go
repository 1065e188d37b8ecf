package repartition

import "blainsmith.com/go/seahash"

// sampleScale bounds the precision of the fraction comparison below;
// large enough that fractions like 0.05 are represented without
// visible bias.
const sampleScale = 1 << 24

// Sample wraps a SeqSource and yields a bounded, deterministic subset
// of it (spec §4.4.1: "draw a bounded sample of input sequences (~5%
// or N_sample capped at a few million)"). Inclusion is decided by
// hashing each sequence with seahash and comparing against the
// fraction threshold, so the same input always yields the same
// sample regardless of how many times Build is re-run — the
// determinism spec §8 requires of the repartition table.
type Sample struct {
	src      SeqSource
	fraction float64
	cap      int
	taken    int
}

// NewSample constructs a sampling SeqSource over src. fraction is the
// target inclusion probability (e.g. 0.05); cap bounds the absolute
// number of sequences returned regardless of fraction (0 means
// unbounded).
func NewSample(src SeqSource, fraction float64, cap int) *Sample {
	return &Sample{src: src, fraction: fraction, cap: cap}
}

// Next implements SeqSource.
func (s *Sample) Next() (string, bool) {
	threshold := uint64(s.fraction * sampleScale)
	for {
		if s.cap > 0 && s.taken >= s.cap {
			return "", false
		}
		seq, ok := s.src.Next()
		if !ok {
			return "", false
		}
		h := seahash.Sum64([]byte(seq))
		if h%sampleScale < threshold {
			s.taken++
			return seq, true
		}
	}
}

// SliceSource adapts a plain []string into a SeqSource, for tests and
// for small in-memory sample pools.
type SliceSource struct {
	seqs []string
	pos  int
}

// NewSliceSource wraps seqs for sequential iteration.
func NewSliceSource(seqs []string) *SliceSource {
	return &SliceSource{seqs: seqs}
}

// Next implements SeqSource.
func (s *SliceSource) Next() (string, bool) {
	if s.pos >= len(s.seqs) {
		return "", false
	}
	seq := s.seqs[s.pos]
	s.pos++
	return seq, true
}
