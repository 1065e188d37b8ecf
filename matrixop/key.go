// Package matrixop implements the matrix aggregator/merger (C8, spec
// §4.8) and the matrix filter (C9, spec §4.9): operations over whole
// matrix/PA partition files rather than single-sample count streams.
package matrixop

import (
	"encoding/binary"

	"github.com/kmtricks-go/kmtricks/kmer"
)

// keyBytes/hashKeyBytes use the same big-endian, highest-limb-first
// internal key convention as counter and merger, so that heap
// comparisons over keys agree with kmer.Kmer.Less's ordering. See
// DESIGN.md's cross-cutting note on this convention.
func keyBytes(km kmer.Kmer) string {
	buf := make([]byte, len(km)*8)
	for i, limb := range km {
		pos := len(km) - 1 - i
		binary.BigEndian.PutUint64(buf[pos*8:], limb)
	}
	return string(buf)
}

func hashKeyBytes(h uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return string(buf[:])
}

func keyToKmer(key string) kmer.Kmer {
	slots := len(key) / 8
	km := make(kmer.Kmer, slots)
	kb := []byte(key)
	for i := range km {
		pos := slots - 1 - i
		km[i] = binary.BigEndian.Uint64(kb[pos*8:])
	}
	return km
}

func keyToHash(key string) uint64 {
	return binary.BigEndian.Uint64([]byte(key))
}
