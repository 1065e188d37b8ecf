// Package merger implements the N-way merger (spec §4.7, C7): it
// combines N samples' sorted per-partition count streams into one of
// several matrix/vector output shapes, applying the solidity and
// rescue predicates along the way.
package merger

import (
	"encoding/binary"

	"github.com/kmtricks-go/kmtricks/kmer"
)

// keyBytes and hashKeyBytes mirror counter's internal key encoding
// (big-endian, highest limb first) so that merger's heap-ordered keys
// agree with the on-disk files' sort order (spec §3: "strictly
// increasing in k-mer (or hash) order").
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
