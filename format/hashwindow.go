package format

import (
	"encoding/binary"

	"github.com/minio/highwayhash"

	"github.com/kmtricks-go/kmtricks/kmer"
)

// hashWindowSeed is the fixed zero key every windowed hash uses, the
// same zero-seed convention fusion/postprocess.go's own highwayhash
// grouping used.
var hashWindowSeed [highwayhash.Size]uint8

// HashWindow computes the windowed hash identifying a canonical k-mer
// in hash-mode counting (spec §3, Entity: Hash record): a highwayhash
// mix of the packed k-mer reduced into partition p's slice
// [p*2^windowSizeBits, (p+1)*2^windowSizeBits) of the global hash
// range, so hashes from different partitions never collide in range.
func HashWindow(can kmer.Kmer, partition int, windowSizeBits uint32) uint64 {
	buf := make([]byte, len(can)*8)
	for i, limb := range can {
		binary.LittleEndian.PutUint64(buf[i*8:], limb)
	}
	sum := highwayhash.Sum(buf, hashWindowSeed[:])
	windowSize := uint64(1) << windowSizeBits
	mixed := binary.LittleEndian.Uint64(sum[:8])
	return uint64(partition)*windowSize + mixed%windowSize
}
