package runctx

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/kmtricks-go/kmtricks/kerrors"
)

// hashInfoMagic is the 8-byte prefix of hash.info (spec §6).
const hashInfoMagic uint64 = 0x6b6d7468_61736869

// HashInfo is the per-run hash window parameter set persisted to
// hash.info (spec §6): partition_count, window_size_bits, and the
// [lower, upper] global hash range those partitions tile, satisfying
// upper-lower+1 = partition_count * 2^window_size_bits.
type HashInfo struct {
	PartitionCount uint32
	WindowSizeBits uint32
	Lower          uint64
	Upper          uint64
}

// DeriveHashInfo computes the window size from the partition count and
// an estimate of distinct hashes expected per partition, the way
// kmtricks's HashSorting.cpp derives it: the smallest window_size_bits
// such that 2^window_size_bits is at least expectedPerPartition, so
// each partition's window comfortably covers its expected load without
// being wastefully oversized.
func DeriveHashInfo(partitionCount uint32, expectedPerPartition uint64) HashInfo {
	if expectedPerPartition == 0 {
		expectedPerPartition = 1
	}
	windowBits := uint32(bits.Len64(expectedPerPartition - 1))
	windowSize := uint64(1) << windowBits
	span := uint64(partitionCount) * windowSize
	return HashInfo{
		PartitionCount: partitionCount,
		WindowSizeBits: windowBits,
		Lower:          0,
		Upper:          span - 1,
	}
}

// PartitionRange returns the [lower, upper] hash range partition p
// owns within this run's global range.
func (h HashInfo) PartitionRange(p int) (lower, upper uint64) {
	windowSize := uint64(1) << h.WindowSizeBits
	lower = h.Lower + uint64(p)*windowSize
	upper = lower + windowSize - 1
	return
}

// WriteHashInfo persists h in the binary layout spec §6 describes.
func WriteHashInfo(w io.Writer, h HashInfo) error {
	var buf [8 + 4 + 4 + 8 + 8]byte
	binary.LittleEndian.PutUint64(buf[0:8], hashInfoMagic)
	binary.LittleEndian.PutUint32(buf[8:12], h.PartitionCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.WindowSizeBits)
	binary.LittleEndian.PutUint64(buf[16:24], h.Lower)
	binary.LittleEndian.PutUint64(buf[24:32], h.Upper)
	_, err := w.Write(buf[:])
	return err
}

// ReadHashInfo reads back a file written by WriteHashInfo.
func ReadHashInfo(r io.Reader) (HashInfo, error) {
	var buf [8 + 4 + 4 + 8 + 8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return HashInfo{}, &kerrors.FormatError{Op: "read hash.info", Kind: "hash.info", Err: err}
	}
	if magic := binary.LittleEndian.Uint64(buf[0:8]); magic != hashInfoMagic {
		return HashInfo{}, &kerrors.FormatError{Op: "read hash.info", Kind: "hash.info", Err: errBadHashInfoMagic}
	}
	return HashInfo{
		PartitionCount: binary.LittleEndian.Uint32(buf[8:12]),
		WindowSizeBits: binary.LittleEndian.Uint32(buf[12:16]),
		Lower:          binary.LittleEndian.Uint64(buf[16:24]),
		Upper:          binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}
