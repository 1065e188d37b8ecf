package format

import (
	"encoding/binary"

	"github.com/kmtricks-go/kmtricks/kmer"
)

// MarshalKmerCount packs a canonical k-mer followed by a count of the
// given width into a fresh record buffer, as spec §6 describes for
// *.kmer files.
func MarshalKmerCount(km kmer.Kmer, count uint64, width CountWidth) []byte {
	rec := make([]byte, len(km)*8+width.Bytes())
	for i, limb := range km {
		binary.LittleEndian.PutUint64(rec[i*8:], limb)
	}
	width.PutCount(rec[len(km)*8:], count)
	return rec
}

// UnmarshalKmerCount is MarshalKmerCount's inverse.
func UnmarshalKmerCount(rec []byte, kmerSlots int, width CountWidth) (kmer.Kmer, uint64) {
	km := make(kmer.Kmer, kmerSlots)
	for i := range km {
		km[i] = binary.LittleEndian.Uint64(rec[i*8:])
	}
	count := width.GetCount(rec[kmerSlots*8:])
	return km, count
}

// MarshalHashCount packs a u64 hash followed by a count.
func MarshalHashCount(hash uint64, count uint64, width CountWidth) []byte {
	rec := make([]byte, 8+width.Bytes())
	binary.LittleEndian.PutUint64(rec, hash)
	width.PutCount(rec[8:], count)
	return rec
}

// UnmarshalHashCount is MarshalHashCount's inverse.
func UnmarshalHashCount(rec []byte, width CountWidth) (uint64, uint64) {
	hash := binary.LittleEndian.Uint64(rec)
	count := width.GetCount(rec[8:])
	return hash, count
}

// MarshalMatrixCountRow packs a canonical k-mer followed by nbSamples
// counts of the given width, in sample order (spec §3 Matrix row).
func MarshalMatrixCountRow(km kmer.Kmer, counts []uint64, width CountWidth) []byte {
	rec := make([]byte, len(km)*8+len(counts)*width.Bytes())
	for i, limb := range km {
		binary.LittleEndian.PutUint64(rec[i*8:], limb)
	}
	off := len(km) * 8
	for _, c := range counts {
		width.PutCount(rec[off:], c)
		off += width.Bytes()
	}
	return rec
}

// UnmarshalMatrixCountRow is MarshalMatrixCountRow's inverse.
func UnmarshalMatrixCountRow(rec []byte, kmerSlots, nbSamples int, width CountWidth) (kmer.Kmer, []uint64) {
	km := make(kmer.Kmer, kmerSlots)
	for i := range km {
		km[i] = binary.LittleEndian.Uint64(rec[i*8:])
	}
	counts := make([]uint64, nbSamples)
	off := kmerSlots * 8
	for i := range counts {
		counts[i] = width.GetCount(rec[off:])
		off += width.Bytes()
	}
	return km, counts
}

// MarshalPARow packs a canonical k-mer followed by a presence/absence
// bit vector, one bit per sample, bit i = (counts[i] > 0).
func MarshalPARow(km kmer.Kmer, present []bool) []byte {
	nbytes := (len(present) + 7) / 8
	rec := make([]byte, len(km)*8+nbytes)
	for i, limb := range km {
		binary.LittleEndian.PutUint64(rec[i*8:], limb)
	}
	off := len(km) * 8
	for i, p := range present {
		if p {
			rec[off+i/8] |= 1 << uint(i%8)
		}
	}
	return rec
}

// UnmarshalPARow is MarshalPARow's inverse.
func UnmarshalPARow(rec []byte, kmerSlots, nbSamples int) (kmer.Kmer, []bool) {
	km := make(kmer.Kmer, kmerSlots)
	for i := range km {
		km[i] = binary.LittleEndian.Uint64(rec[i*8:])
	}
	off := kmerSlots * 8
	present := make([]bool, nbSamples)
	for i := range present {
		present[i] = rec[off+i/8]&(1<<uint(i%8)) != 0
	}
	return km, present
}
