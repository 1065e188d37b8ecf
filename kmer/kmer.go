// Package kmer implements the k-mer codec (spec §4.1): packing,
// canonicalization, reverse complement, rolling updates, hashing, and
// minimizer extraction, for k up to KMax.
//
// The 2-bit encoding is a contract referenced by on-disk formats:
// A=0, C=1, T=2, G=3, least-significant nucleotide in bit 0 of limb 0,
// limbs little-endian, unused high bits always zero. This mirrors the
// teacher's single-limb fusion.Kmer encoding (fusion/kmer.go), widened
// here to a variable number of 64-bit limbs so k is a per-run parameter
// rather than a compile-time constant (spec §9's runtime-dispatch note).
package kmer

import (
	"fmt"

	farm "github.com/dgryski/go-farm"
)

// KMax is the compile-time bound on k (spec §3: "1 ≤ k ≤ K_MAX").
const KMax = 256

const invalidBase = uint8(255)

var (
	baseCode  [256]uint8
	compCode  [256]uint8
	codeBase  = [4]byte{'A', 'C', 'T', 'G'}
)

func init() {
	for i := range baseCode {
		baseCode[i] = invalidBase
		compCode[i] = invalidBase
	}
	baseCode['A'], baseCode['a'] = 0, 0
	baseCode['C'], baseCode['c'] = 1, 1
	baseCode['T'], baseCode['t'] = 2, 2
	baseCode['G'], baseCode['g'] = 3, 3

	// Complement: A<->T, C<->G.
	compCode['A'], compCode['a'] = 2, 2
	compCode['C'], compCode['c'] = 3, 3
	compCode['T'], compCode['t'] = 0, 0
	compCode['G'], compCode['g'] = 1, 1
}

// Kmer is a packed k-mer: ⌈k/32⌉ 64-bit limbs, little-endian per limb,
// limb 0 holding the least-significant nucleotides. Invariant: bits
// above 2*k (mod 64 within the top limb) are always zero.
type Kmer []uint64

// Slots returns ⌈k/32⌉, the number of 64-bit limbs needed to hold a
// k-mer of the given length.
func Slots(k int) int {
	return (k + 31) / 32
}

// New allocates a zeroed Kmer sized for k.
func New(k int) Kmer {
	return make(Kmer, Slots(k))
}

// Clone returns an independent copy.
func (km Kmer) Clone() Kmer {
	c := make(Kmer, len(km))
	copy(c, km)
	return c
}

// Equal reports whether two packed k-mers (of equal k) are identical.
func (km Kmer) Equal(other Kmer) bool {
	if len(km) != len(other) {
		return false
	}
	for i := range km {
		if km[i] != other[i] {
			return false
		}
	}
	return true
}

// Less implements the lexicographic order used by canonicalization and
// by every sorted on-disk stream: compare from the highest limb (most
// significant nucleotides) down to limb 0.
func (km Kmer) Less(other Kmer) bool {
	for i := len(km) - 1; i >= 0; i-- {
		if km[i] != other[i] {
			return km[i] < other[i]
		}
	}
	return false
}

// topMask returns the bitmask of valid bits in the highest limb for a
// k-mer of length k.
func topMask(k int) uint64 {
	bitsInTop := uint(2 * (k - (Slots(k)-1)*32))
	if bitsInTop >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bitsInTop) - 1
}

// Pack builds a packed Kmer from an ASCII window of exactly k bytes,
// validated to be A/C/G/T (case-insensitive). Returns false if any byte
// is not a valid base (spec §4.1 "packing an invalid base").
func Pack(seq string, k int) (Kmer, bool) {
	if len(seq) != k {
		panic(fmt.Sprintf("kmer.Pack: len(seq)=%d != k=%d", len(seq), k))
	}
	km := New(k)
	for i := 0; i < k; i++ {
		b := baseCode[seq[i]]
		if b == invalidBase {
			return nil, false
		}
		limb := i / 32
		shift := uint((i % 32) * 2)
		km[limb] |= uint64(b) << shift
	}
	return km, true
}

// Unpack renders a packed Kmer back to its ASCII representation.
func Unpack(km Kmer, k int) string {
	out := make([]byte, k)
	for i := 0; i < k; i++ {
		limb := i / 32
		shift := uint((i % 32) * 2)
		out[i] = codeBase[(km[limb]>>shift)&3]
	}
	return string(out)
}

// RevComp returns the reverse complement of a k-mer.
func RevComp(km Kmer, k int) Kmer {
	out := New(k)
	for i := 0; i < k; i++ {
		limb := i / 32
		shift := uint((i % 32) * 2)
		base := (km[limb] >> shift) & 3
		j := k - 1 - i
		jLimb := j / 32
		jShift := uint((j % 32) * 2)
		out[jLimb] |= complementBase(base) << jShift
	}
	return out
}

// complementBase maps the 2-bit base code to its Watson-Crick
// complement code under the A=0,C=1,T=2,G=3 encoding: A<->T (0<->2),
// C<->G (1<->3). XOR by 2 does exactly this.
func complementBase(b uint64) uint64 {
	return b ^ 2
}

// Canonical returns (min(km, revcomp(km)), which) where which is false
// if km itself was chosen, true if the reverse complement was. This is
// the "which" orientation bit that spec §3 says is never persisted.
func Canonical(km Kmer, k int) (Kmer, bool) {
	rc := RevComp(km, k)
	if rc.Less(km) {
		return rc, true
	}
	return km, false
}

// ShiftIn rolls a new base onto the 3'-end of a forward-strand k-mer in
// O(1): drop the oldest base (position 0, the lowest two bits), shift
// everything down two bits, and insert nt at the top.
func ShiftIn(km Kmer, k int, nt byte) (Kmer, bool) {
	b := baseCode[nt]
	if b == invalidBase {
		return km, false
	}
	out := km.Clone()
	carry := uint64(0)
	for i := len(out) - 1; i >= 0; i-- {
		nextCarry := (out[i] & 3) << 62
		out[i] = (out[i] >> 2) | carry
		carry = nextCarry
	}
	topLimb := len(out) - 1
	shift := uint((k - 1 - topLimb*32) * 2)
	out[topLimb] = (out[topLimb] &^ (uint64(3) << shift)) | (uint64(b) << shift)
	out[topLimb] &= topMask(k)
	return out, true
}

// ShiftInRev rolls a new base onto the reverse-complement k-mer that
// tracks ShiftIn's forward k-mer: the new base's complement enters at
// the bottom (5'-end in RC orientation), and everything shifts up.
func ShiftInRev(km Kmer, k int, nt byte) (Kmer, bool) {
	b := baseCode[nt]
	if b == invalidBase {
		return km, false
	}
	out := km.Clone()
	carry := uint64(0)
	for i := 0; i < len(out); i++ {
		nextCarry := out[i] >> 62
		out[i] = (out[i] << 2) | carry
		carry = nextCarry
	}
	out[0] |= complementBase(uint64(b)) << 0
	out[len(out)-1] &= topMask(k)
	return out, true
}

// Hash returns a deterministic 64-bit hash of a packed k-mer, used to
// shard the counter's in-memory hash table (spec §4.1, §4.6). Adapted
// directly from fusion/kmer_index.go's hashKmer, widened from a single
// uint64 key to farm's variable-length hasher so that k > 32 (multiple
// limbs) mixes every limb, not just the low 64 bits.
func Hash(km Kmer) uint64 {
	if len(km) == 1 {
		return farm.Hash64WithSeed(nil, km[0])
	}
	buf := make([]byte, 8*len(km))
	for i, limb := range km {
		putUint64(buf[i*8:], limb)
	}
	return farm.Hash64(buf)
}

func putUint64(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}
