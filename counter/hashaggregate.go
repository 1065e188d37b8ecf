package counter

import (
	"encoding/binary"
	"os"

	"github.com/kmtricks-go/kmtricks/format"
	"github.com/kmtricks-go/kmtricks/kerrors"
	"github.com/kmtricks-go/kmtricks/kmer"
	"github.com/kmtricks-go/kmtricks/superkmer"
)

// Config bundles one partition-counter invocation's parameters.
type Config struct {
	K             int
	Width         format.CountWidth
	AbundanceMin  uint64
	SaveIfEnabled bool // if true, don't pre-filter here; the merger's rescue needs raw counts below AbundanceMin too
	HashMode      bool // true: key/emit by u64 hash instead of the packed k-mer
	// Partition and WindowSizeBits place this partition's hash-mode
	// keys in their own disjoint slice of the global hash range (spec
	// §3, Hash window); unused when HashMode is false.
	Partition      int
	WindowSizeBits uint32
	// SpillThreshold bounds the in-memory table's distinct-key count
	// before it is dumped to a sorted temp file (spec §4.6, "when the
	// table exceeds a memory bound, dump ... and clear"). This stands
	// in for a byte-size memory bound: kmer_index.go's production
	// table sizes itself off real RSS, but a per-run CLI flag
	// expressing "max resident keys" keeps this self-contained and
	// testable without syscall-level memory probing.
	SpillThreshold int
}

// keyBytes renders a k-mer as a byte string whose lexicographic order
// agrees with kmer.Kmer.Less's numeric order: limbs are written
// highest-significance first (matching Less's "compare from the
// highest limb down"), each limb big-endian so within-limb byte
// comparison agrees with numeric comparison too. This is purely an
// internal sort/map key; on-disk records still use the format
// package's little-endian layout via MarshalKmerCount.
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

// HashAggregate implements Strategy A (spec §4.6, HashByHashCommand):
// an in-memory hash-aggregate table, grounded on fusion/kmer_index.go's
// sharded linear-probing hash table — simplified here to Go's native
// map (see DESIGN.md for why the unsafe mmap'd shard layout is not
// reproduced for this strategy) — with key-sorted spill-to-disk when
// the table grows past cfg.SpillThreshold, followed by a k-way merge
// of every spill plus the final resident table.
//
// sr is consumed fully; results are written through out, one record
// per distinct surviving key, in ascending key order; hist is updated
// with every distinct key's final (pre-filter) count.
func HashAggregate(sr *superkmer.Reader, tmpDir string, cfg Config, out *format.Writer, hist *Histogram) error {
	table := make(map[string]uint64)
	var spillPaths []string
	spillSeq := 0

	flushIfNeeded := func() error {
		if len(table) < cfg.SpillThreshold {
			return nil
		}
		path, err := spillTable(tmpDir, spillSeq, table)
		if err != nil {
			return err
		}
		spillSeq++
		spillPaths = append(spillPaths, path)
		table = make(map[string]uint64)
		return nil
	}

	for {
		block, ok, err := sr.ReadBlock()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		var walkErr error
		superkmer.IterateSuperKmers(block, cfg.K, func(seq string, nK int) {
			if walkErr != nil {
				return
			}
			walkErr = walkSuperKmer(seq, cfg.K, nK, cfg.HashMode, cfg.Partition, cfg.WindowSizeBits, func(key string) {
				table[key] = cfg.Width.SaturatingAdd(table[key], 1)
			})
		})
		if walkErr != nil {
			return walkErr
		}
		if err := flushIfNeeded(); err != nil {
			return err
		}
	}

	sources := make([]keySource, 0, len(spillPaths)+1)
	var readers []*spillReader
	for _, p := range spillPaths {
		r, err := openSpill(p)
		if err != nil {
			return err
		}
		readers = append(readers, r)
		sources = append(sources, r)
	}
	sources = append(sources, newSortedSlice(table))
	defer func() {
		for _, r := range readers {
			r.close()
			os.Remove(r.f.Name())
		}
	}()

	return mergeSources(sources, func(key string, count uint64) error {
		count = cfg.Width.SaturatingAdd(0, count)
		hist.Observe(count)
		if count < cfg.AbundanceMin && !cfg.SaveIfEnabled {
			return nil
		}
		return writeCountRecord(out, cfg, key, count)
	})
}

// walkSuperKmer decodes a super-k-mer's nK consecutive k-mers via one
// Pack and nK-1 O(1) ShiftIn rolls, canonicalizes each, and calls fn
// with that k-mer's key bytes (packed limbs, or its windowed hash if
// hashMode).
func walkSuperKmer(seq string, k, nK int, hashMode bool, partition int, windowSizeBits uint32, fn func(key string)) error {
	km, ok := kmer.Pack(seq[:k], k)
	if !ok {
		return &kerrors.FormatError{Op: "decode super-k-mer", Kind: "superkmer", Err: errInvalidBase}
	}
	emit := func(window kmer.Kmer) {
		can, _ := kmer.Canonical(window, k)
		if hashMode {
			fn(hashKeyBytes(format.HashWindow(can, partition, windowSizeBits)))
		} else {
			fn(keyBytes(can))
		}
	}
	emit(km)
	cur := km
	for i := 1; i < nK; i++ {
		next, ok := kmer.ShiftIn(cur, k, seq[k-1+i])
		if !ok {
			return &kerrors.FormatError{Op: "decode super-k-mer", Kind: "superkmer", Err: errInvalidBase}
		}
		cur = next
		emit(cur)
	}
	return nil
}

func writeCountRecord(out *format.Writer, cfg Config, key string, count uint64) error {
	if cfg.HashMode {
		h := binary.BigEndian.Uint64([]byte(key))
		return out.WriteRecord(format.MarshalHashCount(h, count, cfg.Width))
	}
	slots := len(key) / 8
	km := make(kmer.Kmer, slots)
	kb := []byte(key)
	for i := range km {
		pos := slots - 1 - i
		km[i] = binary.BigEndian.Uint64(kb[pos*8:])
	}
	return out.WriteRecord(format.MarshalKmerCount(km, count, cfg.Width))
}
