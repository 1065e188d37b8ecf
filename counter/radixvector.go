package counter

import (
	"encoding/binary"
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/kmtricks-go/kmtricks/format"
	"github.com/kmtricks-go/kmtricks/kerrors"
	"github.com/kmtricks-go/kmtricks/kmer"
	"github.com/kmtricks-go/kmtricks/superkmer"
	"golang.org/x/sys/unix"
)

// RadixConfig extends Config with the pre-sizing and concurrency
// knobs Strategy B needs (spec §4.6, PartitionsByVectorCommand).
type RadixConfig struct {
	Config
	// EstimatedKmers sizes the backing array; it comes from the
	// binner's per-partition load estimate (repartition's sampling
	// pass and the superkmer info file both contribute to this
	// number upstream of counter).
	EstimatedKmers int
	Workers        int
}

const hugePageSize = 2 << 20

// mmapU64Slice anonymously maps n*8 bytes plus one huge page of
// alignment slack with MADV_HUGEPAGE and returns a huge-page-aligned
// n-element []uint64 view of it, mirroring fusion/kmer_index.go's
// transparent-hugepage-backed table allocation (there: an array of
// kmerIndexEntry; here: a flat array of u64 keys for Strategy B's
// radix-style fill).
func mmapU64Slice(n int) ([]byte, []uint64, error) {
	size := n*8 + hugePageSize
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, &kerrors.IOError{Op: "mmap radix vector", Err: err}
	}
	if err := unix.Madvise(data, unix.MADV_HUGEPAGE); err != nil {
		// Hugepage hinting is an optimization only; failure here is
		// not fatal to correctness.
		_ = err
	}
	aligned := ((uintptr(unsafe.Pointer(&data[0]))-1)/hugePageSize + 1) * hugePageSize
	base := unsafe.Pointer(aligned)
	view := unsafe.Slice((*uint64)(base), n)
	return data, view, nil
}

// RadixVector implements Strategy B (spec §4.6): a fixed pre-sized
// array filled concurrently by atomically reserving the next slot,
// then sorted in place and scanned into (key, run_length) records.
// Only the k<=32 (single-limb) or hash-indexed case is supported
// directly against the flat u64 array; for wider k without hash
// indexing it returns a PipelineError (errWideKeyUnsupported) and does
// not fall back to HashAggregate (the spec's own "u64 (or u128)"
// parenthetical acknowledges a wider-key variant this module does not
// implement).
func RadixVector(sr *superkmer.Reader, tmpDir string, cfg RadixConfig, out *format.Writer, hist *Histogram) error {
	if !cfg.HashMode && cfg.K > 32 {
		return &kerrors.PipelineError{Op: "RadixVector", Err: errWideKeyUnsupported}
	}

	mem, view, err := mmapU64Slice(cfg.EstimatedKmers)
	if err != nil {
		return err
	}
	defer unix.Munmap(mem)

	var next int64
	type job struct {
		seq string
		nK  int
	}
	jobs := make(chan job, 256)
	var wg sync.WaitGroup
	var workErr atomic.Value // stores error

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				err := walkSuperKmer(j.seq, cfg.K, j.nK, cfg.HashMode, cfg.Partition, cfg.WindowSizeBits, func(key string) {
					k := readU64(key)
					slot := atomic.AddInt64(&next, 1) - 1
					if int(slot) >= len(view) {
						workErr.Store(&kerrors.OutOfMemoryError{Op: "RadixVector", Requested: slot + 1, Limit: int64(len(view))})
						return
					}
					view[slot] = k
				})
				if err != nil {
					workErr.Store(err)
				}
			}
		}()
	}

	for {
		block, ok, err := sr.ReadBlock()
		if err != nil {
			close(jobs)
			wg.Wait()
			return err
		}
		if !ok {
			break
		}
		superkmer.IterateSuperKmers(block, cfg.K, func(seq string, nK int) {
			jobs <- job{seq: seq, nK: nK}
		})
	}
	close(jobs)
	wg.Wait()

	if e := workErr.Load(); e != nil {
		return e.(error)
	}

	n := int(atomic.LoadInt64(&next))
	filled := view[:n]
	sort.Sort(uint64Slice(filled))

	i := 0
	for i < len(filled) {
		j := i + 1
		for j < len(filled) && filled[j] == filled[i] {
			j++
		}
		count := cfg.Width.SaturatingAdd(0, uint64(j-i))
		hist.Observe(count)
		if !(count < cfg.AbundanceMin && !cfg.SaveIfEnabled) {
			if err := writeRadixRecord(out, cfg.Config, filled[i], count); err != nil {
				return err
			}
		}
		i = j
	}
	return nil
}

// readU64 decodes the big-endian 8-byte key produced by keyBytes /
// hashKeyBytes back into the numeric value it represents (matching
// kmer.Kmer.Less's and the canonical hash's own ordering).
func readU64(s string) uint64 {
	return binary.BigEndian.Uint64([]byte(s))
}

func writeRadixRecord(out *format.Writer, cfg Config, key uint64, count uint64) error {
	if cfg.HashMode {
		return out.WriteRecord(format.MarshalHashCount(key, count, cfg.Width))
	}
	km := kmer.Kmer{key}
	return out.WriteRecord(format.MarshalKmerCount(km, count, cfg.Width))
}

type uint64Slice []uint64

func (s uint64Slice) Len() int           { return len(s) }
func (s uint64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s uint64Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
