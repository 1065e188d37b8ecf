// Package binner implements the per-sample super-k-mer binner (spec
// §4.5, C5): it walks every valid k-mer of a sample's reads, groups
// consecutive k-mers sharing a minimizer into super-k-mers, and
// routes each to the partition its minimizer belongs to.
package binner

import (
	"github.com/kmtricks-go/kmtricks/kerrors"
	"github.com/kmtricks-go/kmtricks/kmer"
	"github.com/kmtricks-go/kmtricks/repartition"
	"github.com/kmtricks-go/kmtricks/superkmer"
)

// Config bundles the parameters that stay fixed for a run.
type Config struct {
	K, M        int
	Table       *repartition.Table
	Order       kmer.Order
	Ranks       kmer.RankTable
	CacheBudget int // bytes; per-partition cache flush threshold
}

// Binner bins one sample's reads into its run directory's
// superkmers/<sample_id>/ bin files.
type Binner struct {
	cfg    Config
	store  *superkmer.Store
	caches []*superkmer.Cache
	it     *kmer.MinimizerIter
}

// New creates a binner writing into dir (superkmers/<sample_id>),
// which must already exist.
func New(dir string, cfg Config) (*Binner, error) {
	store, err := superkmer.Create(dir, cfg.Table.P)
	if err != nil {
		return nil, err
	}
	caches := make([]*superkmer.Cache, cfg.Table.P)
	for i := range caches {
		caches[i] = superkmer.NewCache(cfg.CacheBudget)
	}
	return &Binner{
		cfg:    cfg,
		store:  store,
		caches: caches,
		it:     kmer.NewMinimizerIter(cfg.K, cfg.M, cfg.Order, cfg.Ranks),
	}, nil
}

// ProcessSequence walks one read, closing and routing every super-k-mer
// it contains. Any non-ACGT character breaks the current run, matching
// the counter's requirement that every on-disk k-mer be well-formed.
func (b *Binner) ProcessSequence(seq string) error {
	b.it.Reset()
	k := b.cfg.K
	if len(seq) < k {
		return nil
	}

	var (
		runStart  = -1
		runEnd    = -1 // last k-mer's start position in the run
		runMmer   uint64
		runRC     bool
		haveRun   bool
		km        = kmer.New(k)
		validRun  int
	)

	flush := func() error {
		if !haveRun {
			return nil
		}
		nK := runEnd - runStart + 1
		raw := seq[runStart : runEnd+k]
		if runRC {
			raw = reverseComplement(raw)
		}
		payload := superkmer.Encode(raw, nK)
		p := b.cfg.Table.Partition(runMmer)
		if shouldFlush := b.caches[p].Insert(payload); shouldFlush {
			block, n := b.caches[p].Flush()
			if err := b.store.WriteBlock(p, block, uint64(n)); err != nil {
				return err
			}
		}
		haveRun = false
		return nil
	}

	for i := 0; i < len(seq); i++ {
		next, ok := kmer.ShiftIn(km, k, seq[i])
		if !ok {
			if err := flush(); err != nil {
				return err
			}
			b.it.Reset()
			validRun = 0
			continue
		}
		km = next
		validRun++
		if validRun < k {
			continue
		}
		kmerStart := i - k + 1
		can, which := kmer.Canonical(km, k)
		hit, ok := b.it.Advance(can, kmerStart)
		if !ok {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if haveRun && hit.MinimizerValue == runMmer {
			runEnd = kmerStart
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		runStart, runEnd = kmerStart, kmerStart
		runMmer = hit.MinimizerValue
		runRC = which
		haveRun = true
	}
	return flush()
}

// Close flushes every partition's remaining cache and persists the
// sample's info file.
func (b *Binner) Close() error {
	for p, c := range b.caches {
		if block, n := c.Flush(); block != nil {
			if err := b.store.WriteBlock(p, block, uint64(n)); err != nil {
				return err
			}
		}
	}
	if err := b.store.Close(); err != nil {
		return &kerrors.IOError{Op: "close binner", Err: err}
	}
	return nil
}
