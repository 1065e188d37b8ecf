package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/kmtricks-go/kmtricks/format"
	"github.com/kmtricks-go/kmtricks/kerrors"
	"github.com/kmtricks-go/kmtricks/kmer"
	"github.com/kmtricks-go/kmtricks/matrixop"
	"github.com/kmtricks-go/kmtricks/repartition"
	"github.com/kmtricks-go/kmtricks/runctx"
)

// runAggregate implements -op=aggregate: concatenate disjoint-key
// matrix files in file order (spec §4.8's aggregate operation).
func runAggregate(ctx context.Context) error {
	if aggOut == "" || aggInputs == "" {
		return &kerrors.InputError{Op: "kmtricks -op=aggregate", Err: fmt.Errorf("-aggregate-inputs and -aggregate-out are required")}
	}
	inputs := splitCSV(aggInputs)
	kind := matrixKind()
	return matrixop.Aggregate(ctx, kind, func() interface{} { return newMatrixHeader(kind) }, aggOut, inputs)
}

// runMergeRuns implements -op=merge-runs: the cross-run matrix merge
// (spec §4.8), after checking every run's repartition table agrees.
func runMergeRuns(ctx context.Context) error {
	if mergeOut == "" || mergeRuns == "" {
		return &kerrors.InputError{Op: "kmtricks -op=merge-runs", Err: fmt.Errorf("-merge-run-dirs and -merge-out are required")}
	}
	dirs := splitCSV(mergeRuns)

	tables := make([]*repartition.Table, len(dirs))
	for i, d := range dirs {
		rc := runctx.NewRunContext(d, runctx.Config{})
		t, err := repartition.Load(rc.RepartitionTablePath())
		rc.Close()
		if err != nil {
			return err
		}
		tables[i] = t
	}
	if err := matrixop.CheckMergeable(tables); err != nil {
		return err
	}

	kind := matrixKind()
	kmerSlots := kmer.Slots(kSize)

	sources := make([]*matrixop.Source, len(dirs))
	nTotal := 0
	pos := 0
	for i, d := range dirs {
		path := matrixPathFor(d, mergePartition)
		n := mergeNTotal
		if n == 0 {
			n = 1
		}
		src, err := matrixop.OpenSource(ctx, path, kind, hashMode, paMode, kmerSlots, n, pos, countWidth())
		if err != nil {
			return err
		}
		sources[i] = src
		pos += n
		nTotal += n
	}

	cfg := matrixop.MergeConfig{
		Kind: kind, HashMode: hashMode, IsPA: paMode,
		K: kSize, KmerSlots: kmerSlots, NTotal: nTotal, Width: countWidth(),
		ID: "merged", Partition: mergePartition,
	}
	if err := matrixop.Merge(ctx, sources, cfg, mergeOut); err != nil {
		return err
	}
	for _, s := range sources {
		if err := s.Close(ctx); err != nil {
			return err
		}
	}
	return nil
}

// runFilter implements -op=filter: fold one new sample's count stream
// into an existing matrix partition (spec §4.9).
func runFilter(ctx context.Context) error {
	if filterMatrixIn == "" || filterKmerIn == "" {
		return &kerrors.InputError{Op: "kmtricks -op=filter", Err: fmt.Errorf("-filter-matrix-in and -filter-kmer-in are required")}
	}
	kmerSlots := kmer.Slots(kSize)
	kmers, err := matrixop.OpenSampleStream(ctx, filterKmerIn, hashMode, kmerSlots, countWidth())
	if err != nil {
		return err
	}

	n := mergeNTotal
	if n == 0 {
		n = 1
	}
	matrix, err := matrixop.OpenSource(ctx, filterMatrixIn, matrixKind(), hashMode, paMode, kmerSlots, n, 0, countWidth())
	if err != nil {
		return err
	}

	cfg := matrixop.FilterConfig{
		MatrixKind: matrixKind(), HashMode: hashMode, IsPA: paMode,
		K: kSize, KmerSlots: kmerSlots, N: n, Width: countWidth(),
		ID: "filtered", Partition: mergePartition,
		MatrixOutPath: filterMatrixOut, VecOutPath: filterVecOut, KmerOutPath: filterKmerOut,
	}
	return matrixop.Filter(ctx, kmers, matrix, cfg)
}

func matrixKind() format.Kind {
	switch {
	case !hashMode && !paMode:
		return format.KindMatrixCount
	case hashMode && !paMode:
		return format.KindMatrixHashCount
	case !hashMode && paMode:
		return format.KindPAMatrix
	default:
		return format.KindPAMatrixHash
	}
}

func newMatrixHeader(kind format.Kind) interface{} {
	switch kind {
	case format.KindMatrixCount:
		return &format.MatrixCountHeader{}
	case format.KindMatrixHashCount:
		return &format.MatrixHashCountHeader{}
	case format.KindPAMatrix:
		return &format.PAMatrixHeader{}
	default:
		return &format.PAMatrixHashHeader{}
	}
}

func matrixPathFor(runDir string, partition int) string {
	rc := runctx.NewRunContext(runDir, runctx.Config{})
	defer rc.Close()
	return rc.MatrixPath(partition, hashMode, paMode, compressed)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
