package repartition

import (
	"container/heap"
	"sort"

	"github.com/kmtricks-go/kmtricks/kmer"
)

// SeqSource yields the bounded sample of input sequences the build
// phase streams over (spec §4.4.1: "draw a bounded sample of input
// sequences"). Sampling itself — the ~5%-or-capped selection — is
// done by the Sample iterator in sample.go, upstream of Build.
type SeqSource interface {
	// Next returns the next sequence and true, or ("", false) once
	// exhausted.
	Next() (string, bool)
}

// binStats accumulates the three weight estimates spec §4.4.1 names
// per minimizer bin: super-k-mer count, k-mer count, and kx-mer count
// (kx=4: consecutive same-strand k-mers are grouped in runs of up to
// 4 for load-estimation purposes).
type binStats struct {
	superKmers uint64
	kmers      uint64
	kxMers     uint64
}

const kx = 4

// accumulate folds one super-k-mer run of nK consecutive k-mers
// sharing a minimizer into that minimizer's stats.
func (s *binStats) accumulate(nK int) {
	s.superKmers++
	s.kmers += uint64(nK)
	s.kxMers += uint64((nK + kx - 1) / kx)
}

// Build runs the sampling + greedy bin-packing build phase and
// returns the resulting table. ranks is nil unless order is
// kmer.OrderFrequency, in which case it must be a table built by
// CountFrequencies over the same sample.
func Build(seqs SeqSource, k, m, p int, order kmer.Order, ranks kmer.RankTable) *Table {
	mSize := 1
	for i := 0; i < m; i++ {
		mSize *= 4
	}
	stats := make([]binStats, mSize)

	for {
		seq, ok := seqs.Next()
		if !ok {
			break
		}
		scanSequence(seq, k, m, order, ranks, stats)
	}

	table := greedyPack(stats, mSize, p)

	t := &Table{
		P:         p,
		MSize:     mSize,
		PassCount: 1,
		Table:     table,
	}
	if order == kmer.OrderFrequency {
		t.PassCount = 2
		t.HasFreq = true
		if rt, ok := ranks.(*FreqRanks); ok {
			t.Freq = rt.ranks
		}
	}
	return t
}

// scanSequence walks every valid k-mer of seq, tracking minimizer
// runs exactly as the binner does (spec §4.5), and folds each closed
// run into stats.
func scanSequence(seq string, k, m int, order kmer.Order, ranks kmer.RankTable, stats []binStats) {
	if len(seq) < k {
		return
	}
	it := kmer.NewMinimizerIter(k, m, order, ranks)
	var runLen int
	var runMmer uint64
	var haveRun bool

	flush := func() {
		if haveRun && runLen > 0 {
			stats[runMmer].accumulate(runLen)
		}
		runLen = 0
		haveRun = false
	}

	km := kmer.New(k)
	valid := 0
	for i := 0; i < len(seq); i++ {
		next, ok := kmer.ShiftIn(km, k, seq[i])
		if !ok {
			flush()
			it.Reset()
			valid = 0
			continue
		}
		km = next
		valid++
		if valid < k {
			continue
		}
		can, _ := kmer.Canonical(km, k)
		hit, ok := it.Advance(can, i-k+1)
		if !ok {
			flush()
			continue
		}
		if haveRun && hit.MinimizerValue == runMmer {
			runLen++
			continue
		}
		flush()
		runMmer = hit.MinimizerValue
		runLen = 1
		haveRun = true
	}
	flush()
}

// partitionWeight tracks one partition's accumulated kx-mer weight
// for the greedy bin-packing min-heap.
type partitionWeight struct {
	index  int
	weight uint64
}

type partitionHeap []partitionWeight

func (h partitionHeap) Len() int            { return len(h) }
func (h partitionHeap) Less(i, j int) bool  { return h[i].weight < h[j].weight }
func (h partitionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *partitionHeap) Push(x interface{}) { *h = append(*h, x.(partitionWeight)) }
func (h *partitionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// greedyPack implements spec §4.4.1 step 3: sort minimizers descending
// by kx-mer weight, maintain a min-heap of partitions by accumulated
// weight, and on each step pop the lightest partition and assign it
// the heaviest remaining minimizer.
func greedyPack(stats []binStats, mSize, p int) []uint16 {
	order := make([]int, 0, mSize)
	for i, s := range stats {
		if s.kxMers > 0 {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		return stats[order[a]].kxMers > stats[order[b]].kxMers
	})

	h := make(partitionHeap, p)
	for i := range h {
		h[i] = partitionWeight{index: i}
	}
	heap.Init(&h)

	table := make([]uint16, mSize)
	for _, mmer := range order {
		lightest := heap.Pop(&h).(partitionWeight)
		table[mmer] = uint16(lightest.index)
		lightest.weight += stats[mmer].kxMers
		heap.Push(&h, lightest)
	}
	// Minimizers never observed during sampling still need a home;
	// assign them round-robin so the table remains total.
	for i, s := range stats {
		if s.kxMers == 0 {
			table[i] = uint16(i % p)
		}
	}
	return table
}
