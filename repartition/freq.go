package repartition

import "sort"

// FreqRanks implements kmer.RankTable for the optional
// frequency-ordering pass (spec §4.4: "count m-mer occurrences in a
// sample, then rank them; the ordering function substitutes rank for
// lexicographic value"). Unseen m-mers get the largest rank so they
// sort last.
type FreqRanks struct {
	ranks []uint32
}

// Rank implements kmer.RankTable.
func (r *FreqRanks) Rank(mmer uint64) uint32 { return r.ranks[mmer] }

// CountFrequencies runs the frequency-ordering pre-pass over seqs:
// tally every valid (ACGT-only) m-mer occurrence, then rank distinct
// values by descending count (most frequent gets the smallest rank,
// so it is preferred like the smallest lexicographic value would be).
// m-mers never observed receive rank len(order), the number of distinct
// observed m-mers, i.e. strictly larger than every observed rank, so
// they are the least preferred minimizers. The rank does not pick a
// partition: Build places minimizers its sample never produced
// round-robin across partitions, not in the last one.
func CountFrequencies(seqs SeqSource, m int) *FreqRanks {
	mSize := 1
	for i := 0; i < m; i++ {
		mSize *= 4
	}
	counts := make([]uint64, mSize)
	seen := make([]bool, mSize)

	for {
		seq, ok := seqs.Next()
		if !ok {
			break
		}
		countMmers(seq, m, counts, seen)
	}

	order := make([]int, 0, mSize)
	for i, s := range seen {
		if s {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		if counts[order[a]] != counts[order[b]] {
			return counts[order[a]] > counts[order[b]]
		}
		return order[a] < order[b]
	})

	ranks := make([]uint32, mSize)
	unseenRank := uint32(len(order))
	for i := range ranks {
		ranks[i] = unseenRank
	}
	for rank, mmer := range order {
		ranks[mmer] = uint32(rank)
	}
	return &FreqRanks{ranks: ranks}
}

// countMmers tallies every valid length-m substring of seq by its
// packed 2-bit value, resetting the running window on any non-ACGT
// character.
func countMmers(seq string, m int, counts []uint64, seen []bool) {
	var window uint64
	valid := 0
	mask := uint64(1)<<uint(2*m) - 1
	for i := 0; i < len(seq); i++ {
		b, ok := codeOf(seq[i])
		if !ok {
			valid = 0
			window = 0
			continue
		}
		window = ((window >> 2) | uint64(b)<<uint(2*(m-1))) & mask
		valid++
		if valid < m {
			continue
		}
		counts[window]++
		seen[window] = true
	}
}

func codeOf(ch byte) (uint64, bool) {
	switch ch {
	case 'A', 'a':
		return 0, true
	case 'C', 'c':
		return 1, true
	case 'T', 't':
		return 2, true
	case 'G', 'g':
		return 3, true
	default:
		return 0, false
	}
}
