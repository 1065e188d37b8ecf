package kmer

import "container/list"

// Order picks the total order over valid m-mers used to select a
// minimizer (spec §3 Entity: Minimizer).
type Order uint8

const (
	// OrderLex orders m-mers purely lexicographically (by packed
	// value, since the packing preserves lexicographic order of the
	// ASCII alphabet A<C<G<T... note: spec only requires *a* total
	// order, consistent low/high choice; we use packed-value order).
	OrderLex Order = iota
	// OrderFrequency orders by ascending rank from a frequency table
	// built by repartition's sampling pass (see repartition package);
	// unseen m-mers rank last.
	OrderFrequency
)

// RankTable supplies the total order for OrderFrequency: Rank(mmer)
// returns a smaller value for "more preferred" m-mers. A nil RankTable
// means OrderLex regardless of the requested Order.
type RankTable interface {
	Rank(mmer uint64) uint32
}

// containsAA reports whether the 2-mer "AA" occurs in mmer under the
// A=0,C=1,T=2,G=3 packing: base A is 0, so "AA" packs to 0b0000 in the
// low 4 bits of any 2-base window starting there. A minimizer is invalid iff this
// pattern occurs anywhere within it (spec §3).
func containsAA(mmer uint64, m int) bool {
	for i := 0; i+1 < m; i++ {
		b0 := (mmer >> uint(2*i)) & 3
		b1 := (mmer >> uint(2*(i+1))) & 3
		if b0 == 0 && b1 == 0 {
			return true
		}
	}
	return false
}

// packMmer extracts the packed value of the m consecutive bases
// starting at position pos (0-based, within a forward k-mer window
// already packed into km).
func packMmer(km Kmer, k, m, pos int) uint64 {
	var v uint64
	for i := 0; i < m; i++ {
		idx := pos + i
		limb := idx / 32
		shift := uint((idx % 32) * 2)
		v |= ((km[limb] >> shift) & 3) << uint(2*i)
	}
	return v
}

func less(order Order, ranks RankTable, a, b uint64, m int) bool {
	if order == OrderFrequency && ranks != nil {
		ra, rb := ranks.Rank(a), ranks.Rank(b)
		if ra != rb {
			return ra < rb
		}
	}
	return a < b
}

// MinimizerPos is one element of the monotonic deque used by
// IterMinimizers: the m-mer's packed value and its starting offset
// within the current k-mer window.
type MinimizerPos struct {
	Value uint64
	Pos   int
}

// MinimizerHit is yielded at each valid k-mer position.
type MinimizerHit struct {
	// KmerPos is the 0-based start of the k-mer within the read.
	KmerPos int
	// MinimizerValue is the packed value of the k-mer's m-minimizer.
	MinimizerValue uint64
	// MinimizerPos is the k-mer-relative offset of the minimizer.
	MinimizerPos int
}

// MinimizerIter yields, for every valid k-mer position in a packed
// forward strand, the position and value of its m-minimizer, using a
// monotonic-deque sliding-window minimum (spec §4.1): amortized O(1)
// per step. It does not itself detect super-k-mer boundaries; binner
// does that by comparing consecutive MinimizerHit values.
type MinimizerIter struct {
	k, m  int
	order Order
	ranks RankTable
	deque *list.List // of MinimizerPos, increasing position, non-decreasing value under `less`
}

// NewMinimizerIter constructs an iterator for the given k, m and
// ordering. ranks may be nil (forces OrderLex behavior).
func NewMinimizerIter(k, m int, order Order, ranks RankTable) *MinimizerIter {
	return &MinimizerIter{k: k, m: m, order: order, ranks: ranks, deque: list.New()}
}

// Reset clears accumulated deque state; call at the start of each new
// read (a super-k-mer / minimizer run never spans a read boundary).
func (it *MinimizerIter) Reset() {
	it.deque.Init()
}

// validMmer reports whether the m-mer at km[pos:pos+m] is usable as a
// minimizer candidate: no embedded "AA" (spec §3).
func (it *MinimizerIter) validMmer(km Kmer, pos int) (uint64, bool) {
	v := packMmer(km, it.k, it.m, pos)
	if containsAA(v, it.m) {
		return 0, false
	}
	return v, true
}

// Advance is called once per valid k-mer position (km already holds
// the forward-strand packed k-mer ending at position kmerPos+k-1,
// canonicalized orientation is the caller's concern — spec says the
// minimizer is computed "in orientation chosen by the canonical
// form"). It slides the window forward by one base, evicting the
// m-mer that fell off the back and admitting the new one at the
// front, and returns the current minimizer.
//
// newMmerPos is the position (relative to the read) of the newly
// admitted m-mer window, i.e. kmerPos + k - m.
func (it *MinimizerIter) Advance(km Kmer, kmerPos int) (MinimizerHit, bool) {
	newPos := kmerPos + it.k - it.m
	// Evict any trailing entries whose position is now out of window.
	oldest := kmerPos
	for e := it.deque.Front(); e != nil; {
		mp := e.Value.(MinimizerPos)
		if mp.Pos < oldest {
			next := e.Next()
			it.deque.Remove(e)
			e = next
			continue
		}
		break
	}
	if v, ok := it.validMmer(km, it.k-it.m); ok {
		// Pop from the back while the new value is "smaller or equal"
		// under the order (monotonic deque invariant).
		for e := it.deque.Back(); e != nil; {
			mp := e.Value.(MinimizerPos)
			if !less(it.order, it.ranks, mp.Value, v, it.m) {
				prev := e.Prev()
				it.deque.Remove(e)
				e = prev
				continue
			}
			break
		}
		it.deque.PushBack(MinimizerPos{Value: v, Pos: newPos})
	}
	if it.deque.Len() == 0 {
		return MinimizerHit{}, false
	}
	front := it.deque.Front().Value.(MinimizerPos)
	return MinimizerHit{
		KmerPos:        kmerPos,
		MinimizerValue: front.Value,
		MinimizerPos:   front.Pos - kmerPos,
	}, true
}

// FastLexMinimizer is the bit-trick fast path for the common case "no
// AA in any m-mer of this k-mer" (spec §4.1). It returns ok=false
// ("fallback requested") whenever it cannot immediately prove the
// whole k-mer is AA-free; callers must then fall back to the generic
// per-position scan. Per spec §9's open question, this module never
// tries to fully characterize the failing set — any uncertainty
// degrades to the generic path.
func FastLexMinimizer(km Kmer, k, m int) (MinimizerHit, bool) {
	// Prove AA-freedom over the whole k-mer in one pass; if proven,
	// the minimum m-mer under plain lexicographic (numeric) order can
	// be found by a single linear scan without deque bookkeeping.
	for i := 0; i+1 < k; i++ {
		b0 := baseAt(km, i)
		b1 := baseAt(km, i+1)
		if b0 == 0 && b1 == 0 {
			return MinimizerHit{}, false
		}
	}
	best := uint64(1)<<uint(2*m) - 1 + 1 // sentinel larger than any m-mer
	bestPos := -1
	for pos := 0; pos+m <= k; pos++ {
		v := packMmer(km, k, m, pos)
		if v < best {
			best = v
			bestPos = pos
		}
	}
	if bestPos < 0 {
		return MinimizerHit{}, false
	}
	return MinimizerHit{KmerPos: 0, MinimizerValue: best, MinimizerPos: bestPos}, true
}

func baseAt(km Kmer, i int) uint64 {
	limb := i / 32
	shift := uint((i % 32) * 2)
	return (km[limb] >> shift) & 3
}
