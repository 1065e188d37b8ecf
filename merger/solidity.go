package merger

// SolidityMode selects how the recurrence threshold r_min is derived,
// supplementing spec §4.7's generic "r_min is a run parameter" with
// the three modes original_source/CountProcessorSolidity.hpp
// implements: "at least one sample", "every sample", or an explicit
// custom threshold.
type SolidityMode uint8

const (
	ModeAny SolidityMode = iota
	ModeAll
	ModeCustom
)

// ResolveRMin turns a SolidityMode into the concrete r_min threshold
// the merge step compares recurrence against. custom is only used by
// ModeCustom.
func ResolveRMin(mode SolidityMode, n, custom int) int {
	switch mode {
	case ModeAny:
		return 1
	case ModeAll:
		return n
	default:
		return custom
	}
}

// Stats accumulates the per-sample counters spec §8 requires,
// indexed 0..N-1 in sample order.
//
// This module resolves an ambiguity the spec leaves open (which
// exact events each counter fires on) as follows, recorded in
// DESIGN.md: TotalWoRescue/TotalWRescue count every key where sample i
// was present and solid before/after rescue respectively; UniqueWoRescue/
// UniqueWRescue count keys solid in exactly one sample (recurrence==1)
// attributable to i, before/after rescue; NonSolid counts keys where i
// was present but never counted solid even after rescue; Rescued
// counts keys where i's count was saved by the rescue rule.
type Stats struct {
	NonSolid       []uint64
	Rescued        []uint64
	UniqueWoRescue []uint64
	UniqueWRescue  []uint64
	TotalWoRescue  []uint64
	TotalWRescue   []uint64
}

// NewStats allocates a zeroed Stats for n samples.
func NewStats(n int) *Stats {
	return &Stats{
		NonSolid:       make([]uint64, n),
		Rescued:        make([]uint64, n),
		UniqueWoRescue: make([]uint64, n),
		UniqueWRescue:  make([]uint64, n),
		TotalWoRescue:  make([]uint64, n),
		TotalWRescue:   make([]uint64, n),
	}
}

// ApplySolidity implements spec §4.7's per-key decision: it mutates c
// in place (zeroing entries the rescue rule rejects), updates stats,
// and returns whether the key should be emitted at all
// (recurrence >= rMin).
func ApplySolidity(c []uint64, abundanceMin []uint64, rMin, saveIf int, stats *Stats) bool {
	n := len(c)
	origPresent := make([]bool, n)
	preSolid := make([]bool, n)
	recurrence := 0
	for i := 0; i < n; i++ {
		if c[i] > 0 {
			origPresent[i] = true
		}
		if c[i] > 0 && c[i] >= abundanceMin[i] {
			recurrence++
			preSolid[i] = true
		}
	}
	solidIn := recurrence

	// The gate counts this very sample's own rescue toward the
	// threshold it is being tested against: solid_in+1 is the
	// recurrence save_if would see once this count is rescued, so
	// save_if=1 always rescues (even out of zero pre-existing solid
	// samples) while save_if=2 requires at least one other sample
	// already solid. spec.md's worked rescue scenario turns on this
	// exact boundary.
	rescuedNow := make([]bool, n)
	for i := 0; i < n; i++ {
		if c[i] > 0 && c[i] < abundanceMin[i] {
			if saveIf > 0 && solidIn+1 >= saveIf {
				recurrence++
				rescuedNow[i] = true
			} else {
				c[i] = 0
			}
		}
	}

	postSolid := make([]bool, n)
	for i := 0; i < n; i++ {
		postSolid[i] = preSolid[i] || rescuedNow[i]
	}

	emit := recurrence >= rMin

	for i := 0; i < n; i++ {
		if !origPresent[i] {
			continue
		}
		if preSolid[i] {
			stats.TotalWoRescue[i]++
		}
		if postSolid[i] {
			stats.TotalWRescue[i]++
		} else {
			stats.NonSolid[i]++
		}
		if rescuedNow[i] {
			stats.Rescued[i]++
		}
	}
	if emit {
		if countTrue(preSolid) == 1 {
			for i := 0; i < n; i++ {
				if preSolid[i] {
					stats.UniqueWoRescue[i]++
				}
			}
		}
		if countTrue(postSolid) == 1 {
			for i := 0; i < n; i++ {
				if postSolid[i] {
					stats.UniqueWRescue[i]++
				}
			}
		}
	}
	return emit
}

func countTrue(b []bool) int {
	n := 0
	for _, v := range b {
		if v {
			n++
		}
	}
	return n
}
