package merger

import "container/heap"

// Sink receives one decided row per surviving key (spec §4.7, Output
// shapes). c is the post-rescue count vector (zero for samples not
// counted solid); implementations decide how to render it.
type Sink interface {
	Emit(key string, c []uint64) error
	Close() error
}

type headItem struct {
	key    string
	count  uint64
	sample int
	src    *SampleSource
}

type mergeHeap []headItem

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].key < h[j].key }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(headItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Config bundles one merge invocation's per-sample parameters.
type Config struct {
	N            int
	AbundanceMin []uint64
	RMin         int
	SaveIf       int
}

// Run performs the N-way merge described in spec §4.7: a priority
// queue of sample heads ordered by key; at each step, every head
// tying the minimum key is folded into a count vector c, the
// solidity/rescue predicate decides whether and how it survives, and
// the surviving row is handed to every sink. Plugin overrides the
// default recurrence decision when non-nil (spec §4.7, "Plugin
// hook").
func Run(sources []*SampleSource, cfg Config, sinks []Sink, stats *Stats, plugin func(key string, c []uint64) bool) error {
	h := make(mergeHeap, 0, len(sources))
	for i, s := range sources {
		key, count, ok, err := s.Next()
		if err != nil {
			return err
		}
		if ok {
			h = append(h, headItem{key: key, count: count, sample: i, src: s})
		}
	}
	heap.Init(&h)

	c := make([]uint64, cfg.N)
	for h.Len() > 0 {
		key := h[0].key
		for i := range c {
			c[i] = 0
		}
		for h.Len() > 0 && h[0].key == key {
			item := heap.Pop(&h).(headItem)
			c[item.sample] = item.count
			nk, nc, ok, err := item.src.Next()
			if err != nil {
				return err
			}
			if ok {
				heap.Push(&h, headItem{key: nk, count: nc, sample: item.sample, src: item.src})
			}
		}

		emit := ApplySolidity(c, cfg.AbundanceMin, cfg.RMin, cfg.SaveIf, stats)
		if plugin != nil {
			emit = plugin(key, c)
		}
		if !emit {
			continue
		}
		for _, sink := range sinks {
			if err := sink.Emit(key, c); err != nil {
				return err
			}
		}
	}
	return nil
}
