package counter

import "container/heap"

// keySource is the common shape of spillReader and sortedSlice: a
// sequential source of (key, count) pairs in ascending key order.
type keySource interface {
	next() (spillRecord, bool, error)
}

// mergeItem is one live head in the k-way merge's priority queue.
type mergeItem struct {
	rec    spillRecord
	src    keySource
	srcIdx int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].rec.key < h[j].rec.key }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// mergeSources k-way merges every source by key, summing counts for
// equal keys (ties arise when the same canonical k-mer was spilled
// from more than one table generation), and calls emit once per
// distinct key in ascending order (spec §4.6: "k-way-merge all temp
// files with the final table contents, summing counts on ties").
func mergeSources(sources []keySource, emit func(key string, count uint64) error) error {
	h := make(mergeHeap, 0, len(sources))
	for i, s := range sources {
		rec, ok, err := s.next()
		if err != nil {
			return err
		}
		if ok {
			h = append(h, mergeItem{rec: rec, src: s, srcIdx: i})
		}
	}
	heap.Init(&h)

	for h.Len() > 0 {
		top := h[0]
		key := top.rec.key
		var sum uint64
		for h.Len() > 0 && h[0].rec.key == key {
			item := heap.Pop(&h).(mergeItem)
			sum += item.rec.count
			next, ok, err := item.src.next()
			if err != nil {
				return err
			}
			if ok {
				heap.Push(&h, mergeItem{rec: next, src: item.src, srcIdx: item.srcIdx})
			}
		}
		if err := emit(key, sum); err != nil {
			return err
		}
	}
	return nil
}
