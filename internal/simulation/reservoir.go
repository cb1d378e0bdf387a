package simulation

import (
	"container/heap"
	"sort"
)

// reservoirItem is one retained KPI with its run-derived priority
type reservoirItem struct {
	priority uint64
	index    int
	value    float64
}

// itemHeap is a max-heap on (priority, index) so the root is the first item
// evicted
type itemHeap []reservoirItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].index > h[j].index
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)   { *h = append(*h, x.(reservoirItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// reservoir keeps the K runs with the smallest hashed priority. Priority is a
// pure function of seed and run index, so the retained set does not depend on
// arrival order or how runs were split across partial aggregates.
type reservoir struct {
	size int
	salt uint64
	h    itemHeap
}

func newReservoir(size int, seed int64) *reservoir {
	return &reservoir{size: size, salt: mix64(uint64(seed) ^ 0xA0761D6478BD642F), h: make(itemHeap, 0, size)}
}

func (r *reservoir) priority(index int) uint64 {
	return mix64(r.salt ^ uint64(index))
}

// mix64 is a stateless splitmix64 finalizer
func mix64(x uint64) uint64 {
	return splitmix64(&x)
}

func (r *reservoir) add(index int, value float64) {
	r.offer(reservoirItem{priority: r.priority(index), index: index, value: value})
}

func (r *reservoir) offer(item reservoirItem) {
	if len(r.h) < r.size {
		heap.Push(&r.h, item)
		return
	}
	top := r.h[0]
	if item.priority < top.priority || (item.priority == top.priority && item.index < top.index) {
		r.h[0] = item
		heap.Fix(&r.h, 0)
	}
}

func (r *reservoir) merge(o *reservoir) {
	for _, item := range o.h {
		r.offer(item)
	}
}

// sorted returns the retained values in ascending order
func (r *reservoir) sorted() []float64 {
	out := make([]float64, len(r.h))
	for i, item := range r.h {
		out[i] = item.value
	}
	sort.Float64s(out)
	return out
}
