package merge

// heapItem is one pending front record: its sort key and the index of the
// run it came from. Each run contributes at most one item at a time.
type heapItem struct {
	key    uint64
	runIdx int
}

// mergeHeap is a min-heap over pending front records. Equal keys are won by
// the lowest run index, which makes the merge deterministic and stable with
// respect to run registration order.
type mergeHeap []heapItem

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].runIdx < h[j].runIdx
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(heapItem))
}

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
