package routing

// MinHeap is a concrete-typed binary min-heap ordered by f-value
// (tentative distance plus heuristic-to-goal). Adapted from the teacher's
// uint32-keyed priority queue to float64 priorities, since edge weights
// here are real-valued distances/times rather than millimeter integers.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry: a vertex and its f-value.
type PQItem struct {
	Node uint32
	F    float64
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, f float64) {
	h.items = append(h.items, PQItem{Node: node, F: f})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].F >= h.items[parent].F {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].F < h.items[smallest].F {
			smallest = left
		}
		if right < n && h.items[right].F < h.items[smallest].F {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
