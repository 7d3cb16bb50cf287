package datastructure

// DistanceNode pairs an item with its precomputed distance (km) from a query origin.
type DistanceNode[T any] struct {
	item     T
	distance float64
}

func NewDistanceNode[T any](item T, distance float64) DistanceNode[T] {
	return DistanceNode[T]{item: item, distance: distance}
}

func (n DistanceNode[T]) GetItem() T {
	return n.item
}

func (n DistanceNode[T]) GetDistance() float64 {
	return n.distance
}

// MinDistanceHeap binary min-heap priorityqueue ordered by ascending distance.
// Nodes with equal distance come out in unspecified order.
type MinDistanceHeap[T any] struct {
	heap []DistanceNode[T]
}

func NewMinDistanceHeap[T any]() *MinDistanceHeap[T] {
	return &MinDistanceHeap[T]{
		heap: make([]DistanceNode[T], 0),
	}
}

func (h *MinDistanceHeap[T]) Preallocate(size int) {
	h.heap = make([]DistanceNode[T], 0, size)
}

// parent get index of the parent
func (h *MinDistanceHeap[T]) parent(index int) int {
	return (index - 1) / 2
}

// heapifyUp keeps the heap property. swap with the parent while the parent is larger. O(logN) tree height.
func (h *MinDistanceHeap[T]) heapifyUp(index int) {
	for index != 0 && h.heap[index].distance < h.heap[h.parent(index)].distance {
		h.swap(index, h.parent(index))
		index = h.parent(index)
	}
}

// heapifyDown keeps the heap property. swap with the smaller child while that child is smaller. O(logN) tree height.
func (h *MinDistanceHeap[T]) heapifyDown(index int) {
	n := len(h.heap)
	for {
		left := 2*index + 1
		right := left + 1
		smallest := index

		if left < n && h.heap[left].distance < h.heap[smallest].distance {
			smallest = left
		}
		if right < n && h.heap[right].distance < h.heap[smallest].distance {
			smallest = right
		}
		if smallest == index {
			return
		}

		h.swap(index, smallest)
		index = smallest
	}
}

func (h *MinDistanceHeap[T]) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
}

func (h *MinDistanceHeap[T]) IsEmpty() bool {
	return len(h.heap) == 0
}

// Size ukuran heap
func (h *MinDistanceHeap[T]) Size() int {
	return len(h.heap)
}

// Push insert node baru. O(logN)
func (h *MinDistanceHeap[T]) Push(node DistanceNode[T]) {
	h.heap = append(h.heap, node)
	h.heapifyUp(len(h.heap) - 1)
}

// Pop removes and returns the minimum-distance node. ok is false when the heap is empty.
// the last node is moved to the root and sifted down. O(logN)
func (h *MinDistanceHeap[T]) Pop() (node DistanceNode[T], ok bool) {
	if h.IsEmpty() {
		return DistanceNode[T]{}, false
	}
	root := h.heap[0]
	last := len(h.heap) - 1

	h.heap[0] = h.heap[last]
	h.heap[last] = DistanceNode[T]{}
	h.heap = h.heap[:last]
	if len(h.heap) > 0 {
		h.heapifyDown(0)
	}

	return root, true
}
