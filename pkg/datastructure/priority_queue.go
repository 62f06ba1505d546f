package datastructure

import "errors"

var ErrEmptyHeap = errors.New("heap is empty")

// PriorityQueueNode is a heap entry. Its position is kept up to date so the rank can be lowered in place.
type PriorityQueueNode[T comparable] struct {
	rank float64
	item T
	pos  int
}

func NewPriorityQueueNode[T comparable](rank float64, item T) *PriorityQueueNode[T] {
	return &PriorityQueueNode[T]{rank: rank, item: item, pos: -1}
}

func (p *PriorityQueueNode[T]) GetItem() T {
	return p.item
}

func (p *PriorityQueueNode[T]) GetRank() float64 {
	return p.rank
}

// MinHeap is a d-ary min heap keyed by rank.
type MinHeap[T comparable] struct {
	nodes []*PriorityQueueNode[T]
	d     int
}

func NewFourAryHeap[T comparable]() *MinHeap[T] {
	return &MinHeap[T]{d: 4}
}

func (h *MinHeap[T]) IsEmpty() bool {
	return len(h.nodes) == 0
}

func (h *MinHeap[T]) Size() int {
	return len(h.nodes)
}

// Clear empties the heap keeping its backing array.
func (h *MinHeap[T]) Clear() {
	for _, n := range h.nodes {
		n.pos = -1
	}
	clear(h.nodes)
	h.nodes = h.nodes[:0]
}

func (h *MinHeap[T]) Insert(n *PriorityQueueNode[T]) {
	n.pos = len(h.nodes)
	h.nodes = append(h.nodes, n)
	h.up(n.pos)
}

func (h *MinHeap[T]) ExtractMin() (*PriorityQueueNode[T], error) {
	if h.IsEmpty() {
		return nil, ErrEmptyHeap
	}
	root := h.nodes[0]
	last := len(h.nodes) - 1
	h.swap(0, last)
	h.nodes[last] = nil
	h.nodes = h.nodes[:last]
	root.pos = -1
	h.down(0)
	return root, nil
}

// DecreaseKey lowers the rank of n, which must still be in the heap.
func (h *MinHeap[T]) DecreaseKey(n *PriorityQueueNode[T], rank float64) error {
	if n.pos < 0 || n.pos >= len(h.nodes) || h.nodes[n.pos] != n {
		return errors.New("node is not in the heap")
	}
	if rank > n.rank {
		return errors.New("new rank is bigger than the current one")
	}
	n.rank = rank
	h.up(n.pos)
	return nil
}

func (h *MinHeap[T]) swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.nodes[i].pos = i
	h.nodes[j].pos = j
}

func (h *MinHeap[T]) up(i int) {
	for i > 0 {
		parent := (i - 1) / h.d
		if h.nodes[i].rank >= h.nodes[parent].rank {
			return
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *MinHeap[T]) down(i int) {
	for {
		first := i*h.d + 1
		if first >= len(h.nodes) {
			return
		}
		smallest := first
		for c := first + 1; c < min(first+h.d, len(h.nodes)); c++ {
			if h.nodes[c].rank < h.nodes[smallest].rank {
				smallest = c
			}
		}
		if h.nodes[smallest].rank >= h.nodes[i].rank {
			return
		}
		h.swap(i, smallest)
		i = smallest
	}
}
