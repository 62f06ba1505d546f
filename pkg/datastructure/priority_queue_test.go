package datastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinHeapOrdersByRank(t *testing.T) {
	h := NewFourAryHeap[int]()
	ranks := []float64{5, 1, 9, 3, 7, 2}
	nodes := make([]*PriorityQueueNode[int], len(ranks))
	for i, r := range ranks {
		nodes[i] = NewPriorityQueueNode(r, i)
		h.Insert(nodes[i])
	}
	require.NoError(t, h.DecreaseKey(nodes[2], 0.5))
	assert.Error(t, h.DecreaseKey(nodes[0], 6))

	var got []int
	for !h.IsEmpty() {
		n, err := h.ExtractMin()
		require.NoError(t, err)
		got = append(got, n.GetItem())
	}
	assert.Equal(t, []int{2, 1, 5, 3, 0, 4}, got)
	_, err := h.ExtractMin()
	assert.ErrorIs(t, err, ErrEmptyHeap)
}

func TestMinHeapClear(t *testing.T) {
	h := NewFourAryHeap[string]()
	n := NewPriorityQueueNode(1.0, "a")
	h.Insert(n)
	h.Insert(NewPriorityQueueNode(2.0, "b"))
	h.Clear()

	assert.True(t, h.IsEmpty())
	assert.Error(t, h.DecreaseKey(n, 0))
}
