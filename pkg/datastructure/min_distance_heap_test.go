package datastructure

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinDistanceHeapPopOrder(t *testing.T) {
	testCases := []struct {
		name      string
		distances []float64
	}{
		{name: "empty", distances: []float64{}},
		{name: "single", distances: []float64{4.2}},
		{name: "already sorted", distances: []float64{1, 2, 3, 4, 5}},
		{name: "reversed", distances: []float64{5, 4, 3, 2, 1}},
		{name: "duplicates and zero", distances: []float64{3, 0, 3, 1, 0, 7, 1}},
		{name: "mixed", distances: []float64{150.1, 0.01, 333.5, 111.2, 1.1, 149.9, 2000}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMinDistanceHeap[int]()
			for i, d := range tt.distances {
				h.Push(NewDistanceNode(i, d))
			}
			require.Equal(t, len(tt.distances), h.Size())

			got := make([]float64, 0, len(tt.distances))
			for {
				node, ok := h.Pop()
				if !ok {
					break
				}
				assert.Equal(t, tt.distances[node.GetItem()], node.GetDistance())
				got = append(got, node.GetDistance())
			}

			want := make([]float64, len(tt.distances))
			copy(want, tt.distances)
			sort.Float64s(want)
			assert.Equal(t, want, got)
			assert.Equal(t, 0, h.Size())
		})
	}
}

func TestMinDistanceHeapRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		n := rng.Intn(200)
		h := NewMinDistanceHeap[string]()
		h.Preallocate(n)
		for i := 0; i < n; i++ {
			h.Push(NewDistanceNode("e", rng.Float64()*1000))
		}

		prev := -1.0
		popped := 0
		for h.Size() > 0 {
			node, ok := h.Pop()
			require.True(t, ok)
			require.GreaterOrEqual(t, node.GetDistance(), prev)
			prev = node.GetDistance()
			popped++
		}
		assert.Equal(t, n, popped)
	}
}

func TestMinDistanceHeapInterleaved(t *testing.T) {
	h := NewMinDistanceHeap[int]()
	h.Push(NewDistanceNode(1, 10))
	h.Push(NewDistanceNode(2, 5))

	node, ok := h.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, node.GetItem())
	assert.Equal(t, 5.0, node.GetDistance())

	h.Push(NewDistanceNode(3, 1))
	h.Push(NewDistanceNode(4, 20))

	node, _ = h.Pop()
	assert.Equal(t, 3, node.GetItem())
	node, _ = h.Pop()
	assert.Equal(t, 1, node.GetItem())
	node, _ = h.Pop()
	assert.Equal(t, 4, node.GetItem())
}

func TestMinDistanceHeapPopEmpty(t *testing.T) {
	h := NewMinDistanceHeap[int]()
	_, ok := h.Pop()
	assert.False(t, ok)
	assert.True(t, h.IsEmpty())

	h.Push(NewDistanceNode(1, 3))
	_, ok = h.Pop()
	assert.True(t, ok)
	_, ok = h.Pop()
	assert.False(t, ok)
}
