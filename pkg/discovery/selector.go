package discovery

import (
	"github.com/lintang-b-s/eventradar/pkg/datastructure"
	"github.com/lintang-b-s/eventradar/pkg/geo"
)

/*
SelectNearest returns up to limit candidates ordered by ascending haversine distance from origin,
each carrying its DistanceKm.

Candidates are pushed into a fresh min-heap and popped only as far as needed. A candidate farther
than MaxDistanceKm is skipped once one result is accepted, so the nearest candidate is always
returned even when it is itself beyond the cutoff. Since pops come out in ascending order, every
candidate after the first one beyond the cutoff is beyond it too.

With no origin, or if nothing was accepted, the first limit candidates are returned in input
order with DistanceKm nil. candidates is never modified.
*/
func SelectNearest(origin *geo.Coordinate, candidates []EventPoint, limit int) []EventPoint {
	if len(candidates) == 0 || limit <= 0 {
		return []EventPoint{}
	}

	if origin == nil {
		return positional(candidates, limit)
	}

	heap := datastructure.NewMinDistanceHeap[int]()
	heap.Preallocate(len(candidates))
	for i := range candidates {
		distance := geo.CalculateHaversineDistance(*origin, candidates[i].Coordinates)
		heap.Push(datastructure.NewDistanceNode(i, distance))
	}

	result := make([]EventPoint, 0, min(limit, len(candidates)))
	for heap.Size() > 0 && len(result) < limit {
		next, ok := heap.Pop()
		if !ok {
			break
		}

		distance := next.GetDistance()
		if distance > MaxDistanceKm && len(result) > 0 {
			continue
		}

		result = append(result, candidates[next.GetItem()].withDistance(&distance))
	}

	if len(result) == 0 {
		return positional(candidates, limit)
	}

	return result
}

// positional is the no-origin fallback: input order, no distances.
func positional(candidates []EventPoint, limit int) []EventPoint {
	n := min(limit, len(candidates))
	result := make([]EventPoint, 0, n)
	for _, c := range candidates[:n] {
		result = append(result, c.withDistance(nil))
	}
	return result
}
