package spatialindex

import (
	"sync"

	"github.com/lintang-b-s/eventradar/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

// Entry is one indexed point and its payload.
type Entry[T any] struct {
	Coordinate geo.Coordinate
	Data       T
}

func NewEntry[T any](coord geo.Coordinate, data T) Entry[T] {
	return Entry[T]{Coordinate: coord, Data: data}
}

// Rtree is a point r-tree over event locations. The whole tree is swapped on Build,
// so readers never see a half-built index.
type Rtree[T any] struct {
	mu sync.RWMutex
	tr *rtree.RTreeG[Entry[T]]
}

func NewRtree[T any]() *Rtree[T] {
	var tr rtree.RTreeG[Entry[T]]
	return &Rtree[T]{
		tr: &tr,
	}
}

// Build. replace the index content with entries.
func (rt *Rtree[T]) Build(entries []Entry[T], log *zap.Logger) {
	var tr rtree.RTreeG[Entry[T]]
	for _, e := range entries {
		p := [2]float64{e.Coordinate.Lon, e.Coordinate.Lat}
		tr.Insert(p, p, e)
	}

	rt.mu.Lock()
	rt.tr = &tr
	rt.mu.Unlock()

	log.Debug("r-tree spatial index built", zap.Int("entries", len(entries)))
}

func (rt *Rtree[T]) Len() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.tr.Len()
}

// SearchBoundingBox returns every entry inside [minLat,maxLat]x[minLon,maxLon] (a map viewport).
func (rt *Rtree[T]) SearchBoundingBox(minLat, minLon, maxLat, maxLon float64) []Entry[T] {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	results := make([]Entry[T], 0, 10)
	rt.tr.Search([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat},
		func(min, max [2]float64, data Entry[T]) bool {
			results = append(results, data)
			return true
		})
	return results
}

// SearchWithinRadius search for all entries within radius (in km) from the query point
func (rt *Rtree[T]) SearchWithinRadius(center geo.Coordinate, radius float64) []Entry[T] {
	minLat, minLon, maxLat, maxLon := geo.BoundingBoxAround(center, radius)

	candidates := rt.SearchBoundingBox(minLat, minLon, maxLat, maxLon)
	results := candidates[:0]
	for _, c := range candidates {
		if geo.CalculateHaversineDistance(center, c.Coordinate) <= radius {
			results = append(results, c)
		}
	}
	return results
}
