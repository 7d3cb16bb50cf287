package usecases

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/lintang-b-s/eventradar/pkg/discovery"
	"github.com/lintang-b-s/eventradar/pkg/eventsapi"
	"github.com/lintang-b-s/eventradar/pkg/geo"
	"github.com/lintang-b-s/eventradar/pkg/metrics"
	"github.com/lintang-b-s/eventradar/pkg/spatialindex"
	"github.com/lintang-b-s/eventradar/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// maxIndexes bounds how many filter sets keep a spatial index at once.
const maxIndexes = 64

type DiscoveryService struct {
	log       *zap.Logger
	events    EventSource
	resolver  *discovery.Resolver
	newIndex  func() SpatialIndex
	metrics   *metrics.Collector
	pageLimit int

	mu         sync.RWMutex
	indexes    map[string]SpatialIndex
	indexOrder []string
}

// NewDiscoveryService. newIndex builds an empty index; one is kept per filter set.
func NewDiscoveryService(log *zap.Logger, events EventSource, resolver *discovery.Resolver,
	newIndex func() SpatialIndex, m *metrics.Collector, pageLimit int) *DiscoveryService {
	if pageLimit <= 0 {
		pageLimit = 100
	}
	return &DiscoveryService{
		log:       log,
		events:    events,
		resolver:  resolver,
		newIndex:  newIndex,
		metrics:   m,
		pageLimit: pageLimit,
		indexes:   make(map[string]SpatialIndex),
	}
}

// filterKey is the same for any ordering of filters.
func filterKey(filters []string) string {
	sorted := slices.Clone(filters)
	slices.Sort(sorted)
	return strings.Join(sorted, "\x00")
}

func (ds *DiscoveryService) index(filters []string) (SpatialIndex, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	idx, ok := ds.indexes[filterKey(filters)]
	return idx, ok
}

// storeIndex replaces the index of filters, evicting the oldest filter set when full.
func (ds *DiscoveryService) storeIndex(filters []string, idx SpatialIndex) {
	key := filterKey(filters)

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if _, ok := ds.indexes[key]; !ok {
		if len(ds.indexOrder) >= maxIndexes {
			delete(ds.indexes, ds.indexOrder[0])
			ds.indexOrder = ds.indexOrder[1:]
		}
		ds.indexOrder = append(ds.indexOrder, key)
	}
	ds.indexes[key] = idx
}

// NearbyQuery. Origin nil with LocationErr set means the client could not determine its position.
type NearbyQuery struct {
	Origin      *geo.Coordinate
	LocationErr error
	Limit       int
	Filters     []string
}

type NearbyResult struct {
	Points   []discovery.EventPoint
	Selected *discovery.EventPoint
	Path     string
	Geocode  discovery.AsyncState
	Location discovery.AsyncState
}

// OpenSession lists events from the backend and resolves them into a new session.
// The caller owns the session and must Close it.
func (ds *DiscoveryService) OpenSession(ctx context.Context, filters []string) (*discovery.Session, error) {
	limit := ds.pageLimit
	list, err := ds.events.ListEvents(ctx, eventsapi.ListParams{
		Filters: filters,
		Limit:   &limit,
	})
	if err != nil {
		return nil, err
	}

	session := discovery.NewSession(ds.resolver, ds.log, ds.metrics)
	err = session.Load(ctx, list.Items)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		session.Close()
		return nil, err
	}
	// other load failures are reported through the session's geocode state

	points := session.Points()
	entries := make([]spatialindex.Entry[discovery.EventPoint], 0, len(points))
	for _, p := range points {
		entries = append(entries, spatialindex.NewEntry(p.Coordinates, p))
	}
	idx := ds.newIndex()
	idx.Build(entries, ds.log)
	ds.storeIndex(filters, idx)

	return session, nil
}

// Nearby resolves the current events and selects the ones nearest to q.Origin.
func (ds *DiscoveryService) Nearby(ctx context.Context, q NearbyQuery) (*NearbyResult, error) {
	session, err := ds.OpenSession(ctx, q.Filters)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	switch {
	case q.Origin != nil:
		if err := session.Locate(ctx, discovery.NewStaticLocation(q.Origin)); err != nil {
			return nil, util.WrapErrorf(err, util.ErrBadParamInput, "invalid origin")
		}
	case q.LocationErr != nil:
		session.SetLocationError(q.LocationErr)
	}

	result := ds.Snapshot(session, q.Limit)
	return &result, nil
}

// Snapshot selects up to limit nearby points of session.
func (ds *DiscoveryService) Snapshot(session *discovery.Session, limit int) NearbyResult {
	points := session.Nearby(limit)

	coords := make([]geo.Coordinate, 0, len(points))
	for _, p := range points {
		coords = append(coords, p.Coordinates)
	}

	var selected *discovery.EventPoint
	if p, ok := session.Selected(); ok {
		selected = &p
	}

	return NearbyResult{
		Points:   points,
		Selected: selected,
		Path:     geo.PolylineFromCoords(coords),
		Geocode:  session.GeocodeState(),
		Location: session.LocationState(),
	}
}

// Within returns the events last resolved for filters that lie inside the viewport, ordered by
// name. A viewport with minLon > maxLon crosses the antimeridian.
func (ds *DiscoveryService) Within(filters []string, minLat, minLon, maxLat, maxLon float64) ([]discovery.EventPoint, error) {
	if minLat > maxLat {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "min_lat must not exceed max_lat")
	}

	idx, ok := ds.index(filters)
	if !ok {
		return []discovery.EventPoint{}, nil
	}

	var entries []spatialindex.Entry[discovery.EventPoint]
	if minLon > maxLon {
		entries = append(idx.SearchBoundingBox(minLat, minLon, maxLat, 180),
			idx.SearchBoundingBox(minLat, -180, maxLat, maxLon)...)
	} else {
		entries = idx.SearchBoundingBox(minLat, minLon, maxLat, maxLon)
	}
	points := make([]discovery.EventPoint, 0, len(entries))
	for _, e := range entries {
		points = append(points, e.Data)
	}

	slices.SortFunc(points, func(a, b discovery.EventPoint) int {
		if c := strings.Compare(a.EventName, b.EventName); c != 0 {
			return c
		}
		return strings.Compare(a.EventID, b.EventID)
	})
	return points, nil
}

// WithinRadius returns the events last resolved for filters that lie at most radius km from
// center, nearest first.
func (ds *DiscoveryService) WithinRadius(filters []string, center geo.Coordinate, radius float64) ([]discovery.EventPoint, error) {
	if !center.IsValid() || radius <= 0 {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "invalid center or radius")
	}

	idx, ok := ds.index(filters)
	if !ok {
		return []discovery.EventPoint{}, nil
	}

	entries := idx.SearchWithinRadius(center, radius)
	points := make([]discovery.EventPoint, 0, len(entries))
	for _, e := range entries {
		p := e.Data
		d := geo.CalculateHaversineDistance(center, p.Coordinates)
		p.DistanceKm = &d
		points = append(points, p)
	}

	slices.SortStableFunc(points, func(a, b discovery.EventPoint) int {
		switch {
		case *a.DistanceKm < *b.DistanceKm:
			return -1
		case *a.DistanceKm > *b.DistanceKm:
			return 1
		}
		return 0
	})
	return points, nil
}
