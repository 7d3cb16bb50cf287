package discovery

import (
	"context"
	"errors"
	"sync"

	"github.com/lintang-b-s/eventradar/pkg/eventsapi"
	"github.com/lintang-b-s/eventradar/pkg/geo"
	"github.com/lintang-b-s/eventradar/pkg/geocoder"
	"github.com/lintang-b-s/eventradar/pkg/metrics"
	"go.uber.org/zap"
)

const (
	missingTokenMessage  = "Missing Mapbox token. Set MAPBOX_TOKEN to enable discovery maps."
	geocodeFailedMessage = "We could not locate nearby events."
)

// ErrStaleLoad is returned by Load when a newer Load or Close superseded it.
var ErrStaleLoad = errors.New("superseded by a newer load")

/*
Session holds the discovery state of one view: the resolved points, the viewer's origin and the
selected event.

Every Load cancels the one before it. Results of a Load are published only while it is still
the latest invocation, so a slow earlier resolve can never overwrite a newer one.
*/
type Session struct {
	resolver *Resolver
	log      *zap.Logger
	metrics  *metrics.Collector

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	closed     bool

	points     []EventPoint
	origin     *geo.Coordinate
	geocode    AsyncState
	location   AsyncState
	selectedID string
	// limit of the last Nearby call, the selection is kept within that set
	limit int
}

func NewSession(resolver *Resolver, log *zap.Logger, m *metrics.Collector) *Session {
	return &Session{
		resolver: resolver,
		log:      log,
		metrics:  m,
		points:   []EventPoint{},
		geocode:  idleState(),
		location: idleState(),
		limit:    NearbyLimit,
	}
}

// Load resolves events and replaces the session's points.
func (s *Session) Load(ctx context.Context, events []eventsapi.Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStaleLoad
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.geocode = AsyncState{Status: StatusLoading}
	s.mu.Unlock()

	points, err := s.resolver.Resolve(lctx, events)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.closed {
		return ErrStaleLoad
	}
	s.cancel = nil

	switch {
	case err == nil:
		s.points = points
		s.geocode = AsyncState{Status: StatusSuccess}
		return nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.geocode = idleState()
		return err
	case errors.Is(err, geocoder.ErrMissingToken):
		s.points = []EventPoint{}
		s.geocode = AsyncState{Status: StatusError, Message: missingTokenMessage}
		return err
	default:
		s.log.Error("resolving events failed", zap.Error(err))
		s.points = []EventPoint{}
		s.geocode = AsyncState{Status: StatusError, Message: geocodeFailedMessage}
		return err
	}
}

// SetOrigin records the viewer's position.
func (s *Session) SetOrigin(coord geo.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origin = &coord
	s.location = AsyncState{Status: StatusSuccess}
}

// SetLocationLoading marks a position request as in flight.
func (s *Session) SetLocationLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = AsyncState{Status: StatusLoading}
}

// SetLocationError records why the position is unavailable. A previously known origin is kept.
func (s *Session) SetLocationError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = LocationErrorState(err)
}

// Locate asks provider for the viewer's position and records the outcome.
func (s *Session) Locate(ctx context.Context, provider LocationProvider) error {
	s.SetLocationLoading()
	coord, err := provider.CurrentPosition(ctx)
	if err != nil {
		s.SetLocationError(err)
		return err
	}
	s.SetOrigin(coord)
	return nil
}

// Nearby selects up to limit points for the current origin and updates the selection.
func (s *Session) Nearby(limit int) []EventPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nearbyLocked(limit)
}

func (s *Session) nearbyLocked(limit int) []EventPoint {
	nearby := SelectNearest(s.origin, s.points, limit)
	if limit > 0 {
		s.limit = limit
	}

	if len(nearby) > 0 && nearby[0].DistanceKm != nil {
		s.metrics.ObserveSelection(metrics.ModeNearest)
	} else {
		s.metrics.ObserveSelection(metrics.ModeFallback)
	}

	s.selectedID = keepSelection(s.selectedID, nearby)
	return nearby
}

func keepSelection(previous string, nearby []EventPoint) string {
	if len(nearby) == 0 {
		return ""
	}
	for _, p := range nearby {
		if previous != "" && p.EventID == previous {
			return previous
		}
	}
	return nearby[0].EventID
}

// Select makes id the selected event if it is among the nearby events.
func (s *Session) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range SelectNearest(s.origin, s.points, s.limit) {
		if p.EventID == id {
			s.selectedID = id
			return true
		}
	}
	return false
}

// Selected returns the selected event among the nearby events. The previous selection survives
// while it stays nearby, otherwise the nearest event is selected.
func (s *Session) Selected() (EventPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nearby := SelectNearest(s.origin, s.points, s.limit)
	s.selectedID = keepSelection(s.selectedID, nearby)
	for _, p := range nearby {
		if p.EventID == s.selectedID {
			return p, true
		}
	}
	return EventPoint{}, false
}

func (s *Session) Points() []EventPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventPoint, len(s.points))
	copy(out, s.points)
	return out
}

func (s *Session) Origin() *geo.Coordinate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.origin == nil {
		return nil
	}
	o := *s.origin
	return &o
}

func (s *Session) GeocodeState() AsyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geocode
}

func (s *Session) LocationState() AsyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// Close cancels any in-flight Load. The session accepts no further loads.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
