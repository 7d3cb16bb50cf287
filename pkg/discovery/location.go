package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lintang-b-s/eventradar/pkg/geo"
)

const (
	DefaultLocationTimeout = 10 * time.Second
	DefaultLocationMaxAge  = 60 * time.Second
)

var (
	ErrGeolocationUnsupported = errors.New("geolocation is not supported on this device")
	ErrLocationUnavailable    = errors.New("unable to access your current location")
	ErrLocationTimeout        = errors.New("timed out while determining your location")
)

// LocationProvider reports the viewer's current position.
type LocationProvider interface {
	CurrentPosition(ctx context.Context) (geo.Coordinate, error)
}

// AsyncState is the status of a background operation plus a message to show when it failed.
type AsyncState struct {
	Status  AsyncStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

func idleState() AsyncState {
	return AsyncState{Status: StatusIdle}
}

// LocationErrorState maps a LocationProvider error to the state shown to the viewer.
func LocationErrorState(err error) AsyncState {
	msg := ErrLocationUnavailable.Error()
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return AsyncState{Status: StatusError, Message: msg}
}

// StaticLocation is a position supplied by the client. A nil position means the client could not
// provide one.
type StaticLocation struct {
	coord *geo.Coordinate
}

func NewStaticLocation(coord *geo.Coordinate) StaticLocation {
	return StaticLocation{coord: coord}
}

func (s StaticLocation) CurrentPosition(ctx context.Context) (geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, err
	}
	if s.coord == nil {
		return geo.Coordinate{}, ErrGeolocationUnsupported
	}
	if !s.coord.IsValid() {
		return geo.Coordinate{}, ErrLocationUnavailable
	}
	return *s.coord, nil
}

// CachedLocation reuses a position younger than maxAge and gives the wrapped provider at most
// timeout to answer. Positions can also be pushed with Put; with a nil provider a stale or
// missing position is ErrLocationUnavailable.
type CachedLocation struct {
	provider LocationProvider
	timeout  time.Duration
	maxAge   time.Duration
	now      func() time.Time

	mu     sync.Mutex
	last   geo.Coordinate
	lastAt time.Time
	has    bool
}

func NewCachedLocation(provider LocationProvider, timeout, maxAge time.Duration) *CachedLocation {
	if timeout <= 0 {
		timeout = DefaultLocationTimeout
	}
	if maxAge < 0 {
		maxAge = 0
	}
	return &CachedLocation{
		provider: provider,
		timeout:  timeout,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

func (c *CachedLocation) CurrentPosition(ctx context.Context) (geo.Coordinate, error) {
	c.mu.Lock()
	if c.has && c.now().Sub(c.lastAt) <= c.maxAge {
		last := c.last
		c.mu.Unlock()
		return last, nil
	}
	c.mu.Unlock()

	if c.provider == nil {
		return geo.Coordinate{}, ErrLocationUnavailable
	}

	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	coord, err := c.provider.CurrentPosition(tctx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return geo.Coordinate{}, ErrLocationTimeout
		}
		return geo.Coordinate{}, err
	}

	c.Put(coord)
	return coord, nil
}

// Put records coord as the current position.
func (c *CachedLocation) Put(coord geo.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = coord
	c.lastAt = c.now()
	c.has = true
}
