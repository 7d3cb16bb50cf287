package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lintang-b-s/eventradar/pkg/eventsapi"
	"github.com/lintang-b-s/eventradar/pkg/geo"
	"github.com/lintang-b-s/eventradar/pkg/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// blockingGeocoder waits on release before answering, or until ctx is done.
type blockingGeocoder struct {
	started chan string
	release chan struct{}
	coords  map[string]geo.Coordinate
}

func (b *blockingGeocoder) Geocode(ctx context.Context, address string) (*geo.Coordinate, error) {
	b.started <- address
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
	}
	c, ok := b.coords[address]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func newTestSession(gc geocoder.Geocoder) *Session {
	return NewSession(NewResolver(gc, geocoder.NewMapCache(), 1, zap.NewNop(), nil), zap.NewNop(), nil)
}

func TestSessionLoadAndNearby(t *testing.T) {
	gc := &fakeGeocoder{coords: map[string]geo.Coordinate{
		"Near": geo.NewCoordinate(0, 0.05),
		"Mid":  geo.NewCoordinate(0, 1),
		"Far":  geo.NewCoordinate(0, 5),
	}}
	s := newTestSession(gc)
	assert.Equal(t, StatusIdle, s.GeocodeState().Status)

	err := s.Load(context.Background(), []eventsapi.Event{
		event("far", "Far"),
		event("mid", "Mid"),
		event("near", "Near"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, s.GeocodeState().Status)
	assert.Len(t, s.Points(), 3)

	// no origin: positional order
	assert.Equal(t, []string{"far", "mid"}, ids(s.Nearby(2)))
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "far", sel.EventID)

	s.SetOrigin(geo.NewCoordinate(0, 0))
	assert.Equal(t, StatusSuccess, s.LocationState().Status)
	nearby := s.Nearby(NearbyLimit)
	assert.Equal(t, []string{"near", "mid"}, ids(nearby))

	// "far" left the nearby set, so selection moves to the nearest
	sel, ok = s.Selected()
	require.True(t, ok)
	assert.Equal(t, "near", sel.EventID)

	assert.True(t, s.Select("mid"))
	assert.False(t, s.Select("far"))
	sel, _ = s.Selected()
	assert.Equal(t, "mid", sel.EventID)
}

func TestSessionLocationError(t *testing.T) {
	s := newTestSession(&fakeGeocoder{})
	s.SetOrigin(geo.NewCoordinate(1, 1))

	err := s.Locate(context.Background(), NewStaticLocation(nil))
	assert.ErrorIs(t, err, ErrGeolocationUnsupported)

	state := s.LocationState()
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, ErrGeolocationUnsupported.Error(), state.Message)
	require.NotNil(t, s.Origin())
	assert.Equal(t, geo.NewCoordinate(1, 1), *s.Origin())
}

func TestSessionMissingGeocoder(t *testing.T) {
	s := NewSession(NewResolver(nil, nil, 1, zap.NewNop(), nil), zap.NewNop(), nil)

	err := s.Load(context.Background(), []eventsapi.Event{event("1", "A")})
	assert.ErrorIs(t, err, geocoder.ErrMissingToken)
	state := s.GeocodeState()
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, missingTokenMessage, state.Message)
	assert.Empty(t, s.Points())
}

func TestSessionNewerLoadWins(t *testing.T) {
	gc := &blockingGeocoder{
		started: make(chan string, 4),
		release: make(chan struct{}),
		coords: map[string]geo.Coordinate{
			"Old": geo.NewCoordinate(1, 1),
			"New": geo.NewCoordinate(2, 2),
		},
	}
	s := newTestSession(gc)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Load(context.Background(), []eventsapi.Event{event("old", "Old")})
	}()
	assert.Equal(t, "Old", <-gc.started)

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- s.Load(context.Background(), []eventsapi.Event{event("new", "New")})
	}()

	select {
	case err := <-firstDone:
		assert.ErrorIs(t, err, ErrStaleLoad)
	case <-time.After(2 * time.Second):
		t.Fatal("first load was not cancelled")
	}

	assert.Equal(t, "New", <-gc.started)
	close(gc.release)
	require.NoError(t, <-secondDone)

	assert.Equal(t, []string{"new"}, ids(s.Points()))
	assert.Equal(t, StatusSuccess, s.GeocodeState().Status)
}

func TestSessionCloseCancels(t *testing.T) {
	gc := &blockingGeocoder{
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	s := newTestSession(gc)

	done := make(chan error, 1)
	go func() {
		done <- s.Load(context.Background(), []eventsapi.Event{event("1", "Somewhere")})
	}()
	<-gc.started
	s.Close()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrStaleLoad))
	case <-time.After(2 * time.Second):
		t.Fatal("load was not cancelled by Close")
	}
	assert.Empty(t, s.Points())
	assert.ErrorIs(t, s.Load(context.Background(), nil), ErrStaleLoad)
}

type countingProvider struct {
	calls int
	coord geo.Coordinate
	wait  bool
}

func (p *countingProvider) CurrentPosition(ctx context.Context) (geo.Coordinate, error) {
	p.calls++
	if p.wait {
		<-ctx.Done()
		return geo.Coordinate{}, ctx.Err()
	}
	return p.coord, nil
}

func TestCachedLocation(t *testing.T) {
	p := &countingProvider{coord: geo.NewCoordinate(-7.8, 110.4)}
	c := NewCachedLocation(p, time.Second, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	got, err := c.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p.coord, got)

	now = now.Add(30 * time.Second)
	_, err = c.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)

	now = now.Add(31 * time.Second)
	_, err = c.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestCachedLocationPut(t *testing.T) {
	c := NewCachedLocation(nil, time.Second, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrLocationUnavailable)

	c.Put(geo.NewCoordinate(1, 2))
	now = now.Add(59 * time.Second)
	got, err := c.CurrentPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, geo.NewCoordinate(1, 2), got)

	now = now.Add(2 * time.Second)
	_, err = c.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrLocationUnavailable)
}

func TestCachedLocationTimeout(t *testing.T) {
	c := NewCachedLocation(&countingProvider{wait: true}, 10*time.Millisecond, time.Minute)

	_, err := c.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrLocationTimeout)
}

func TestStaticLocation(t *testing.T) {
	valid := geo.NewCoordinate(10, 20)
	invalid := geo.NewCoordinate(95, 20)

	testCases := []struct {
		name    string
		coord   *geo.Coordinate
		wantErr error
	}{
		{name: "valid", coord: &valid},
		{name: "missing", coord: nil, wantErr: ErrGeolocationUnsupported},
		{name: "out of range", coord: &invalid, wantErr: ErrLocationUnavailable},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStaticLocation(tt.coord).CurrentPosition(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, *tt.coord, got)
		})
	}
}
