package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/lintang-b-s/eventradar/pkg/discovery"
	"github.com/lintang-b-s/eventradar/pkg/eventsapi"
	"github.com/lintang-b-s/eventradar/pkg/geo"
	"github.com/lintang-b-s/eventradar/pkg/geocoder"
	"github.com/lintang-b-s/eventradar/pkg/http/usecases"
	"github.com/lintang-b-s/eventradar/pkg/metrics"
	"github.com/lintang-b-s/eventradar/pkg/spatialindex"
	"github.com/lintang-b-s/eventradar/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEvents struct {
	list *eventsapi.EventList
	err  error
}

func (s stubEvents) ListEvents(_ context.Context, _ eventsapi.ListParams) (*eventsapi.EventList, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

type mapGeocoder map[string]geo.Coordinate

func (m mapGeocoder) Geocode(ctx context.Context, address string) (*geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := m[address]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func ev(id, name, location string) eventsapi.Event {
	return eventsapi.Event{EventID: id, EventName: name, EventLocation: &location}
}

type nearbyBody struct {
	Data struct {
		Events []struct {
			EventID       string   `json:"event_id"`
			DistanceKm    *float64 `json:"distance_km"`
			DistanceLabel string   `json:"distance_label"`
			LocationLabel string   `json:"location_label"`
		} `json:"events"`
		Selected *struct {
			EventID string `json:"event_id"`
		} `json:"selected"`
		Path           string               `json:"path"`
		GeocodeStatus  discovery.AsyncState `json:"geocode_status"`
		LocationStatus discovery.AsyncState `json:"location_status"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestHandler(t *testing.T, events stubEvents) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	gc := mapGeocoder{
		"Tugu Jogja":      geo.NewCoordinate(-7.7829, 110.3671),
		"Prambanan":       geo.NewCoordinate(-7.7520, 110.4915),
		"Malioboro Jogja": geo.NewCoordinate(-7.7926, 110.3658),
		"Monas, Jakarta":  geo.NewCoordinate(-6.1754, 106.8272),
	}
	resolver := discovery.NewResolver(gc, geocoder.NewMapCache(), 1, zap.NewNop(), m)
	newIndex := func() usecases.SpatialIndex { return spatialindex.NewRtree[discovery.EventPoint]() }
	service := usecases.NewDiscoveryService(zap.NewNop(), events, resolver, newIndex, m, 100)

	return NewAPI(zap.NewNop(), reg).Handler(false, discovery.NearbyLimit, service)
}

func testEvents() stubEvents {
	return stubEvents{list: &eventsapi.EventList{
		Items: []eventsapi.Event{
			ev("jkt", "jakarta fair", "Monas, Jakarta"),
			ev("pra", "temple run", "Prambanan"),
			ev("mal", "night walk", "Malioboro Jogja"),
		},
		Total: 3,
		Limit: 100,
	}}
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, nearbyBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body nearbyBody
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestNearbyEndpoint(t *testing.T) {
	h := newTestHandler(t, testEvents())

	rec, body := get(t, h, "/api/events/nearby?lat=-7.7829&lon=110.3671&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	require.Len(t, body.Data.Events, 2)
	assert.Equal(t, "mal", body.Data.Events[0].EventID)
	assert.Equal(t, "pra", body.Data.Events[1].EventID)
	assert.Equal(t, "Malioboro Jogja", body.Data.Events[0].LocationLabel)
	assert.True(t, strings.HasSuffix(body.Data.Events[0].DistanceLabel, "km away"))
	require.NotNil(t, body.Data.Selected)
	assert.Equal(t, "mal", body.Data.Selected.EventID)
	assert.NotEmpty(t, body.Data.Path)
	assert.Equal(t, discovery.StatusSuccess, body.Data.GeocodeStatus.Status)
	assert.Equal(t, discovery.StatusSuccess, body.Data.LocationStatus.Status)
}

func TestNearbyEndpointWithoutLocation(t *testing.T) {
	h := newTestHandler(t, testEvents())

	rec, body := get(t, h, "/api/events/nearby?location_error=Location%20access%20was%20denied")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, body.Data.Events, 3)
	assert.Equal(t, "jkt", body.Data.Events[0].EventID)
	for _, e := range body.Data.Events {
		assert.Nil(t, e.DistanceKm)
		assert.Equal(t, "Distance unavailable", e.DistanceLabel)
	}
	assert.Equal(t, discovery.StatusError, body.Data.LocationStatus.Status)
	assert.Equal(t, "Location access was denied", body.Data.LocationStatus.Message)
}

func TestNearbyEndpointBadRequest(t *testing.T) {
	h := newTestHandler(t, testEvents())

	testCases := []struct {
		name   string
		target string
	}{
		{name: "lat without lon", target: "/api/events/nearby?lat=1"},
		{name: "lat not a number", target: "/api/events/nearby?lat=abc&lon=1"},
		{name: "lat out of range", target: "/api/events/nearby?lat=91&lon=1"},
		{name: "limit zero", target: "/api/events/nearby?limit=0"},
		{name: "limit not int", target: "/api/events/nearby?limit=x"},
		{name: "within missing bound", target: "/api/events/within?min_lat=1&min_lon=1&max_lat=2"},
		{name: "within inverted", target: "/api/events/within?min_lat=2&min_lon=1&max_lat=1&max_lon=2"},
		{name: "around zero radius", target: "/api/events/around?lat=1&lon=1&radius_km=0"},
		{name: "around radius too large", target: "/api/events/around?lat=1&lon=1&radius_km=501"},
		{name: "around missing lon", target: "/api/events/around?lat=1"},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, h, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, body.Error)
			assert.Equal(t, http.StatusText(http.StatusBadRequest), body.Error.Code)
		})
	}
}

func TestNearbyEndpointBackendFailure(t *testing.T) {
	h := newTestHandler(t, stubEvents{err: util.WrapErrorf(nil, util.ErrUpstream, "Request failed with status 503")})

	rec, body := get(t, h, "/api/events/nearby")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, body.Error)
	assert.Contains(t, body.Error.Message, "Request failed with status 503")
}

func TestWithinEndpoint(t *testing.T) {
	h := newTestHandler(t, testEvents())

	rec, _ := get(t, h, "/api/events/nearby")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/events/within?min_lat=-8&min_lon=110&max_lat=-7.5&max_lon=110.6", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			EventID string `json:"event_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "mal", body.Data[0].EventID)
	assert.Equal(t, "pra", body.Data[1].EventID)
}

func TestAroundEndpoint(t *testing.T) {
	h := newTestHandler(t, testEvents())

	rec, _ := get(t, h, "/api/events/nearby")
	require.Equal(t, http.StatusOK, rec.Code)

	type aroundBody struct {
		Data []struct {
			EventID    string   `json:"event_id"`
			DistanceKm *float64 `json:"distance_km"`
		} `json:"data"`
	}

	testCases := []struct {
		name    string
		target  string
		wantIDs []string
	}{
		{name: "default radius", target: "/api/events/around?lat=-7.7829&lon=110.3671", wantIDs: []string{"mal", "pra"}},
		{name: "narrow radius", target: "/api/events/around?lat=-7.7829&lon=110.3671&radius_km=5", wantIDs: []string{"mal"}},
		{name: "widest radius", target: "/api/events/around?lat=-7.7829&lon=110.3671&radius_km=500", wantIDs: []string{"mal", "pra", "jkt"}},
		{name: "other filter set", target: "/api/events/around?lat=-7.7829&lon=110.3671&filter=category_id:eq:art", wantIDs: []string{}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			var body aroundBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			got := make([]string, 0, len(body.Data))
			for _, e := range body.Data {
				require.NotNil(t, e.DistanceKm)
				got = append(got, e.EventID)
			}
			assert.Equal(t, tt.wantIDs, got)
		})
	}
}

func TestWithinEndpointAcrossAntimeridian(t *testing.T) {
	h := newTestHandler(t, testEvents())
	rec, _ := get(t, h, "/api/events/nearby")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/events/within?min_lat=-20&min_lon=175&max_lat=-10&max_lon=-170", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHeartbeatAndMetrics(t *testing.T) {
	h := newTestHandler(t, testEvents())

	rec, _ := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ".", rec.Body.String())

	get(t, h, "/api/events/nearby?lat=-7.7829&lon=110.3671")
	rec, _ = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nearby_selections_total")
}

func TestRequestIDReused(t *testing.T) {
	h := newTestHandler(t, testEvents())
	id := "5b0c2f4e-8d6a-4a3e-9d7b-1f2e3c4d5a6b"

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	// heartbeat runs after RequestID
	assert.Equal(t, id, rec.Header().Get("X-Request-Id"))
}

func TestWebsocketNearby(t *testing.T) {
	viper.Set("GEOLOCATION_MAX_AGE", time.Minute)
	t.Cleanup(func() { viper.Set("GEOLOCATION_MAX_AGE", nil) })

	srv := httptest.NewServer(newTestHandler(t, testEvents()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/nearby?limit=2"
	conn, br, _, err := ws.Dial(ctx, url)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	// frames sent right after the handshake may already sit in br
	var rd io.Reader = conn
	if br != nil {
		rd = io.MultiReader(br, conn)
	}
	rw := struct {
		io.Reader
		io.Writer
	}{rd, conn}

	read := func() nearbyBody {
		msg, err := wsutil.ReadServerText(rw)
		require.NoError(t, err)
		var body nearbyBody
		require.NoError(t, json.Unmarshal(msg, &body))
		return body
	}

	// no origin yet: backend order
	first := read()
	require.Len(t, first.Data.Events, 2)
	assert.Equal(t, "jkt", first.Data.Events[0].EventID)
	assert.Equal(t, discovery.StatusIdle, first.Data.LocationStatus.Status)

	require.NoError(t, wsutil.WriteClientText(conn, []byte(`{"lat":-7.7829,"lon":110.3671}`)))
	second := read()
	require.Len(t, second.Data.Events, 2)
	assert.Equal(t, "mal", second.Data.Events[0].EventID)
	require.NotNil(t, second.Data.Events[0].DistanceKm)

	// no position in the message: the last one is still fresh
	require.NoError(t, wsutil.WriteClientText(conn, []byte(`{"limit":1}`)))
	refreshed := read()
	require.Len(t, refreshed.Data.Events, 1)
	assert.Equal(t, "mal", refreshed.Data.Events[0].EventID)
	assert.Equal(t, discovery.StatusSuccess, refreshed.Data.LocationStatus.Status)

	require.NoError(t, wsutil.WriteClientText(conn, []byte(`not json`)))
	bad := read()
	require.NotNil(t, bad.Error)
	assert.Equal(t, http.StatusText(http.StatusBadRequest), bad.Error.Code)

	require.NoError(t, wsutil.WriteClientText(conn, []byte(`{"error":"Location access was denied"}`)))
	third := read()
	assert.Equal(t, discovery.StatusError, third.Data.LocationStatus.Status)
	// the last known origin keeps ordering by distance
	assert.Equal(t, "mal", third.Data.Events[0].EventID)
}
