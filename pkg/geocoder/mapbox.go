package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lintang-b-s/eventradar/pkg/geo"
	"github.com/lintang-b-s/eventradar/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrMissingToken     = errors.New("missing mapbox token")
	ErrGeocodingFailed  = errors.New("geocoding failed")
	ErrInvalidGeocoding = errors.New("geocoding provider returned an invalid coordinate")
)

// Geocoder resolves a free-text address to a coordinate. A nil coordinate with a nil error
// means the provider found no match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geo.Coordinate, error)
}

type Config struct {
	BaseURL        string
	Token          string
	RequestsPerSec float64
	Timeout        time.Duration
}

// MapboxGeocoder looks addresses up with the mapbox places API, consulting cache first.
type MapboxGeocoder struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      Cache
	log        *zap.Logger
	metrics    *metrics.Collector
}

func NewMapboxGeocoder(config Config, cache Cache, log *zap.Logger, m *metrics.Collector) (*MapboxGeocoder, error) {
	if strings.TrimSpace(config.Token) == "" {
		return nil, ErrMissingToken
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.mapbox.com"
	}
	if config.RequestsPerSec <= 0 {
		config.RequestsPerSec = 1
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &MapboxGeocoder{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		token:   config.Token,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSec), 1),
		cache:   cache,
		log:     log,
		metrics: m,
	}, nil
}

type placesResponse struct {
	Features []struct {
		Center []float64 `json:"center"`
	} `json:"features"`
}

// Geocode. cache hit returns immediately. Once ctx is cancelled nothing is written to the cache.
// Concurrent calls for the same uncached address each hit the provider.
func (g *MapboxGeocoder) Geocode(ctx context.Context, address string) (*geo.Coordinate, error) {
	if coord, ok := g.cache.Get(address); ok {
		g.metrics.ObserveLookup(metrics.ResultCacheHit)
		return &coord, nil
	}

	coord, err := g.lookup(ctx, address)
	if ctx.Err() != nil {
		g.metrics.ObserveLookup(metrics.ResultCancelled)
		return nil, ctx.Err()
	}
	if err != nil {
		g.metrics.ObserveLookup(metrics.ResultError)
		return nil, err
	}
	if coord == nil {
		g.metrics.ObserveLookup(metrics.ResultNotFound)
		return nil, nil
	}

	g.cache.Set(address, *coord)
	g.metrics.ObserveLookup(metrics.ResultResolved)
	g.metrics.SetCacheEntries(g.cache.Len())
	return coord, nil
}

func (g *MapboxGeocoder) lookup(ctx context.Context, address string) (*geo.Coordinate, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json", g.baseURL, url.PathEscape(address)))
	if err != nil {
		return nil, err
	}
	params := u.Query()
	params.Set("limit", "1")
	params.Set("access_token", g.token)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	g.metrics.ObserveGeocodeRequest(start)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w (%d)", ErrGeocodingFailed, resp.StatusCode)
	}

	var data placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}

	if len(data.Features) == 0 || len(data.Features[0].Center) < 2 {
		g.log.Debug("no geocoding match", zap.String("address", address))
		return nil, nil
	}

	// mapbox center is [longitude, latitude]
	coord := geo.NewCoordinate(data.Features[0].Center[1], data.Features[0].Center[0])
	if !coord.IsFinite() || coord.Lat < -90 || coord.Lat > 90 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeocoding, data.Features[0].Center)
	}
	// centers of features spanning the antimeridian can fall just outside [-180, 180]
	coord = coord.Normalize()
	return &coord, nil
}
