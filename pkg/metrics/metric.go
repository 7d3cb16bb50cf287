package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// geocode lookup outcomes
const (
	ResultCacheHit  = "cache_hit"
	ResultResolved  = "resolved"
	ResultNotFound  = "not_found"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// selection modes
const (
	ModeNearest  = "nearest"
	ModeFallback = "fallback"
)

// Collector bundles the prometheus metrics of the discovery service.
// A nil *Collector is valid and records nothing.
type Collector struct {
	GeocodeLookups   *prometheus.CounterVec
	GeocodeDurations prometheus.Histogram
	Selections       *prometheus.CounterVec
	ResolvedPoints   prometheus.Gauge
	CacheEntries     prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_lookups_total",
		Help: "Address lookups, labeled by outcome.",
	}, []string{"result"}), "geocode_lookups_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geocode_request_duration_seconds",
		Help:    "Latency of geocoding provider requests in seconds.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}), "geocode_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	selections, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearby_selections_total",
		Help: "Nearest-event selections, labeled by mode (nearest or positional fallback).",
	}, []string{"mode"}), "nearby_selections_total")
	if err != nil {
		return nil, err
	}

	points, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "resolved_event_points",
		Help: "Number of events with coordinates in the last resolution.",
	}), "resolved_event_points")
	if err != nil {
		return nil, err
	}

	entries, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geocode_cache_entries",
		Help: "Number of addresses in the geocode cache.",
	}), "geocode_cache_entries")
	if err != nil {
		return nil, err
	}

	return &Collector{
		GeocodeLookups:   lookups,
		GeocodeDurations: durations,
		Selections:       selections,
		ResolvedPoints:   points,
		CacheEntries:     entries,
	}, nil
}

func (c *Collector) ObserveLookup(result string) {
	if c == nil {
		return
	}
	c.GeocodeLookups.WithLabelValues(result).Inc()
}

func (c *Collector) ObserveGeocodeRequest(start time.Time) {
	if c == nil {
		return
	}
	c.GeocodeDurations.Observe(time.Since(start).Seconds())
}

func (c *Collector) ObserveSelection(mode string) {
	if c == nil {
		return
	}
	c.Selections.WithLabelValues(mode).Inc()
}

func (c *Collector) SetResolvedPoints(n int) {
	if c == nil {
		return
	}
	c.ResolvedPoints.Set(float64(n))
}

func (c *Collector) SetCacheEntries(n int) {
	if c == nil {
		return
	}
	c.CacheEntries.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
