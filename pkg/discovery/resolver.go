package discovery

import (
	"context"
	"strings"

	"github.com/lintang-b-s/eventradar/pkg/concurrent"
	"github.com/lintang-b-s/eventradar/pkg/eventsapi"
	"github.com/lintang-b-s/eventradar/pkg/geo"
	"github.com/lintang-b-s/eventradar/pkg/geocoder"
	"github.com/lintang-b-s/eventradar/pkg/locationcodec"
	"github.com/lintang-b-s/eventradar/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Resolver attaches coordinates to events. Coordinates embedded in an encoded location are used
// as-is; anything else goes through the geocoder.
type Resolver struct {
	geocoder    geocoder.Geocoder
	cache       geocoder.Cache
	concurrency int
	log         *zap.Logger
	metrics     *metrics.Collector
}

// NewResolver. concurrency 1 resolves addresses one after another, which keeps request bursts
// against the geocoding provider down. gc may be nil when no provider is configured.
func NewResolver(gc geocoder.Geocoder, cache geocoder.Cache, concurrency int, log *zap.Logger,
	m *metrics.Collector) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{
		geocoder:    gc,
		cache:       cache,
		concurrency: concurrency,
		log:         log,
		metrics:     m,
	}
}

type resolveJob struct {
	index int
	event eventsapi.Event
}

type resolveResult struct {
	index int
	point EventPoint
	ok    bool
}

// Resolve returns the events that have coordinates, in input order. Events with a blank location
// or a failed lookup are left out. If ctx is cancelled Resolve returns ctx.Err() and no points.
func (r *Resolver) Resolve(ctx context.Context, events []eventsapi.Event) ([]EventPoint, error) {
	if r.geocoder == nil {
		return nil, geocoder.ErrMissingToken
	}

	jobs := make([]resolveJob, 0, len(events))
	for i, e := range events {
		if strings.TrimSpace(e.Location()) == "" {
			continue
		}
		jobs = append(jobs, resolveJob{index: i, event: e})
	}

	results := concurrent.Run[resolveJob, resolveResult](ctx, r.concurrency, jobs, r.resolveOne)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b resolveResult) int {
		return a.index - b.index
	})

	points := make([]EventPoint, 0, len(results))
	for _, res := range results {
		if res.ok {
			points = append(points, res.point)
		}
	}

	r.metrics.SetResolvedPoints(len(points))
	return points, nil
}

func (r *Resolver) resolveOne(ctx context.Context, job resolveJob) resolveResult {
	raw := job.event.Location()
	decoded := locationcodec.Decode(raw)

	label := raw
	if decoded != nil && (decoded.IsEncoded || decoded.Address != "") {
		label = strings.TrimSpace(decoded.Address)
	}

	var coord *geo.Coordinate
	cacheable := label != ""
	switch {
	case decoded.HasCoordinates():
		if label == "" {
			label = LocationToBeAnnounced
		}
		c := geo.NewCoordinate(*decoded.Latitude, *decoded.Longitude)
		coord = &c
	case label == "":
		// an encoded location with neither address nor coordinates
		r.log.Debug("no address for event", zap.String("event_id", job.event.EventID))
		return resolveResult{index: job.index}
	default:
		c, err := r.geocoder.Geocode(ctx, label)
		if err != nil {
			if ctx.Err() == nil {
				r.log.Warn("geocoding failed, skipping event", zap.String("event_id", job.event.EventID),
					zap.String("location", label), zap.Error(err))
			}
			return resolveResult{index: job.index}
		}
		coord = c
	}

	if coord == nil {
		r.log.Debug("no coordinates for event", zap.String("event_id", job.event.EventID),
			zap.String("location", label))
		return resolveResult{index: job.index}
	}

	if ctx.Err() != nil {
		return resolveResult{index: job.index}
	}
	if r.cache != nil && cacheable {
		r.cache.Set(label, *coord)
	}

	return resolveResult{
		index: job.index,
		point: EventPoint{
			Event:         job.event,
			Coordinates:   *coord,
			LocationLabel: label,
		},
		ok: true,
	}
}
