package usecases

import (
	"context"

	"github.com/lintang-b-s/eventradar/pkg/discovery"
	"github.com/lintang-b-s/eventradar/pkg/eventsapi"
	"github.com/lintang-b-s/eventradar/pkg/geo"
	"github.com/lintang-b-s/eventradar/pkg/spatialindex"
	"go.uber.org/zap"
)

type EventSource interface {
	ListEvents(ctx context.Context, params eventsapi.ListParams) (*eventsapi.EventList, error)
}

type SpatialIndex interface {
	Build(entries []spatialindex.Entry[discovery.EventPoint], log *zap.Logger)
	SearchBoundingBox(minLat, minLon, maxLat, maxLon float64) []spatialindex.Entry[discovery.EventPoint]
	SearchWithinRadius(center geo.Coordinate, radius float64) []spatialindex.Entry[discovery.EventPoint]
}
