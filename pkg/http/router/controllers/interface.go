package controllers

import (
	"context"

	"github.com/lintang-b-s/eventradar/pkg/discovery"
	"github.com/lintang-b-s/eventradar/pkg/geo"
	"github.com/lintang-b-s/eventradar/pkg/http/usecases"
)

type DiscoveryService interface {
	Nearby(ctx context.Context, q usecases.NearbyQuery) (*usecases.NearbyResult, error)
	Within(filters []string, minLat, minLon, maxLat, maxLon float64) ([]discovery.EventPoint, error)
	WithinRadius(filters []string, center geo.Coordinate, radius float64) ([]discovery.EventPoint, error)
	OpenSession(ctx context.Context, filters []string) (*discovery.Session, error)
	Snapshot(session *discovery.Session, limit int) usecases.NearbyResult
}
