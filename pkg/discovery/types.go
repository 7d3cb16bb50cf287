// Package discovery turns event records into coordinate-bearing points and picks the ones
// nearest to a viewer.
package discovery

import (
	"github.com/lintang-b-s/eventradar/pkg/eventsapi"
	"github.com/lintang-b-s/eventradar/pkg/geo"
)

const (
	// NearbyLimit is the default number of nearby events shown.
	NearbyLimit = 12
	// MaxDistanceKm is the cutoff applied once at least one nearby event was accepted.
	MaxDistanceKm = 150.0

	LocationToBeAnnounced = "Location to be announced"
)

// EventPoint is an event with resolved coordinates. DistanceKm is nil until computed,
// and stays nil when there is no origin.
type EventPoint struct {
	eventsapi.Event
	Coordinates   geo.Coordinate
	DistanceKm    *float64
	LocationLabel string
}

// withDistance returns a copy of p carrying distance.
func (p EventPoint) withDistance(distance *float64) EventPoint {
	clone := p
	if distance != nil {
		d := *distance
		clone.DistanceKm = &d
	} else {
		clone.DistanceKm = nil
	}
	return clone
}

type AsyncStatus string

const (
	StatusIdle    AsyncStatus = "idle"
	StatusLoading AsyncStatus = "loading"
	StatusSuccess AsyncStatus = "success"
	StatusError   AsyncStatus = "error"
)
