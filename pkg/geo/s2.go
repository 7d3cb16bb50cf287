package geo

import (
	"github.com/golang/geo/s2"
	"github.com/twpayne/go-polyline"
)

func (c Coordinate) toLatLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lon)
}

// IsValid reports whether c is finite with latitude in [-90, 90] and longitude in [-180, 180].
func (c Coordinate) IsValid() bool {
	return c.IsFinite() && c.toLatLng().IsValid()
}

// Normalize wraps longitude to [-180, 180] and clamps latitude to [-90, 90].
func (c Coordinate) Normalize() Coordinate {
	ll := c.toLatLng().Normalized()
	return NewCoordinate(ll.Lat.Degrees(), ll.Lng.Degrees())
}

// PolylineFromCoords encodes coords (in order) with the google polyline algorithm, precision 5.
func PolylineFromCoords(coords []Coordinate) string {
	s := make([][]float64, 0, len(coords))
	for _, c := range coords {
		s = append(s, []float64{c.Lat, c.Lon})
	}
	return string(polyline.EncodeCoords(s))
}
