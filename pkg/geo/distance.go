package geo

import (
	"math"

	"github.com/lintang-b-s/eventradar/pkg/util"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Lat: lat,
		Lon: lon,
	}
}

// IsFinite reports whether both components are finite numbers.
func (c Coordinate) IsFinite() bool {
	return util.IsFinite(c.Lat) && util.IsFinite(c.Lon)
}

const (
	earthRadiusKM = 6371.0
)

// CalculateHaversineDistance. great-circle distance between a and b in km on a sphere of radius 6371 km.
// atan2 form, stable for both tiny and near-antipodal separations.
func CalculateHaversineDistance(a, b Coordinate) float64 {
	latOne := util.DegreeToRadians(a.Lat)
	latTwo := util.DegreeToRadians(b.Lat)
	dLat := util.DegreeToRadians(b.Lat - a.Lat)
	dLon := util.DegreeToRadians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latOne)*math.Cos(latTwo)*sinLon*sinLon
	// rounding can push h a hair outside [0,1] for antipodal points
	h = math.Min(1, math.Max(0, h))

	c := 2.0 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKM * c
}

// BoundingBoxAround returns the (minLat, minLon, maxLat, maxLon) box enclosing every point within radius km
// of center. Boxes touching a pole or wrapping the antimeridian are widened to the full longitude range.
// http://janmatuschek.de/LatitudeLongitudeBoundingCoordinates
func BoundingBoxAround(center Coordinate, radius float64) (float64, float64, float64, float64) {
	r := radius / earthRadiusKM
	lat := util.DegreeToRadians(center.Lat)
	lon := util.DegreeToRadians(center.Lon)

	minLat := lat - r
	maxLat := lat + r
	if minLat <= -math.Pi/2 || maxLat >= math.Pi/2 {
		return util.RadiansToDegree(math.Max(minLat, -math.Pi/2)), -180,
			util.RadiansToDegree(math.Min(maxLat, math.Pi/2)), 180
	}

	dLon := math.Asin(math.Min(1, math.Sin(r)/math.Cos(lat)))
	minLon := lon - dLon
	maxLon := lon + dLon
	if minLon < -math.Pi || maxLon > math.Pi {
		return util.RadiansToDegree(minLat), -180, util.RadiansToDegree(maxLat), 180
	}
	return util.RadiansToDegree(minLat), util.RadiansToDegree(minLon),
		util.RadiansToDegree(maxLat), util.RadiansToDegree(maxLon)
}
