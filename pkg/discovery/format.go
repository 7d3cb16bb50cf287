package discovery

import (
	"fmt"
	"math"
)

// FormatDistance renders a distance for display: meters under 1 km, one decimal km otherwise.
func FormatDistance(distanceKm *float64) string {
	if distanceKm == nil {
		return "Distance unavailable"
	}
	if *distanceKm < 1 {
		return fmt.Sprintf("%d m away", int(math.Round(*distanceKm*1000)))
	}
	return fmt.Sprintf("%.1f km away", *distanceKm)
}
