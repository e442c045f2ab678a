package geospatial

import (
	"math"

	"github.com/lukashofer/reisekosten/internal/core/domain"
)

const earthRadiusKm = 6371.0

// HaversineKm calculates the great-circle distance in kilometers between two
// points on a mean-radius sphere. Pure and deterministic: identical inputs
// always yield a bit-identical result, which the distance cache relies on.
func HaversineKm(a, b domain.GeoPoint) float64 {
	// Identical coordinates are exactly zero, with no floating noise from the
	// trigonometry below.
	if a.Lat == b.Lat && a.Lon == b.Lon {
		return 0
	}

	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
