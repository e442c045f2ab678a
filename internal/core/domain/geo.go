package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// KeyPrecision is the number of decimal degrees coordinates are rounded to
// when building cache keys. Five decimals is roughly one meter at the equator,
// well below the accuracy of the distance model itself.
const KeyPrecision = 5

// Validate checks coordinate bounds. Out-of-range values are rejected, never
// clamped.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{Field: "lat", Message: fmt.Sprintf("latitude must be in [-90, 90], got %v", p.Lat)}
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return &ValidationError{Field: "lon", Message: fmt.Sprintf("longitude must be in [-180, 180], got %v", p.Lon)}
	}
	return nil
}

// Canonical returns the point rounded to KeyPrecision decimal degrees.
func (p GeoPoint) Canonical() GeoPoint {
	return GeoPoint{Lat: roundTo(p.Lat, KeyPrecision), Lon: roundTo(p.Lon, KeyPrecision)}
}

// CanonicalPair orders two canonicalized points deterministically so that
// (a,b) and (b,a) produce the same pair. Distance is symmetric, so swapped
// queries must share a cache entry.
func CanonicalPair(a, b GeoPoint) (GeoPoint, GeoPoint) {
	ca, cb := a.Canonical(), b.Canonical()
	if cb.Lat < ca.Lat || (cb.Lat == ca.Lat && cb.Lon < ca.Lon) {
		return cb, ca
	}
	return ca, cb
}

// CacheKey builds the canonical cache key for a coordinate pair.
func CacheKey(a, b GeoPoint) string {
	ca, cb := CanonicalPair(a, b)
	return fmt.Sprintf("%.5f:%.5f|%.5f:%.5f", ca.Lat, ca.Lon, cb.Lat, cb.Lon)
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}
