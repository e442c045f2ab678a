package geospatial_test

import (
	"math"
	"testing"

	"github.com/lukashofer/reisekosten/internal/core/domain"
	"github.com/lukashofer/reisekosten/internal/pkg/geospatial"
)

var (
	zurich = domain.GeoPoint{Lat: 47.376887, Lon: 8.540192}
	bern   = domain.GeoPoint{Lat: 46.947974, Lon: 7.447447}
)

func TestHaversineKm_ZurichBern(t *testing.T) {
	got := geospatial.HaversineKm(zurich, bern)
	// Great-circle distance Zurich–Bern is about 95.4 km.
	if math.Abs(got-95.39) > 0.5 {
		t.Errorf("expected ~95.39 km, got %f", got)
	}
}

func TestHaversineKm_IdenticalPoints(t *testing.T) {
	got := geospatial.HaversineKm(zurich, zurich)
	if got != 0 {
		t.Errorf("expected exactly 0 for identical points, got %v", got)
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	ab := geospatial.HaversineKm(zurich, bern)
	ba := geospatial.HaversineKm(bern, zurich)
	if ab != ba {
		t.Errorf("distance is not symmetric: %v vs %v", ab, ba)
	}
}

func TestHaversineKm_Deterministic(t *testing.T) {
	first := geospatial.HaversineKm(zurich, bern)
	for i := 0; i < 100; i++ {
		if got := geospatial.HaversineKm(zurich, bern); got != first {
			t.Fatalf("run %d produced %v, first run produced %v", i, got, first)
		}
	}
}

func TestHaversineKm_Antipodal(t *testing.T) {
	a := domain.GeoPoint{Lat: 0, Lon: 0}
	b := domain.GeoPoint{Lat: 0, Lon: 180}
	got := geospatial.HaversineKm(a, b)
	// Half the Earth's circumference at radius 6371 km.
	want := math.Pi * 6371.0
	if math.Abs(got-want) > 1 {
		t.Errorf("expected ~%f km, got %f", want, got)
	}
}
