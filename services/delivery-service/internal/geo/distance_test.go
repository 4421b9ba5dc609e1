package geo

import (
	"math"
	"testing"

	"github.com/greenlane-app/greenlane/services/delivery-service/internal/model"
)

func TestDistanceZero(t *testing.T) {
	p := model.Coordinates{Lat: 44.0, Lng: -76.0}
	if d := Distance(p, p); d != 0 {
		t.Fatalf("expected 0 for identical points, got %f", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][2]model.Coordinates{
		{{Lat: 40.7128, Lng: -74.0060}, {Lat: 34.0522, Lng: -118.2437}},
		{{Lat: 44.0, Lng: -76.0}, {Lat: 44.1, Lng: -76.2}},
		{{Lat: -33.8688, Lng: 151.2093}, {Lat: 51.5074, Lng: -0.1278}},
	}
	for _, pair := range pairs {
		ab := Distance(pair[0], pair[1])
		ba := Distance(pair[1], pair[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("distance not symmetric: %f vs %f", ab, ba)
		}
	}
}

func TestDistanceKnownPair(t *testing.T) {
	// NYC to LA is roughly 2445 miles great-circle.
	nyc := model.Coordinates{Lat: 40.7128, Lng: -74.0060}
	la := model.Coordinates{Lat: 34.0522, Lng: -118.2437}
	d := Distance(nyc, la)
	if d < 2400 || d > 2500 {
		t.Fatalf("NYC-LA distance out of range: %f", d)
	}
}

func TestDistanceShortRange(t *testing.T) {
	// One degree of latitude is about 69 miles.
	a := model.Coordinates{Lat: 44.0, Lng: -76.0}
	b := model.Coordinates{Lat: 45.0, Lng: -76.0}
	d := Distance(a, b)
	if d < 68 || d > 70 {
		t.Fatalf("1-degree latitude distance out of range: %f", d)
	}
}
