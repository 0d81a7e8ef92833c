package geo

import (
	"math"
	"testing"
)

func TestHaversine_KnownDistances(t *testing.T) {
	tests := []struct {
		name       string
		a, b       Point
		wantMeters float64
		tolerance  float64 // allowed error in meters
	}{
		{
			name:       "Minneapolis to St Paul (~14 km)",
			a:          Point{Lng: -93.2650, Lat: 44.9778},
			b:          Point{Lng: -93.0900, Lat: 44.9537},
			wantMeters: 14_026,
			tolerance:  50,
		},
		{
			name:       "same point returns zero",
			a:          Point{Lng: -93.2650, Lat: 44.9778},
			b:          Point{Lng: -93.2650, Lat: 44.9778},
			wantMeters: 0,
			tolerance:  0.001,
		},
		{
			name:       "north pole to south pole",
			a:          Point{Lng: 0, Lat: 90},
			b:          Point{Lng: 0, Lat: -90},
			wantMeters: math.Pi * earthRadiusMeters,
			tolerance:  1,
		},
		{
			name:       "equator quarter circumference",
			a:          Point{Lng: 0, Lat: 0},
			b:          Point{Lng: 90, Lat: 0},
			wantMeters: math.Pi / 2 * earthRadiusMeters,
			tolerance:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.Abs(got-tt.wantMeters) > tt.tolerance {
				t.Errorf("Haversine() = %.1f m, want %.1f m (±%.0f)", got, tt.wantMeters, tt.tolerance)
			}
		})
	}
}

func TestPathLength(t *testing.T) {
	path := []Point{
		{Lng: 0, Lat: 0},
		{Lng: 1, Lat: 0},
		{Lng: 2, Lat: 0},
	}
	got := PathLength(path)
	want := 2 * Haversine(path[0], path[1])
	if math.Abs(got-want) > 1 {
		t.Errorf("PathLength() = %.1f, want %.1f", got, want)
	}

	if PathLength(nil) != 0 {
		t.Error("PathLength(nil) should be 0")
	}
	if PathLength(path[:1]) != 0 {
		t.Error("PathLength of a single point should be 0")
	}
}

func TestPoint_JSONRoundTrip(t *testing.T) {
	p := Point{Lng: -93.265, Lat: 44.9778}
	data, err := p.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != "[-93.265,44.9778]" {
		t.Errorf("MarshalJSON = %s, want [-93.265,44.9778]", data)
	}

	var back Point
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if back != p {
		t.Errorf("round trip = %+v, want %+v", back, p)
	}
}
