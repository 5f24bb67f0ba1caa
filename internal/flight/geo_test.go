package flight

import (
	"math"
	"testing"

	"github.com/flight-control/fcc/internal/link"
)

func TestDestinationDueNorth(t *testing.T) {
	origin := link.Location{Lat: 0, Lon: 0, Alt: 10}
	dest := Destination(origin, 0, 100)

	if math.Abs(dest.Lon-origin.Lon) > 1e-9 {
		t.Errorf("longitude delta = %v, want 0", dest.Lon-origin.Lon)
	}
	if dest.Lat <= origin.Lat {
		t.Errorf("latitude delta = %v, want positive", dest.Lat-origin.Lat)
	}
	if dest.Alt != 10 {
		t.Errorf("Alt = %v, want 10 preserved", dest.Alt)
	}
}

func TestOffsetFromHeading(t *testing.T) {
	tests := []struct {
		heading, distance float64
		north, east       float64
	}{
		{0, 100, 100, 0},
		{90, 50, 0, 50},
		{180, 10, -10, 0},
		{270, 10, 0, -10},
		{45, math.Sqrt2, 1, 1},
	}
	for _, tt := range tests {
		off := OffsetFromHeading(tt.heading, tt.distance)
		if math.Abs(off.North-tt.north) > 1e-9 || math.Abs(off.East-tt.east) > 1e-9 {
			t.Errorf("OffsetFromHeading(%v, %v) = %+v, want {%v %v}", tt.heading, tt.distance, off, tt.north, tt.east)
		}
	}
}

func TestProjectRoundTripsThroughPlanarDistance(t *testing.T) {
	origins := []link.Location{
		{Lat: 0, Lon: 0},
		{Lat: 37.5665, Lon: 126.978},
		{Lat: -35.3632621, Lon: 149.1652374},
	}
	for _, origin := range origins {
		// Due north the planar metric matches the projection closely at any latitude
		dest := Project(origin, Offset{North: 50})
		if d := PlanarDistance(origin, dest); math.Abs(d-50) > 0.05 {
			t.Errorf("PlanarDistance north from %v = %.3f, want ~50", origin, d)
		}
	}

	dest := Project(link.Location{}, Offset{East: 50})
	if d := PlanarDistance(link.Location{}, dest); math.Abs(d-50) > 0.05 {
		t.Errorf("PlanarDistance east at equator = %.3f, want ~50", d)
	}
}

func TestPlanarDistanceZero(t *testing.T) {
	loc := link.Location{Lat: 1, Lon: 2, Alt: 3}
	if d := PlanarDistance(loc, loc); d != 0 {
		t.Errorf("PlanarDistance(loc, loc) = %v, want 0", d)
	}
}
