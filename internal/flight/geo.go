package flight

import (
	"math"

	"github.com/flight-control/fcc/internal/link"
)

const (
	// EarthRadius is the spherical earth radius in metres.
	EarthRadius = 6378137.0

	// MetresPerDegree scales a planar lat/lon degree delta to metres.
	MetresPerDegree = 1.113195e5
)

// Offset is a metric displacement on the local tangent plane.
type Offset struct {
	North float64
	East  float64
}

// OffsetFromHeading converts a compass heading in degrees and a distance in metres.
func OffsetFromHeading(heading, distance float64) Offset {
	rad := heading * math.Pi / 180
	return Offset{
		North: distance * math.Cos(rad),
		East:  distance * math.Sin(rad),
	}
}

// Project returns the location off metres from origin using a flat-earth
// approximation, accurate to about 10m within 1km away from the poles.
// Altitude is preserved.
func Project(origin link.Location, off Offset) link.Location {
	dLat := off.North / EarthRadius
	dLon := off.East / (EarthRadius * math.Cos(math.Pi*origin.Lat/180))

	return link.Location{
		Lat: origin.Lat + dLat*180/math.Pi,
		Lon: origin.Lon + dLon*180/math.Pi,
		Alt: origin.Alt,
	}
}

// PlanarDistance is the approximate ground distance in metres between a and b.
func PlanarDistance(a, b link.Location) float64 {
	dLat := b.Lat - a.Lat
	dLon := b.Lon - a.Lon
	return math.Sqrt(dLat*dLat+dLon*dLon) * MetresPerDegree
}
