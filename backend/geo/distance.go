package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

const EarthRadiusKm = 6371.0

// rangeToleranceKm absorbs float round-off in DistanceKm so a point exactly
// at the threshold counts as inside.
const rangeToleranceKm = 1e-9

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

func (c Coordinate) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Latitude, c.Longitude)
}

// DistanceKm returns the great-circle distance between a and b on a sphere of
// radius EarthRadiusKm. s2.LatLng.Distance is the haversine central angle.
func DistanceKm(a, b Coordinate) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadiusKm
}

// WithinRange reports whether a and b are at most thresholdKm apart.
func WithinRange(a, b Coordinate, thresholdKm float64) bool {
	return InRange(DistanceKm(a, b), thresholdKm)
}

// InRange reports whether an already computed distance is at most thresholdKm.
func InRange(distanceKm, thresholdKm float64) bool {
	return distanceKm <= thresholdKm+rangeToleranceKm
}

// OffsetNorth returns c moved km kilometres along its meridian.
func OffsetNorth(c Coordinate, km float64) Coordinate {
	return Coordinate{
		Latitude:  c.Latitude + km/EarthRadiusKm*180/math.Pi,
		Longitude: c.Longitude,
	}
}
