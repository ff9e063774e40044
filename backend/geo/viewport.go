package geo

import (
	"fmt"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Viewport is a map window. West may exceed East when it crosses the
// antimeridian.
type Viewport struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

func (v Viewport) Valid() bool {
	return Coordinate{v.South, v.West}.Valid() && Coordinate{v.North, v.East}.Valid() && v.South <= v.North
}

func (v Viewport) String() string {
	return fmt.Sprintf("[%.6f,%.6f .. %.6f,%.6f]", v.South, v.West, v.North, v.East)
}

func (v Viewport) Rect() s2.Rect {
	sw := s2.LatLngFromDegrees(v.South, v.West)
	ne := s2.LatLngFromDegrees(v.North, v.East)
	return s2.Rect{
		Lat: r1.Interval{Lo: sw.Lat.Radians(), Hi: ne.Lat.Radians()},
		Lng: s1.IntervalFromEndpoints(sw.Lng.Radians(), ne.Lng.Radians()),
	}
}

func (v Viewport) Center() Coordinate {
	c := v.Rect().Center()
	return Coordinate{Latitude: c.Lat.Degrees(), Longitude: c.Lng.Degrees()}
}

func (v Viewport) Contains(c Coordinate) bool {
	return v.Rect().ContainsLatLng(c.latLng())
}
