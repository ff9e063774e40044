// Package hotspot groups open reports into clusters for a map viewport using
// S2 cells.
package hotspot

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"

	"vukamap/backend/geo"
)

const (
	targetCells = 16
	minLevel    = 2
	maxLevel    = 18

	// Cells with at most this many reports are returned as single points.
	minReportsToCluster = 10
	// A child cell with less than 1/weightRatio of the heaviest sibling's
	// reports does not pull the cluster pin.
	weightRatio = 8
)

type Point struct {
	ReportID  int64
	Location  geo.Coordinate
	Dirtiness int
}

type Cluster struct {
	Center        geo.Coordinate `json:"center"`
	Count         int            `json:"count"`
	MeanDirtiness int            `json:"mean_dirtiness"`
	ReportID      int64          `json:"report_id,omitempty"`
}

type unit struct {
	count    int
	dirtSum  int
	pin      s2.Point
	children [4]*unit
	points   []Point
}

type Aggregator struct {
	level  int
	leaves map[s2.CellID][]Point
}

// BaseLevel is the finest S2 level at which the viewport is covered by fewer
// than targetCells cells around its center.
func BaseLevel(vp geo.Viewport) int {
	area := vp.Rect().Area()
	c := vp.Center()
	center := s2.CellIDFromLatLng(s2.LatLngFromDegrees(c.Latitude, c.Longitude))
	for lv := maxLevel; lv >= minLevel; lv-- {
		if area/s2.CellFromCellID(center.Parent(lv)).ApproxArea() < targetCells {
			return lv
		}
	}
	return minLevel
}

func NewAggregator(vp geo.Viewport) *Aggregator {
	return &Aggregator{
		level:  BaseLevel(vp),
		leaves: make(map[s2.CellID][]Point),
	}
}

func (a *Aggregator) Add(p Point) {
	leaf := s2.CellIDFromLatLng(s2.LatLngFromDegrees(p.Location.Latitude, p.Location.Longitude)).Parent(maxLevel)
	a.leaves[leaf] = append(a.leaves[leaf], p)
}

// Clusters rolls the leaf cells up to the base level. Busy cells become one
// cluster, the rest are returned point by point. Larger clusters come first.
func (a *Aggregator) Clusters() []Cluster {
	units := make(map[s2.CellID]*unit, len(a.leaves))
	for cell, pts := range a.leaves {
		u := &unit{count: len(pts), pin: s2.PointFromLatLng(cell.LatLng())}
		for _, p := range pts {
			u.dirtSum += p.Dirtiness
		}
		if u.count <= minReportsToCluster {
			u.points = pts
		}
		units[cell] = u
	}

	for level := maxLevel - 1; level >= a.level; level-- {
		units = rollUp(units, level)
	}

	out := make([]Cluster, 0, len(units))
	for _, u := range units {
		if u.count > minReportsToCluster {
			ll := s2.LatLngFromPoint(u.pin)
			out = append(out, Cluster{
				Center:        geo.Coordinate{Latitude: ll.Lat.Degrees(), Longitude: ll.Lng.Degrees()},
				Count:         u.count,
				MeanDirtiness: (u.dirtSum + u.count/2) / u.count,
			})
			continue
		}
		for _, p := range u.points {
			out = append(out, Cluster{Center: p.Location, Count: 1, MeanDirtiness: p.Dirtiness, ReportID: p.ReportID})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ReportID < out[j].ReportID
	})
	return out
}

func rollUp(units map[s2.CellID]*unit, level int) map[s2.CellID]*unit {
	next := make(map[s2.CellID]*unit)
	for cell, u := range units {
		parent := cell.Parent(level)
		p, ok := next[parent]
		if !ok {
			p = &unit{}
			next[parent] = p
		}
		p.count += u.count
		p.dirtSum += u.dirtSum
		if p.count <= minReportsToCluster {
			p.points = append(p.points, u.points...)
		} else {
			p.points = nil
		}
		p.children[cell.ChildPosition(level+1)] = u
	}
	for cell, p := range next {
		p.pin = pin(cell, p.children)
	}
	return next
}

// pin is the count-weighted centroid of the child pins, ignoring light
// children next to a much heavier sibling.
func pin(cell s2.CellID, children [4]*unit) s2.Point {
	heaviest := 0
	for _, c := range children {
		if c != nil && c.count > heaviest {
			heaviest = c.count
		}
	}
	var sum r3.Vector
	for _, c := range children {
		if c == nil || heaviest/c.count >= weightRatio {
			continue
		}
		sum = sum.Add(c.pin.Vector.Mul(float64(c.count)))
	}
	if sum.Norm() == 0 {
		return s2.PointFromLatLng(cell.LatLng())
	}
	return s2.Point{Vector: sum.Normalize()}
}
