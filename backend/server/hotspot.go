package server

import (
	"net/http"
	"strconv"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"vukamap/backend/db"
	"vukamap/backend/geo"
	"vukamap/backend/hotspot"
	"vukamap/backend/server/api"
)

const maxHotspotReports = 5000

func readViewport(c *gin.Context) (geo.Viewport, error) {
	var (
		vp     geo.Viewport
		fields = []struct {
			name string
			dst  *float64
		}{
			{"south", &vp.South},
			{"west", &vp.West},
			{"north", &vp.North},
			{"east", &vp.East},
		}
	)
	for _, f := range fields {
		v, err := strconv.ParseFloat(c.Query(f.name), 64)
		if err != nil {
			return vp, badRequest("bad %s %q", f.name, c.Query(f.name))
		}
		*f.dst = v
	}
	if !vp.Valid() {
		return vp, badRequest("bad viewport %s", vp)
	}
	return vp, nil
}

// Hotspots clusters the open reports inside the viewport.
func (s *Server) Hotspots(c *gin.Context) {
	vp, err := readViewport(c)
	if err != nil {
		abort(c, err)
		return
	}

	reports, err := s.directory.ListReports(c.Request.Context(), db.ReportFilter{OnlyOpen: true, Viewport: &vp, Limit: maxHotspotReports})
	if err != nil {
		log.Errorf("Failed to list reports in %s: %v", vp, err)
		abort(c, err)
		return
	}

	aggr := hotspot.NewAggregator(vp)
	for _, r := range reports {
		loc := r.ReferenceLocation()
		if !vp.Contains(loc) {
			continue
		}
		aggr.Add(hotspot.Point{ReportID: r.ID, Location: loc, Dirtiness: r.Dirtiness.Score})
	}
	c.JSON(http.StatusOK, api.HotspotCollection(aggr.Clusters()))
}
