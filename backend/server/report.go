package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"vukamap/backend/db"
	"vukamap/backend/pipeline"
	"vukamap/backend/server/api"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (s *Server) SubmitReport(c *gin.Context) {
	image, err := readImage(c, "image")
	if err != nil {
		abort(c, err)
		return
	}
	coordinate, err := readCoordinate(c)
	if err != nil {
		abort(c, err)
		return
	}
	reportedBy := c.PostForm("reported_by")
	if reportedBy == "" {
		abort(c, badRequest("reported_by is required"))
		return
	}

	r, err := s.reports.SubmitReport(c.Request.Context(), pipeline.ReportRequest{
		ReportedBy:  reportedBy,
		Description: c.PostForm("description"),
		City:        c.PostForm("city"),
		Coordinate:  coordinate,
		Image:       image,
	})
	if err != nil {
		log.Errorf("Failed to submit report from %q: %v", reportedBy, err)
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewReportResponse(r))
}

func (s *Server) readReport(c *gin.Context) *pipeline.ReportRecord {
	seq, err := readSeq(c)
	if err != nil {
		abort(c, err)
		return nil
	}
	r, err := s.reports.GetReport(c.Request.Context(), seq)
	if err != nil {
		abort(c, err)
		return nil
	}
	return r
}

func (s *Server) ReadReport(c *gin.Context) {
	if r := s.readReport(c); r != nil {
		c.JSON(http.StatusOK, r)
	}
}

func (s *Server) ReadReportFeature(c *gin.Context) {
	if r := s.readReport(c); r != nil {
		c.JSON(http.StatusOK, api.ReportFeature(r))
	}
}

func (s *Server) ListReports(c *gin.Context) {
	onlyOpen, err := strconv.ParseBool(c.DefaultQuery("open", "true"))
	if err != nil {
		abort(c, badRequest("bad open flag %q", c.Query("open")))
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		abort(c, badRequest("bad limit %q", c.Query("limit")))
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	filter := db.ReportFilter{
		OnlyOpen: onlyOpen,
		City:     strings.TrimSpace(c.Query("city")),
		Limit:    limit,
	}
	reports, err := s.directory.ListReports(c.Request.Context(), filter)
	if err != nil {
		log.Errorf("Failed to list reports: %v", err)
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, api.ReportCollection(reports))
}

func (s *Server) ReadUser(c *gin.Context) {
	u, err := s.directory.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
