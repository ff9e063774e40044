package server

import (
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"vukamap/backend/pipeline"
	"vukamap/backend/server/api"
)

func (s *Server) VerifyCleanup(c *gin.Context) {
	seq, err := readSeq(c)
	if err != nil {
		abort(c, err)
		return
	}
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
	claimedBy := c.PostForm("claimed_by")
	if claimedBy == "" {
		abort(c, badRequest("claimed_by is required"))
		return
	}

	res, err := s.reports.VerifyCleanup(c.Request.Context(), pipeline.CleanupRequest{
		ReportID:   seq,
		ClaimedBy:  claimedBy,
		Coordinate: coordinate,
		Image:      image,
	})
	if err != nil {
		if statusOf(err) == http.StatusInternalServerError {
			log.Errorf("Failed to verify cleanup of report %d by %q: %v", seq, claimedBy, err)
		}
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewCleanupResponse(res))
}
