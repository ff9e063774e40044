package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vukamap/backend/db"
	"vukamap/backend/geo"
	imgpkg "vukamap/backend/image"
	"vukamap/backend/pipeline"
	"vukamap/backend/server/api"
)

const maxImageBytes = 10 << 20

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// readImage reads the named multipart file, up to maxImageBytes.
func readImage(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, badRequest("missing %s file", field)
	}
	if fh.Size > maxImageBytes {
		return nil, badRequest("%s is larger than %d bytes", field, maxImageBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxImageBytes))
}

func readCoordinate(c *gin.Context) (geo.Coordinate, error) {
	lat, err := strconv.ParseFloat(c.PostForm("latitude"), 64)
	if err != nil {
		return geo.Coordinate{}, badRequest("bad latitude %q", c.PostForm("latitude"))
	}
	lng, err := strconv.ParseFloat(c.PostForm("longitude"), 64)
	if err != nil {
		return geo.Coordinate{}, badRequest("bad longitude %q", c.PostForm("longitude"))
	}
	return geo.Coordinate{Latitude: lat, Longitude: lng}, nil
}

func readSeq(c *gin.Context) (int64, error) {
	seq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil || seq <= 0 {
		return 0, badRequest("bad report seq %q", c.Param("seq"))
	}
	return seq, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, imgpkg.ErrMalformedImage),
		errors.Is(err, pipeline.ErrInvalidCoordinate):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrReportNotFound),
		errors.Is(err, db.ErrUserNotFound),
		errors.Is(err, db.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrAlreadyResolved),
		errors.Is(err, db.ErrEventFull),
		errors.Is(err, db.ErrAlreadyRegistered):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// abort writes err with its mapped status. Internal errors are not echoed.
func abort(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, api.ErrorResponse{Error: msg})
}
