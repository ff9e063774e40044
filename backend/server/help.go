package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Help(c *gin.Context) {
	c.String(http.StatusOK, `
	VukaMap API:
	POST /report                  multipart: image, latitude, longitude, reported_by, description, city
	GET  /report/:seq             report with provenance and verification
	GET  /report/:seq/geojson     report as a GeoJSON feature
	POST /report/:seq/cleanup     multipart: image, latitude, longitude, claimed_by
	GET  /reports?open=true&city= latest reports as a GeoJSON feature collection
	GET  /hotspots?south=&west=&north=&east=   open report clusters in a viewport
	GET  /users/:id               eco-credit balance
	POST /events                  json: title, date, time, location, city, lat, lng, max_attendees
	GET  /events                  cleanup events, soonest first
	GET  /events/:id              one cleanup event
	POST /events/:id/join         json: user_id
	`)
}
