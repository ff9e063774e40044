package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"vukamap/backend/db"
	"vukamap/backend/geo"
	"vukamap/backend/server/api"
)

func readEventID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("bad event id %q", c.Param("id"))
	}
	return id, nil
}

func (s *Server) CreateEvent(c *gin.Context) {
	var req api.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}
	date, err := time.Parse(api.EventDateLayout, req.Date)
	if err != nil {
		abort(c, badRequest("bad date %q", req.Date))
		return
	}
	e := &db.Event{
		Title:          strings.TrimSpace(req.Title),
		Date:           date,
		Time:           req.Time,
		Location:       req.Location,
		City:           req.City,
		Coordinate:     geo.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		ExpectedImpact: req.ExpectedImpact,
		MaxAttendees:   req.MaxAttendees,
		Description:    req.Description,
	}
	if !e.Coordinate.Valid() {
		abort(c, badRequest("bad coordinate %s", e.Coordinate))
		return
	}

	id, err := s.events.CreateEvent(c.Request.Context(), e)
	if err != nil {
		log.Errorf("Failed to create event %q: %v", e.Title, err)
		abort(c, err)
		return
	}
	e.ID = id
	log.Infof("Event %d created: %q in %s on %s", id, e.Title, e.City, req.Date)
	c.JSON(http.StatusCreated, api.NewEventResponse(e))
}

func (s *Server) ListEvents(c *gin.Context) {
	events, err := s.events.ListEvents(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list events: %v", err)
		abort(c, err)
		return
	}
	resp := make([]api.EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, api.NewEventResponse(e))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ReadEvent(c *gin.Context) {
	id, err := readEventID(c)
	if err != nil {
		abort(c, err)
		return
	}
	e, err := s.events.GetEvent(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewEventResponse(e))
}

// JoinEvent registers a user for an event that still has room.
func (s *Server) JoinEvent(c *gin.Context) {
	id, err := readEventID(c)
	if err != nil {
		abort(c, err)
		return
	}
	var req api.JoinEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, badRequest("%v", err))
		return
	}

	attendees, err := s.events.JoinEvent(c.Request.Context(), id, req.UserID)
	if err != nil {
		log.Warnf("User %q could not join event %d: %v", req.UserID, id, err)
		abort(c, err)
		return
	}
	log.Infof("User %q joined event %d, %d attending", req.UserID, id, attendees)
	c.JSON(http.StatusOK, api.JoinEventResponse{Message: "Successfully joined!", Attendees: attendees})
}
