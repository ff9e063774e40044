// Package server is the HTTP surface of the report pipeline.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vukamap/backend/db"
	"vukamap/backend/pipeline"
)

const (
	EndPointHelp          = "/help"
	EndPointMetrics       = "/metrics"
	EndPointReport        = "/report"
	EndPointReadReport    = "/report/:seq"
	EndPointReportFeature = "/report/:seq/geojson"
	EndPointCleanup       = "/report/:seq/cleanup"
	EndPointReports       = "/reports"
	EndPointHotspots      = "/hotspots"
	EndPointUser          = "/users/:id"
	EndPointEvents        = "/events"
	EndPointEvent         = "/events/:id"
	EndPointJoinEvent     = "/events/:id/join"
)

// Reports is the pipeline as seen by the handlers.
type Reports interface {
	SubmitReport(ctx context.Context, req pipeline.ReportRequest) (*pipeline.ReportRecord, error)
	VerifyCleanup(ctx context.Context, req pipeline.CleanupRequest) (*pipeline.CleanupResult, error)
	GetReport(ctx context.Context, id int64) (*pipeline.ReportRecord, error)
}

// Directory serves the read-only listings.
type Directory interface {
	ListReports(ctx context.Context, f db.ReportFilter) ([]*pipeline.ReportRecord, error)
	GetUser(ctx context.Context, id string) (*db.User, error)
}

// Events manages cleanup events and their registrations.
type Events interface {
	CreateEvent(ctx context.Context, e *db.Event) (int64, error)
	ListEvents(ctx context.Context) ([]*db.Event, error)
	GetEvent(ctx context.Context, id int64) (*db.Event, error)
	JoinEvent(ctx context.Context, eventID int64, userID string) (int, error)
}

type Server struct {
	reports   Reports
	directory Directory
	events    Events
}

func New(reports Reports, directory Directory, events Events) *Server {
	return &Server{reports: reports, directory: directory, events: events}
}

func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	router.MaxMultipartMemory = 2 * maxImageBytes
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET(EndPointHelp, Help)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))
	router.POST(EndPointReport, s.SubmitReport)
	router.GET(EndPointReadReport, s.ReadReport)
	router.GET(EndPointReportFeature, s.ReadReportFeature)
	router.POST(EndPointCleanup, s.VerifyCleanup)
	router.GET(EndPointReports, s.ListReports)
	router.GET(EndPointHotspots, s.Hotspots)
	router.GET(EndPointUser, s.ReadUser)
	router.POST(EndPointEvents, s.CreateEvent)
	router.GET(EndPointEvents, s.ListEvents)
	router.GET(EndPointEvent, s.ReadEvent)
	router.POST(EndPointJoinEvent, s.JoinEvent)
	return router
}

func (s *Server) Run(port string) error {
	log.Infof("Starting the service on port %s...", port)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
