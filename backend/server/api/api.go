package api

import (
	geojson "github.com/paulmach/go.geojson"

	"vukamap/backend/db"
	"vukamap/backend/hotspot"
	"vukamap/backend/pipeline"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ReportResponse struct {
	Seq            int64    `json:"seq"`
	Dirtiness      int      `json:"dirtiness"`
	AnalysisMethod string   `json:"analysis_method"`
	HasExifGps     bool     `json:"has_exif_gps"`
	GpsValidated   bool     `json:"gps_validated"`
	GpsDistanceKm  *float64 `json:"gps_distance_km,omitempty"`
	Device         string   `json:"device,omitempty"`
	Edited         bool     `json:"edited"`
	EcoCredits     int      `json:"eco_credits"`
}

type CleanupResponse struct {
	Seq             int64   `json:"seq"`
	Resolved        bool    `json:"resolved"`
	Verified        bool    `json:"verified"`
	LocationMatches bool    `json:"location_matches"`
	DistanceKm      float64 `json:"distance_km"`
	Cleanliness     int     `json:"cleanliness"`
	AnalysisMethod  string  `json:"analysis_method"`
	Message         string  `json:"message"`
	CreditsAwarded  int     `json:"credits_awarded"`
}

func NewReportResponse(r *pipeline.ReportRecord) ReportResponse {
	return ReportResponse{
		Seq:            r.ID,
		Dirtiness:      r.Dirtiness.Score,
		AnalysisMethod: string(r.Dirtiness.Strategy),
		HasExifGps:     r.Before.HasGps,
		GpsValidated:   r.GpsValidated,
		GpsDistanceKm:  r.GpsDistanceKm,
		Device:         r.Before.Device(),
		Edited:         r.Before.Edited(),
		EcoCredits:     r.Reward,
	}
}

func NewCleanupResponse(res *pipeline.CleanupResult) CleanupResponse {
	o := res.Outcome
	return CleanupResponse{
		Seq:             res.ReportID,
		Resolved:        res.Resolved,
		Verified:        o.Verified,
		LocationMatches: o.LocationMatches,
		DistanceKm:      o.DistanceKm,
		Cleanliness:     o.Cleanliness.Score,
		AnalysisMethod:  string(o.Cleanliness.Strategy),
		Message:         o.Message,
		CreditsAwarded:  res.CreditsAwarded,
	}
}

// ReportFeature renders a report as a GeoJSON point at its submitted
// coordinate.
func ReportFeature(r *pipeline.ReportRecord) *geojson.Feature {
	f := geojson.NewPointFeature([]float64{r.Coordinate.Longitude, r.Coordinate.Latitude})
	f.ID = r.ID
	f.SetProperty("reported_by", r.ReportedBy)
	f.SetProperty("reported_at", r.ReportedAt)
	f.SetProperty("city", r.City)
	f.SetProperty("description", r.Description)
	f.SetProperty("dirtiness", r.Dirtiness.Score)
	f.SetProperty("analysis_method", string(r.Dirtiness.Strategy))
	f.SetProperty("gps_validated", r.GpsValidated)
	f.SetProperty("eco_credits", r.Reward)
	f.SetProperty("resolved", r.Resolved)
	if r.Before.HasGps {
		loc := r.Before.Location
		f.SetProperty("exif_location", []float64{loc.Longitude, loc.Latitude})
	}
	if r.Verification != nil {
		f.SetProperty("claimed_by", r.ClaimedBy)
		f.SetProperty("verified", r.Verification.Verified)
		f.SetProperty("verification_message", r.Verification.Message)
	}
	return f
}

func ReportCollection(reports []*pipeline.ReportRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range reports {
		fc.AddFeature(ReportFeature(r))
	}
	return fc
}

// HotspotCollection renders clusters as GeoJSON points. Single reports keep
// their report_id.
func HotspotCollection(clusters []hotspot.Cluster) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, cl := range clusters {
		f := geojson.NewPointFeature([]float64{cl.Center.Longitude, cl.Center.Latitude})
		f.SetProperty("count", cl.Count)
		f.SetProperty("mean_dirtiness", cl.MeanDirtiness)
		if cl.ReportID != 0 {
			f.ID = cl.ReportID
			f.SetProperty("report_id", cl.ReportID)
		}
		fc.AddFeature(f)
	}
	return fc
}

type EventRequest struct {
	Title          string  `json:"title" binding:"required,max=200"`
	Date           string  `json:"date" binding:"required"`
	Time           string  `json:"time" binding:"required,max=10"`
	Location       string  `json:"location" binding:"required,max=300"`
	City           string  `json:"city" binding:"required,max=100"`
	Latitude       float64 `json:"lat"`
	Longitude      float64 `json:"lng"`
	ExpectedImpact string  `json:"expected_impact" binding:"max=200"`
	MaxAttendees   int     `json:"max_attendees" binding:"required,gt=0"`
	Description    string  `json:"description" binding:"max=1000"`
}

type EventResponse struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	Location       string  `json:"location"`
	City           string  `json:"city"`
	Latitude       float64 `json:"lat"`
	Longitude      float64 `json:"lng"`
	ExpectedImpact string  `json:"expected_impact"`
	Attendees      int     `json:"attendees"`
	MaxAttendees   int     `json:"max_attendees"`
	Description    string  `json:"description"`
}

type JoinEventRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type JoinEventResponse struct {
	Message   string `json:"message"`
	Attendees int    `json:"attendees"`
}

func NewEventResponse(e *db.Event) EventResponse {
	return EventResponse{
		ID:             e.ID,
		Title:          e.Title,
		Date:           e.Date.Format(EventDateLayout),
		Time:           e.Time,
		Location:       e.Location,
		City:           e.City,
		Latitude:       e.Coordinate.Latitude,
		Longitude:      e.Coordinate.Longitude,
		ExpectedImpact: e.ExpectedImpact,
		Attendees:      e.Attendees,
		MaxAttendees:   e.MaxAttendees,
		Description:    e.Description,
	}
}

const EventDateLayout = "2006-01-02"
