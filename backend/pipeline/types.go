package pipeline

import (
	"time"

	"vukamap/backend/geo"
	"vukamap/backend/metadata"
	"vukamap/backend/vision"
)

// ReportRecord is a pollution report together with its provenance. It is
// created once and mutated at most once, on resolution.
type ReportRecord struct {
	ID          int64          `json:"id"`
	ReportedBy  string         `json:"reported_by"`
	Description string         `json:"description"`
	City        string         `json:"city"`
	Coordinate  geo.Coordinate `json:"coordinate"`
	ReportedAt  time.Time      `json:"reported_at"`
	Image       []byte         `json:"-"`

	Before        metadata.CaptureMetadata `json:"before"`
	GpsValidated  bool                     `json:"gps_validated"`
	GpsDistanceKm *float64                 `json:"gps_distance_km,omitempty"`
	Dirtiness     vision.Assessment        `json:"dirtiness"`
	Reward        int                      `json:"reward"`

	Resolved     bool                      `json:"resolved"`
	ClaimedBy    string                    `json:"claimed_by,omitempty"`
	ResolvedAt   *time.Time                `json:"resolved_at,omitempty"`
	AfterImage   []byte                    `json:"-"`
	After        *metadata.CaptureMetadata `json:"after,omitempty"`
	Verification *VerificationOutcome      `json:"verification,omitempty"`
}

// ReferenceLocation is where the pollution was evidenced: the before-image
// GPS when present, otherwise the submitted coordinate.
func (r *ReportRecord) ReferenceLocation() geo.Coordinate {
	if r.Before.HasGps && r.Before.Location != nil {
		return *r.Before.Location
	}
	return r.Coordinate
}

// VerificationOutcome is the verdict on a claimed cleanup. It is stored on
// the record exactly as computed.
type VerificationOutcome struct {
	LocationMatches bool              `json:"location_matches"`
	DistanceKm      float64           `json:"distance_km"`
	Cleanliness     vision.Assessment `json:"cleanliness"`
	Verified        bool              `json:"verified"`
	Message         string            `json:"message"`
}

// Resolution is everything written to a record when it is resolved.
type Resolution struct {
	ClaimedBy  string
	ResolvedAt time.Time
	AfterImage []byte
	After      metadata.CaptureMetadata
	Outcome    VerificationOutcome
}

type ReportRequest struct {
	ReportedBy  string
	Description string
	City        string
	Coordinate  geo.Coordinate
	Image       []byte
}

type CleanupRequest struct {
	ReportID   int64
	ClaimedBy  string
	Coordinate geo.Coordinate
	Image      []byte
}

type CleanupResult struct {
	ReportID       int64               `json:"report_id"`
	Outcome        VerificationOutcome `json:"outcome"`
	Resolved       bool                `json:"resolved"`
	CreditsAwarded int                 `json:"credits_awarded"`
}
