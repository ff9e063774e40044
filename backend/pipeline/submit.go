package pipeline

import (
	"context"
	"fmt"

	"github.com/apex/log"

	"vukamap/backend/geo"
	imgpkg "vukamap/backend/image"
	"vukamap/backend/metadata"
	"vukamap/backend/metrics"
)

type reportCreatedEvent struct {
	Seq          int64   `json:"seq"`
	ReportedBy   string  `json:"reported_by"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	HasExifGps   bool    `json:"has_exif_gps"`
	GpsValidated bool    `json:"gps_validated"`
	Dirtiness    int     `json:"dirtiness"`
	Strategy     string  `json:"analysis_method"`
	EcoCredits   int     `json:"eco_credits"`
}

// SubmitReport analyzes and stores a new pollution report. Missing or
// contradicting evidence lowers confidence flags but never rejects the report;
// only an invalid coordinate or an undecodable image does.
func (p *Pipeline) SubmitReport(ctx context.Context, req ReportRequest) (*ReportRecord, error) {
	if !req.Coordinate.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCoordinate, req.Coordinate)
	}
	if _, err := imgpkg.Validate(req.Image); err != nil {
		return nil, err
	}

	r := &ReportRecord{
		ReportedBy:  req.ReportedBy,
		Description: req.Description,
		City:        req.City,
		Coordinate:  req.Coordinate,
		ReportedAt:  p.now().UTC(),
		Before:      metadata.Extract(req.Image),
	}

	gpsLabel := "missing"
	if r.Before.HasGps {
		d := geo.DistanceKm(*r.Before.Location, req.Coordinate)
		r.GpsDistanceKm = &d
		r.GpsValidated = geo.InRange(d, p.reportMatchKm)
		if r.GpsValidated {
			gpsLabel = "validated"
		} else {
			gpsLabel = "mismatch"
			log.Warnf("GPS mismatch: EXIF=%s vs User=%s (distance=%.3fkm)", r.Before.Location, req.Coordinate, d)
		}
	}

	r.Image = storedCopy(req.Image)
	r.Dirtiness = p.analyzer.AnalyzeDirtiness(ctx, r.Image)
	r.Reward = Reward(r.Dirtiness.Score, p.intN)

	id, err := p.store.CreateReport(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	r.ID = id

	metrics.ReportsTotal.WithLabelValues(gpsLabel).Inc()
	log.Infof("Report %d accepted: dirtiness=%d%% (%s), reward=%d, gps=%s",
		r.ID, r.Dirtiness.Score, r.Dirtiness.Strategy, r.Reward, gpsLabel)

	p.publish(p.createdKey, reportCreatedEvent{
		Seq:          r.ID,
		ReportedBy:   r.ReportedBy,
		Latitude:     r.Coordinate.Latitude,
		Longitude:    r.Coordinate.Longitude,
		HasExifGps:   r.Before.HasGps,
		GpsValidated: r.GpsValidated,
		Dirtiness:    r.Dirtiness.Score,
		Strategy:     string(r.Dirtiness.Strategy),
		EcoCredits:   r.Reward,
	})
	return r, nil
}

// GetReport returns the stored record or ErrReportNotFound.
func (p *Pipeline) GetReport(ctx context.Context, id int64) (*ReportRecord, error) {
	return p.store.GetReport(ctx, id)
}

// storedCopy is the downscaled image kept on the record and sent for
// analysis. The original is kept when compression fails.
func storedCopy(image []byte) []byte {
	compressed, err := imgpkg.CompressImage(image)
	if err != nil {
		log.Errorf("Error compressing image: %v", err)
		return image
	}
	return compressed
}
