package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"

	"vukamap/backend/geo"
	imgpkg "vukamap/backend/image"
	"vukamap/backend/metadata"
	"vukamap/backend/metrics"
)

const (
	msgNoGps    = "No GPS data in cleanup image"
	msgFailed   = "Verification failed - spot may not be fully cleaned"
	msgVerified = "Cleanup verified! Location match + %d%% clean"
	msgMismatch = "Location mismatch: %.3fkm from original spot"
)

type reportResolvedEvent struct {
	Seq             int64   `json:"seq"`
	ClaimedBy       string  `json:"claimed_by"`
	Verified        bool    `json:"verified"`
	LocationMatches bool    `json:"location_matches"`
	DistanceKm      float64 `json:"distance_km"`
	Cleanliness     int     `json:"cleanliness"`
	Strategy        string  `json:"analysis_method"`
	EcoCredits      int     `json:"eco_credits"`
}

// VerifyCleanup judges an after-photo against an unresolved report and, unless
// strict verification withholds it, resolves the report and credits the
// claimant with the report's reward. Of concurrent calls for one report at
// most one resolves it; the others get ErrAlreadyResolved.
func (p *Pipeline) VerifyCleanup(ctx context.Context, req CleanupRequest) (*CleanupResult, error) {
	if !req.Coordinate.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCoordinate, req.Coordinate)
	}
	if _, err := imgpkg.Validate(req.Image); err != nil {
		return nil, err
	}

	r, err := p.store.GetReport(ctx, req.ReportID)
	if err != nil {
		return nil, err
	}
	if r.Resolved {
		metrics.ResolutionConflictsTotal.Inc()
		return nil, fmt.Errorf("report %d: %w", r.ID, ErrAlreadyResolved)
	}

	after := metadata.Extract(req.Image)
	stored := storedCopy(req.Image)
	outcome := p.judge(ctx, r, after, req.Coordinate, stored)

	result := &CleanupResult{ReportID: r.ID, Outcome: outcome}
	if outcome.Verified {
		metrics.VerificationsTotal.WithLabelValues("verified").Inc()
	} else {
		metrics.VerificationsTotal.WithLabelValues("unverified").Inc()
		if p.strict {
			log.Infof("Report %d: cleanup by %q not verified, resolution withheld: %s", r.ID, req.ClaimedBy, outcome.Message)
			return result, nil
		}
	}

	res := &Resolution{
		ClaimedBy:  req.ClaimedBy,
		ResolvedAt: p.now().UTC(),
		AfterImage: stored,
		After:      after,
		Outcome:    outcome,
	}
	if err := p.resolve(ctx, r, res); err != nil {
		if errors.Is(err, ErrAlreadyResolved) {
			metrics.ResolutionConflictsTotal.Inc()
			log.Infof("Report %d was resolved concurrently, rejecting claim by %q", r.ID, req.ClaimedBy)
		}
		return nil, err
	}
	metrics.CreditsAwardedTotal.Add(float64(r.Reward))

	result.Resolved = true
	result.CreditsAwarded = r.Reward
	log.Infof("Report %d resolved by %q: verified=%v, +%d credits", r.ID, req.ClaimedBy, outcome.Verified, r.Reward)

	p.publish(p.resolvedKey, reportResolvedEvent{
		Seq:             r.ID,
		ClaimedBy:       req.ClaimedBy,
		Verified:        outcome.Verified,
		LocationMatches: outcome.LocationMatches,
		DistanceKm:      outcome.DistanceKm,
		Cleanliness:     outcome.Cleanliness.Score,
		Strategy:        string(outcome.Cleanliness.Strategy),
		EcoCredits:      r.Reward,
	})
	return result, nil
}

// resolve applies res and credits the claimant. A CreditingStore does both in
// one transaction. Otherwise the ledger is credited after the resolution
// commits, and a failed credit leaves the report resolved.
func (p *Pipeline) resolve(ctx context.Context, r *ReportRecord, res *Resolution) error {
	if cs, ok := p.store.(CreditingStore); ok {
		err := cs.ResolveAndCredit(ctx, r.ID, res, r.Reward)
		if errors.Is(err, ErrRewardTransfer) {
			log.Errorf("Report %d: crediting %d to %q failed, resolution rolled back: %v", r.ID, r.Reward, res.ClaimedBy, err)
		}
		return err
	}

	if err := p.store.ResolveReport(ctx, r.ID, res); err != nil {
		return err
	}
	if err := p.ledger.CreditUser(ctx, res.ClaimedBy, r.Reward); err != nil {
		log.Errorf("Report %d resolved but crediting %d to %q failed: %v", r.ID, r.Reward, res.ClaimedBy, err)
		return fmt.Errorf("report %d resolved, %w: %w", r.ID, ErrRewardTransfer, err)
	}
	return nil
}

// judge computes the verdict. A cleanup photo without GPS can never match the
// location, but its cleanliness is still assessed.
func (p *Pipeline) judge(ctx context.Context, r *ReportRecord, after metadata.CaptureMetadata, claimed geo.Coordinate, image []byte) VerificationOutcome {
	var o VerificationOutcome
	ref := r.ReferenceLocation()

	if after.HasGps {
		o.DistanceKm = geo.DistanceKm(*after.Location, ref)
		o.LocationMatches = geo.InRange(o.DistanceKm, p.cleanupMatchKm)
	} else {
		o.DistanceKm = geo.DistanceKm(claimed, ref)
		log.Warnf("Report %d: cleanup image missing GPS metadata", r.ID)
	}

	o.Cleanliness = p.analyzer.AnalyzeCleanliness(ctx, image)
	o.Verified = o.LocationMatches && o.Cleanliness.Score >= MinCleanliness

	switch {
	case o.Verified:
		o.Message = fmt.Sprintf(msgVerified, o.Cleanliness.Score)
	case !after.HasGps:
		o.Message = msgNoGps
	case !o.LocationMatches:
		o.Message = fmt.Sprintf(msgMismatch, o.DistanceKm)
	default:
		o.Message = msgFailed
	}
	return o
}
