// Package db persists reports and eco-credit balances in MySQL.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/shopspring/decimal"

	"vukamap/backend/geo"
	"vukamap/backend/metadata"
	"vukamap/backend/pipeline"
	"vukamap/backend/vision"
	"vukamap/common"
)

var ErrUserNotFound = errors.New("user not found")

var wastePerCredit = decimal.RequireFromString("0.5")

// Store implements pipeline.CreditingStore and pipeline.Ledger.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type User struct {
	ID             string `json:"id"`
	EcoCredits     int    `json:"eco_credits"`
	WasteRemovedKg int    `json:"waste_removed_kg"`
}

func (s *Store) CreateReport(ctx context.Context, r *pipeline.ReportRecord) (int64, error) {
	before, err := json.Marshal(r.Before)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `INSERT
	  INTO reports (ts, reported_by, description, city, latitude, longitude, image,
	    before_metadata, gps_validated, gps_distance_km, dirtiness, analysis_method, eco_credits)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ReportedAt, r.ReportedBy, r.Description, r.City, r.Coordinate.Latitude, r.Coordinate.Longitude, r.Image,
		before, r.GpsValidated, r.GpsDistanceKm, r.Dirtiness.Score, string(r.Dirtiness.Strategy), r.Reward)
	common.LogResult("createReport", result, err, true)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// reportColumns lists the columns scanReport reads. Listings skip the blobs.
func reportColumns(withImages bool) string {
	image, afterImage := "image", "after_image"
	if !withImages {
		image, afterImage = "NULL", "NULL"
	}
	return `seq, ts, reported_by, description, city, latitude, longitude, ` + image + `,
	  before_metadata, gps_validated, gps_distance_km, dirtiness, analysis_method, eco_credits,
	  resolved, claimed_by, resolved_at, ` + afterImage + `, after_metadata, verification`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*pipeline.ReportRecord, error) {
	var (
		r            pipeline.ReportRecord
		image        []byte
		before       []byte
		distance     sql.NullFloat64
		strategy     string
		claimedBy    sql.NullString
		resolvedAt   sql.NullTime
		afterImage   []byte
		after        []byte
		verification []byte
	)
	if err := row.Scan(&r.ID, &r.ReportedAt, &r.ReportedBy, &r.Description, &r.City,
		&r.Coordinate.Latitude, &r.Coordinate.Longitude, &image,
		&before, &r.GpsValidated, &distance, &r.Dirtiness.Score, &strategy, &r.Reward,
		&r.Resolved, &claimedBy, &resolvedAt, &afterImage, &after, &verification); err != nil {
		return nil, err
	}
	r.Dirtiness.Strategy = vision.Strategy(strategy)
	if distance.Valid {
		r.GpsDistanceKm = &distance.Float64
	}
	if err := json.Unmarshal(before, &r.Before); err != nil {
		return nil, fmt.Errorf("report %d: bad before_metadata: %w", r.ID, err)
	}
	if r.Resolved {
		r.ClaimedBy = claimedBy.String
		if resolvedAt.Valid {
			r.ResolvedAt = &resolvedAt.Time
		}
		if len(after) > 0 {
			r.After = &metadata.CaptureMetadata{}
			if err := json.Unmarshal(after, r.After); err != nil {
				return nil, fmt.Errorf("report %d: bad after_metadata: %w", r.ID, err)
			}
		}
		if len(verification) > 0 {
			r.Verification = &pipeline.VerificationOutcome{}
			if err := json.Unmarshal(verification, r.Verification); err != nil {
				return nil, fmt.Errorf("report %d: bad verification: %w", r.ID, err)
			}
		}
	}
	r.Image = image
	r.AfterImage = afterImage
	return &r, nil
}

func (s *Store) GetReport(ctx context.Context, id int64) (*pipeline.ReportRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns(true)+` FROM reports WHERE seq = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %d: %w", id, pipeline.ErrReportNotFound)
	}
	if err != nil {
		log.Errorf("Error reading report %d: %v", id, err)
		return nil, err
	}
	return r, nil
}

type ReportFilter struct {
	OnlyOpen bool
	// City matches case-insensitively when set.
	City     string
	Viewport *geo.Viewport
	Limit    int
}

// ListReports returns the latest matching reports without their images,
// newest first.
func (s *Store) ListReports(ctx context.Context, f ReportFilter) ([]*pipeline.ReportRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.OnlyOpen {
		where = append(where, "resolved = false")
	}
	if f.City != "" {
		where = append(where, "LOWER(city) = LOWER(?)")
		args = append(args, f.City)
	}
	if vp := f.Viewport; vp != nil {
		where = append(where, "latitude BETWEEN ? AND ?")
		args = append(args, vp.South, vp.North)
		if vp.West <= vp.East {
			where = append(where, "longitude BETWEEN ? AND ?")
		} else {
			where = append(where, "(longitude >= ? OR longitude <= ?)")
		}
		args = append(args, vp.West, vp.East)
	}

	query := `SELECT ` + reportColumns(false) + ` FROM reports`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY seq DESC LIMIT ?`, append(args, f.Limit)...)
	if err != nil {
		log.Errorf("Error listing reports: %v", err)
		return nil, err
	}
	defer rows.Close()

	reports := []*pipeline.ReportRecord{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// ResolveReport marks an unresolved report as resolved. The conditional
// update lets exactly one of several concurrent callers win.
func (s *Store) ResolveReport(ctx context.Context, id int64, res *pipeline.Resolution) error {
	return s.resolve(ctx, id, res, nil)
}

// ResolveAndCredit resolves the report and credits the claimant in the same
// transaction. A failed credit rolls the resolution back.
func (s *Store) ResolveAndCredit(ctx context.Context, id int64, res *pipeline.Resolution, amount int) error {
	return s.resolve(ctx, id, res, func(tx *sql.Tx) error {
		if err := creditUser(ctx, tx, res.ClaimedBy, amount); err != nil {
			return fmt.Errorf("report %d: %w: %w", id, pipeline.ErrRewardTransfer, err)
		}
		return nil
	})
}

func (s *Store) resolve(ctx context.Context, id int64, res *pipeline.Resolution, then func(tx *sql.Tx) error) error {
	after, err := json.Marshal(res.After)
	if err != nil {
		return err
	}
	verification, err := json.Marshal(res.Outcome)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Errorf("Error creating transaction: %v", err)
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE reports
	  SET resolved = true, claimed_by = ?, resolved_at = ?, after_image = ?, after_metadata = ?, verified = ?, verification = ?
	  WHERE seq = ? AND resolved = false`,
		res.ClaimedBy, res.ResolvedAt, res.AfterImage, after, res.Outcome.Verified, verification, id)
	if err != nil {
		log.Errorf("Error resolving report %d: %v", id, err)
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var resolved bool
		err := tx.QueryRowContext(ctx, `SELECT resolved FROM reports WHERE seq = ?`, id).Scan(&resolved)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("report %d: %w", id, pipeline.ErrReportNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("report %d: %w", id, pipeline.ErrAlreadyResolved)
	}

	if then != nil {
		if err := then(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Errorf("Error committing the transaction: %v", err)
		return err
	}
	return nil
}

// CreditUser adds credits to the user's balance, creating the user on first
// credit. Every credit also counts half a kilogram of removed waste.
func (s *Store) CreditUser(ctx context.Context, userID string, amount int) error {
	return creditUser(ctx, s.db, userID, amount)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func creditUser(ctx context.Context, ex execer, userID string, amount int) error {
	waste := WasteRemovedKg(amount)
	result, err := ex.ExecContext(ctx, `INSERT INTO users (id, eco_credits, waste_removed_kg) VALUES (?, ?, ?)
	  ON DUPLICATE KEY UPDATE eco_credits = eco_credits + ?, waste_removed_kg = waste_removed_kg + ?`,
		userID, amount, waste, amount, waste)
	common.LogResult("creditUser", result, err, false)
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	u := &User{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT eco_credits, waste_removed_kg FROM users WHERE id = ?`, id).
		Scan(&u.EcoCredits, &u.WasteRemovedKg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", id, ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// WasteRemovedKg is the estimated waste behind a reward, rounded half away
// from zero.
func WasteRemovedKg(credits int) int {
	return int(decimal.NewFromInt(int64(credits)).Mul(wastePerCredit).Round(0).IntPart())
}

// Now truncates to the precision MySQL TIMESTAMP columns keep.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

var _ pipeline.Store = (*Store)(nil)
var _ pipeline.Ledger = (*Store)(nil)
var _ pipeline.CreditingStore = (*Store)(nil)
