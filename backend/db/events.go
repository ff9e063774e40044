package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"vukamap/backend/geo"
	"vukamap/common"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventFull         = errors.New("event is full")
	ErrAlreadyRegistered = errors.New("user is already registered for this event")
)

// Event is an organised cleanup that users can join.
type Event struct {
	ID             int64
	Title          string
	Date           time.Time
	Time           string
	Location       string
	City           string
	Coordinate     geo.Coordinate
	ExpectedImpact string
	Attendees      int
	MaxAttendees   int
	Description    string
}

const eventColumns = `id, title, event_date, event_time, location, city, latitude, longitude,
	expected_impact, attendees, max_attendees, description`

func scanEvent(row rowScanner) (*Event, error) {
	e := &Event{}
	err := row.Scan(&e.ID, &e.Title, &e.Date, &e.Time, &e.Location, &e.City,
		&e.Coordinate.Latitude, &e.Coordinate.Longitude,
		&e.ExpectedImpact, &e.Attendees, &e.MaxAttendees, &e.Description)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) CreateEvent(ctx context.Context, e *Event) (int64, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO cleanup_events
	  (title, event_date, event_time, location, city, latitude, longitude, expected_impact, max_attendees, description)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Date, e.Time, e.Location, e.City, e.Coordinate.Latitude, e.Coordinate.Longitude,
		e.ExpectedImpact, e.MaxAttendees, e.Description)
	common.LogResult("createEvent", result, err, true)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListEvents returns all events, soonest first.
func (s *Store) ListEvents(ctx context.Context) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM cleanup_events ORDER BY event_date, id`)
	if err != nil {
		log.Errorf("Error listing events: %v", err)
		return nil, err
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM cleanup_events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", id, ErrEventNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// JoinEvent registers the user for the event and returns the new attendee
// count. The event row is locked so capacity holds under concurrent joins.
func (s *Store) JoinEvent(ctx context.Context, eventID int64, userID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Errorf("Error creating transaction: %v", err)
		return 0, err
	}
	defer tx.Rollback()

	var attendees, maxAttendees int
	err = tx.QueryRowContext(ctx, `SELECT attendees, max_attendees FROM cleanup_events WHERE id = ? FOR UPDATE`, eventID).
		Scan(&attendees, &maxAttendees)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	if err != nil {
		return 0, err
	}
	if attendees >= maxAttendees {
		return 0, fmt.Errorf("event %d: %w", eventID, ErrEventFull)
	}

	var known int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&known); err != nil {
		return 0, err
	}
	if known == 0 {
		return 0, fmt.Errorf("user %q: %w", userID, ErrUserNotFound)
	}

	var registered int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_registrations WHERE event_id = ? AND user_id = ?`, eventID, userID).
		Scan(&registered)
	if err != nil {
		return 0, err
	}
	if registered > 0 {
		return 0, fmt.Errorf("event %d: %w", eventID, ErrAlreadyRegistered)
	}

	result, err := tx.ExecContext(ctx, `INSERT INTO event_registrations (event_id, user_id) VALUES (?, ?)`, eventID, userID)
	common.LogResult("registerForEvent", result, err, true)
	if err != nil {
		return 0, err
	}
	result, err = tx.ExecContext(ctx, `UPDATE cleanup_events SET attendees = attendees + 1 WHERE id = ?`, eventID)
	common.LogResult("countAttendee", result, err, true)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		log.Errorf("Error committing the transaction: %v", err)
		return 0, err
	}
	return attendees + 1, nil
}
