package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

var tables = []struct {
	name string
	ddl  string
}{
	{
		name: "reports",
		ddl: `
	CREATE TABLE IF NOT EXISTS reports(
		seq INT NOT NULL AUTO_INCREMENT,
		ts TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		reported_by VARCHAR(255) NOT NULL,
		description VARCHAR(1024) NOT NULL DEFAULT '',
		city VARCHAR(255) NOT NULL DEFAULT '',
		latitude DOUBLE NOT NULL,
		longitude DOUBLE NOT NULL,
		image LONGBLOB NOT NULL,
		before_metadata JSON NOT NULL,
		gps_validated BOOL NOT NULL DEFAULT FALSE,
		gps_distance_km DOUBLE,
		dirtiness INT NOT NULL,
		analysis_method VARCHAR(32) NOT NULL,
		eco_credits INT NOT NULL,
		resolved BOOL NOT NULL DEFAULT FALSE,
		claimed_by VARCHAR(255),
		resolved_at TIMESTAMP NULL,
		after_image LONGBLOB,
		after_metadata JSON,
		verified BOOL,
		verification JSON,
		PRIMARY KEY (seq),
		INDEX resolved_idx (resolved),
		INDEX claimed_by_idx (claimed_by)
	)`,
	},
	{
		name: "users",
		ddl: `
	CREATE TABLE IF NOT EXISTS users(
		id VARCHAR(255) NOT NULL,
		eco_credits INT NOT NULL DEFAULT 0,
		waste_removed_kg INT NOT NULL DEFAULT 0,
		ts TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id)
	)`,
	},
	{
		name: "cleanup_events",
		ddl: `
	CREATE TABLE IF NOT EXISTS cleanup_events(
		id INT NOT NULL AUTO_INCREMENT,
		title VARCHAR(200) NOT NULL,
		event_date DATE NOT NULL,
		event_time VARCHAR(10) NOT NULL,
		location VARCHAR(300) NOT NULL,
		city VARCHAR(100) NOT NULL,
		latitude DOUBLE NOT NULL,
		longitude DOUBLE NOT NULL,
		expected_impact VARCHAR(200) NOT NULL DEFAULT '',
		attendees INT NOT NULL DEFAULT 0,
		max_attendees INT NOT NULL,
		description VARCHAR(1000) NOT NULL DEFAULT '',
		PRIMARY KEY (id),
		INDEX event_date_idx (event_date)
	)`,
	},
	{
		name: "event_registrations",
		ddl: `
	CREATE TABLE IF NOT EXISTS event_registrations(
		id INT NOT NULL AUTO_INCREMENT,
		event_id INT NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		registered_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE INDEX event_user_idx (event_id, user_id)
	)`,
	},
}

// InitSchema creates the report, user and cleanup event tables if they don't
// exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	log.Info("Initializing database schema...")
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
		log.Infof("%s table created/verified", t.name)
	}
	return nil
}
