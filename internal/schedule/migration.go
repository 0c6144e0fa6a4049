package schedule

import (
	"database/sql"
	"fmt"
)

// Migrate creates the schedules table.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schedules (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL DEFAULT '',
			template_type      TEXT NOT NULL,
			frequency          TEXT NOT NULL,
			recurring_json     TEXT NOT NULL DEFAULT '',
			custom_json        TEXT NOT NULL DEFAULT '',
			conditions_json    TEXT NOT NULL DEFAULT '{}',
			is_active          INTEGER NOT NULL DEFAULT 1,
			last_run           DATETIME,
			next_run           DATETIME,
			total_runs         INTEGER NOT NULL DEFAULT 0,
			successful_runs    INTEGER NOT NULL DEFAULT 0,
			failed_runs        INTEGER NOT NULL DEFAULT 0,
			last_run_status    TEXT NOT NULL DEFAULT '',
			last_run_ms        INTEGER NOT NULL DEFAULT 0,
			notifications_sent INTEGER NOT NULL DEFAULT 0,
			created_at         DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at         DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_schedules_active ON schedules(is_active);`)
	if err != nil {
		return fmt.Errorf("schedule migration failed: %w", err)
	}
	return nil
}
