package retry

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS retry_queue (
			id                  TEXT PRIMARY KEY,
			user_id             TEXT NOT NULL,
			notification_type   TEXT NOT NULL,
			payload_json        TEXT NOT NULL DEFAULT '{}',
			max_retries         INTEGER NOT NULL,
			retry_delay_minutes INTEGER NOT NULL,
			current_retries     INTEGER NOT NULL DEFAULT 0,
			scheduled_for       DATETIME NOT NULL,
			reason              TEXT NOT NULL DEFAULT '',
			created_at          DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_retry_due ON retry_queue(scheduled_for);
	`)
	if err != nil {
		return fmt.Errorf("migrate retry_queue: %w", err)
	}
	return nil
}
