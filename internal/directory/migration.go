package directory

import (
	"database/sql"
	"fmt"
)

// Migrate creates the per-user preference table. The users table itself is
// part of the base schema in internal/db.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_preferences (
			user_id         TEXT PRIMARY KEY,
			email_enabled   INTEGER NOT NULL DEFAULT 1,
			in_app_enabled  INTEGER NOT NULL DEFAULT 1,
			push_enabled    INTEGER NOT NULL DEFAULT 1,
			sms_enabled     INTEGER NOT NULL DEFAULT 1,
			type_opt_outs   TEXT    NOT NULL DEFAULT '{}',
			dnd_enabled     INTEGER NOT NULL DEFAULT 0,
			dnd_days        TEXT    NOT NULL DEFAULT '[]',
			dnd_start       TEXT    NOT NULL DEFAULT '',
			dnd_end         TEXT    NOT NULL DEFAULT '',
			updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`)
	if err != nil {
		return fmt.Errorf("directory migration failed: %w", err)
	}
	return nil
}
