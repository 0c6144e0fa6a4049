package notify

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			message    TEXT NOT NULL DEFAULT '',
			link       TEXT NOT NULL DEFAULT '',
			priority   TEXT NOT NULL DEFAULT '',
			read       INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_user
			ON notifications(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS delivery_audit (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			type          TEXT NOT NULL,
			channel       TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_user
			ON delivery_audit(user_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("migrate notify tables: %w", err)
	}
	return nil
}
