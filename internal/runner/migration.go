package runner

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS courses (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			published_at DATETIME,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS enrollments (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			course_id        TEXT NOT NULL,
			progress         INTEGER NOT NULL DEFAULT 0,
			completed_at     DATETIME,
			expires_at       DATETIME,
			last_activity_at DATETIME,
			created_at       DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, course_id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_enrollments_course ON enrollments(course_id);

		CREATE TABLE IF NOT EXISTS notified (
			key        TEXT PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate runner tables: %w", err)
	}
	return nil
}
