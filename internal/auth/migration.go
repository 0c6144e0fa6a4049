package auth

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS operators (
			id            TEXT PRIMARY KEY,
			username      TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS sessions (
			token       TEXT PRIMARY KEY,
			operator_id TEXT NOT NULL,
			expires_at  DATETIME NOT NULL,
			FOREIGN KEY (operator_id) REFERENCES operators(id) ON DELETE CASCADE
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate auth tables: %w", err)
	}
	return nil
}
