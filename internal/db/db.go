package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var DB *sql.DB

// Init opens the database, enables WAL, and creates the base schema.
// Feature packages add their own tables via their Migrate functions.
func Init(path string) error {
	var err error

	if err = ensureDirectory(path); err != nil {
		return err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	DB, err = sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	if err = DB.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	enableWAL()
	if _, err = DB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		log.Printf("db: could not enable foreign keys: %v", err)
	}
	return createSchema()
}

func ensureDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	return nil
}

func enableWAL() {
	if _, err := DB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Printf("db: could not enable WAL mode: %v", err)
	}
}

// createSchema creates the tables shared by every feature package:
// the platform users the engine notifies.
func createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		email        TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		first_name   TEXT NOT NULL DEFAULT '',
		last_name    TEXT NOT NULL DEFAULT '',
		push_url     TEXT NOT NULL DEFAULT '',
		phone        TEXT NOT NULL DEFAULT '',
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);`

	if _, err := DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create base schema: %w", err)
	}
	return nil
}
