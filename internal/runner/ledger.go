package runner

import (
	"database/sql"
	"fmt"
	"strings"
)

// markOnce claims a delivery key and reports whether the claim is new.
// Re-running a routine with the same inputs yields false, which is what
// keeps overlapping or repeated sweeps from double-notifying.
func markOnce(db *sql.DB, parts ...string) (bool, error) {
	key := strings.Join(parts, "|")
	res, err := db.Exec(`INSERT OR IGNORE INTO notified (key) VALUES (?)`, key)
	if err != nil {
		return false, fmt.Errorf("ledger insert %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
