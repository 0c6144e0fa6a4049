package retry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

const timeFormat = "2006-01-02 15:04:05"

// Enqueue stores a record for a later delivery attempt. Records that
// have exhausted their retry budget are dropped instead; the boolean
// reports whether the record was actually queued.
func Enqueue(db *sql.DB, rec Record) (bool, error) {
	if rec.Exhausted() {
		log.Printf("retry: dropping %s notification for user %s after %d attempts",
			rec.NotificationType, rec.UserID, rec.Config.CurrentRetries)
		return false, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	payload, err := json.Marshal(orEmptyMap(rec.Payload))
	if err != nil {
		return false, fmt.Errorf("encode retry payload: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO retry_queue (id, user_id, notification_type, payload_json,
			max_retries, retry_delay_minutes, current_retries, scheduled_for, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.NotificationType, string(payload),
		rec.Config.MaxRetries, rec.Config.RetryDelayMinutes, rec.Config.CurrentRetries,
		rec.ScheduledFor.UTC().Format(timeFormat), rec.Reason)
	if err != nil {
		return false, fmt.Errorf("enqueue retry: %w", err)
	}
	return true, nil
}

// ListDue returns the records whose scheduled time has passed, oldest
// first.
func ListDue(db *sql.DB, now time.Time) ([]Record, error) {
	rows, err := db.Query(`
		SELECT id, user_id, notification_type, payload_json,
		       max_retries, retry_delay_minutes, current_retries,
		       scheduled_for, reason, created_at
		FROM retry_queue
		WHERE scheduled_for <= ?
		ORDER BY scheduled_for ASC`, now.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("list due retries: %w", err)
	}
	defer rows.Close()

	var due []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *rec)
	}
	return due, rows.Err()
}

// Count returns the number of queued records, due or not.
func Count(db *sql.DB) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM retry_queue`).Scan(&n)
	return n, err
}

// DrainDue removes every due record from the queue and hands it to
// dispatch for redelivery. Records are deleted before dispatch runs so
// a failed attempt re-enters the queue through Enqueue with an
// advanced retry count rather than being picked up again as-is.
func DrainDue(db *sql.DB, now time.Time, dispatch func(Record) error) error {
	due, err := ListDue(db, now)
	if err != nil {
		return err
	}
	for _, rec := range due {
		if _, err := db.Exec(`DELETE FROM retry_queue WHERE id = ?`, rec.ID); err != nil {
			return fmt.Errorf("dequeue retry %s: %w", rec.ID, err)
		}
		if err := dispatch(rec); err != nil {
			log.Printf("retry: redelivery of %s for user %s failed: %v",
				rec.NotificationType, rec.UserID, err)
		}
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*Record, error) {
	var (
		rec     Record
		payload string
	)
	// DATETIME columns come back from the driver as time.Time values.
	err := row.Scan(&rec.ID, &rec.UserID, &rec.NotificationType, &payload,
		&rec.Config.MaxRetries, &rec.Config.RetryDelayMinutes, &rec.Config.CurrentRetries,
		&rec.ScheduledFor, &rec.Reason, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan retry record: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("decode retry payload: %w", err)
	}
	rec.ScheduledFor = rec.ScheduledFor.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
