package schedule

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeFormat = "2006-01-02 15:04:05"

// Create inserts a new schedule, assigning an ID if none is set.
func Create(db *sql.DB, s *Schedule) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	recurring, custom, conditions, err := encodeRules(s)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO schedules
			(id, name, template_type, frequency, recurring_json, custom_json,
			 conditions_json, is_active, last_run, next_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.TemplateType, string(s.Frequency), recurring, custom,
		conditions, boolInt(s.IsActive), nullTime(s.LastRun), nullTime(s.NextRun))
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Get retrieves a schedule by ID, or nil if not found.
func Get(db *sql.DB, id string) (*Schedule, error) {
	row := db.QueryRow(selectColumns+` FROM schedules WHERE id = ?`, id)
	s, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns all schedules, active first, newest first within each group.
func List(db *sql.DB) ([]Schedule, error) {
	return querySchedules(db, selectColumns+
		` FROM schedules ORDER BY is_active DESC, created_at DESC`)
}

// ListActive returns the schedules the runner should evaluate.
func ListActive(db *sql.DB) ([]Schedule, error) {
	return querySchedules(db, selectColumns+
		` FROM schedules WHERE is_active = 1 ORDER BY created_at`)
}

// Update rewrites a schedule's definition fields. Execution state
// (last/next run, stats) is owned by SaveExecution.
func Update(db *sql.DB, s *Schedule) error {
	recurring, custom, conditions, err := encodeRules(s)
	if err != nil {
		return err
	}

	res, err := db.Exec(`
		UPDATE schedules SET
			name = ?, template_type = ?, frequency = ?, recurring_json = ?,
			custom_json = ?, conditions_json = ?, is_active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		s.Name, s.TemplateType, string(s.Frequency), recurring, custom,
		conditions, boolInt(s.IsActive), s.ID)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return expectOneRow(res, "update schedule")
}

// SaveExecution persists the execution state the runner just recorded:
// last/next run, stats, and deactivation of single-shot schedules.
func SaveExecution(db *sql.DB, s *Schedule) error {
	res, err := db.Exec(`
		UPDATE schedules SET
			is_active = ?, last_run = ?, next_run = ?,
			total_runs = ?, successful_runs = ?, failed_runs = ?,
			last_run_status = ?, last_run_ms = ?, notifications_sent = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		boolInt(s.IsActive), nullTime(s.LastRun), nullTime(s.NextRun),
		s.Stats.TotalRuns, s.Stats.SuccessfulRuns, s.Stats.FailedRuns,
		s.Stats.LastRunStatus, s.Stats.LastRunMs, s.Stats.NotificationsSent,
		s.ID)
	if err != nil {
		return fmt.Errorf("save schedule execution: %w", err)
	}
	return expectOneRow(res, "save schedule execution")
}

// Delete removes a schedule.
func Delete(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return expectOneRow(res, "delete schedule")
}

// ── helpers ─────────────────────────────────────────────────────────────

const selectColumns = `
	SELECT id, name, template_type, frequency, recurring_json, custom_json,
	       conditions_json, is_active, last_run, next_run,
	       total_runs, successful_runs, failed_runs,
	       last_run_status, last_run_ms, notifications_sent,
	       created_at, updated_at`

func querySchedules(db *sql.DB, query string, args ...interface{}) ([]Schedule, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row scannable) (*Schedule, error) {
	var s Schedule
	var frequency, recurring, custom, conditions string
	var isActive int
	// DATETIME columns come back from the driver as time.Time values.
	var lastRun, nextRun sql.NullTime

	err := row.Scan(&s.ID, &s.Name, &s.TemplateType, &frequency, &recurring,
		&custom, &conditions, &isActive, &lastRun, &nextRun,
		&s.Stats.TotalRuns, &s.Stats.SuccessfulRuns, &s.Stats.FailedRuns,
		&s.Stats.LastRunStatus, &s.Stats.LastRunMs, &s.Stats.NotificationsSent,
		&s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	s.Frequency = Frequency(frequency)
	s.IsActive = isActive == 1
	s.LastRun = timePtr(lastRun)
	s.NextRun = timePtr(nextRun)

	if recurring != "" {
		s.Recurring = &RecurringRule{}
		if err := json.Unmarshal([]byte(recurring), s.Recurring); err != nil {
			return nil, fmt.Errorf("decode recurring rule: %w", err)
		}
	}
	if custom != "" {
		s.Custom = &CustomRule{}
		if err := json.Unmarshal([]byte(custom), s.Custom); err != nil {
			return nil, fmt.Errorf("decode custom rule: %w", err)
		}
	}
	if conditions != "" && conditions != "{}" {
		if err := json.Unmarshal([]byte(conditions), &s.Conditions); err != nil {
			return nil, fmt.Errorf("decode conditions: %w", err)
		}
	}
	return &s, nil
}

func encodeRules(s *Schedule) (recurring, custom, conditions string, err error) {
	if s.Recurring != nil {
		b, err := json.Marshal(s.Recurring)
		if err != nil {
			return "", "", "", fmt.Errorf("encode recurring rule: %w", err)
		}
		recurring = string(b)
	}
	if s.Custom != nil {
		b, err := json.Marshal(s.Custom)
		if err != nil {
			return "", "", "", fmt.Errorf("encode custom rule: %w", err)
		}
		custom = string(b)
	}
	conditions = "{}"
	if len(s.Conditions) > 0 {
		b, err := json.Marshal(s.Conditions)
		if err != nil {
			return "", "", "", fmt.Errorf("encode conditions: %w", err)
		}
		conditions = string(b)
	}
	return recurring, custom, conditions, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: not found", op)
	}
	return nil
}
