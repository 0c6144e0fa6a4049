package runner

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"herald/internal/notify"
	"herald/internal/schedule"
)

const timeFormat = "2006-01-02 15:04:05"

// routine selects the recipients a schedule should notify on this run
// and builds one dispatch request per recipient. Routines consult the
// ledger so a recipient is notified at most once per occurrence.
type routine func(db *sql.DB, s *schedule.Schedule, now time.Time) ([]notify.Request, error)

var routines = map[string]routine{
	schedule.TypeProgressUpdate:     progressUpdates,
	schedule.TypeCompletion:         completions,
	schedule.TypeExpirationWarning:  expirationWarnings,
	schedule.TypeNewContent:         newContent,
	schedule.TypeInactivityReminder: inactivityReminders,
}

// condition reads a per-schedule threshold, falling back when unset.
func condition(s *schedule.Schedule, key string, fallback int) int {
	if v, ok := s.Conditions[key]; ok && v > 0 {
		return v
	}
	return fallback
}

// candidate is one enrollment row a routine considers notifying.
type candidate struct {
	userID     string
	courseID   string
	courseName string
	progress   int
	expiresAt  time.Time
	lastActive time.Time
}

// collect scans every candidate row up front. Rows are fully drained
// before the ledger writes that follow, so the read never holds a
// connection across them.
func collect(rows *sql.Rows, scan func(*sql.Rows) (candidate, error)) ([]candidate, error) {
	defer rows.Close()
	var out []candidate
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// progressUpdates targets learners partway through a course, at most
// once per course per day.
func progressUpdates(db *sql.DB, s *schedule.Schedule, now time.Time) ([]notify.Request, error) {
	minProgress := condition(s, "min_progress", 1)
	rows, err := db.Query(`
		SELECT e.user_id, e.course_id, c.name, e.progress
		FROM enrollments e JOIN courses c ON c.id = e.course_id
		WHERE e.completed_at IS NULL AND e.progress >= ? AND e.progress < 100`,
		minProgress)
	if err != nil {
		return nil, fmt.Errorf("select progress updates: %w", err)
	}
	candidates, err := collect(rows, func(r *sql.Rows) (candidate, error) {
		var c candidate
		err := r.Scan(&c.userID, &c.courseID, &c.courseName, &c.progress)
		return c, err
	})
	if err != nil {
		return nil, err
	}

	var reqs []notify.Request
	day := now.UTC().Format("2006-01-02")
	for _, c := range candidates {
		fresh, err := markOnce(db, c.userID, s.TemplateType, c.courseID, day)
		if err != nil {
			return nil, err
		}
		if !fresh {
			continue
		}
		reqs = append(reqs, notify.Request{
			UserID: c.userID,
			Type:   s.TemplateType,
			Data: map[string]string{
				"courseName": c.courseName,
				"progress":   strconv.Itoa(c.progress),
			},
		})
	}
	return reqs, nil
}

// completions congratulates finished learners exactly once per course.
func completions(db *sql.DB, s *schedule.Schedule, now time.Time) ([]notify.Request, error) {
	rows, err := db.Query(`
		SELECT e.user_id, e.course_id, c.name
		FROM enrollments e JOIN courses c ON c.id = e.course_id
		WHERE e.completed_at IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("select completions: %w", err)
	}
	candidates, err := collect(rows, func(r *sql.Rows) (candidate, error) {
		var c candidate
		err := r.Scan(&c.userID, &c.courseID, &c.courseName)
		return c, err
	})
	if err != nil {
		return nil, err
	}

	var reqs []notify.Request
	for _, c := range candidates {
		fresh, err := markOnce(db, c.userID, s.TemplateType, c.courseID)
		if err != nil {
			return nil, err
		}
		if !fresh {
			continue
		}
		reqs = append(reqs, notify.Request{
			UserID: c.userID,
			Type:   s.TemplateType,
			Data:   map[string]string{"courseName": c.courseName},
		})
	}
	return reqs, nil
}

// expirationWarnings flags course access expiring inside the warning
// window, once per enrollment.
func expirationWarnings(db *sql.DB, s *schedule.Schedule, now time.Time) ([]notify.Request, error) {
	daysBefore := condition(s, "days_before", 7)
	horizon := now.Add(time.Duration(daysBefore) * 24 * time.Hour)

	rows, err := db.Query(`
		SELECT e.user_id, e.course_id, c.name, e.expires_at
		FROM enrollments e JOIN courses c ON c.id = e.course_id
		WHERE e.expires_at IS NOT NULL AND e.expires_at > ? AND e.expires_at <= ?`,
		now.UTC().Format(timeFormat), horizon.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("select expiration warnings: %w", err)
	}
	candidates, err := collect(rows, func(r *sql.Rows) (candidate, error) {
		var c candidate
		err := r.Scan(&c.userID, &c.courseID, &c.courseName, &c.expiresAt)
		return c, err
	})
	if err != nil {
		return nil, err
	}

	var reqs []notify.Request
	for _, c := range candidates {
		fresh, err := markOnce(db, c.userID, s.TemplateType, c.courseID)
		if err != nil {
			return nil, err
		}
		if !fresh {
			continue
		}
		daysLeft := int(c.expiresAt.Sub(now).Hours()/24) + 1
		reqs = append(reqs, notify.Request{
			UserID: c.userID,
			Type:   s.TemplateType,
			Data: map[string]string{
				"courseName": c.courseName,
				"daysLeft":   strconv.Itoa(daysLeft),
				"expiresAt":  c.expiresAt.UTC().Format("2006-01-02"),
			},
		})
	}
	return reqs, nil
}

// newContent announces recently published courses to every user, once
// per user per course.
func newContent(db *sql.DB, s *schedule.Schedule, now time.Time) ([]notify.Request, error) {
	recentDays := condition(s, "recent_days", 7)
	cutoff := now.Add(-time.Duration(recentDays) * 24 * time.Hour)

	rows, err := db.Query(`
		SELECT u.id, c.id, c.name
		FROM courses c CROSS JOIN users u
		WHERE c.published_at IS NOT NULL AND c.published_at >= ?`,
		cutoff.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("select new content: %w", err)
	}
	candidates, err := collect(rows, func(r *sql.Rows) (candidate, error) {
		var c candidate
		err := r.Scan(&c.userID, &c.courseID, &c.courseName)
		return c, err
	})
	if err != nil {
		return nil, err
	}

	var reqs []notify.Request
	for _, c := range candidates {
		fresh, err := markOnce(db, c.userID, s.TemplateType, c.courseID)
		if err != nil {
			return nil, err
		}
		if !fresh {
			continue
		}
		reqs = append(reqs, notify.Request{
			UserID: c.userID,
			Type:   s.TemplateType,
			Data:   map[string]string{"courseName": c.courseName},
		})
	}
	return reqs, nil
}

// inactivityReminders nudges learners who went quiet mid-course. The
// ledger key includes the activity timestamp, so a learner who resumes
// and stalls again gets a fresh reminder for the new idle streak.
func inactivityReminders(db *sql.DB, s *schedule.Schedule, now time.Time) ([]notify.Request, error) {
	idleDays := condition(s, "idle_days", 14)
	cutoff := now.Add(-time.Duration(idleDays) * 24 * time.Hour)

	rows, err := db.Query(`
		SELECT e.user_id, e.course_id, c.name, e.last_activity_at
		FROM enrollments e JOIN courses c ON c.id = e.course_id
		WHERE e.completed_at IS NULL
		  AND e.last_activity_at IS NOT NULL AND e.last_activity_at <= ?`,
		cutoff.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("select inactivity reminders: %w", err)
	}
	candidates, err := collect(rows, func(r *sql.Rows) (candidate, error) {
		var c candidate
		err := r.Scan(&c.userID, &c.courseID, &c.courseName, &c.lastActive)
		return c, err
	})
	if err != nil {
		return nil, err
	}

	var reqs []notify.Request
	for _, c := range candidates {
		lastActive := c.lastActive.UTC()
		fresh, err := markOnce(db, c.userID, s.TemplateType, c.courseID,
			lastActive.Format(timeFormat))
		if err != nil {
			return nil, err
		}
		if !fresh {
			continue
		}
		reqs = append(reqs, notify.Request{
			UserID: c.userID,
			Type:   s.TemplateType,
			Data: map[string]string{
				"courseName": c.courseName,
				"idleDays":   strconv.Itoa(int(now.Sub(lastActive).Hours() / 24)),
			},
		})
	}
	return reqs, nil
}
