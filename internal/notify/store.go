package notify

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeFormat = "2006-01-02 15:04:05"

// CreateNotification stores an in-app notification, assigning an ID if
// the caller did not set one.
func CreateNotification(db *sql.DB, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO notifications (id, user_id, type, title, message, link, priority, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Link, n.Priority,
		boolInt(n.Read), n.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
// limit <= 0 returns everything.
func ListNotifications(db *sql.DB, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT id, user_id, type, title, message, link, priority, read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n    Notification
			read int
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.Link, &n.Priority, &read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = read != 0
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount returns the number of unread notifications for a user.
func UnreadCount(db *sql.DB, userID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`,
		userID).Scan(&n)
	return n, err
}

// MarkRead flags a single notification as read.
func MarkRead(db *sql.DB, id string) error {
	res, err := db.Exec(`UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return expectOneRow(res)
}

// MarkAllRead flags every notification of a user as read.
func MarkAllRead(db *sql.DB, userID string) error {
	_, err := db.Exec(`UPDATE notifications SET read = 1 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// AuditEntry is one delivery audit row.
type AuditEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Channel   string    `json:"channel,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListAudit returns the newest audit entries, optionally filtered by user.
func ListAudit(db *sql.DB, userID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, user_id, type, channel, status, error_message, created_at
		FROM delivery_audit`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list delivery audit: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Channel, &e.Status,
			&e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertAudit(db *sql.DB, entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO delivery_audit (id, user_id, type, channel, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if _, err := stmt.Exec(e.ID, e.UserID, e.Type, e.Channel, e.Status,
			e.Error, e.CreatedAt.UTC().Format(timeFormat)); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	return tx.Commit()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
