package template

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// GetActive returns the active template for a notification type, or nil
// when none is configured.
func GetActive(db *sql.DB, notifType string) (*Template, error) {
	row := db.QueryRow(`
		SELECT id, type, subject, html_body, text_body, preview_text, active,
		       created_at, updated_at
		FROM templates
		WHERE type = ? AND active = 1
		ORDER BY updated_at DESC LIMIT 1`, notifType)
	return scanTemplate(row)
}

// Get retrieves a template by ID, or nil if not found.
func Get(db *sql.DB, id string) (*Template, error) {
	row := db.QueryRow(`
		SELECT id, type, subject, html_body, text_body, preview_text, active,
		       created_at, updated_at
		FROM templates WHERE id = ?`, id)
	return scanTemplate(row)
}

// List returns all templates grouped by type.
func List(db *sql.DB) ([]Template, error) {
	rows, err := db.Query(`
		SELECT id, type, subject, html_body, text_body, preview_text, active,
		       created_at, updated_at
		FROM templates ORDER BY type, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var t Template
		var active int
		if err := rows.Scan(&t.ID, &t.Type, &t.Subject, &t.HTMLBody, &t.TextBody,
			&t.PreviewText, &active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.Active = active == 1
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create inserts a new template, assigning an ID if none is set.
func Create(db *sql.DB, t *Template) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := db.Exec(`
		INSERT INTO templates (id, type, subject, html_body, text_body, preview_text, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Type, t.Subject, t.HTMLBody, t.TextBody, t.PreviewText, boolInt(t.Active))
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Update rewrites a template.
func Update(db *sql.DB, t *Template) error {
	res, err := db.Exec(`
		UPDATE templates SET
			type = ?, subject = ?, html_body = ?, text_body = ?,
			preview_text = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		t.Type, t.Subject, t.HTMLBody, t.TextBody, t.PreviewText,
		boolInt(t.Active), t.ID)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update template: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update template: not found")
	}
	return nil
}

// Delete removes a template.
func Delete(db *sql.DB, id string) error {
	_, err := db.Exec(`DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func scanTemplate(row *sql.Row) (*Template, error) {
	var t Template
	var active int
	// DATETIME columns come back from the driver as time.Time values.
	err := row.Scan(&t.ID, &t.Type, &t.Subject, &t.HTMLBody, &t.TextBody,
		&t.PreviewText, &active, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	t.Active = active == 1
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
