package template

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Migrate creates the templates table and seeds a default active template
// for every notification type that doesn't have one yet.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS templates (
			id           TEXT PRIMARY KEY,
			type         TEXT NOT NULL,
			subject      TEXT NOT NULL DEFAULT '',
			html_body    TEXT NOT NULL DEFAULT '',
			text_body    TEXT NOT NULL DEFAULT '',
			preview_text TEXT NOT NULL DEFAULT '',
			active       INTEGER NOT NULL DEFAULT 1,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_templates_type_active ON templates(type, active);`)
	if err != nil {
		return fmt.Errorf("template migration failed: %w", err)
	}
	return seedDefaults(db)
}

// defaultTemplates ship with the engine so every schedulable type can
// render email content out of the box.
var defaultTemplates = []Template{
	{
		Type:     "progress_update",
		Subject:  "You're {{progress}}% through {{courseName}}",
		HTMLBody: "<p>Hi {{firstName}},</p><p>You've completed {{progress}}% of <strong>{{courseName}}</strong>. Keep going!</p>",
		TextBody: "Hi {{firstName}},\n\nYou've completed {{progress}}% of {{courseName}}. Keep going!",
	},
	{
		Type:     "completion",
		Subject:  "Congratulations on finishing {{courseName}}!",
		HTMLBody: "<p>Hi {{firstName}},</p><p>You've completed <strong>{{courseName}}</strong>. Well done!</p>",
		TextBody: "Hi {{firstName}},\n\nYou've completed {{courseName}}. Well done!",
	},
	{
		Type:     "expiration_warning",
		Subject:  "Your access to {{courseName}} expires in {{daysLeft}} days",
		HTMLBody: "<p>Hi {{firstName}},</p><p>Your access to <strong>{{courseName}}</strong> expires on {{expiresAt}}.</p>",
		TextBody: "Hi {{firstName}},\n\nYour access to {{courseName}} expires on {{expiresAt}}.",
	},
	{
		Type:     "new_content",
		Subject:  "New content in {{courseName}}",
		HTMLBody: "<p>Hi {{firstName}},</p><p><strong>{{courseName}}</strong> has new content waiting for you.</p>",
		TextBody: "Hi {{firstName}},\n\n{{courseName}} has new content waiting for you.",
	},
	{
		Type:     "inactivity_reminder",
		Subject:  "We miss you in {{courseName}}",
		HTMLBody: "<p>Hi {{firstName}},</p><p>It's been {{idleDays}} days since your last visit to <strong>{{courseName}}</strong>.</p>",
		TextBody: "Hi {{firstName}},\n\nIt's been {{idleDays}} days since your last visit to {{courseName}}.",
	},
}

func seedDefaults(db *sql.DB) error {
	for _, tpl := range defaultTemplates {
		var count int
		if err := db.QueryRow(
			`SELECT COUNT(*) FROM templates WHERE type = ?`, tpl.Type).Scan(&count); err != nil {
			return fmt.Errorf("check default template %s: %w", tpl.Type, err)
		}
		if count > 0 {
			continue
		}
		_, err := db.Exec(`
			INSERT INTO templates (id, type, subject, html_body, text_body, preview_text, active)
			VALUES (?, ?, ?, ?, ?, ?, 1)`,
			uuid.NewString(), tpl.Type, tpl.Subject, tpl.HTMLBody, tpl.TextBody, tpl.PreviewText)
		if err != nil {
			return fmt.Errorf("seed default template %s: %w", tpl.Type, err)
		}
	}
	return nil
}
