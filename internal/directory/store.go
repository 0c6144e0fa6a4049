package directory

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ── Users ───────────────────────────────────────────────────────────────

// CreateUser inserts a new user, assigning an ID if none is set.
func CreateUser(db *sql.DB, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := db.Exec(`
		INSERT INTO users (id, email, display_name, first_name, last_name, push_url, phone)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.FirstName, u.LastName, u.PushURL, u.Phone)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID, or nil if not found.
func GetUser(db *sql.DB, id string) (*User, error) {
	var u User
	err := db.QueryRow(`
		SELECT id, email, display_name, first_name, last_name, push_url, phone, created_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.FirstName, &u.LastName,
			&u.PushURL, &u.Phone, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// ListUsers returns all users ordered by display name.
func ListUsers(db *sql.DB) ([]User, error) {
	rows, err := db.Query(`
		SELECT id, email, display_name, first_name, last_name, push_url, phone, created_at
		FROM users ORDER BY display_name, email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.FirstName,
			&u.LastName, &u.PushURL, &u.Phone, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt = u.CreatedAt.UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

// ── Preferences ─────────────────────────────────────────────────────────

// GetPreference returns the user's notification preferences, falling back
// to DefaultPreference when the user has never saved any.
func GetPreference(db *sql.DB, userID string) (Preference, error) {
	var p Preference
	var email, inApp, push, sms, dndEnabled int
	var optOuts, dndDays, dndStart, dndEnd string

	err := db.QueryRow(`
		SELECT user_id, email_enabled, in_app_enabled, push_enabled, sms_enabled,
		       type_opt_outs, dnd_enabled, dnd_days, dnd_start, dnd_end, updated_at
		FROM user_preferences WHERE user_id = ?`, userID).
		Scan(&p.UserID, &email, &inApp, &push, &sms,
			&optOuts, &dndEnabled, &dndDays, &dndStart, &dndEnd, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return DefaultPreference(userID), nil
	}
	if err != nil {
		return Preference{}, fmt.Errorf("get preference: %w", err)
	}

	p.Email = email == 1
	p.InApp = inApp == 1
	p.Push = push == 1
	p.SMS = sms == 1
	p.UpdatedAt = p.UpdatedAt.UTC()

	if optOuts != "" && optOuts != "{}" {
		if err := json.Unmarshal([]byte(optOuts), &p.TypeOptOuts); err != nil {
			return Preference{}, fmt.Errorf("decode type opt-outs: %w", err)
		}
	}

	if dndEnabled == 1 || dndStart != "" || dndEnd != "" || dndDays != "[]" {
		dnd := &DoNotDisturb{
			Enabled:   dndEnabled == 1,
			StartTime: dndStart,
			EndTime:   dndEnd,
		}
		if dndDays != "" && dndDays != "[]" {
			if err := json.Unmarshal([]byte(dndDays), &dnd.Days); err != nil {
				return Preference{}, fmt.Errorf("decode dnd days: %w", err)
			}
		}
		p.DoNotDisturb = dnd
	}

	return p, nil
}

// UpsertPreference saves the user's notification preferences.
func UpsertPreference(db *sql.DB, p *Preference) error {
	optOuts, err := json.Marshal(orEmptyMap(p.TypeOptOuts))
	if err != nil {
		return fmt.Errorf("encode type opt-outs: %w", err)
	}

	dndEnabled, dndStart, dndEnd := 0, "", ""
	dndDays := "[]"
	if p.DoNotDisturb != nil {
		dndEnabled = boolInt(p.DoNotDisturb.Enabled)
		dndStart = p.DoNotDisturb.StartTime
		dndEnd = p.DoNotDisturb.EndTime
		if len(p.DoNotDisturb.Days) > 0 {
			days, err := json.Marshal(p.DoNotDisturb.Days)
			if err != nil {
				return fmt.Errorf("encode dnd days: %w", err)
			}
			dndDays = string(days)
		}
	}

	_, err = db.Exec(`
		INSERT INTO user_preferences
			(user_id, email_enabled, in_app_enabled, push_enabled, sms_enabled,
			 type_opt_outs, dnd_enabled, dnd_days, dnd_start, dnd_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email_enabled  = excluded.email_enabled,
			in_app_enabled = excluded.in_app_enabled,
			push_enabled   = excluded.push_enabled,
			sms_enabled    = excluded.sms_enabled,
			type_opt_outs  = excluded.type_opt_outs,
			dnd_enabled    = excluded.dnd_enabled,
			dnd_days       = excluded.dnd_days,
			dnd_start      = excluded.dnd_start,
			dnd_end        = excluded.dnd_end,
			updated_at     = CURRENT_TIMESTAMP`,
		p.UserID, boolInt(p.Email), boolInt(p.InApp), boolInt(p.Push), boolInt(p.SMS),
		string(optOuts), dndEnabled, dndDays, dndStart, dndEnd)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// ── helpers ─────────────────────────────────────────────────────────────

func orEmptyMap(m map[string]bool) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	return m
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
