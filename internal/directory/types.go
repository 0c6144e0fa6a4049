package directory

import "time"

// User is a platform user the engine can notify.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PushURL     string    `json:"push_url,omitempty"` // shoutrrr URL for the user's push device
	Phone       string    `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DoNotDisturb is a per-user quiet-hours window. With no time range the
// window covers the whole matching day. Times are "HH:MM" in UTC; a window
// whose end is before its start spans midnight.
type DoNotDisturb struct {
	Enabled   bool   `json:"enabled"`
	Days      []int  `json:"days,omitempty"` // 0=Sunday .. 6=Saturday; empty = every day
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// Preference holds a user's notification preferences.
// TypeOptOuts maps a notification type to an explicit flag; a type set to
// false is permanently suppressed, an absent type is allowed.
type Preference struct {
	UserID       string          `json:"user_id"`
	Email        bool            `json:"email"`
	InApp        bool            `json:"in_app"`
	Push         bool            `json:"push"`
	SMS          bool            `json:"sms"`
	TypeOptOuts  map[string]bool `json:"type_opt_outs,omitempty"`
	DoNotDisturb *DoNotDisturb   `json:"do_not_disturb,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Allows reports whether the given notification type is permitted.
// Only an explicit false opts the type out.
func (p *Preference) Allows(notifType string) bool {
	if v, ok := p.TypeOptOuts[notifType]; ok && !v {
		return false
	}
	return true
}

// DefaultPreference is what a user gets before saving anything:
// every channel on, no opt-outs, no quiet hours.
func DefaultPreference(userID string) Preference {
	return Preference{
		UserID: userID,
		Email:  true,
		InApp:  true,
		Push:   true,
		SMS:    true,
	}
}
