package notify

import "time"

// Delivery channels.
const (
	ChannelEmail = "email"
	ChannelInApp = "in_app"
	ChannelPush  = "push"
	ChannelSMS   = "sms"
)

// Delivery audit statuses.
const (
	StatusSent       = "sent"
	StatusFailed     = "failed"
	StatusDeferred   = "deferred"
	StatusSuppressed = "suppressed"
	StatusDisabled   = "disabled"
)

// Notification is a stored in-app notification.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChannelResult is the outcome of one channel delivery attempt. Disabled
// marks a channel that was skipped rather than attempted: preference off,
// no sender configured, or no address on file.
type ChannelResult struct {
	Channel  string `json:"channel"`
	Success  bool   `json:"success"`
	Disabled bool   `json:"disabled,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Options tune a single dispatch.
type Options struct {
	// BypassPreferences delivers even to users who opted the type out.
	BypassPreferences bool
	// BypassDoNotDisturb delivers during the recipient's quiet hours.
	BypassDoNotDisturb bool
	// DisableRetry drops the notification on failure instead of queueing it.
	DisableRetry bool

	// Title and Message override the stored template when set.
	Title    string
	Message  string
	Link     string
	Priority string
}

// Request asks the dispatcher to deliver one notification.
type Request struct {
	UserID  string
	Type    string
	Data    map[string]string // template variables beyond the recipient's identity
	Options Options
}
