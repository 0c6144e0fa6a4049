package schedule

import "time"

// Frequency is the shape of a schedule's timing rule.
type Frequency string

const (
	Immediately Frequency = "immediately"
	Daily       Frequency = "daily"
	Weekly      Frequency = "weekly"
	Monthly     Frequency = "monthly"
	Recurring   Frequency = "recurring"
	Custom      Frequency = "custom"
)

// Unit is the interval unit of a recurring rule.
type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
	UnitDays    Unit = "days"
	UnitWeeks   Unit = "weeks"
	UnitMonths  Unit = "months"
)

// Notification types a schedule can produce.
const (
	TypeProgressUpdate     = "progress_update"
	TypeCompletion         = "completion"
	TypeExpirationWarning  = "expiration_warning"
	TypeNewContent         = "new_content"
	TypeInactivityReminder = "inactivity_reminder"
)

// RecurringRule is an interval-based timing rule,
// present iff Frequency == Recurring.
type RecurringRule struct {
	Interval       int        `json:"interval"`
	Unit           Unit       `json:"unit"`
	MaxOccurrences int        `json:"max_occurrences,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
}

// CustomRule is a calendar-field allow-set rule, present iff
// Frequency == Custom. An empty set matches any value.
type CustomRule struct {
	Days      []int `json:"days,omitempty"`       // 0=Sunday .. 6=Saturday
	Hours     []int `json:"hours,omitempty"`      // 0-23
	Minutes   []int `json:"minutes,omitempty"`    // 0-59
	MonthDays []int `json:"month_days,omitempty"` // 1-31
	Months    []int `json:"months,omitempty"`     // 1-12
}

// Matches reports whether t satisfies every allow-set.
func (r *CustomRule) Matches(t time.Time) bool {
	return inSet(r.Days, int(t.Weekday())) &&
		inSet(r.Hours, t.Hour()) &&
		inSet(r.Minutes, t.Minute()) &&
		inSet(r.MonthDays, t.Day()) &&
		inSet(r.Months, int(t.Month()))
}

func inSet(set []int, v int) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ExecutionStats accumulates runner outcomes for a schedule.
// TotalRuns always equals SuccessfulRuns + FailedRuns.
type ExecutionStats struct {
	TotalRuns         int    `json:"total_runs"`
	SuccessfulRuns    int    `json:"successful_runs"`
	FailedRuns        int    `json:"failed_runs"`
	LastRunStatus     string `json:"last_run_status,omitempty"` // success | failure
	LastRunMs         int64  `json:"last_run_ms"`
	NotificationsSent int    `json:"notifications_sent"`
}

// Schedule is a persisted definition of a recurring notification job.
// Conditions carries per-type trigger thresholds consumed by the recipient
// routines (e.g. progress percentage, inactivity day count).
type Schedule struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	TemplateType string         `json:"template_type"`
	Frequency    Frequency      `json:"frequency"`
	Recurring    *RecurringRule `json:"recurring,omitempty"`
	Custom       *CustomRule    `json:"custom,omitempty"`
	Conditions   map[string]int `json:"conditions,omitempty"`
	IsActive     bool           `json:"is_active"`
	LastRun      *time.Time     `json:"last_run,omitempty"`
	NextRun      *time.Time     `json:"next_run,omitempty"`
	Stats        ExecutionStats `json:"stats"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
