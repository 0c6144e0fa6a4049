package schedule

import (
	"log"
	"time"
)

// customScanLimit bounds the minute-by-minute forward scan for custom
// schedules at roughly seven days. Configurations that never match inside
// the bound fall back to "run tomorrow"; validation at creation time should
// catch unsatisfiable allow-sets before they get here.
const customScanLimit = 10000

// customRefireGuard keeps a custom schedule from re-firing on every tick
// inside the same matching minute window.
const customRefireGuard = time.Hour

// IsDue reports whether the schedule should run at now.
func IsDue(s *Schedule, now time.Time) bool {
	if s.LastRun == nil {
		return true
	}
	if s.NextRun != nil && s.NextRun.After(now) {
		return false
	}

	switch s.Frequency {
	case Immediately:
		// Single-shot, and it has already run.
		return false
	case Daily:
		return now.Sub(*s.LastRun) >= 24*time.Hour
	case Weekly:
		return now.Sub(*s.LastRun) >= 7*24*time.Hour
	case Monthly:
		return !now.Before(s.LastRun.AddDate(0, 1, 0))
	case Recurring:
		return recurringDue(s, now)
	case Custom:
		if s.Custom == nil {
			return false
		}
		return s.Custom.Matches(now) && now.Sub(*s.LastRun) >= customRefireGuard
	}
	return false
}

func recurringDue(s *Schedule, now time.Time) bool {
	rule := s.Recurring
	if rule == nil || rule.Interval <= 0 {
		return false
	}
	if rule.MaxOccurrences > 0 && s.Stats.TotalRuns >= rule.MaxOccurrences {
		return false
	}
	if rule.EndDate != nil && now.After(*rule.EndDate) {
		return false
	}
	return !now.Before(advance(*s.LastRun, rule.Interval, rule.Unit))
}

// NextRunTime computes when the schedule should next be considered due, or
// nil for single-shot and exhausted schedules. The returned time is never
// before now.
func NextRunTime(s *Schedule, now time.Time) *time.Time {
	switch s.Frequency {
	case Immediately:
		return nil
	case Daily:
		return topOfHour(now.AddDate(0, 0, 1))
	case Weekly:
		return topOfHour(now.AddDate(0, 0, 7))
	case Monthly:
		return topOfHour(now.AddDate(0, 1, 0))
	case Recurring:
		return nextRecurring(s, now)
	case Custom:
		return nextCustom(s, now)
	}
	return nil
}

func nextRecurring(s *Schedule, now time.Time) *time.Time {
	rule := s.Recurring
	if rule == nil || rule.Interval <= 0 {
		return nil
	}
	if rule.MaxOccurrences > 0 && s.Stats.TotalRuns >= rule.MaxOccurrences {
		return nil
	}

	base := now
	if s.LastRun != nil {
		base = *s.LastRun
	}
	next := advance(base, rule.Interval, rule.Unit)
	if next.Before(now) {
		// The schedule lagged past a whole interval; re-anchor on now
		// rather than scheduling into the past.
		next = advance(now, rule.Interval, rule.Unit)
	}
	if rule.EndDate != nil && next.After(*rule.EndDate) {
		return nil
	}
	return &next
}

func nextCustom(s *Schedule, now time.Time) *time.Time {
	rule := s.Custom
	if rule == nil {
		return nil
	}

	candidate := now.Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < customScanLimit; i++ {
		if rule.Matches(candidate) {
			return &candidate
		}
		candidate = candidate.Add(time.Minute)
	}

	log.Printf("schedule: custom rule for %q matched nothing within %d minutes, deferring a day",
		s.ID, customScanLimit)
	fallback := now.Add(24 * time.Hour)
	return &fallback
}

// advance moves t forward by interval units, using calendar arithmetic for
// day-and-larger units.
func advance(t time.Time, interval int, unit Unit) time.Time {
	switch unit {
	case UnitMinutes:
		return t.Add(time.Duration(interval) * time.Minute)
	case UnitHours:
		return t.Add(time.Duration(interval) * time.Hour)
	case UnitDays:
		return t.AddDate(0, 0, interval)
	case UnitWeeks:
		return t.AddDate(0, 0, 7*interval)
	case UnitMonths:
		return t.AddDate(0, interval, 0)
	}
	return t
}

func topOfHour(t time.Time) *time.Time {
	out := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	return &out
}
