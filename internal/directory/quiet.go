package directory

import "time"

// InQuietHours reports whether now falls inside the user's do-not-disturb
// window. Disabled or missing windows never match. A window with a day
// filter only matches on those weekdays; a window without a time range
// covers the whole matching day.
func InQuietHours(dnd *DoNotDisturb, now time.Time) bool {
	if dnd == nil || !dnd.Enabled {
		return false
	}

	if len(dnd.Days) > 0 {
		weekday := int(now.Weekday())
		matched := false
		for _, d := range dnd.Days {
			if d == weekday {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if dnd.StartTime == "" || dnd.EndTime == "" {
		return true
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	start := parseHHMM(dnd.StartTime)
	end := parseHHMM(dnd.EndTime)

	if start <= end {
		// e.g. 13:00–15:00
		return nowMinutes >= start && nowMinutes <= end
	}
	// Wraps midnight, e.g. 22:00–06:00
	return nowMinutes >= start || nowMinutes <= end
}

// parseHHMM converts "HH:MM" to minutes since midnight.
func parseHHMM(s string) int {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}
