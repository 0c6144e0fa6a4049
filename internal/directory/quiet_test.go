package directory

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	// 2025-06-11 is a Wednesday.
	return time.Date(2025, 6, 11, hour, min, 0, 0, time.UTC)
}

func TestQuietHoursDisabled(t *testing.T) {
	if InQuietHours(nil, at(23, 0)) {
		t.Error("nil window should never match")
	}
	dnd := &DoNotDisturb{Enabled: false, StartTime: "00:00", EndTime: "23:59"}
	if InQuietHours(dnd, at(12, 0)) {
		t.Error("disabled window should never match")
	}
}

func TestQuietHoursOvernightWindow(t *testing.T) {
	dnd := &DoNotDisturb{Enabled: true, StartTime: "22:00", EndTime: "06:00"}

	cases := []struct {
		now  time.Time
		want bool
	}{
		{at(23, 30), true},
		{at(5, 30), true},
		{at(12, 0), false},
		{at(22, 0), true},
		{at(6, 0), true},
		{at(6, 1), false},
		{at(21, 59), false},
	}
	for _, c := range cases {
		if got := InQuietHours(dnd, c.now); got != c.want {
			t.Errorf("InQuietHours(22:00-06:00, %s) = %v, want %v",
				c.now.Format("15:04"), got, c.want)
		}
	}
}

func TestQuietHoursSameDayWindow(t *testing.T) {
	dnd := &DoNotDisturb{Enabled: true, StartTime: "13:00", EndTime: "15:00"}

	if !InQuietHours(dnd, at(14, 0)) {
		t.Error("14:00 should be inside 13:00-15:00")
	}
	if InQuietHours(dnd, at(12, 59)) {
		t.Error("12:59 should be outside 13:00-15:00")
	}
	if InQuietHours(dnd, at(15, 1)) {
		t.Error("15:01 should be outside 13:00-15:00")
	}
}

func TestQuietHoursDayFilter(t *testing.T) {
	// Wednesday = 3
	dnd := &DoNotDisturb{Enabled: true, Days: []int{3}, StartTime: "10:00", EndTime: "11:00"}
	if !InQuietHours(dnd, at(10, 30)) {
		t.Error("Wednesday 10:30 should match a Wednesday window")
	}

	dnd.Days = []int{0, 6} // weekend only
	if InQuietHours(dnd, at(10, 30)) {
		t.Error("Wednesday should not match a weekend-only window")
	}
}

func TestQuietHoursAllDayWhenNoRange(t *testing.T) {
	dnd := &DoNotDisturb{Enabled: true, Days: []int{3}}
	if !InQuietHours(dnd, at(3, 0)) {
		t.Error("windows without a time range cover the whole matching day")
	}
	if !InQuietHours(dnd, at(23, 59)) {
		t.Error("windows without a time range cover the whole matching day")
	}

	dnd.Days = []int{4}
	if InQuietHours(dnd, at(12, 0)) {
		t.Error("all-day window should still respect the day filter")
	}
}
