package schedule

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// Every pooled connection to a :memory: DSN is a fresh database.
	db.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestScheduleRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Schedule{
		Name:         "daily progress",
		TemplateType: TypeProgressUpdate,
		Frequency:    Recurring,
		Recurring:    &RecurringRule{Interval: 2, Unit: UnitDays, MaxOccurrences: 10, EndDate: &end},
		Conditions:   map[string]int{"progress_threshold": 50},
		IsActive:     true,
	}
	if err := Create(db, s); err != nil {
		t.Fatal(err)
	}
	if s.ID == "" {
		t.Fatal("expected Create to assign an ID")
	}

	got, err := Get(db, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected schedule")
	}
	if got.Frequency != Recurring {
		t.Errorf("frequency = %s", got.Frequency)
	}
	if got.Recurring == nil || got.Recurring.Interval != 2 || got.Recurring.Unit != UnitDays {
		t.Errorf("recurring rule = %+v", got.Recurring)
	}
	if got.Recurring.EndDate == nil || !got.Recurring.EndDate.Equal(end) {
		t.Errorf("end date = %v, want %s", got.Recurring.EndDate, end)
	}
	if got.Conditions["progress_threshold"] != 50 {
		t.Errorf("conditions = %v", got.Conditions)
	}
	if got.LastRun != nil || got.NextRun != nil {
		t.Error("fresh schedule has no run timestamps")
	}
}

func TestGetScheduleNotFound(t *testing.T) {
	db := setupTestDB(t)
	got, err := Get(db, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expected nil for unknown schedule")
	}
}

func TestCustomRuleRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	s := &Schedule{
		TemplateType: TypeInactivityReminder,
		Frequency:    Custom,
		Custom:       &CustomRule{Days: []int{1, 3, 5}, Hours: []int{9}, Minutes: []int{0}},
		IsActive:     true,
	}
	if err := Create(db, s); err != nil {
		t.Fatal(err)
	}

	got, err := Get(db, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Custom == nil {
		t.Fatal("expected custom rule")
	}
	if len(got.Custom.Days) != 3 || got.Custom.Days[1] != 3 {
		t.Errorf("days = %v", got.Custom.Days)
	}
}

func TestListActiveFiltersInactive(t *testing.T) {
	db := setupTestDB(t)

	active := &Schedule{TemplateType: TypeCompletion, Frequency: Daily, IsActive: true}
	inactive := &Schedule{TemplateType: TypeNewContent, Frequency: Daily, IsActive: false}
	if err := Create(db, active); err != nil {
		t.Fatal(err)
	}
	if err := Create(db, inactive); err != nil {
		t.Fatal(err)
	}

	got, err := ListActive(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("ListActive returned %d schedules", len(got))
	}

	all, err := List(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("List returned %d schedules, want 2", len(all))
	}
}

func TestSaveExecutionPersistsStatsAndTimestamps(t *testing.T) {
	db := setupTestDB(t)

	s := &Schedule{TemplateType: TypeCompletion, Frequency: Daily, IsActive: true}
	if err := Create(db, s); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	next := now.AddDate(0, 0, 1)
	s.LastRun = &now
	s.NextRun = &next
	s.Stats = ExecutionStats{
		TotalRuns:         1,
		SuccessfulRuns:    1,
		LastRunStatus:     "success",
		LastRunMs:         42,
		NotificationsSent: 7,
	}
	if err := SaveExecution(db, s); err != nil {
		t.Fatal(err)
	}

	got, err := Get(db, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Stats.TotalRuns != 1 || got.Stats.SuccessfulRuns != 1 {
		t.Errorf("stats = %+v", got.Stats)
	}
	if got.Stats.TotalRuns != got.Stats.SuccessfulRuns+got.Stats.FailedRuns {
		t.Error("totalRuns must equal successfulRuns+failedRuns")
	}
	if got.LastRun == nil || !got.LastRun.Equal(now) {
		t.Errorf("lastRun = %v, want %s", got.LastRun, now)
	}
	if got.NextRun == nil || !got.NextRun.Equal(next) {
		t.Errorf("nextRun = %v, want %s", got.NextRun, next)
	}
	if got.Stats.NotificationsSent != 7 {
		t.Errorf("notificationsSent = %d", got.Stats.NotificationsSent)
	}
}

func TestStoredRunTimesDriveDueness(t *testing.T) {
	db := setupTestDB(t)

	s := &Schedule{TemplateType: TypeCompletion, Frequency: Daily, IsActive: true}
	if err := Create(db, s); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	next := now.AddDate(0, 0, 1)
	s.LastRun = &now
	s.NextRun = &next
	if err := SaveExecution(db, s); err != nil {
		t.Fatal(err)
	}

	// A reloaded schedule must keep its cadence: not due again an hour
	// after running, due once the next run time passes.
	got, err := Get(db, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastRun == nil {
		t.Fatal("lastRun lost on reload")
	}
	if IsDue(got, now.Add(time.Hour)) {
		t.Error("schedule must not re-fire before its next run time")
	}
	if !IsDue(got, next.Add(time.Minute)) {
		t.Error("schedule must fire once its next run time passes")
	}
}

func TestUpdateAndDelete(t *testing.T) {
	db := setupTestDB(t)

	s := &Schedule{TemplateType: TypeCompletion, Frequency: Daily, IsActive: true}
	if err := Create(db, s); err != nil {
		t.Fatal(err)
	}

	s.Name = "renamed"
	s.IsActive = false
	if err := Update(db, s); err != nil {
		t.Fatal(err)
	}

	got, _ := Get(db, s.ID)
	if got.Name != "renamed" || got.IsActive {
		t.Errorf("update not applied: %+v", got)
	}

	if err := Delete(db, s.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := Get(db, s.ID); got != nil {
		t.Error("schedule should be gone after delete")
	}
	if err := Delete(db, s.ID); err == nil {
		t.Error("deleting a missing schedule should error")
	}
}
