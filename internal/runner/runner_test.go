package runner

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"herald/internal/directory"
	"herald/internal/events"
	"herald/internal/notify"
	"herald/internal/retry"
	"herald/internal/schedule"
	"herald/internal/template"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// Every pooled connection to a :memory: DSN is a fresh database.
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			email        TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			first_name   TEXT NOT NULL DEFAULT '',
			last_name    TEXT NOT NULL DEFAULT '',
			push_url     TEXT NOT NULL DEFAULT '',
			phone        TEXT NOT NULL DEFAULT '',
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		);`)
	if err != nil {
		t.Fatal(err)
	}
	for _, migrate := range []func(*sql.DB) error{
		directory.Migrate, template.Migrate, retry.Migrate,
		notify.Migrate, schedule.Migrate, Migrate,
	} {
		if err := migrate(db); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var testNow = time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db  *sql.DB
	bus *events.Bus
	r   *Runner
	now time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	bus := events.NewBus()
	audit := notify.NewAuditBatcher(db)
	d := notify.NewDispatcher(db, bus, notify.Senders{}, audit)

	f := &fixture{db: db, bus: bus, now: testNow}
	f.r = New(db, d, bus)
	f.r.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) seedUser(t *testing.T, id string) {
	t.Helper()
	u := &directory.User{ID: id, Email: id + "@example.com", FirstName: "Ada"}
	if err := directory.CreateUser(f.db, u); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) seedCourse(t *testing.T, id, name string, publishedAt *time.Time) {
	t.Helper()
	var published any
	if publishedAt != nil {
		published = publishedAt.UTC().Format(timeFormat)
	}
	_, err := f.db.Exec(`INSERT INTO courses (id, name, published_at) VALUES (?, ?, ?)`,
		id, name, published)
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) seedEnrollment(t *testing.T, userID, courseID string, progress int,
	completedAt, expiresAt, lastActivityAt *time.Time) {
	t.Helper()
	fmtTime := func(ts *time.Time) any {
		if ts == nil {
			return nil
		}
		return ts.UTC().Format(timeFormat)
	}
	_, err := f.db.Exec(`
		INSERT INTO enrollments (id, user_id, course_id, progress, completed_at, expires_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID+"-"+courseID, userID, courseID, progress,
		fmtTime(completedAt), fmtTime(expiresAt), fmtTime(lastActivityAt))
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) seedSchedule(t *testing.T, s *schedule.Schedule) {
	t.Helper()
	s.IsActive = true
	if err := schedule.Create(f.db, s); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) inAppCount(t *testing.T, userID string) int {
	t.Helper()
	list, err := notify.ListNotifications(f.db, userID, 0)
	if err != nil {
		t.Fatal(err)
	}
	return len(list)
}

func TestTickSendsCompletionOnce(t *testing.T) {
	f := setup(t)
	f.seedUser(t, "u1")
	f.seedCourse(t, "c1", "Go Basics", nil)
	done := testNow.Add(-time.Hour)
	f.seedEnrollment(t, "u1", "c1", 100, &done, nil, nil)
	f.seedSchedule(t, &schedule.Schedule{
		Name:         "completions",
		TemplateType: schedule.TypeCompletion,
		Frequency:    schedule.Recurring,
		Recurring:    &schedule.RecurringRule{Interval: 1, Unit: schedule.UnitHours},
	})

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := f.inAppCount(t, "u1"); got != 1 {
		t.Fatalf("expected 1 notification after first tick, got %d", got)
	}

	// A repeated tick at the same instant must not double-send.
	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := f.inAppCount(t, "u1"); got != 1 {
		t.Fatalf("expected 1 notification after second tick, got %d", got)
	}

	// Even once the schedule is due again, the ledger holds.
	f.now = testNow.Add(2 * time.Hour)
	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := f.inAppCount(t, "u1"); got != 1 {
		t.Fatalf("completion must be sent once per course, got %d", got)
	}
}

func TestTickProgressUpdateDailyKey(t *testing.T) {
	f := setup(t)
	f.seedUser(t, "u1")
	f.seedCourse(t, "c1", "Go Basics", nil)
	f.seedEnrollment(t, "u1", "c1", 40, nil, nil, nil)
	f.seedSchedule(t, &schedule.Schedule{
		Name:         "progress",
		TemplateType: schedule.TypeProgressUpdate,
		Frequency:    schedule.Recurring,
		Recurring:    &schedule.RecurringRule{Interval: 1, Unit: schedule.UnitHours},
		Conditions:   map[string]int{"min_progress": 10},
	})

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := f.inAppCount(t, "u1"); got != 1 {
		t.Fatalf("expected 1 progress update, got %d", got)
	}

	// Same day, schedule due again: suppressed by the daily ledger key.
	f.now = testNow.Add(3 * time.Hour)
	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := f.inAppCount(t, "u1"); got != 1 {
		t.Fatalf("expected no second update the same day, got %d", got)
	}

	// Next day it fires again.
	f.now = testNow.AddDate(0, 0, 1)
	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := f.inAppCount(t, "u1"); got != 2 {
		t.Fatalf("expected a new update the next day, got %d", got)
	}
}

func TestTickProgressBelowThresholdSkipped(t *testing.T) {
	f := setup(t)
	f.seedUser(t, "u1")
	f.seedCourse(t, "c1", "Go Basics", nil)
	f.seedEnrollment(t, "u1", "c1", 5, nil, nil, nil)
	f.seedSchedule(t, &schedule.Schedule{
		Name:         "progress",
		TemplateType: schedule.TypeProgressUpdate,
		Frequency:    schedule.Daily,
		Conditions:   map[string]int{"min_progress": 10},
	})

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := f.inAppCount(t, "u1"); got != 0 {
		t.Fatalf("below-threshold learner must not be notified, got %d", got)
	}
}

func TestTickExpirationWarningWindow(t *testing.T) {
	f := setup(t)
	f.seedUser(t, "u1")
	f.seedUser(t, "u2")
	f.seedCourse(t, "c1", "Go Basics", nil)
	soon := testNow.AddDate(0, 0, 3)
	far := testNow.AddDate(0, 0, 30)
	f.seedEnrollment(t, "u1", "c1", 50, nil, &soon, nil)
	f.seedEnrollment(t, "u2", "c1", 50, nil, &far, nil)
	f.seedSchedule(t, &schedule.Schedule{
		Name:         "expiry",
		TemplateType: schedule.TypeExpirationWarning,
		Frequency:    schedule.Daily,
		Conditions:   map[string]int{"days_before": 7},
	})

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := f.inAppCount(t, "u1"); got != 1 {
		t.Fatalf("expected warning inside the window, got %d", got)
	}
	if got := f.inAppCount(t, "u2"); got != 0 {
		t.Fatalf("expiry outside the window must not warn, got %d", got)
	}
}

func TestTickNewContentAnnouncesToAllUsers(t *testing.T) {
	f := setup(t)
	f.seedUser(t, "u1")
	f.seedUser(t, "u2")
	recent := testNow.AddDate(0, 0, -2)
	old := testNow.AddDate(0, 0, -60)
	f.seedCourse(t, "c1", "Fresh Course", &recent)
	f.seedCourse(t, "c2", "Old Course", &old)
	f.seedSchedule(t, &schedule.Schedule{
		Name:         "announcements",
		TemplateType: schedule.TypeNewContent,
		Frequency:    schedule.Daily,
	})

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"u1", "u2"} {
		if got := f.inAppCount(t, id); got != 1 {
			t.Errorf("user %s: expected 1 announcement, got %d", id, got)
		}
	}
}

func TestTickInactivityReminderNewStreak(t *testing.T) {
	f := setup(t)
	f.seedUser(t, "u1")
	f.seedCourse(t, "c1", "Go Basics", nil)
	idle := testNow.AddDate(0, 0, -20)
	f.seedEnrollment(t, "u1", "c1", 30, nil, nil, &idle)
	f.seedSchedule(t, &schedule.Schedule{
		Name:         "nudges",
		TemplateType: schedule.TypeInactivityReminder,
		Frequency:    schedule.Daily,
		Conditions:   map[string]int{"idle_days": 14},
	})

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := f.inAppCount(t, "u1"); got != 1 {
		t.Fatalf("expected 1 reminder, got %d", got)
	}

	// The learner resumes, then stalls again: a new streak re-notifies.
	resumed := testNow.AddDate(0, 0, -15)
	if _, err := f.db.Exec(`UPDATE enrollments SET last_activity_at = ?`,
		resumed.UTC().Format(timeFormat)); err != nil {
		t.Fatal(err)
	}
	f.now = testNow.AddDate(0, 0, 1)
	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if got := f.inAppCount(t, "u1"); got != 2 {
		t.Fatalf("expected a reminder for the new idle streak, got %d", got)
	}
}

func TestExecuteRecordsStats(t *testing.T) {
	f := setup(t)
	f.seedUser(t, "u1")
	f.seedCourse(t, "c1", "Go Basics", nil)
	done := testNow.Add(-time.Hour)
	f.seedEnrollment(t, "u1", "c1", 100, &done, nil, nil)
	s := &schedule.Schedule{
		Name:         "completions",
		TemplateType: schedule.TypeCompletion,
		Frequency:    schedule.Daily,
	}
	f.seedSchedule(t, s)

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}

	got, err := schedule.Get(f.db, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Stats.TotalRuns != 1 || got.Stats.SuccessfulRuns != 1 {
		t.Errorf("stats = %+v, want one successful run", got.Stats)
	}
	if got.Stats.LastRunStatus != "success" {
		t.Errorf("lastRunStatus = %q", got.Stats.LastRunStatus)
	}
	if got.Stats.NotificationsSent != 1 {
		t.Errorf("notificationsSent = %d, want 1", got.Stats.NotificationsSent)
	}
	if got.LastRun == nil || !got.LastRun.Equal(testNow) {
		t.Errorf("lastRun = %v, want %v", got.LastRun, testNow)
	}
	if got.NextRun == nil || !got.NextRun.After(testNow) {
		t.Errorf("nextRun = %v, want after %v", got.NextRun, testNow)
	}
}

func TestSuppressedDispatchNotCountedAsSent(t *testing.T) {
	f := setup(t)
	f.seedUser(t, "u1")
	f.seedCourse(t, "c1", "Go Basics", nil)
	done := testNow.Add(-time.Hour)
	f.seedEnrollment(t, "u1", "c1", 100, &done, nil, nil)

	pref := directory.DefaultPreference("u1")
	pref.TypeOptOuts = map[string]bool{"completion": false}
	if err := directory.UpsertPreference(f.db, &pref); err != nil {
		t.Fatal(err)
	}

	s := &schedule.Schedule{
		Name:         "completions",
		TemplateType: schedule.TypeCompletion,
		Frequency:    schedule.Daily,
	}
	f.seedSchedule(t, s)

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}

	got, err := schedule.Get(f.db, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Stats.TotalRuns != 1 || got.Stats.SuccessfulRuns != 1 {
		t.Errorf("stats = %+v, want one successful run", got.Stats)
	}
	if got.Stats.NotificationsSent != 0 {
		t.Errorf("notificationsSent = %d, suppressed deliveries must not count",
			got.Stats.NotificationsSent)
	}
	if got := f.inAppCount(t, "u1"); got != 0 {
		t.Errorf("opted-out learner must not be notified, got %d", got)
	}
}

func TestExecuteFailureKeepsStatsConsistent(t *testing.T) {
	f := setup(t)
	s := &schedule.Schedule{
		Name:         "broken",
		TemplateType: "no_such_routine",
		Frequency:    schedule.Daily,
	}
	f.seedSchedule(t, s)

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}

	got, err := schedule.Get(f.db, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Stats.TotalRuns != got.Stats.SuccessfulRuns+got.Stats.FailedRuns {
		t.Errorf("stats invariant broken: %+v", got.Stats)
	}
	if got.Stats.FailedRuns != 1 || got.Stats.LastRunStatus != "failure" {
		t.Errorf("stats = %+v, want one failed run", got.Stats)
	}
}

func TestImmediatelyScheduleRetires(t *testing.T) {
	f := setup(t)
	f.seedUser(t, "u1")
	f.seedCourse(t, "c1", "Go Basics", nil)
	done := testNow.Add(-time.Hour)
	f.seedEnrollment(t, "u1", "c1", 100, &done, nil, nil)
	s := &schedule.Schedule{
		Name:         "one shot",
		TemplateType: schedule.TypeCompletion,
		Frequency:    schedule.Immediately,
	}
	f.seedSchedule(t, s)

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}

	got, err := schedule.Get(f.db, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Error("single-shot schedule must deactivate after running")
	}
	if got.NextRun != nil {
		t.Errorf("single-shot schedule must not have a next run, got %v", got.NextRun)
	}
}

func TestSweepDrainsRetriesBeforeTick(t *testing.T) {
	f := setup(t)
	f.seedUser(t, "u1")

	rec := retry.Record{
		UserID:           "u1",
		NotificationType: "completion",
		Payload:          map[string]string{"courseName": "Go Basics"},
		Config:           retry.DefaultConfig(),
		ScheduledFor:     testNow.Add(-time.Minute),
		Reason:           "delivery_failed",
	}
	if _, err := retry.Enqueue(f.db, rec); err != nil {
		t.Fatal(err)
	}

	f.r.Sweep()

	if n, _ := retry.Count(f.db); n != 0 {
		t.Errorf("due retry not drained, queue has %d", n)
	}
	if got := f.inAppCount(t, "u1"); got != 1 {
		t.Errorf("expected redelivered notification, got %d", got)
	}
}

func TestScheduleExecutedEventPublished(t *testing.T) {
	f := setup(t)
	var got []events.Event
	f.bus.Subscribe(func(e events.Event) { got = append(got, e) }, events.ScheduleExecuted)

	f.seedSchedule(t, &schedule.Schedule{
		Name:         "announcements",
		TemplateType: schedule.TypeNewContent,
		Frequency:    schedule.Daily,
	})

	if err := f.r.Tick(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 schedule.executed event, got %d", len(got))
	}
	if got[0].Metadata["status"] != "success" {
		t.Errorf("status = %q", got[0].Metadata["status"])
	}
}
