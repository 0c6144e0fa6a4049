package retry

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
	if _, err := db.Exec(`CREATE TABLE users (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO users (id) VALUES ('u1')`); err != nil {
		t.Fatal(err)
	}
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var testNow = time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

func testRecord() Record {
	return Record{
		UserID:           "u1",
		NotificationType: "completion",
		Payload:          map[string]string{"courseName": "Go Basics"},
		Config:           DefaultConfig(),
		ScheduledFor:     testNow.Add(15 * time.Minute),
		Reason:           "delivery_failed",
	}
}

func TestEnqueueAndListDue(t *testing.T) {
	db := setupTestDB(t)

	queued, err := Enqueue(db, testRecord())
	if err != nil {
		t.Fatal(err)
	}
	if !queued {
		t.Fatal("expected fresh record to be queued")
	}

	due, err := ListDue(db, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("record scheduled in the future should not be due, got %d", len(due))
	}

	due, err = ListDue(db, testNow.Add(16*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due record, got %d", len(due))
	}
	if due[0].Payload["courseName"] != "Go Basics" {
		t.Errorf("payload not preserved: %v", due[0].Payload)
	}
	if due[0].Config.CurrentRetries != 0 {
		t.Errorf("currentRetries = %d, want 0", due[0].Config.CurrentRetries)
	}
}

func TestEnqueueRefusesExhausted(t *testing.T) {
	db := setupTestDB(t)

	rec := testRecord()
	rec.Config.CurrentRetries = rec.Config.MaxRetries

	queued, err := Enqueue(db, rec)
	if err != nil {
		t.Fatal(err)
	}
	if queued {
		t.Error("exhausted record must be dropped, not queued")
	}
	n, err := Count(db)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("queue should be empty, has %d records", n)
	}
}

func TestNextAttemptAdvances(t *testing.T) {
	rec := testRecord()
	next := rec.NextAttempt(testNow)

	if next.Config.CurrentRetries != 1 {
		t.Errorf("currentRetries = %d, want 1", next.Config.CurrentRetries)
	}
	want := testNow.Add(15 * time.Minute)
	if !next.ScheduledFor.Equal(want) {
		t.Errorf("scheduledFor = %v, want %v", next.ScheduledFor, want)
	}
	if rec.Config.CurrentRetries != 0 {
		t.Error("NextAttempt must not mutate the original record")
	}
}

func TestDrainDueRemovesRecords(t *testing.T) {
	db := setupTestDB(t)

	rec := testRecord()
	rec.ScheduledFor = testNow.Add(-time.Minute)
	if _, err := Enqueue(db, rec); err != nil {
		t.Fatal(err)
	}

	var dispatched []Record
	err := DrainDue(db, testNow, func(r Record) error {
		dispatched = append(dispatched, r)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatched) != 1 {
		t.Fatalf("expected 1 dispatched record, got %d", len(dispatched))
	}
	n, _ := Count(db)
	if n != 0 {
		t.Errorf("drained record still in queue, count = %d", n)
	}
}

func TestDrainDueFailureDoesNotRequeue(t *testing.T) {
	// A failed dispatch must not leave the old row behind; the caller
	// decides whether to re-enqueue via NextAttempt.
	db := setupTestDB(t)

	rec := testRecord()
	rec.ScheduledFor = testNow.Add(-time.Minute)
	if _, err := Enqueue(db, rec); err != nil {
		t.Fatal(err)
	}

	err := DrainDue(db, testNow, func(r Record) error {
		return sql.ErrConnDone
	})
	if err != nil {
		t.Fatal(err)
	}
	n, _ := Count(db)
	if n != 0 {
		t.Errorf("failed record must be removed by drain, count = %d", n)
	}
}

func TestRecordDroppedAfterBudget(t *testing.T) {
	// maxRetries redeliveries on top of the first attempt, then gone.
	db := setupTestDB(t)

	rec := testRecord()
	attempts := 0
	for {
		queued, err := Enqueue(db, rec)
		if err != nil {
			t.Fatal(err)
		}
		if !queued {
			break
		}
		attempts++
		if attempts > 10 {
			t.Fatal("record never exhausted")
		}
		var got Record
		if err := DrainDue(db, rec.ScheduledFor.Add(time.Minute), func(r Record) error {
			got = r
			return nil
		}); err != nil {
			t.Fatal(err)
		}
		rec = got.NextAttempt(testNow)
	}
	if attempts != rec.Config.MaxRetries {
		t.Errorf("got %d queued redeliveries, want %d", attempts, rec.Config.MaxRetries)
	}
}

func TestListDueOrdersOldestFirst(t *testing.T) {
	db := setupTestDB(t)

	first := testRecord()
	first.ScheduledFor = testNow.Add(-2 * time.Hour)
	first.NotificationType = "first"
	second := testRecord()
	second.ScheduledFor = testNow.Add(-time.Hour)
	second.NotificationType = "second"

	if _, err := Enqueue(db, second); err != nil {
		t.Fatal(err)
	}
	if _, err := Enqueue(db, first); err != nil {
		t.Fatal(err)
	}

	due, err := ListDue(db, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due records, got %d", len(due))
	}
	if due[0].NotificationType != "first" || due[1].NotificationType != "second" {
		t.Errorf("wrong order: %s, %s", due[0].NotificationType, due[1].NotificationType)
	}
}
