package runner

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"herald/internal/events"
	"herald/internal/notify"
	"herald/internal/retry"
	"herald/internal/schedule"
)

// Runner drives the engine's periodic sweep: it drains due retries and
// then executes every schedule whose time has come. One schedule's
// failure never stops the sweep.
type Runner struct {
	db         *sql.DB
	dispatcher *notify.Dispatcher
	bus        *events.Bus

	now func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(db *sql.DB, dispatcher *notify.Dispatcher, bus *events.Bus) *Runner {
	return &Runner{
		db:         db,
		dispatcher: dispatcher,
		bus:        bus,
		now:        func() time.Time { return time.Now().UTC() },
		stopCh:     make(chan struct{}),
	}
}

// Start sweeps once immediately and then on every interval tick until
// Stop is called.
func (r *Runner) Start(interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Sweep()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// Sweep runs one full pass: deferred deliveries first, so a retry and
// a fresh notification for the same recipient arrive in queue order,
// then the due schedules.
func (r *Runner) Sweep() {
	if err := r.Drain(); err != nil {
		log.Printf("runner: drain retries: %v", err)
	}
	if err := r.Tick(); err != nil {
		log.Printf("runner: tick: %v", err)
	}
}

// Drain redelivers every retry-queue record whose time has come.
func (r *Runner) Drain() error {
	return retry.DrainDue(r.db, r.now(), r.dispatcher.Redeliver)
}

// RunNow executes a single schedule immediately, ignoring its timing
// rule. The run still counts toward its stats and occurrence limits.
func (r *Runner) RunNow(id string) error {
	s, err := schedule.Get(r.db, id)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("schedule %s not found", id)
	}
	r.execute(s, r.now())
	return nil
}

// Tick executes every active schedule that is due at this moment.
func (r *Runner) Tick() error {
	now := r.now()
	schedules, err := schedule.ListActive(r.db)
	if err != nil {
		return fmt.Errorf("list active schedules: %w", err)
	}

	for i := range schedules {
		s := &schedules[i]
		if !schedule.IsDue(s, now) {
			continue
		}
		r.execute(s, now)
	}
	return nil
}

// execute runs one schedule's routine, dispatches its notifications,
// and records the outcome on the schedule's stats.
func (r *Runner) execute(s *schedule.Schedule, now time.Time) {
	started := time.Now()
	sent, err := r.runRoutine(s, now)

	s.LastRun = &now
	s.Stats.TotalRuns++
	if err != nil {
		s.Stats.FailedRuns++
		s.Stats.LastRunStatus = "failure"
		log.Printf("runner: schedule %q (%s): %v", s.Name, s.ID, err)
	} else {
		s.Stats.SuccessfulRuns++
		s.Stats.LastRunStatus = "success"
	}
	s.Stats.LastRunMs = time.Since(started).Milliseconds()
	s.Stats.NotificationsSent += sent

	s.NextRun = schedule.NextRunTime(s, now)
	if s.Frequency == schedule.Immediately {
		// Single-shot schedules retire after their one run.
		s.IsActive = false
	}

	if err := schedule.SaveExecution(r.db, s); err != nil {
		log.Printf("runner: save execution of %q: %v", s.Name, err)
		return
	}
	r.bus.Publish(events.Event{
		Type:    events.ScheduleExecuted,
		Message: fmt.Sprintf("schedule %q sent %d notifications", s.Name, sent),
		Metadata: map[string]string{
			"schedule_id": s.ID,
			"status":      s.Stats.LastRunStatus,
			"sent":        fmt.Sprintf("%d", sent),
		},
	})
}

func (r *Runner) runRoutine(s *schedule.Schedule, now time.Time) (int, error) {
	fn, ok := routines[s.TemplateType]
	if !ok {
		return 0, fmt.Errorf("no routine for notification type %q", s.TemplateType)
	}
	reqs, err := fn(r.db, s, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, req := range reqs {
		delivered, err := r.dispatcher.Dispatch(req)
		if err != nil {
			log.Printf("runner: dispatch %s to user %s: %v", req.Type, req.UserID, err)
			continue
		}
		// Suppressed and fully failed dispatches don't count toward the
		// schedule's sent total.
		if delivered {
			sent++
		}
	}
	return sent, nil
}
