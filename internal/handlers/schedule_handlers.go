package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"herald/internal/db"
	"herald/internal/schedule"
)

// ListSchedules returns all schedules.
// GET /api/schedules
func ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := schedule.List(db.DB)
	if err != nil {
		log.Printf("handlers: list schedules: %v", err)
		JSONError(w, "Failed to list schedules", http.StatusInternalServerError)
		return
	}
	if schedules == nil {
		schedules = []schedule.Schedule{}
	}
	JSONResponse(w, schedules)
}

// GetSchedule returns a single schedule.
// GET /api/schedules/{id}
func GetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := schedule.Get(db.DB, r.PathValue("id"))
	if err != nil {
		log.Printf("handlers: get schedule: %v", err)
		JSONError(w, "Failed to get schedule", http.StatusInternalServerError)
		return
	}
	if s == nil {
		JSONError(w, "Schedule not found", http.StatusNotFound)
		return
	}
	JSONResponse(w, s)
}

// CreateSchedule adds a new schedule.
// POST /api/schedules
func CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var s schedule.Schedule
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		JSONError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if msg := validateSchedule(&s); msg != "" {
		JSONError(w, msg, http.StatusBadRequest)
		return
	}

	if err := schedule.Create(db.DB, &s); err != nil {
		log.Printf("handlers: create schedule: %v", err)
		JSONError(w, "Failed to create schedule", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	JSONResponse(w, s)
}

// UpdateSchedule replaces a schedule's definition. Execution state
// (last run, next run, stats) is owned by the runner and not touched.
// PUT /api/schedules/{id}
func UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var s schedule.Schedule
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		JSONError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	s.ID = r.PathValue("id")
	if msg := validateSchedule(&s); msg != "" {
		JSONError(w, msg, http.StatusBadRequest)
		return
	}

	if err := schedule.Update(db.DB, &s); err != nil {
		log.Printf("handlers: update schedule: %v", err)
		JSONError(w, "Failed to update schedule", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, s)
}

// DeleteSchedule removes a schedule.
// DELETE /api/schedules/{id}
func DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := schedule.Delete(db.DB, r.PathValue("id")); err != nil {
		log.Printf("handlers: delete schedule: %v", err)
		JSONError(w, "Failed to delete schedule", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "deleted"})
}

// RunSchedule forces an immediate execution.
// POST /api/schedules/{id}/run
func RunSchedule(w http.ResponseWriter, r *http.Request) {
	if Run == nil {
		JSONError(w, "Runner not available", http.StatusServiceUnavailable)
		return
	}
	if err := Run.RunNow(r.PathValue("id")); err != nil {
		log.Printf("handlers: run schedule: %v", err)
		JSONError(w, "Failed to run schedule", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "executed"})
}

// RunTick forces a scheduler tick outside the sweep interval.
// POST /api/run/tick
func RunTick(w http.ResponseWriter, r *http.Request) {
	if Run == nil {
		JSONError(w, "Runner not available", http.StatusServiceUnavailable)
		return
	}
	if err := Run.Tick(); err != nil {
		log.Printf("handlers: manual tick: %v", err)
		JSONError(w, "Tick failed", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "ticked"})
}

// RunDrain forces a retry-queue drain outside the sweep interval.
// POST /api/run/drain
func RunDrain(w http.ResponseWriter, r *http.Request) {
	if Run == nil {
		JSONError(w, "Runner not available", http.StatusServiceUnavailable)
		return
	}
	if err := Run.Drain(); err != nil {
		log.Printf("handlers: manual drain: %v", err)
		JSONError(w, "Drain failed", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "drained"})
}

func validateSchedule(s *schedule.Schedule) string {
	if s.Name == "" {
		return "Name is required"
	}
	if s.TemplateType == "" {
		return "Template type is required"
	}
	switch s.Frequency {
	case schedule.Immediately, schedule.Daily, schedule.Weekly, schedule.Monthly:
	case schedule.Recurring:
		if s.Recurring == nil || s.Recurring.Interval <= 0 {
			return "Recurring schedules need an interval"
		}
		switch s.Recurring.Unit {
		case schedule.UnitMinutes, schedule.UnitHours, schedule.UnitDays,
			schedule.UnitWeeks, schedule.UnitMonths:
		default:
			return "Unknown recurring unit"
		}
	case schedule.Custom:
		if s.Custom == nil {
			return "Custom schedules need a rule"
		}
	default:
		return "Unknown frequency"
	}
	return ""
}
