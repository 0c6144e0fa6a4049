package handlers

import (
	"net/http"
	"time"

	"herald/internal/auth"
	"herald/internal/config"
	"herald/internal/db"
	"herald/internal/middleware"
	"herald/internal/notify"
)

// Health reports liveness.
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]string{"status": "ok"})
}

// RegisterRoutes wires every API route into the mux. Operator routes
// are session-protected; the websocket feed and health check are not.
func RegisterRoutes(mux *http.ServeMux, cfg config.Config, hub *notify.Hub) {
	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	protect := func(h http.HandlerFunc) http.HandlerFunc {
		return auth.Middleware(db.DB, cfg.AuthEnabled, h)
	}

	mux.HandleFunc("GET /health", Health)

	// Auth
	mux.HandleFunc("GET /api/auth/status", auth.Status(db.DB, cfg.AuthEnabled))
	mux.HandleFunc("POST /api/auth/login", loginLimiter.Limit(auth.Login(db.DB, cfg.AuthEnabled)))
	mux.HandleFunc("POST /api/auth/logout", auth.Logout(db.DB))
	mux.HandleFunc("POST /api/auth/change-password", protect(auth.ChangePassword(db.DB)))

	// Schedules
	mux.HandleFunc("GET /api/schedules", protect(ListSchedules))
	mux.HandleFunc("POST /api/schedules", protect(CreateSchedule))
	mux.HandleFunc("GET /api/schedules/{id}", protect(GetSchedule))
	mux.HandleFunc("PUT /api/schedules/{id}", protect(UpdateSchedule))
	mux.HandleFunc("DELETE /api/schedules/{id}", protect(DeleteSchedule))
	mux.HandleFunc("POST /api/schedules/{id}/run", protect(RunSchedule))
	mux.HandleFunc("POST /api/run/tick", protect(RunTick))
	mux.HandleFunc("POST /api/run/drain", protect(RunDrain))

	// Templates
	mux.HandleFunc("GET /api/templates", protect(ListTemplates))
	mux.HandleFunc("POST /api/templates", protect(CreateTemplate))
	mux.HandleFunc("GET /api/templates/{id}", protect(GetTemplate))
	mux.HandleFunc("PUT /api/templates/{id}", protect(UpdateTemplate))
	mux.HandleFunc("DELETE /api/templates/{id}", protect(DeleteTemplate))

	// Users and preferences
	mux.HandleFunc("GET /api/users", protect(ListUsers))
	mux.HandleFunc("POST /api/users", protect(CreateUser))
	mux.HandleFunc("GET /api/users/{id}", protect(GetUser))
	mux.HandleFunc("GET /api/users/{id}/preferences", protect(GetPreference))
	mux.HandleFunc("PUT /api/users/{id}/preferences", protect(PutPreference))

	// Notifications
	mux.HandleFunc("POST /api/notifications/send", protect(SendNotification))
	mux.HandleFunc("GET /api/users/{id}/notifications", protect(ListUserNotifications))
	mux.HandleFunc("POST /api/notifications/{id}/read", protect(MarkNotificationRead))
	mux.HandleFunc("POST /api/users/{id}/notifications/read", protect(MarkAllNotificationsRead))
	mux.HandleFunc("GET /api/history", protect(GetDeliveryHistory))

	// Live in-app feed
	mux.HandleFunc("GET /ws", hub.Handler)
}
