package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"herald/internal/db"
	"herald/internal/notify"
)

// SendNotification dispatches an ad-hoc notification to one user.
// POST /api/notifications/send
func SendNotification(w http.ResponseWriter, r *http.Request) {
	if Dispatch == nil {
		JSONError(w, "Dispatcher not available", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		UserID             string            `json:"user_id"`
		Type               string            `json:"type"`
		Data               map[string]string `json:"data"`
		Title              string            `json:"title"`
		Message            string            `json:"message"`
		Link               string            `json:"link"`
		Priority           string            `json:"priority"`
		BypassPreferences  bool              `json:"bypass_preferences"`
		BypassDoNotDisturb bool              `json:"bypass_do_not_disturb"`
		DisableRetry       bool              `json:"disable_retry"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Type == "" {
		JSONError(w, "user_id and type are required", http.StatusBadRequest)
		return
	}

	delivered, err := Dispatch.Dispatch(notify.Request{
		UserID: req.UserID,
		Type:   req.Type,
		Data:   req.Data,
		Options: notify.Options{
			BypassPreferences:  req.BypassPreferences,
			BypassDoNotDisturb: req.BypassDoNotDisturb,
			DisableRetry:       req.DisableRetry,
			Title:              req.Title,
			Message:            req.Message,
			Link:               req.Link,
			Priority:           req.Priority,
		},
	})
	if err != nil {
		log.Printf("handlers: send notification: %v", err)
		JSONError(w, "Failed to send notification", http.StatusInternalServerError)
		return
	}
	status := "dispatched"
	if !delivered {
		// Suppressed, deferred, or every channel failed; the audit trail
		// has the detail.
		status = "not_delivered"
	}
	JSONResponse(w, map[string]string{"status": status})
}

// ListUserNotifications returns a user's in-app notifications.
// GET /api/users/{id}/notifications
func ListUserNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	list, err := notify.ListNotifications(db.DB, userID, queryInt(r, "limit", 50))
	if err != nil {
		log.Printf("handlers: list notifications: %v", err)
		JSONError(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []notify.Notification{}
	}
	unread, _ := notify.UnreadCount(db.DB, userID)
	JSONResponse(w, map[string]any{
		"notifications": list,
		"unread":        unread,
	})
}

// MarkNotificationRead flags one notification as read.
// POST /api/notifications/{id}/read
func MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := notify.MarkRead(db.DB, r.PathValue("id")); err != nil {
		JSONError(w, "Notification not found", http.StatusNotFound)
		return
	}
	JSONResponse(w, map[string]string{"status": "read"})
}

// MarkAllNotificationsRead flags every notification of a user as read.
// POST /api/users/{id}/notifications/read
func MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := notify.MarkAllRead(db.DB, r.PathValue("id")); err != nil {
		log.Printf("handlers: mark all read: %v", err)
		JSONError(w, "Failed to update notifications", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "read"})
}

// GetDeliveryHistory returns recent delivery audit entries, optionally
// filtered by user.
// GET /api/history
func GetDeliveryHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := notify.ListAudit(db.DB, r.URL.Query().Get("user_id"),
		queryInt(r, "limit", 100))
	if err != nil {
		log.Printf("handlers: delivery history: %v", err)
		JSONError(w, "Failed to list history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []notify.AuditEntry{}
	}
	JSONResponse(w, entries)
}
