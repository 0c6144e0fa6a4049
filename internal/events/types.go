package events

import (
	"encoding/json"
	"time"
)

// EventType identifies a notification lifecycle event.
type EventType string

const (
	// NotificationCreated fires when an in-app notification record is
	// created; the payload is the serialized record for live delivery.
	NotificationCreated EventType = "notification.created"

	// DeliveryFailed fires when a channel delivery attempt fails.
	DeliveryFailed EventType = "delivery.failed"

	// RetryExhausted fires when a deferred delivery runs out of retries.
	RetryExhausted EventType = "retry.exhausted"

	// ScheduleExecuted fires after the runner records a schedule execution.
	ScheduleExecuted EventType = "schedule.executed"
)

// Event is a single notification lifecycle event.
type Event struct {
	Type      EventType         `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
