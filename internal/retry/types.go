package retry

import "time"

// Config controls how many redelivery attempts a notification gets and
// how far apart they are spaced.
type Config struct {
	MaxRetries        int `json:"maxRetries"`
	RetryDelayMinutes int `json:"retryDelayMinutes"`
	CurrentRetries    int `json:"currentRetries"`
}

func DefaultConfig() Config {
	return Config{MaxRetries: 3, RetryDelayMinutes: 15, CurrentRetries: 0}
}

// Record is a deferred delivery waiting in the queue, either because a
// channel send failed or because the recipient was in quiet hours.
type Record struct {
	ID               string            `json:"id"`
	UserID           string            `json:"userId"`
	NotificationType string            `json:"notificationType"`
	Payload          map[string]string `json:"payload"`
	Config           Config            `json:"retryConfig"`
	ScheduledFor     time.Time         `json:"scheduledFor"`
	Reason           string            `json:"reason"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// Exhausted reports whether the record has used up its retry budget.
// A notification gets maxRetries redeliveries on top of the original
// attempt before it is dropped.
func (r *Record) Exhausted() bool {
	return r.Config.CurrentRetries >= r.Config.MaxRetries
}

// NextAttempt returns a copy of the record advanced to its next retry
// slot, counted from now.
func (r *Record) NextAttempt(now time.Time) Record {
	next := *r
	next.Config.CurrentRetries++
	next.ScheduledFor = now.Add(time.Duration(next.Config.RetryDelayMinutes) * time.Minute)
	return next
}
