package notify

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"herald/internal/directory"
	"herald/internal/events"
	"herald/internal/retry"
	"herald/internal/template"
)

// Senders bundles the outbound channels. A nil sender disables its
// channel for every recipient.
type Senders struct {
	Email EmailSender
	Push  PushSender
	SMS   SMSSender
}

// Dispatcher resolves a recipient, gates the delivery on preferences
// and quiet hours, renders the notification, and fans it out across
// the recipient's enabled channels. Failed deliveries enter the retry
// queue; quiet-hours deliveries are deferred past the window.
type Dispatcher struct {
	db      *sql.DB
	bus     *events.Bus
	senders Senders
	audit   *AuditBatcher

	retryDefaults retry.Config
	dndFallback   time.Duration
	pushFallback  string

	now func() time.Time
}

func NewDispatcher(db *sql.DB, bus *events.Bus, senders Senders, audit *AuditBatcher) *Dispatcher {
	return &Dispatcher{
		db:            db,
		bus:           bus,
		senders:       senders,
		audit:         audit,
		retryDefaults: retry.DefaultConfig(),
		dndFallback:   directory.DefaultDNDFallback,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetRetryPolicy overrides the default retry budget for new dispatches.
func (d *Dispatcher) SetRetryPolicy(cfg retry.Config) {
	cfg.CurrentRetries = 0
	d.retryDefaults = cfg
}

// SetDNDFallback overrides the deferral used for quiet-hours windows
// without an end time.
func (d *Dispatcher) SetDNDFallback(fallback time.Duration) {
	if fallback > 0 {
		d.dndFallback = fallback
	}
}

// SetPushFallback sets a deployment-wide push URL used for recipients
// who have none of their own.
func (d *Dispatcher) SetPushFallback(url string) {
	d.pushFallback = url
}

// Dispatch delivers one notification. The boolean reports whether at
// least one channel actually delivered; suppressed, deferred, and fully
// failed dispatches return false. Channel failures are not returned as
// errors; they are queued for redelivery unless the request disables
// retries.
func (d *Dispatcher) Dispatch(req Request) (bool, error) {
	return d.dispatch(req, d.retryDefaults, false)
}

// Redeliver retries a previously deferred or failed delivery, carrying
// its retry budget forward.
func (d *Dispatcher) Redeliver(rec retry.Record) error {
	req := Request{UserID: rec.UserID, Type: rec.NotificationType, Data: rec.Payload}
	_, err := d.dispatch(req, rec.Config, true)
	return err
}

func (d *Dispatcher) dispatch(req Request, rc retry.Config, isRetry bool) (bool, error) {
	now := d.now()

	user, err := directory.GetUser(d.db, req.UserID)
	if err != nil {
		return false, fmt.Errorf("dispatch %s: %w", req.Type, err)
	}
	if user == nil {
		return false, fmt.Errorf("dispatch %s: unknown user %s", req.Type, req.UserID)
	}

	pref, err := directory.GetPreference(d.db, req.UserID)
	if err != nil {
		return false, fmt.Errorf("dispatch %s: %w", req.Type, err)
	}

	decision := directory.Evaluate(req.Type, pref, now, directory.GateOptions{
		BypassPreferences:  req.Options.BypassPreferences,
		BypassDoNotDisturb: req.Options.BypassDoNotDisturb,
		DNDFallback:        d.dndFallback,
	})
	if !decision.Proceed {
		return false, d.suppress(req, rc, decision)
	}

	rendered, emailReady, err := d.render(req, user)
	if err != nil {
		return false, err
	}

	results := d.deliver(user, pref, req, rendered, emailReady)
	delivered := false
	var failed []string
	for _, r := range results {
		entry := AuditEntry{UserID: user.ID, Type: req.Type, Channel: r.Channel}
		switch {
		case r.Disabled:
			entry.Status = StatusDisabled
			entry.Error = r.Error
		case r.Success:
			entry.Status = StatusSent
			delivered = true
		default:
			entry.Status = StatusFailed
			entry.Error = r.Error
			failed = append(failed, r.Channel)
		}
		d.audit.Record(entry)
	}
	if len(failed) == 0 {
		return delivered, nil
	}

	log.Printf("notify: %s delivery to user %s failed on %s",
		req.Type, user.ID, strings.Join(failed, ", "))
	d.bus.Publish(events.Event{
		Type:     events.DeliveryFailed,
		UserID:   user.ID,
		Message:  fmt.Sprintf("%s delivery failed", req.Type),
		Metadata: map[string]string{"channels": strings.Join(failed, ",")},
	})

	if req.Options.DisableRetry {
		return delivered, nil
	}
	if isRetry {
		rc.CurrentRetries++
	}
	delay := time.Duration(rc.RetryDelayMinutes) * time.Minute
	queued, err := retry.Enqueue(d.db, retry.Record{
		UserID:           user.ID,
		NotificationType: req.Type,
		Payload:          req.Data,
		Config:           rc,
		ScheduledFor:     now.Add(delay),
		Reason:           "delivery_failed",
	})
	if err != nil {
		return delivered, err
	}
	if !queued {
		d.bus.Publish(events.Event{
			Type:    events.RetryExhausted,
			UserID:  user.ID,
			Message: fmt.Sprintf("%s dropped after %d attempts", req.Type, rc.CurrentRetries+1),
		})
	}
	return delivered, nil
}

// suppress handles a gate refusal: permanent opt-outs are audited and
// dropped, quiet-hours refusals are deferred to the window's end.
func (d *Dispatcher) suppress(req Request, rc retry.Config, decision directory.Decision) error {
	if decision.RetryAt.IsZero() || req.Options.DisableRetry {
		d.audit.Record(AuditEntry{
			UserID: req.UserID, Type: req.Type,
			Status: StatusSuppressed, Error: decision.Reason,
		})
		return nil
	}

	// Deferrals do not consume retry budget; the delivery simply waits
	// for the window to end.
	if _, err := retry.Enqueue(d.db, retry.Record{
		UserID:           req.UserID,
		NotificationType: req.Type,
		Payload:          req.Data,
		Config:           rc,
		ScheduledFor:     decision.RetryAt,
		Reason:           decision.Reason,
	}); err != nil {
		return err
	}
	d.audit.Record(AuditEntry{
		UserID: req.UserID, Type: req.Type,
		Status: StatusDeferred, Error: decision.Reason,
	})
	return nil
}

// fallbackContent backs the in-app, push, and SMS channels when a type
// has no active template, so deleting a template only costs the email
// channel.
var fallbackContent = map[string]template.Rendered{
	"progress_update":     {Subject: "You're {{progress}}% through {{courseName}}", TextBody: "You've completed {{progress}}% of {{courseName}}. Keep going!"},
	"completion":          {Subject: "Congratulations on finishing {{courseName}}!", TextBody: "You've completed {{courseName}}. Well done!"},
	"expiration_warning":  {Subject: "Your access to {{courseName}} expires in {{daysLeft}} days", TextBody: "Your access to {{courseName}} expires on {{expiresAt}}."},
	"new_content":         {Subject: "New content in {{courseName}}", TextBody: "{{courseName}} has new content waiting for you."},
	"inactivity_reminder": {Subject: "We miss you in {{courseName}}", TextBody: "It's been {{idleDays}} days since your last visit to {{courseName}}."},
}

// render resolves the active template for the request type and fills
// in its placeholders from the recipient's identity and request data.
// A type without an active template falls back to builtin content; the
// second return value reports whether full email content is available.
func (d *Dispatcher) render(req Request, user *directory.User) (template.Rendered, bool, error) {
	vars := map[string]string{
		"firstName":   user.FirstName,
		"lastName":    user.LastName,
		"displayName": user.DisplayName,
		"email":       user.Email,
	}
	for k, v := range req.Data {
		vars[k] = v
	}

	tpl, err := template.GetActive(d.db, req.Type)
	if err != nil {
		return template.Rendered{}, false, fmt.Errorf("render %s: %w", req.Type, err)
	}

	var r template.Rendered
	if tpl != nil {
		r = template.Render(tpl, vars)
	} else if fb, ok := fallbackContent[req.Type]; ok {
		r.Subject = template.Substitute(fb.Subject, vars)
		r.TextBody = template.Substitute(fb.TextBody, vars)
	} else {
		r.Subject = strings.ReplaceAll(req.Type, "_", " ")
	}
	if req.Options.Title != "" {
		r.Subject = req.Options.Title
	}
	if req.Options.Message != "" {
		r.TextBody = template.Substitute(req.Options.Message, vars)
	}
	emailReady := tpl != nil || req.Options.Message != ""
	return r, emailReady, nil
}

// deliver fans the rendered notification out across the recipient's
// channels. Every channel yields a result: skipped channels report why
// so the audit trail shows the full fan-out.
func (d *Dispatcher) deliver(user *directory.User, pref directory.Preference,
	req Request, r template.Rendered, emailReady bool) []ChannelResult {

	var results []ChannelResult

	if pref.InApp {
		results = append(results, d.deliverInApp(user, req, r))
	} else {
		results = append(results, disabledResult(ChannelInApp, "disabled by preference"))
	}

	switch {
	case !pref.Email:
		results = append(results, disabledResult(ChannelEmail, "disabled by preference"))
	case d.senders.Email == nil:
		results = append(results, disabledResult(ChannelEmail, "no sender configured"))
	case user.Email == "":
		results = append(results, disabledResult(ChannelEmail, "no address on file"))
	case !emailReady:
		results = append(results, ChannelResult{
			Channel: ChannelEmail,
			Error:   fmt.Sprintf("no active template for %s", req.Type),
		})
	default:
		err := d.senders.Email.SendEmail(user.Email, r.Subject, r.HTMLBody, r.TextBody)
		results = append(results, channelResult(ChannelEmail, err))
	}

	pushURL := firstNonEmpty(user.PushURL, d.pushFallback)
	switch {
	case !pref.Push:
		results = append(results, disabledResult(ChannelPush, "disabled by preference"))
	case d.senders.Push == nil:
		results = append(results, disabledResult(ChannelPush, "no sender configured"))
	case pushURL == "":
		results = append(results, disabledResult(ChannelPush, "no push URL on file"))
	default:
		err := d.senders.Push.SendPush(pushURL, shortMessage(r))
		results = append(results, channelResult(ChannelPush, err))
	}

	switch {
	case !pref.SMS:
		results = append(results, disabledResult(ChannelSMS, "disabled by preference"))
	case d.senders.SMS == nil:
		results = append(results, disabledResult(ChannelSMS, "no sender configured"))
	case user.Phone == "":
		results = append(results, disabledResult(ChannelSMS, "no phone number on file"))
	default:
		err := d.senders.SMS.SendSMS(user.Phone, shortMessage(r))
		results = append(results, channelResult(ChannelSMS, err))
	}

	return results
}

func (d *Dispatcher) deliverInApp(user *directory.User, req Request, r template.Rendered) ChannelResult {
	n := &Notification{
		UserID:    user.ID,
		Type:      req.Type,
		Title:     r.Subject,
		Message:   firstNonEmpty(r.PreviewText, r.TextBody),
		Link:      req.Options.Link,
		Priority:  req.Options.Priority,
		CreatedAt: d.now(),
	}
	if err := CreateNotification(d.db, n); err != nil {
		return ChannelResult{Channel: ChannelInApp, Error: err.Error()}
	}

	payload, err := json.Marshal(n)
	if err == nil {
		d.bus.Publish(events.Event{
			Type:    events.NotificationCreated,
			UserID:  user.ID,
			Message: n.Title,
			Payload: payload,
		})
	}
	return ChannelResult{Channel: ChannelInApp, Success: true}
}

func channelResult(channel string, err error) ChannelResult {
	if err != nil {
		return ChannelResult{Channel: channel, Error: err.Error()}
	}
	return ChannelResult{Channel: channel, Success: true}
}

func disabledResult(channel, reason string) ChannelResult {
	return ChannelResult{Channel: channel, Disabled: true, Error: reason}
}

// shortMessage is the single-line form used for push and SMS.
func shortMessage(r template.Rendered) string {
	body := firstNonEmpty(r.PreviewText, r.TextBody)
	if r.Subject == "" {
		return body
	}
	if body == "" {
		return r.Subject
	}
	return r.Subject + ": " + body
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
