package directory

import "time"

// dndGrace is added past the end of a quiet-hours window before a deferred
// delivery is retried, so the retry lands clearly outside the window.
const dndGrace = 5 * time.Minute

// DefaultDNDFallback is the deferral used when a quiet-hours window has no
// configured end time.
const DefaultDNDFallback = 8 * time.Hour

// Suppression reasons reported in a Decision.
const (
	ReasonOptOut       = "preference_opt_out"
	ReasonDoNotDisturb = "do_not_disturb"
)

// alwaysDeliver lists notification types that ignore quiet hours.
var alwaysDeliver = map[string]struct{}{
	"completion":              {},
	"certificate_expiration":  {},
	"enrollment_confirmation": {},
}

// Decision is the outcome of the preference gate.
// A zero RetryAt on a suppressed decision means the suppression is permanent.
type Decision struct {
	Proceed bool
	RetryAt time.Time
	Reason  string
}

// GateOptions tune a single gate evaluation.
type GateOptions struct {
	BypassPreferences  bool
	BypassDoNotDisturb bool
	DNDFallback        time.Duration // 0 uses DefaultDNDFallback
}

// Evaluate decides whether a notification of the given type may be delivered
// to the user now, later (RetryAt set), or never (permanent suppression).
func Evaluate(notifType string, pref Preference, now time.Time, opts GateOptions) Decision {
	if !opts.BypassPreferences && !pref.Allows(notifType) {
		return Decision{Reason: ReasonOptOut}
	}

	if !opts.BypassDoNotDisturb && respectsQuietHours(notifType) &&
		InQuietHours(pref.DoNotDisturb, now) {
		return Decision{
			RetryAt: quietHoursRetryAt(pref.DoNotDisturb, now, opts.DNDFallback),
			Reason:  ReasonDoNotDisturb,
		}
	}

	return Decision{Proceed: true}
}

func respectsQuietHours(notifType string) bool {
	_, exempt := alwaysDeliver[notifType]
	return !exempt
}

// quietHoursRetryAt computes when a delivery suppressed by quiet hours
// should be retried: shortly after the window's end on the current date,
// rolling to the next day if that moment has already passed, or now plus
// the fallback when the window has no end time.
func quietHoursRetryAt(dnd *DoNotDisturb, now time.Time, fallback time.Duration) time.Time {
	if fallback <= 0 {
		fallback = DefaultDNDFallback
	}
	if dnd == nil || dnd.EndTime == "" {
		return now.Add(fallback)
	}

	end := parseHHMM(dnd.EndTime)
	retryAt := time.Date(now.Year(), now.Month(), now.Day(),
		end/60, end%60, 0, 0, now.Location()).Add(dndGrace)
	if !retryAt.After(now) {
		retryAt = retryAt.AddDate(0, 0, 1)
	}
	return retryAt
}
