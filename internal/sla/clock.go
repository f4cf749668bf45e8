package sla

import (
	"time"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

// PausedDuration returns the cumulative paused time, including an open pause.
func PausedDuration(t *domain.Ticket, now time.Time) time.Duration {
	total := t.SLAPausedTotal
	if t.SLAPaused && t.SLAPausedAt != nil && now.After(*t.SLAPausedAt) {
		total += now.Sub(*t.SLAPausedAt)
	}
	return total
}

// AdjustedDeadline shifts the stamped deadline by the time spent paused.
func AdjustedDeadline(t *domain.Ticket, now time.Time) time.Time {
	return t.SLADeadline.Add(PausedDuration(t, now))
}

// Remaining returns the time left before breach; negative once overdue.
func Remaining(t *domain.Ticket, now time.Time) time.Duration {
	return AdjustedDeadline(t, now).Sub(now)
}

// IsBreached reports whether a live ticket is past its adjusted deadline.
func IsBreached(t *domain.Ticket, now time.Time) bool {
	if t.Status.Terminal() || t.SLADeadline.IsZero() {
		return false
	}
	return now.After(AdjustedDeadline(t, now))
}

// Evaluate latches SLABreached. It returns true only when the flag flips.
func Evaluate(t *domain.Ticket, now time.Time) bool {
	if t.SLABreached {
		return false
	}
	if IsBreached(t, now) {
		t.SLABreached = true
		return true
	}
	return false
}

// Pause stops the SLA clock. It reports false when already paused.
func Pause(t *domain.Ticket, now time.Time) bool {
	if t.SLAPaused {
		return false
	}
	at := now
	t.SLAPaused = true
	t.SLAPausedAt = &at
	return true
}

// Resume restarts the SLA clock. It reports false when already running.
func Resume(t *domain.Ticket, now time.Time) bool {
	if !t.SLAPaused {
		return false
	}
	if t.SLAPausedAt != nil && now.After(*t.SLAPausedAt) {
		t.SLAPausedTotal += now.Sub(*t.SLAPausedAt)
	}
	t.SLAPaused = false
	t.SLAPausedAt = nil
	return true
}
