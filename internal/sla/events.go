package sla

import "time"

// PauseEvent is one entry of a pause/resume stream.
type PauseEvent struct {
	Paused bool
	At     time.Time
}

// PausedFromEvents folds a pause/resume stream into a total paused duration.
// Repeated pauses or resumes are ignored, and an unmatched pause counts up to now.
func PausedFromEvents(events []PauseEvent, now time.Time) time.Duration {
	var (
		total   time.Duration
		openAt  time.Time
		pausing bool
	)
	for _, ev := range events {
		switch {
		case ev.Paused && !pausing:
			pausing = true
			openAt = ev.At
		case !ev.Paused && pausing:
			pausing = false
			if ev.At.After(openAt) {
				total += ev.At.Sub(openAt)
			}
		}
	}
	if pausing && now.After(openAt) {
		total += now.Sub(openAt)
	}
	return total
}
