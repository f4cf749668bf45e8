package domain

import "time"

// Notification is a per-recipient notice derived from a ticket event.
type Notification struct {
	ID          string
	TicketID    string
	RecipientID string
	Kind        string
	Body        string
	ReadAt      *time.Time
	CreatedAt   time.Time
}
