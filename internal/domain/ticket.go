package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusWaitlist   TicketStatus = "waitlist"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusBlocked    TicketStatus = "blocked"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusWaitlist, TicketStatusAssigned, TicketStatusInProgress,
		TicketStatusBlocked, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Live reports whether the status requires an assignee.
func (s TicketStatus) Live() bool {
	return s == TicketStatusAssigned || s == TicketStatusInProgress || s == TicketStatusBlocked
}

// Terminal reports whether the SLA clock no longer runs.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// PhotoSlot names one of the two ticket photo fields.
type PhotoSlot string

const (
	PhotoSlotBefore PhotoSlot = "before"
	PhotoSlotAfter  PhotoSlot = "after"
)

// Ticket is the aggregate for maintenance and service requests.
type Ticket struct {
	ID           string
	Number       int64
	PropertyID   string
	Category     string
	SubCategory  *string
	SkillGroupID string
	Priority     TicketPriority
	Title        string
	Description  string
	Status       TicketStatus

	RaisedBy   string
	AssignedTo *string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	AssignedAt    *time.Time
	WorkStartedAt *time.Time
	ResolvedAt    *time.Time
	ClosedAt      *time.Time

	SLADeadline    time.Time
	SLABreached    bool
	SLAPaused      bool
	SLAPausedAt    *time.Time
	SLAPausedTotal time.Duration

	WorkPaused      bool
	WorkPauseReason string

	PhotoBeforeURL *string
	PhotoAfterURL  *string

	Version int64
}

// Key returns the human-readable ticket number.
func (t *Ticket) Key() string {
	return fmt.Sprintf("T-%03d", t.Number)
}

// IsAssignedTo reports whether userID is the current resolver.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && userID != "" && *t.AssignedTo == userID
}

// Clone returns a deep copy so mutations never leak into the caller's value.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.SubCategory = clonePtr(t.SubCategory)
	cp.AssignedTo = clonePtr(t.AssignedTo)
	cp.AssignedAt = clonePtr(t.AssignedAt)
	cp.WorkStartedAt = clonePtr(t.WorkStartedAt)
	cp.ResolvedAt = clonePtr(t.ResolvedAt)
	cp.ClosedAt = clonePtr(t.ClosedAt)
	cp.SLAPausedAt = clonePtr(t.SLAPausedAt)
	cp.PhotoBeforeURL = clonePtr(t.PhotoBeforeURL)
	cp.PhotoAfterURL = clonePtr(t.PhotoAfterURL)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
