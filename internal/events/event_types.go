package events

import (
	"time"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventSLABreached         EventType = "sla_breached"
)

// AllEventTypes lists every type the services publish.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketAssigned,
	EventTicketStatusChanged,
	EventTicketUpdated,
	EventTicketDeleted,
	EventSLABreached,
}

// TicketState is the post-commit view of the ticket carried by every event.
type TicketState struct {
	Number     int64               `json:"number"`
	Key        string              `json:"key"`
	PropertyID string              `json:"property_id"`
	RaisedBy   string              `json:"raised_by"`
	AssignedTo *string             `json:"assigned_to,omitempty"`
	Status     domain.TicketStatus `json:"status"`
	Version    int64               `json:"version"`
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Ticket    TicketState `json:"ticket"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// StateOf captures the fields of t that events carry.
func StateOf(t *domain.Ticket) TicketState {
	return TicketState{
		Number:     t.Number,
		Key:        t.Key(),
		PropertyID: t.PropertyID,
		RaisedBy:   t.RaisedBy,
		AssignedTo: t.AssignedTo,
		Status:     t.Status,
		Version:    t.Version,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	SkillGroupID string                `json:"skill_group_id"`
	Priority     domain.TicketPriority `json:"priority"`
	Title        string                `json:"title"`
	SLADeadline  time.Time             `json:"sla_deadline"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Action domain.ActivityAction `json:"action"`
	From   *string               `json:"from,omitempty"`
	To     *string               `json:"to,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Action domain.ActivityAction `json:"action"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	OrganizationID string `json:"organization_id,omitempty"`
}
