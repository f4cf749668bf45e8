package domain

import "time"

// ActivityAction is the machine-readable code of an activity record.
type ActivityAction string

const (
	ActionTicketCreated    ActivityAction = "ticket_created"
	ActionTicketClaimed    ActivityAction = "ticket_claimed"
	ActionTicketAssigned   ActivityAction = "ticket_assigned"
	ActionTicketReassigned ActivityAction = "ticket_reassigned"
	ActionTicketUnassigned ActivityAction = "ticket_unassigned"
	ActionStatusChanged    ActivityAction = "status_changed"
	ActionForceClosed      ActivityAction = "force_closed"
	ActionContentEdited    ActivityAction = "content_edited"
	ActionPhotoBefore      ActivityAction = "photo_before_uploaded"
	ActionPhotoAfter       ActivityAction = "photo_after_uploaded"
	ActionSLAPaused        ActivityAction = "sla_paused"
	ActionSLAResumed       ActivityAction = "sla_resumed"
	ActionWorkPaused       ActivityAction = "work_paused"
	ActionWorkResumed      ActivityAction = "work_resumed"
	ActionSLABreached      ActivityAction = "sla_breached"
	ActionTicketDeleted    ActivityAction = "ticket_deleted"
)

// ActivityRecord is an immutable audit trail entry for a ticket.
type ActivityRecord struct {
	ID        string
	TicketID  string
	ActorID   string
	Action    ActivityAction
	OldValue  map[string]any
	NewValue  map[string]any
	CreatedAt time.Time
}

// PropertyActivity is an entry in the property-level feed, keyed by organization.
type PropertyActivity struct {
	ID             string
	OrganizationID string
	PropertyID     string
	ActorID        string
	Action         ActivityAction
	Details        map[string]any
	CreatedAt      time.Time
}
