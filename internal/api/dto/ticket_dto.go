package dto

import (
	"time"

	"github.com/spec-kit/facility-tickets/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	PropertyID   string                `json:"property_id"`
	Category     string                `json:"category"`
	SubCategory  *string               `json:"sub_category"`
	SkillGroupID string                `json:"skill_group_id"`
	Priority     domain.TicketPriority `json:"priority"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
}

// PatchTicketRequest carries exactly one change: a status, an assignee
// (or unassign), or content.
type PatchTicketRequest struct {
	Status          *domain.TicketStatus `json:"status,omitempty"`
	Comment         string               `json:"comment,omitempty"`
	AssignedTo      *string              `json:"assigned_to,omitempty"`
	Unassign        bool                 `json:"unassign,omitempty"`
	Title           *string              `json:"title,omitempty"`
	Description     *string              `json:"description,omitempty"`
	ExpectedVersion *int64               `json:"expected_version,omitempty"`
}

// ReasonRequest is the body of pause endpoints.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// CommentRequest is the body of force-close.
type CommentRequest struct {
	Comment string `json:"comment"`
}

// PhotoRequest references an already uploaded file.
type PhotoRequest struct {
	URL string `json:"url"`
}

// BatchReassignRequest payload.
type BatchReassignRequest struct {
	Items []BatchReassignItem `json:"items"`
}

// BatchReassignItem is one batch entry; a nil AssignedTo unassigns.
type BatchReassignItem struct {
	TicketID        string  `json:"ticket_id"`
	AssignedTo      *string `json:"assigned_to"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
}

// ErrorBody mirrors the error envelope of failed requests.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// BatchReassignResult is one batch outcome.
type BatchReassignResult struct {
	TicketID string          `json:"ticket_id"`
	Ticket   *TicketResponse `json:"ticket,omitempty"`
	Error    *ErrorBody      `json:"error,omitempty"`
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID              string                `json:"id"`
	Key             string                `json:"key"`
	Number          int64                 `json:"number"`
	PropertyID      string                `json:"property_id"`
	Category        string                `json:"category"`
	SubCategory     *string               `json:"sub_category,omitempty"`
	SkillGroupID    string                `json:"skill_group_id"`
	Priority        domain.TicketPriority `json:"priority"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Status          domain.TicketStatus   `json:"status"`
	RaisedBy        string                `json:"raised_by"`
	AssignedTo      *string               `json:"assigned_to"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	AssignedAt      *time.Time            `json:"assigned_at,omitempty"`
	WorkStartedAt   *time.Time            `json:"work_started_at,omitempty"`
	ResolvedAt      *time.Time            `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time            `json:"closed_at,omitempty"`
	SLA             SLAResponse           `json:"sla"`
	WorkPaused      bool                  `json:"work_paused"`
	WorkPauseReason string                `json:"work_pause_reason,omitempty"`
	PhotoBeforeURL  *string               `json:"photo_before_url,omitempty"`
	PhotoAfterURL   *string               `json:"photo_after_url,omitempty"`
	Version         int64                 `json:"version"`
}

// SLAResponse is the SLA clock as of the response time.
type SLAResponse struct {
	Deadline         time.Time  `json:"deadline"`
	AdjustedDeadline time.Time  `json:"adjusted_deadline"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Breached         bool       `json:"breached"`
	Paused           bool       `json:"paused"`
	PausedAt         *time.Time `json:"paused_at,omitempty"`
	PausedSeconds    int64      `json:"paused_seconds"`
}

// ActivityResponse is one audit entry.
type ActivityResponse struct {
	ID        string                `json:"id"`
	ActorID   string                `json:"actor_id"`
	Action    domain.ActivityAction `json:"action"`
	OldValue  map[string]any        `json:"old_value,omitempty"`
	NewValue  map[string]any        `json:"new_value,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// ClaimableResponse answers whether the caller may self-claim.
type ClaimableResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// BoardResponse lists the live tickets of a property.
type BoardResponse struct {
	PropertyID string           `json:"property_id"`
	Tickets    []TicketResponse `json:"tickets"`
}
