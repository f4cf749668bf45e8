package workflow

import (
	"strings"
	"time"

	"github.com/spec-kit/facility-tickets/internal/auth"
	"github.com/spec-kit/facility-tickets/internal/domain"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// startableFrom lists the statuses work may start from.
var startableFrom = map[domain.TicketStatus]bool{
	domain.TicketStatusOpen:     true,
	domain.TicketStatusWaitlist: true,
	domain.TicketStatusAssigned: true,
	domain.TicketStatusBlocked:  true,
}

func applyChangeStatus(t *domain.Ticket, actor *domain.Actor, c ChangeStatus, now time.Time) (domain.ActivityAction, map[string]any, map[string]any, error) {
	if !c.To.Valid() {
		return "", nil, nil, apperrors.NewValidationError("unknown status", map[string]any{"status": c.To})
	}
	from := t.Status
	if from == domain.TicketStatusClosed {
		return "", nil, nil, invalid(from, c.To, "ticket is closed")
	}
	if from == c.To {
		return "", nil, nil, invalid(from, c.To, "ticket is already "+string(from))
	}
	isAdmin := actor.IsAdminFor(t.PropertyID)

	switch c.To {
	case domain.TicketStatusInProgress:
		if !startableFrom[from] {
			return "", nil, nil, invalid(from, c.To, "work can only start on an assigned, open or waitlisted ticket")
		}
		if err := auth.Authorize(actor, t, auth.CapWork).Err(); err != nil {
			return "", nil, nil, err
		}
		if t.AssignedTo == nil {
			return "", nil, nil, invalid(from, c.To, "ticket must be assigned before work starts")
		}
	case domain.TicketStatusBlocked:
		if from != domain.TicketStatusAssigned && from != domain.TicketStatusInProgress {
			return "", nil, nil, invalid(from, c.To, "only assigned or in-progress tickets can be blocked")
		}
		if err := auth.Authorize(actor, t, auth.CapWork).Err(); err != nil {
			return "", nil, nil, err
		}
	case domain.TicketStatusResolved, domain.TicketStatusClosed:
		if from != domain.TicketStatusInProgress && !isAdmin {
			return "", nil, nil, invalid(from, c.To, "only in-progress tickets can be "+string(c.To))
		}
	case domain.TicketStatusWaitlist:
		if from != domain.TicketStatusOpen {
			return "", nil, nil, invalid(from, c.To, "only open tickets can be queued; use reassign to unassign")
		}
		if err := auth.Authorize(actor, t, auth.CapAssign).Err(); err != nil {
			return "", nil, nil, err
		}
	default:
		return "", nil, nil, invalid(from, c.To, "use claim or reassign to assign a ticket")
	}

	enter(t, c.To, now)
	action := domain.ActionStatusChanged
	if c.To == domain.TicketStatusClosed && from != domain.TicketStatusInProgress {
		action = domain.ActionForceClosed
	}
	newVal := map[string]any{"status": c.To}
	if comment := strings.TrimSpace(c.Comment); comment != "" {
		newVal["comment"] = comment
	}
	return action, map[string]any{"status": from}, newVal, nil
}

func applyForceClose(t *domain.Ticket, actor *domain.Actor, c ForceClose, now time.Time) (domain.ActivityAction, map[string]any, map[string]any, error) {
	if err := auth.Authorize(actor, t, auth.CapForceClose).Err(); err != nil {
		return "", nil, nil, err
	}
	from := t.Status
	if from == domain.TicketStatusClosed {
		return "", nil, nil, invalid(from, domain.TicketStatusClosed, "ticket is already closed")
	}
	enter(t, domain.TicketStatusClosed, now)
	newVal := map[string]any{"status": domain.TicketStatusClosed}
	if comment := strings.TrimSpace(c.Comment); comment != "" {
		newVal["comment"] = comment
	}
	return domain.ActionForceClosed, map[string]any{"status": from}, newVal, nil
}

func invalid(from, to domain.TicketStatus, message string) error {
	return apperrors.NewInvalidTransition(message, map[string]any{"from": from, "to": to})
}
