package workflow

import (
	"strings"
	"time"

	"github.com/spec-kit/facility-tickets/internal/auth"
	"github.com/spec-kit/facility-tickets/internal/domain"
	"github.com/spec-kit/facility-tickets/internal/routing"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

func applyClaim(t *domain.Ticket, actor *domain.Actor, c Claim, now time.Time) (domain.ActivityAction, map[string]any, map[string]any, error) {
	if err := auth.Authorize(actor, t, auth.CapClaim).Err(); err != nil {
		return "", nil, nil, err
	}
	if t.AssignedTo != nil {
		if *t.AssignedTo == actor.ID {
			return "", nil, nil, apperrors.NewConflict("you already hold this ticket", map[string]any{"reason": "already_assigned"})
		}
		return "", nil, nil, apperrors.NewConflict("ticket was claimed by another resolver", map[string]any{"reason": "already_assigned"})
	}
	if err := routing.CanSelfClaim(t, c.Group, actor.ID, c.Stat).Err(); err != nil {
		return "", nil, nil, err
	}
	from := t.Status
	assignee := actor.ID
	t.AssignedTo = &assignee
	enter(t, domain.TicketStatusAssigned, now)
	return domain.ActionTicketClaimed,
		map[string]any{"status": from, "assigned_to": nil},
		map[string]any{"status": t.Status, "assigned_to": assignee},
		nil
}

func applyReassign(t *domain.Ticket, actor *domain.Actor, c Reassign, now time.Time) (domain.ActivityAction, map[string]any, map[string]any, error) {
	if err := auth.Authorize(actor, t, auth.CapAssign).Err(); err != nil {
		return "", nil, nil, err
	}
	if t.Status.Terminal() {
		return "", nil, nil, apperrors.NewInvalidTransition("resolved or closed tickets cannot be reassigned", map[string]any{"status": t.Status})
	}
	from := t.Status
	previous := deref(t.AssignedTo)

	if c.To == nil {
		if t.AssignedTo == nil {
			return "", nil, nil, nil
		}
		if from != domain.TicketStatusAssigned {
			return "", nil, nil, apperrors.NewInvalidTransition("tickets with work under way cannot be unassigned", map[string]any{"status": from})
		}
		t.AssignedTo = nil
		enter(t, domain.TicketStatusWaitlist, now)
		return domain.ActionTicketUnassigned,
			map[string]any{"status": from, "assigned_to": previous},
			map[string]any{"status": t.Status, "assigned_to": nil},
			nil
	}

	to := strings.TrimSpace(*c.To)
	if to == "" {
		return "", nil, nil, apperrors.NewValidationError("assignee required", nil)
	}
	if t.IsAssignedTo(to) {
		return "", nil, nil, nil
	}

	action := domain.ActionTicketReassigned
	t.AssignedTo = &to
	if from == domain.TicketStatusOpen || from == domain.TicketStatusWaitlist {
		action = domain.ActionTicketAssigned
		enter(t, domain.TicketStatusAssigned, now)
	}
	newVal := map[string]any{"status": t.Status, "assigned_to": to}
	if c.Auto {
		newVal["auto"] = true
	} else {
		newVal["override"] = true
	}
	return action, map[string]any{"status": from, "assigned_to": previous}, newVal, nil
}
