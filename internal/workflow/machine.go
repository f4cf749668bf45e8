package workflow

import (
	"time"

	"github.com/spec-kit/facility-tickets/internal/auth"
	"github.com/spec-kit/facility-tickets/internal/domain"
	"github.com/spec-kit/facility-tickets/internal/sla"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// Outcome is the result of an accepted command.
type Outcome struct {
	Ticket *domain.Ticket
	// Record is nil when the command was an idempotent no-op.
	Record *domain.ActivityRecord
	// Breached is set when this transition latched SLABreached.
	Breached bool
	Deleted  bool
}

// Changed reports whether the ticket must be persisted.
func (o *Outcome) Changed() bool {
	return o.Record != nil || o.Breached
}

// Apply runs cmd against a copy of current on behalf of actor.
func Apply(current *domain.Ticket, actor *domain.Actor, cmd Command, now time.Time) (*Outcome, error) {
	if current == nil {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	if !actor.Authenticated() {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if _, isClaim := cmd.(Claim); !isClaim {
		if err := auth.Authorize(actor, current, auth.CapParticipate).Err(); err != nil {
			return nil, err
		}
	}

	t := current.Clone()
	out := &Outcome{Ticket: t}
	if _, isDelete := cmd.(Delete); !isDelete {
		out.Breached = sla.Evaluate(t, now)
	}

	var (
		action         domain.ActivityAction
		oldVal, newVal map[string]any
		err            error
	)
	switch c := cmd.(type) {
	case Claim:
		action, oldVal, newVal, err = applyClaim(t, actor, c, now)
	case Reassign:
		action, oldVal, newVal, err = applyReassign(t, actor, c, now)
	case ChangeStatus:
		action, oldVal, newVal, err = applyChangeStatus(t, actor, c, now)
	case ForceClose:
		action, oldVal, newVal, err = applyForceClose(t, actor, c, now)
	case EditContent:
		action, oldVal, newVal, err = applyEditContent(t, actor, c)
	case AttachPhoto:
		action, oldVal, newVal, err = applyAttachPhoto(t, actor, c)
	case PauseSLA:
		action, oldVal, newVal, err = applyPauseSLA(t, actor, c, now)
	case ResumeSLA:
		action, oldVal, newVal, err = applyResumeSLA(t, actor, now)
	case PauseWork:
		action, oldVal, newVal, err = applyPauseWork(t, actor, c)
	case ResumeWork:
		action, oldVal, newVal, err = applyResumeWork(t, actor)
	case EvaluateSLA:
	case Delete:
		if err := auth.AuthorizeDelete(actor, t, !c.AnySkill).Err(); err != nil {
			return nil, err
		}
		out.Deleted = true
		action = domain.ActionTicketDeleted
		oldVal = map[string]any{"status": t.Status, "number": t.Number}
	default:
		return nil, apperrors.NewValidationError("unknown command", nil)
	}
	if err != nil {
		return nil, err
	}

	if t.Status.Terminal() {
		sla.Resume(t, now)
	}
	if action == "" && !out.Breached {
		return out, nil
	}
	if action == "" {
		action = domain.ActionSLABreached
		newVal = map[string]any{"sla_breached": true}
	} else if out.Breached {
		if newVal == nil {
			newVal = map[string]any{}
		}
		newVal["sla_breached"] = true
	}
	t.UpdatedAt = now
	out.Record = &domain.ActivityRecord{
		TicketID:  t.ID,
		ActorID:   actor.ID,
		Action:    action,
		OldValue:  oldVal,
		NewValue:  newVal,
		CreatedAt: now,
	}
	return out, nil
}

// enter moves t into status, stamping the first-entry timestamp.
func enter(t *domain.Ticket, status domain.TicketStatus, now time.Time) {
	t.Status = status
	switch status {
	case domain.TicketStatusAssigned:
		stampOnce(&t.AssignedAt, now)
	case domain.TicketStatusInProgress:
		stampOnce(&t.WorkStartedAt, now)
	case domain.TicketStatusResolved:
		stampOnce(&t.ResolvedAt, now)
		t.WorkPaused = false
		t.WorkPauseReason = ""
	case domain.TicketStatusClosed:
		stampOnce(&t.ClosedAt, now)
		t.WorkPaused = false
		t.WorkPauseReason = ""
	}
}

func stampOnce(field **time.Time, now time.Time) {
	if *field != nil {
		return
	}
	at := now
	*field = &at
}

func deref(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
