// Package routing decides who may receive a ticket.
package routing

import (
	"github.com/spec-kit/facility-tickets/internal/domain"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// Reason explains a failed self-claim gate.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonNotClaimable         Reason = "not_claimable"
	ReasonManualAssignRequired Reason = "manual_assign_required"
	ReasonSkillMismatch        Reason = "skill_mismatch"
)

// Decision is the result of CanSelfClaim.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err converts a denied decision into its specific DomainError.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonNone:
		return nil
	case ReasonNotClaimable:
		return apperrors.NewNotClaimable("ticket is not waiting for a resolver")
	case ReasonManualAssignRequired:
		return apperrors.NewManualAssignRequired("tickets in this skill group are assigned by an admin")
	default:
		return apperrors.NewSkillMismatch("you are not an available resolver for this skill group")
	}
}

// CanSelfClaim evaluates the three self-claim gates. stat is the actor's row for
// the ticket's property and skill group, or nil when none exists.
func CanSelfClaim(ticket *domain.Ticket, group *domain.SkillGroup, actorID string, stat *domain.ResolverStat) Decision {
	if ticket.AssignedTo != nil ||
		(ticket.Status != domain.TicketStatusOpen && ticket.Status != domain.TicketStatusWaitlist) {
		return Decision{Reason: ReasonNotClaimable}
	}
	if group != nil && group.IsManualAssign {
		return Decision{Reason: ReasonManualAssignRequired}
	}
	if !stat.Eligible() ||
		stat.UserID != actorID ||
		stat.PropertyID != ticket.PropertyID ||
		stat.SkillGroupID != ticket.SkillGroupID {
		return Decision{Reason: ReasonSkillMismatch}
	}
	return Decision{Allowed: true}
}
