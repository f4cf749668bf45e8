package auth

import (
	"github.com/spec-kit/facility-tickets/internal/domain"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// Capability names a permission checked against a ticket.
type Capability string

const (
	CapView        Capability = "view"
	CapParticipate Capability = "participate"
	CapEditContent Capability = "edit_content"
	CapWork        Capability = "work"
	CapAssign      Capability = "assign"
	CapManageSLA   Capability = "manage_sla"
	CapAttachPhoto Capability = "attach_photo"
	CapForceClose  Capability = "force_close"
	CapDelete      Capability = "delete"
	CapClaim       Capability = "claim"
)

// Decision is the tagged result of Authorize.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

// Err converts a denial into a DomainError; nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Code == apperrors.CodeUnauthorized {
		return apperrors.NewUnauthorized(d.Reason)
	}
	return apperrors.NewForbidden(d.Reason)
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Code: apperrors.CodeForbidden, Reason: reason}
}

// Authorize is the single policy function every mutation entry point uses.
func Authorize(actor *domain.Actor, ticket *domain.Ticket, capability Capability) Decision {
	if !actor.Authenticated() {
		return Decision{Code: apperrors.CodeUnauthorized, Reason: "authentication required"}
	}
	isAdmin := actor.IsAdminFor(ticket.PropertyID)
	isOwner := ticket.RaisedBy == actor.ID
	isResolver := ticket.IsAssignedTo(actor.ID)

	switch capability {
	case CapClaim:
		if isAdmin || actor.IsResolverRole() {
			return allow()
		}
		return deny("only resolvers can claim tickets")
	case CapView:
		if isAdmin || isOwner || isResolver {
			return allow()
		}
		if actor.IsResolverRole() && actor.MemberOf(ticket.PropertyID) {
			return allow()
		}
		return deny("you do not have access to this ticket")
	}

	if !isAdmin && !isOwner && !isResolver {
		return deny("only the ticket owner, its assigned resolver or an admin can change this ticket")
	}

	switch capability {
	case CapParticipate:
		return allow()
	case CapEditContent:
		if isAdmin || isOwner {
			return allow()
		}
		return deny("only the ticket owner or an admin can edit the title or description")
	case CapWork:
		if isAdmin || isResolver {
			return allow()
		}
		return deny("only the assigned resolver or an admin can work this ticket")
	case CapAssign:
		if isAdmin {
			return allow()
		}
		return deny("only admins can assign tickets")
	case CapManageSLA:
		if isAdmin {
			return allow()
		}
		return deny("only admins can pause or resume the SLA")
	case CapForceClose:
		if isAdmin {
			return allow()
		}
		return deny("only admins can force close tickets")
	case CapAttachPhoto:
		if isAdmin || isResolver {
			return allow()
		}
		if isOwner && ticket.AssignedTo == nil {
			return allow()
		}
		return deny("photos can only be added by the assigned resolver or an admin once the ticket is assigned")
	case CapDelete:
		return authorizeDelete(actor, isAdmin, isOwner, true)
	}
	return deny("unknown capability")
}

// AuthorizeDelete is the CapDelete check with the technical skill gate made
// optional. Admins and resolver-role owners pass either way.
func AuthorizeDelete(actor *domain.Actor, ticket *domain.Ticket, requireTechnical bool) Decision {
	if !actor.Authenticated() {
		return Decision{Code: apperrors.CodeUnauthorized, Reason: "authentication required"}
	}
	return authorizeDelete(actor, actor.IsAdminFor(ticket.PropertyID), ticket.RaisedBy == actor.ID, requireTechnical)
}

func authorizeDelete(actor *domain.Actor, isAdmin, isOwner, requireTechnical bool) Decision {
	if isAdmin {
		return allow()
	}
	if !isOwner {
		return deny("only the ticket owner or an admin can delete tickets")
	}
	if !actor.IsResolverRole() {
		return deny("only staff can delete the tickets they raised")
	}
	if requireTechnical && !actor.HasSkill(domain.SkillTechnical) {
		return deny("Only technical staff can delete tickets")
	}
	return allow()
}
