package workflow

import (
	"testing"

	"github.com/spec-kit/facility-tickets/internal/domain"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

func claimable(status domain.TicketStatus) *domain.Ticket {
	tk := newTicket(status)
	tk.AssignedTo = nil
	tk.AssignedAt = nil
	return tk
}

func eligibleStat(userID string) *domain.ResolverStat {
	return &domain.ResolverStat{UserID: userID, PropertyID: "prop-1", SkillGroupID: "sg-1", Active: true, Available: true}
}

func TestClaim_FromOpenAndWaitlist(t *testing.T) {
	for _, status := range []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusWaitlist} {
		out := mustApply(t, claimable(status), resolver, Claim{Group: &domain.SkillGroup{ID: "sg-1"}, Stat: eligibleStat(resolver.ID)}, t0)
		if out.Ticket.Status != domain.TicketStatusAssigned || !out.Ticket.IsAssignedTo(resolver.ID) {
			t.Errorf("%s: expected assigned to %s, got %s", status, resolver.ID, out.Ticket.Status)
		}
		if out.Record.Action != domain.ActionTicketClaimed {
			t.Errorf("%s: expected ticket_claimed, got %s", status, out.Record.Action)
		}
	}
}

func TestClaim_Gates(t *testing.T) {
	manual := &domain.SkillGroup{ID: "sg-1", IsManualAssign: true}
	unavailable := eligibleStat(resolver.ID)
	unavailable.Available = false
	wrongGroup := eligibleStat(resolver.ID)
	wrongGroup.SkillGroupID = "sg-2"

	tests := []struct {
		name   string
		ticket *domain.Ticket
		actor  *domain.Actor
		claim  Claim
		code   string
	}{
		{"tenant cannot claim", claimable(domain.TicketStatusOpen), owner, Claim{Stat: eligibleStat(owner.ID)}, apperrors.CodeForbidden},
		{"already held by another resolver", newTicket(domain.TicketStatusAssigned), other, Claim{Stat: eligibleStat(other.ID)}, apperrors.CodeConflict},
		{"already held by the caller", newTicket(domain.TicketStatusAssigned), resolver, Claim{Stat: eligibleStat(resolver.ID)}, apperrors.CodeConflict},
		{"resolved ticket", claimable(domain.TicketStatusResolved), resolver, Claim{Stat: eligibleStat(resolver.ID)}, apperrors.CodeNotClaimable},
		{"manual group", claimable(domain.TicketStatusOpen), resolver, Claim{Group: manual, Stat: eligibleStat(resolver.ID)}, apperrors.CodeManualAssignRequired},
		{"no stat row", claimable(domain.TicketStatusOpen), resolver, Claim{}, apperrors.CodeSkillMismatch},
		{"unavailable", claimable(domain.TicketStatusOpen), resolver, Claim{Stat: unavailable}, apperrors.CodeSkillMismatch},
		{"other skill group", claimable(domain.TicketStatusOpen), resolver, Claim{Stat: wrongGroup}, apperrors.CodeSkillMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.ticket, tt.actor, tt.claim, t0)
			expectCode(t, err, tt.code)
		})
	}
}

func TestClaim_ConflictReason(t *testing.T) {
	_, err := Apply(newTicket(domain.TicketStatusAssigned), other, Claim{Stat: eligibleStat(other.ID)}, t0)
	de := apperrors.ToDomainError(err)
	if de.Details["reason"] != "already_assigned" {
		t.Errorf("expected reason already_assigned, got %v", de.Details["reason"])
	}
}

func TestReassign(t *testing.T) {
	t.Run("admin only", func(t *testing.T) {
		_, err := Apply(newTicket(domain.TicketStatusAssigned), resolver, Reassign{To: strp(other.ID)}, t0)
		expectCode(t, err, apperrors.CodeForbidden)
	})
	t.Run("same resolver is a no-op", func(t *testing.T) {
		out := mustApply(t, newTicket(domain.TicketStatusAssigned), admin, Reassign{To: strp(resolver.ID)}, t0)
		if out.Changed() {
			t.Error("expected no record")
		}
	})
	t.Run("override is recorded", func(t *testing.T) {
		out := mustApply(t, newTicket(domain.TicketStatusBlocked), admin, Reassign{To: strp(other.ID)}, t0)
		if out.Record.Action != domain.ActionTicketReassigned {
			t.Fatalf("expected ticket_reassigned, got %s", out.Record.Action)
		}
		if out.Record.NewValue["override"] != true {
			t.Error("expected override flag")
		}
		if out.Record.OldValue["assigned_to"] != resolver.ID {
			t.Errorf("expected previous assignee, got %v", out.Record.OldValue["assigned_to"])
		}
		if out.Ticket.Status != domain.TicketStatusBlocked {
			t.Errorf("expected status kept, got %s", out.Ticket.Status)
		}
	})
	t.Run("auto assignment is tagged", func(t *testing.T) {
		out := mustApply(t, claimable(domain.TicketStatusOpen), domain.SystemActor(), Reassign{To: strp(resolver.ID), Auto: true}, t0)
		if out.Record.Action != domain.ActionTicketAssigned || out.Record.NewValue["auto"] != true {
			t.Errorf("expected auto ticket_assigned, got %+v", out.Record)
		}
	})
	t.Run("unassign returns to waitlist", func(t *testing.T) {
		out := mustApply(t, newTicket(domain.TicketStatusAssigned), admin, Reassign{}, t0)
		if out.Ticket.Status != domain.TicketStatusWaitlist || out.Ticket.AssignedTo != nil {
			t.Errorf("expected unassigned waitlist ticket, got %s", out.Ticket.Status)
		}
		if out.Record.Action != domain.ActionTicketUnassigned {
			t.Errorf("expected ticket_unassigned, got %s", out.Record.Action)
		}
	})
	t.Run("cannot unassign work under way", func(t *testing.T) {
		_, err := Apply(newTicket(domain.TicketStatusInProgress), admin, Reassign{}, t0)
		expectCode(t, err, apperrors.CodeInvalidTransition)
	})
	t.Run("terminal tickets are frozen", func(t *testing.T) {
		_, err := Apply(newTicket(domain.TicketStatusResolved), admin, Reassign{To: strp(other.ID)}, t0)
		expectCode(t, err, apperrors.CodeInvalidTransition)
	})
	t.Run("blank assignee", func(t *testing.T) {
		_, err := Apply(newTicket(domain.TicketStatusAssigned), admin, Reassign{To: strp("  ")}, t0)
		expectCode(t, err, apperrors.CodeValidation)
	})
}
