package routing

import (
	"testing"

	"github.com/spec-kit/facility-tickets/internal/domain"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

func openTicket() *domain.Ticket {
	return &domain.Ticket{ID: "tk-1", PropertyID: "prop-1", SkillGroupID: "sg-1", Status: domain.TicketStatusOpen}
}

func stat(userID string) *domain.ResolverStat {
	return &domain.ResolverStat{UserID: userID, PropertyID: "prop-1", SkillGroupID: "sg-1", Active: true, Available: true}
}

func TestCanSelfClaim(t *testing.T) {
	assigned := openTicket()
	assigned.AssignedTo = new(string)
	*assigned.AssignedTo = "u9"
	blocked := openTicket()
	blocked.Status = domain.TicketStatusBlocked
	waitlisted := openTicket()
	waitlisted.Status = domain.TicketStatusWaitlist
	inactive := stat("u1")
	inactive.Active = false
	otherProperty := stat("u1")
	otherProperty.PropertyID = "prop-2"

	group := &domain.SkillGroup{ID: "sg-1"}
	manual := &domain.SkillGroup{ID: "sg-1", IsManualAssign: true}

	tests := []struct {
		name   string
		ticket *domain.Ticket
		group  *domain.SkillGroup
		stat   *domain.ResolverStat
		reason Reason
	}{
		{"open and eligible", openTicket(), group, stat("u1"), ReasonNone},
		{"waitlisted and eligible", waitlisted, group, stat("u1"), ReasonNone},
		{"already assigned", assigned, group, stat("u1"), ReasonNotClaimable},
		{"blocked", blocked, group, stat("u1"), ReasonNotClaimable},
		{"manual group", openTicket(), manual, stat("u1"), ReasonManualAssignRequired},
		{"no stat row", openTicket(), group, nil, ReasonSkillMismatch},
		{"inactive row", openTicket(), group, inactive, ReasonSkillMismatch},
		{"row for another user", openTicket(), group, stat("u2"), ReasonSkillMismatch},
		{"row for another property", openTicket(), group, otherProperty, ReasonSkillMismatch},
		{"missing group still checks skills", openTicket(), nil, stat("u1"), ReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanSelfClaim(tt.ticket, tt.group, "u1", tt.stat)
			if d.Reason != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, d.Reason)
			}
			if d.Allowed != (tt.reason == ReasonNone) {
				t.Errorf("expected allowed=%v", tt.reason == ReasonNone)
			}
		})
	}
}

func TestDecisionErr(t *testing.T) {
	tests := map[Reason]string{
		ReasonNotClaimable:         apperrors.CodeNotClaimable,
		ReasonManualAssignRequired: apperrors.CodeManualAssignRequired,
		ReasonSkillMismatch:        apperrors.CodeSkillMismatch,
	}
	for reason, code := range tests {
		if err := (Decision{Reason: reason}).Err(); !apperrors.HasCode(err, code) {
			t.Errorf("%s: expected %s, got %v", reason, code, err)
		}
	}
	if err := (Decision{Allowed: true}).Err(); err != nil {
		t.Errorf("expected nil for allowed decision, got %v", err)
	}
}

func TestPick_TieBreaks(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
		want       string
	}{
		{
			name: "fewest open tickets",
			candidates: []Candidate{
				{UserID: "a", OpenTickets: 3, AvgResolutionMinutes: 10},
				{UserID: "b", OpenTickets: 1, AvgResolutionMinutes: 90},
			},
			want: "b",
		},
		{
			name: "then fastest average",
			candidates: []Candidate{
				{UserID: "a", OpenTickets: 1, AvgResolutionMinutes: 40},
				{UserID: "b", OpenTickets: 1, AvgResolutionMinutes: 20},
			},
			want: "b",
		},
		{
			name: "then lowest id",
			candidates: []Candidate{
				{UserID: "c", OpenTickets: 0, AvgResolutionMinutes: 0},
				{UserID: "a", OpenTickets: 0, AvgResolutionMinutes: 0},
				{UserID: "b", OpenTickets: 0, AvgResolutionMinutes: 0},
			},
			want: "a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Pick(tt.candidates)
			if !ok || got.UserID != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, got)
			}
		})
	}
}

func TestPick_DeterministicAndNonMutating(t *testing.T) {
	in := []Candidate{{UserID: "z"}, {UserID: "m"}, {UserID: "b"}}
	for i := 0; i < 20; i++ {
		got, _ := Pick(in)
		if got.UserID != "b" {
			t.Fatalf("run %d: expected b, got %s", i, got.UserID)
		}
	}
	if in[0].UserID != "z" {
		t.Error("expected input order to be preserved")
	}
	if _, ok := Pick(nil); ok {
		t.Error("expected no pick from an empty list")
	}
}

func TestCandidates(t *testing.T) {
	unavailable := *stat("c")
	unavailable.Available = false
	stats := []domain.ResolverStat{*stat("a"), *stat("b"), unavailable, *stat("a")}
	got := Candidates(stats, map[string]int{"a": 2})
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].UserID != "a" || got[0].OpenTickets != 2 || got[1].OpenTickets != 0 {
		t.Errorf("unexpected candidates %+v", got)
	}
}
