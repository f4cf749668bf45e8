package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/spec-kit/facility-tickets/internal/domain"
	"github.com/spec-kit/facility-tickets/internal/events"
	"github.com/spec-kit/facility-tickets/internal/repository"
	"github.com/spec-kit/facility-tickets/internal/repository/memory"
	"github.com/spec-kit/facility-tickets/internal/workflow"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

func TestCreateTicket_StampsDeadlineAndRecord(t *testing.T) {
	f := newFixture(t, false)
	tk := f.create(t, f.group)

	if tk.Number != 1 || tk.Key() != "T-001" {
		t.Errorf("expected T-001, got %s", tk.Key())
	}
	if tk.Status != domain.TicketStatusOpen || tk.RaisedBy != tenantActor.ID {
		t.Errorf("unexpected ticket %+v", tk)
	}
	if want := f.clock.Now().Add(8 * time.Hour); !tk.SLADeadline.Equal(want) {
		t.Errorf("expected high priority deadline %v, got %v", want, tk.SLADeadline)
	}
	if got := f.actions(t, tk.ID); !reflect.DeepEqual(got, []domain.ActivityAction{domain.ActionTicketCreated}) {
		t.Errorf("expected one ticket_created record, got %v", got)
	}
	if got := f.recorder.types(); len(got) != 1 || got[0] != events.EventTicketCreated {
		t.Errorf("expected ticket_created event, got %v", got)
	}
}

func TestCreateTicket_Validation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.tickets.CreateTicket(ctx, tenantActor, TicketCreateInput{PropertyID: propertyID, Priority: "someday"})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
	details := apperrors.ToDomainError(err).Details
	for _, field := range []string{"category", "skill_group_id", "title", "priority"} {
		if _, ok := details[field]; !ok {
			t.Errorf("expected detail for %s", field)
		}
	}

	_, err = f.tickets.CreateTicket(ctx, tenantActor, TicketCreateInput{PropertyID: propertyID, Category: "x", SkillGroupID: "nope", Title: "t"})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("expected unknown skill group to fail validation, got %v", err)
	}

	outsider := &domain.Actor{ID: "tenant-9", Roles: []domain.Role{domain.RoleTenant}, PropertyMemberships: []string{"prop-2"}}
	_, err = f.tickets.CreateTicket(ctx, outsider, TicketCreateInput{PropertyID: propertyID, Category: "x", SkillGroupID: f.group.ID, Title: "t"})
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}

	_, err = f.tickets.CreateTicket(ctx, nil, TicketCreateInput{})
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestCreateTicket_AutoRoutesToLeastLoaded(t *testing.T) {
	f := newFixture(t, true)
	f.addResolver(t, staffB.ID, f.group)
	f.addResolver(t, staffA.ID, f.group)

	first := f.create(t, f.group)
	if !first.IsAssignedTo(staffA.ID) || first.Status != domain.TicketStatusAssigned {
		t.Fatalf("expected first ticket on staff-a by id tie-break, got %v %s", first.AssignedTo, first.Status)
	}
	second := f.create(t, f.group)
	if !second.IsAssignedTo(staffB.ID) {
		t.Fatalf("expected second ticket on the idle staff-b, got %v", second.AssignedTo)
	}

	records, _ := f.store.Activity().ListByTicket(context.Background(), first.ID, 0, 0)
	if len(records) != 2 || records[1].Action != domain.ActionTicketAssigned || records[1].NewValue["auto"] != true {
		t.Errorf("expected created + auto assigned records, got %+v", records)
	}
	if records[1].ActorID != domain.SystemActorID {
		t.Errorf("expected system actor, got %s", records[1].ActorID)
	}
}

func TestCreateTicket_WaitlistWhenNobodyCanTakeIt(t *testing.T) {
	f := newFixture(t, true)
	f.addResolver(t, staffA.ID, f.manualGroup)

	manual := f.create(t, f.manualGroup)
	if manual.Status != domain.TicketStatusWaitlist || manual.AssignedTo != nil {
		t.Errorf("expected manual group ticket on the waitlist, got %s", manual.Status)
	}

	empty := f.create(t, f.group)
	if empty.Status != domain.TicketStatusWaitlist {
		t.Errorf("expected waitlist with no eligible resolver, got %s", empty.Status)
	}
	if got := f.actions(t, empty.ID); !reflect.DeepEqual(got, []domain.ActivityAction{domain.ActionTicketCreated, domain.ActionStatusChanged}) {
		t.Errorf("unexpected records %v", got)
	}
}

func TestCreateTicket_RoutingFailureKeepsTicket(t *testing.T) {
	f := newFixture(t, true)
	f.addResolver(t, staffA.ID, f.group)
	f.store.FailOn(memory.OpTicketUpdate, errors.New("disk full"))

	tk := f.create(t, f.group)
	if tk.Status != domain.TicketStatusOpen {
		t.Errorf("expected the ticket to stay open, got %s", tk.Status)
	}
	if _, err := f.store.Tickets().GetByID(context.Background(), tk.ID); err != nil {
		t.Errorf("expected ticket persisted, got %v", err)
	}
}

func TestExecute_LifecycleAndEvents(t *testing.T) {
	f := newFixture(t, false)
	f.addResolver(t, staffA.ID, f.group)
	ctx := context.Background()
	tk := f.create(t, f.group)

	if _, err := f.assignments.Claim(ctx, staffA, tk.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	f.clock.Advance(10 * time.Minute)
	if _, err := f.tickets.Execute(ctx, staffA, tk.ID, workflow.ChangeStatus{To: domain.TicketStatusInProgress}); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(time.Hour)
	done, err := f.tickets.Execute(ctx, staffA, tk.ID, workflow.ChangeStatus{To: domain.TicketStatusResolved, Comment: "fixed"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if done.Version != 4 {
		t.Errorf("expected version 4 after three writes, got %d", done.Version)
	}

	want := []domain.ActivityAction{domain.ActionTicketCreated, domain.ActionTicketClaimed, domain.ActionStatusChanged, domain.ActionStatusChanged}
	if got := f.actions(t, tk.ID); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	wantEvents := []events.EventType{events.EventTicketCreated, events.EventTicketAssigned, events.EventTicketStatusChanged, events.EventTicketStatusChanged}
	if got := f.recorder.types(); !reflect.DeepEqual(got, wantEvents) {
		t.Errorf("expected events %v, got %v", wantEvents, got)
	}

	stat, _ := f.store.ResolverStats().Get(ctx, staffA.ID, propertyID, f.group.ID)
	if stat.ResolvedCount != 1 || stat.AvgResolutionMinutes != 60 {
		t.Errorf("expected one 60 minute resolution, got %d / %v", stat.ResolvedCount, stat.AvgResolutionMinutes)
	}

	notes, _ := f.store.Notifications().ListByRecipient(ctx, tenantActor.ID, 0)
	if len(notes) != 3 {
		t.Errorf("expected the owner to get 3 notifications, got %d", len(notes))
	}
	mine, _ := f.store.Notifications().ListByRecipient(ctx, staffA.ID, 0)
	if len(mine) != 0 {
		t.Errorf("expected the acting resolver to get none, got %d", len(mine))
	}
}

func TestExecute_NoOpWritesNothing(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	tk := f.create(t, f.group)

	if _, err := f.tickets.Execute(ctx, adminActor, tk.ID, workflow.PauseSLA{Reason: "tenant away"}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	again, err := f.tickets.Execute(ctx, adminActor, tk.ID, workflow.PauseSLA{Reason: "tenant away"})
	if err != nil {
		t.Fatalf("second pause: %v", err)
	}
	if again.Version != 2 {
		t.Errorf("expected no version bump on no-op, got %d", again.Version)
	}
	if got := len(f.actions(t, tk.ID)); got != 2 {
		t.Errorf("expected 2 records, got %d", got)
	}
}

func TestExecute_ActivityFailureRollsBack(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	tk := f.create(t, f.group)
	f.store.FailOn(memory.OpActivityCreate, errors.New("audit down"))

	_, err := f.tickets.Execute(ctx, tenantActor, tk.ID, workflow.EditContent{Title: strp("Burst pipe in kitchen")})
	if !apperrors.HasCode(err, apperrors.CodeInternal) {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
	got, _ := f.store.Tickets().GetByID(ctx, tk.ID)
	if got.Title != "Burst pipe" || got.Version != 1 {
		t.Errorf("expected ticket unchanged, got %q v%d", got.Title, got.Version)
	}
}

func TestExecuteAt_StaleVersion(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	tk := f.create(t, f.group)

	if _, err := f.tickets.ExecuteAt(ctx, tenantActor, tk.ID, workflow.EditContent{Title: strp("v2")}, int64p(1)); err != nil {
		t.Fatalf("first edit: %v", err)
	}
	_, err := f.tickets.ExecuteAt(ctx, tenantActor, tk.ID, workflow.EditContent{Title: strp("v3")}, int64p(1))
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if reason := apperrors.ToDomainError(err).Details["reason"]; reason != "stale_version" {
		t.Errorf("expected stale_version, got %v", reason)
	}
}

func TestExecute_RejectsSideChannelCommands(t *testing.T) {
	f := newFixture(t, false)
	tk := f.create(t, f.group)
	for _, cmd := range []workflow.Command{workflow.Claim{}, workflow.Delete{}} {
		if _, err := f.tickets.Execute(context.Background(), adminActor, tk.ID, cmd); !apperrors.HasCode(err, apperrors.CodeValidation) {
			t.Errorf("%s: expected VALIDATION_FAILED, got %v", cmd.Name(), err)
		}
	}
	if _, err := f.tickets.Execute(context.Background(), adminActor, "missing", workflow.ResumeSLA{}); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestDeleteTicket_Cascade(t *testing.T) {
	f := newFixture(t, false)
	f.addResolver(t, staffA.ID, f.group)
	ctx := context.Background()
	tk := f.create(t, f.group)
	if _, err := f.assignments.Claim(ctx, staffA, tk.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if notes, _ := f.store.Notifications().ListByRecipient(ctx, tenantActor.ID, 0); len(notes) == 0 {
		t.Fatal("expected notifications before delete")
	}

	if err := f.tickets.DeleteTicket(ctx, adminActor, tk.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.store.Tickets().GetByID(ctx, tk.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ticket gone, got %v", err)
	}
	if got := f.actions(t, tk.ID); len(got) != 0 {
		t.Errorf("expected activity removed, got %v", got)
	}
	if notes, _ := f.store.Notifications().ListByRecipient(ctx, tenantActor.ID, 0); len(notes) != 0 {
		t.Errorf("expected notifications removed, got %d", len(notes))
	}
	feed, _ := f.store.PropertyFeed().ListByOrganization(ctx, orgID, 0)
	if len(feed) != 1 || feed[0].Action != domain.ActionTicketDeleted || feed[0].Details["key"] != "T-001" {
		t.Errorf("expected one ticket_deleted feed entry, got %+v", feed)
	}
	types := f.recorder.types()
	if types[len(types)-1] != events.EventTicketDeleted {
		t.Errorf("expected ticket_deleted event last, got %v", types)
	}
}

func TestDeleteTicket_Guards(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	nonTechnical := &domain.Actor{ID: "staff-owner", Roles: []domain.Role{domain.RoleStaff}, PropertyMemberships: []string{propertyID}}
	technical := &domain.Actor{ID: "staff-owner", Roles: []domain.Role{domain.RoleStaff}, PropertyMemberships: []string{propertyID}, Skills: []string{domain.SkillTechnical}}

	tk, err := f.tickets.CreateTicket(ctx, nonTechnical, TicketCreateInput{PropertyID: propertyID, Category: "plumbing", SkillGroupID: f.group.ID, Title: "Drip"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = f.tickets.DeleteTicket(ctx, nonTechnical, tk.ID)
	if !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
	if msg := apperrors.ToDomainError(err).Message; msg != "Only technical staff can delete tickets" {
		t.Errorf("unexpected message %q", msg)
	}
	if err := f.tickets.DeleteTicket(ctx, tenantActor, tk.ID); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("expected non-owner tenant to be forbidden, got %v", err)
	}
	if err := f.tickets.DeleteTicket(ctx, technical, tk.ID); err != nil {
		t.Fatalf("expected technical owner to delete, got %v", err)
	}
	if err := f.tickets.DeleteTicket(ctx, adminActor, tk.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND on second delete, got %v", err)
	}
}

func TestDeleteTicket_SkillGateCanBeLifted(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	relaxed := NewTicketService(TicketDependencies{Store: f.store, DeleteAnySkill: true, Clock: f.clock.Now})
	for _, role := range []domain.Role{domain.RoleStaff, domain.RoleMST} {
		owner := &domain.Actor{ID: "owner-" + string(role), Roles: []domain.Role{role}, PropertyMemberships: []string{propertyID}}
		tk, err := f.tickets.CreateTicket(ctx, owner, TicketCreateInput{PropertyID: propertyID, Category: "plumbing", SkillGroupID: f.group.ID, Title: "Drip"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := relaxed.DeleteTicket(ctx, tenantActor, tk.ID); !apperrors.HasCode(err, apperrors.CodeForbidden) {
			t.Errorf("expected non-owner tenant to stay forbidden, got %v", err)
		}
		if err := relaxed.DeleteTicket(ctx, owner, tk.ID); err != nil {
			t.Errorf("expected %s owner without the skill to delete, got %v", role, err)
		}
	}
}

func TestDeleteTicket_FeedFailureIsTolerated(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	tk := f.create(t, f.group)
	f.store.FailOn(memory.OpFeedAppend, errors.New("feed down"))

	if err := f.tickets.DeleteTicket(ctx, adminActor, tk.ID); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if _, err := f.store.Tickets().GetByID(ctx, tk.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ticket gone, got %v", err)
	}
	if got := f.metrics.OperationCount("effect:property_feed", apperrors.CodeDependencyFailure); got != 1 {
		t.Errorf("expected one recorded dependency failure, got %d", got)
	}
}

func TestResolverLoadFollowsAssignments(t *testing.T) {
	f := newFixture(t, false)
	f.addResolver(t, staffA.ID, f.group)
	f.addResolver(t, staffB.ID, f.group)
	ctx := context.Background()
	load := func(userID string) int {
		t.Helper()
		stat, err := f.store.ResolverStats().Get(ctx, userID, propertyID, f.group.ID)
		if err != nil {
			t.Fatalf("get stat: %v", err)
		}
		return stat.CurrentLoad
	}

	first := f.create(t, f.group)
	second := f.create(t, f.group)
	for _, tk := range []*domain.Ticket{first, second} {
		if _, err := f.assignments.Claim(ctx, staffA, tk.ID); err != nil {
			t.Fatalf("claim: %v", err)
		}
	}
	if got := load(staffA.ID); got != 2 {
		t.Fatalf("expected staff-a load 2, got %d", got)
	}

	if _, err := f.assignments.Reassign(ctx, adminActor, second.ID, strp(staffB.ID), nil); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if a, b := load(staffA.ID), load(staffB.ID); a != 1 || b != 1 {
		t.Errorf("expected loads 1/1 after reassign, got %d/%d", a, b)
	}

	if err := f.tickets.DeleteTicket(ctx, adminActor, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := load(staffA.ID); got != 0 {
		t.Errorf("expected staff-a load 0 after delete, got %d", got)
	}
}

func TestResolverLoadFailureIsTolerated(t *testing.T) {
	f := newFixture(t, false)
	f.addResolver(t, staffA.ID, f.group)
	ctx := context.Background()
	tk := f.create(t, f.group)
	f.store.FailOn(memory.OpStatLoad, errors.New("stats down"))

	if _, err := f.assignments.Claim(ctx, staffA, tk.ID); err != nil {
		t.Fatalf("expected claim to succeed, got %v", err)
	}
	if got := f.metrics.OperationCount("effect:resolver_load", apperrors.CodeDependencyFailure); got != 1 {
		t.Errorf("expected one recorded dependency failure, got %d", got)
	}
}

func TestNotificationFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	tk := f.create(t, f.group)
	f.store.FailOn(memory.OpNotificationCreate, errors.New("mail down"))

	got, err := f.assignments.Reassign(ctx, adminActor, tk.ID, strp(staffB.ID), nil)
	if err != nil {
		t.Fatalf("expected reassign to succeed, got %v", err)
	}
	if !got.IsAssignedTo(staffB.ID) {
		t.Errorf("expected staff-b, got %v", got.AssignedTo)
	}
}

func TestHistoryAndBoard(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	open := f.create(t, f.group)
	closed := f.create(t, f.group)
	if _, err := f.tickets.Execute(ctx, adminActor, closed.ID, workflow.ForceClose{Comment: "duplicate"}); err != nil {
		t.Fatalf("close: %v", err)
	}

	history, err := f.tickets.History(ctx, tenantActor, closed.ID, 0, 0)
	if err != nil || len(history) != 2 || history[1].Action != domain.ActionForceClosed {
		t.Fatalf("expected created + force_closed, got %+v %v", history, err)
	}
	stranger := &domain.Actor{ID: "tenant-2", Roles: []domain.Role{domain.RoleTenant}, PropertyMemberships: []string{propertyID}}
	if _, err := f.tickets.History(ctx, stranger, closed.ID, 0, 0); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}

	board, err := f.tickets.Board(ctx, staffA, propertyID)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(board) != 1 || board[0].ID != open.ID {
		t.Errorf("expected only the live ticket, got %d", len(board))
	}
	if _, err := f.tickets.Board(ctx, tenantActor, propertyID); !apperrors.HasCode(err, apperrors.CodeForbidden) {
		t.Errorf("expected tenants to be denied the board, got %v", err)
	}
}

func TestSweepBreaches(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	late := f.create(t, f.group)
	paused := f.create(t, f.group)
	if _, err := f.tickets.Execute(ctx, adminActor, paused.ID, workflow.PauseSLA{Reason: "access blocked"}); err != nil {
		t.Fatalf("pause: %v", err)
	}

	flipped, err := f.tickets.SweepBreaches(ctx, 1)
	if err != nil || flipped != 0 {
		t.Fatalf("expected nothing to flip yet, got %d %v", flipped, err)
	}

	f.clock.Advance(9 * time.Hour)
	flipped, err = f.tickets.SweepBreaches(ctx, 1)
	if err != nil || flipped != 1 {
		t.Fatalf("expected one breach, got %d %v", flipped, err)
	}
	got, _ := f.store.Tickets().GetByID(ctx, late.ID)
	if !got.SLABreached {
		t.Error("expected the late ticket to be breached")
	}
	actions := f.actions(t, late.ID)
	if actions[len(actions)-1] != domain.ActionSLABreached {
		t.Errorf("expected sla_breached record, got %v", actions)
	}
	if again, _ := f.tickets.SweepBreaches(ctx, 1); again != 0 {
		t.Errorf("expected breach to be latched once, got %d", again)
	}
	if notes, _ := f.store.Notifications().ListByRecipient(ctx, tenantActor.ID, 0); len(notes) != 1 || notes[0].Kind != string(events.EventSLABreached) {
		t.Errorf("expected one breach notification for the owner, got %+v", notes)
	}
}
