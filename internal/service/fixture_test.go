package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/facility-tickets/internal/config"
	"github.com/spec-kit/facility-tickets/internal/domain"
	"github.com/spec-kit/facility-tickets/internal/events"
	"github.com/spec-kit/facility-tickets/internal/observability"
	"github.com/spec-kit/facility-tickets/internal/repository/memory"
	"github.com/spec-kit/facility-tickets/internal/sla"
)

const (
	propertyID = "prop-1"
	orgID      = "org-1"
)

var (
	adminActor  = &domain.Actor{ID: "admin-1", Roles: []domain.Role{domain.RolePropertyAdmin}, PropertyMemberships: []string{propertyID}}
	tenantActor = &domain.Actor{ID: "tenant-1", Roles: []domain.Role{domain.RoleTenant}, PropertyMemberships: []string{propertyID}}
	staffA      = &domain.Actor{ID: "staff-a", Roles: []domain.Role{domain.RoleStaff}, PropertyMemberships: []string{propertyID}}
	staffB      = &domain.Actor{ID: "staff-b", Roles: []domain.Role{domain.RoleStaff}, PropertyMemberships: []string{propertyID}}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store       *memory.Store
	clock       *testClock
	metrics     *observability.Metrics
	recorder    *recorder
	tickets     *TicketService
	assignments *AssignmentService
	group       *domain.SkillGroup
	manualGroup *domain.SkillGroup
}

func newFixture(t *testing.T, autoAssign bool) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	store.AddProperty(propertyID, orgID)
	clock := &testClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(nil)
	rec := &recorder{}
	events.SubscribeAll(dispatcher, rec.handle)

	notifications := NewNotificationService(dispatcher, store.Notifications(), nil, config.NotificationConfig{Enabled: true, BodyPreview: 40})
	notifications.RegisterHandlers()

	assignments := NewAssignmentService(AssignmentDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Clock:      clock.Now,
	})
	tickets := NewTicketService(TicketDependencies{
		Store:       store,
		Policy:      sla.NewPolicy(nil, nil),
		Assignments: assignments,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		AutoAssign:  autoAssign,
		Clock:       clock.Now,
	})

	group := &domain.SkillGroup{PropertyID: propertyID, Code: "plumbing", Name: "Plumbing"}
	manual := &domain.SkillGroup{PropertyID: propertyID, Code: "security", Name: "Security", IsManualAssign: true}
	for _, g := range []*domain.SkillGroup{group, manual} {
		if err := store.SkillGroups().Create(ctx, g); err != nil {
			t.Fatalf("create group: %v", err)
		}
	}

	return &fixture{
		store:       store,
		clock:       clock,
		metrics:     metrics,
		recorder:    rec,
		tickets:     tickets,
		assignments: assignments,
		group:       group,
		manualGroup: manual,
	}
}

func (f *fixture) addResolver(t *testing.T, userID string, group *domain.SkillGroup) {
	t.Helper()
	err := f.store.ResolverStats().Upsert(context.Background(), &domain.ResolverStat{
		UserID:       userID,
		PropertyID:   propertyID,
		SkillGroupID: group.ID,
		Active:       true,
		Available:    true,
	})
	if err != nil {
		t.Fatalf("upsert stat: %v", err)
	}
}

func (f *fixture) create(t *testing.T, group *domain.SkillGroup) *domain.Ticket {
	t.Helper()
	tk, err := f.tickets.CreateTicket(context.Background(), tenantActor, TicketCreateInput{
		PropertyID:   propertyID,
		Category:     "plumbing",
		SkillGroupID: group.ID,
		Priority:     domain.TicketPriorityHigh,
		Title:        "Burst pipe",
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return tk
}

func (f *fixture) actions(t *testing.T, ticketID string) []domain.ActivityAction {
	t.Helper()
	records, err := f.store.Activity().ListByTicket(context.Background(), ticketID, 0, 0)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	out := make([]domain.ActivityAction, 0, len(records))
	for _, r := range records {
		out = append(out, r.Action)
	}
	return out
}

func strp(s string) *string { return &s }

func int64p(v int64) *int64 { return &v }
