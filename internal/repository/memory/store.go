// Package memory provides an in-process repository.Store used by tests and by
// deployments that run without POSTGRES_DSN.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/facility-tickets/internal/domain"
	"github.com/spec-kit/facility-tickets/internal/repository"
)

// Operation names accepted by FailOn.
const (
	OpTicketUpdate       = "tickets.update"
	OpActivityCreate     = "activity.create"
	OpNotificationCreate = "notifications.create"
	OpFeedAppend         = "feed.append"
	OpStatResolution     = "stats.record_resolution"
	OpStatLoad           = "stats.set_load"
)

type state struct {
	tickets       map[string]*domain.Ticket
	activity      []domain.ActivityRecord
	stats         map[string]*domain.ResolverStat
	groups        map[string]*domain.SkillGroup
	notifications []domain.Notification
	properties    map[string]string
	feed          []domain.PropertyActivity
	nextNumber    int64
}

func (s *state) clone() *state {
	cp := &state{
		tickets:       make(map[string]*domain.Ticket, len(s.tickets)),
		activity:      append([]domain.ActivityRecord(nil), s.activity...),
		stats:         make(map[string]*domain.ResolverStat, len(s.stats)),
		groups:        make(map[string]*domain.SkillGroup, len(s.groups)),
		notifications: append([]domain.Notification(nil), s.notifications...),
		properties:    make(map[string]string, len(s.properties)),
		feed:          append([]domain.PropertyActivity(nil), s.feed...),
		nextNumber:    s.nextNumber,
	}
	for k, v := range s.tickets {
		cp.tickets[k] = v.Clone()
	}
	for k, v := range s.stats {
		stat := *v
		cp.stats[k] = &stat
	}
	for k, v := range s.groups {
		group := *v
		cp.groups[k] = &group
	}
	for k, v := range s.properties {
		cp.properties[k] = v
	}
	return cp
}

// Store keeps all rows in memory. InTx holds a single lock for the whole unit
// of work and restores the previous state when fn fails.
type Store struct {
	mu       sync.Mutex
	data     *state
	failures map[string]error
	now      func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		data: &state{
			tickets:    map[string]*domain.Ticket{},
			stats:      map[string]*domain.ResolverStat{},
			groups:     map[string]*domain.SkillGroup{},
			properties: map[string]string{},
		},
		failures: map[string]error{},
		now:      time.Now,
	}
}

// FailOn makes every later call of op return err. A nil err clears the failure.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// AddProperty registers a property under an organization.
func (s *Store) AddProperty(propertyID, organizationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.properties[propertyID] = organizationID
}

// InTx implements repository.Store.
func (s *Store) InTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(view{store: s, locked: true}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) Tickets() repository.TicketRepository             { return view{store: s}.Tickets() }
func (s *Store) Activity() repository.ActivityRepository          { return view{store: s}.Activity() }
func (s *Store) ResolverStats() repository.ResolverStatRepository { return view{store: s}.ResolverStats() }
func (s *Store) SkillGroups() repository.SkillGroupRepository     { return view{store: s}.SkillGroups() }
func (s *Store) Notifications() repository.NotificationRepository { return view{store: s}.Notifications() }
func (s *Store) Properties() repository.PropertyRepository        { return view{store: s}.Properties() }
func (s *Store) PropertyFeed() repository.PropertyFeedRepository  { return view{store: s}.PropertyFeed() }

// view binds the repositories to a store. locked views run inside InTx and
// must not take the mutex again.
type view struct {
	store  *Store
	locked bool
}

func (v view) Tickets() repository.TicketRepository             { return ticketRepo{v} }
func (v view) Activity() repository.ActivityRepository          { return activityRepo{v} }
func (v view) ResolverStats() repository.ResolverStatRepository { return statRepo{v} }
func (v view) SkillGroups() repository.SkillGroupRepository     { return groupRepo{v} }
func (v view) Notifications() repository.NotificationRepository { return notificationRepo{v} }
func (v view) Properties() repository.PropertyRepository        { return propertyRepo{v} }
func (v view) PropertyFeed() repository.PropertyFeedRepository  { return feedRepo{v} }

func (v view) do(fn func(*state) error) error {
	if !v.locked {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return fn(v.store.data)
}

func (v view) fail(op string) error {
	return v.store.failures[op]
}

type ticketRepo struct{ view }

func (r ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.do(func(st *state) error {
		if ticket.ID == "" {
			ticket.ID = uuid.NewString()
		}
		if ticket.CreatedAt.IsZero() {
			ticket.CreatedAt = r.store.now()
		}
		ticket.UpdatedAt = ticket.CreatedAt
		ticket.Version = 1
		st.nextNumber++
		ticket.Number = st.nextNumber
		st.tickets[ticket.ID] = ticket.Clone()
		return nil
	})
}

func (r ticketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.do(func(st *state) error {
		if err := r.fail(OpTicketUpdate); err != nil {
			return err
		}
		current, ok := st.tickets[ticket.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != ticket.Version {
			return repository.ErrStaleVersion
		}
		ticket.Version++
		st.tickets[ticket.ID] = ticket.Clone()
		return nil
	})
}

func (r ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.do(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (r ticketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r ticketRepo) Delete(ctx context.Context, id string) error {
	return r.do(func(st *state) error {
		if _, ok := st.tickets[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.tickets, id)
		return nil
	})
}

func (r ticketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.do(func(st *state) error {
		for _, t := range st.tickets {
			if matches(t, filter) {
				out = append(out, *t.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(t *domain.Ticket, f repository.TicketFilter) bool {
	if f.PropertyID != nil && t.PropertyID != *f.PropertyID {
		return false
	}
	if f.SkillGroupID != nil && t.SkillGroupID != *f.SkillGroupID {
		return false
	}
	if f.RaisedBy != nil && t.RaisedBy != *f.RaisedBy {
		return false
	}
	if f.AssignedTo != nil && !t.IsAssignedTo(*f.AssignedTo) {
		return false
	}
	if f.Unassigned && t.AssignedTo != nil {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 {
		found := false
		for _, p := range f.Priorities {
			if p == t.Priority {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.SLABreached != nil && t.SLABreached != *f.SLABreached {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r ticketRepo) CountOpenByAssignee(ctx context.Context, propertyID, skillGroupID string) (map[string]int, error) {
	counts := map[string]int{}
	err := r.do(func(st *state) error {
		for _, t := range st.tickets {
			if t.PropertyID != propertyID || t.SkillGroupID != skillGroupID || t.AssignedTo == nil {
				continue
			}
			switch t.Status {
			case domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusBlocked:
				counts[*t.AssignedTo]++
			}
		}
		return nil
	})
	return counts, err
}

type activityRepo struct{ view }

func (r activityRepo) Create(ctx context.Context, record *domain.ActivityRecord) error {
	return r.do(func(st *state) error {
		if err := r.fail(OpActivityCreate); err != nil {
			return err
		}
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = r.store.now()
		}
		st.activity = append(st.activity, *record)
		return nil
	})
}

func (r activityRepo) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.ActivityRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.ActivityRecord
	err := r.do(func(st *state) error {
		for _, rec := range st.activity {
			if rec.TicketID == ticketID {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r activityRepo) DeleteByTicket(ctx context.Context, ticketID string) (int64, error) {
	var removed int64
	err := r.do(func(st *state) error {
		kept := st.activity[:0:0]
		for _, rec := range st.activity {
			if rec.TicketID == ticketID {
				removed++
				continue
			}
			kept = append(kept, rec)
		}
		st.activity = kept
		return nil
	})
	return removed, err
}

type statRepo struct{ view }

func statKey(userID, propertyID, skillGroupID string) string {
	return userID + "|" + propertyID + "|" + skillGroupID
}

func (r statRepo) Upsert(ctx context.Context, stat *domain.ResolverStat) error {
	return r.do(func(st *state) error {
		now := r.store.now()
		key := statKey(stat.UserID, stat.PropertyID, stat.SkillGroupID)
		if existing, ok := st.stats[key]; ok {
			existing.Active = stat.Active
			existing.Available = stat.Available
			existing.UpdatedAt = now
			*stat = *existing
			return nil
		}
		if stat.ID == "" {
			stat.ID = uuid.NewString()
		}
		stat.CreatedAt, stat.UpdatedAt = now, now
		row := *stat
		st.stats[key] = &row
		return nil
	})
}

func (r statRepo) Get(ctx context.Context, userID, propertyID, skillGroupID string) (*domain.ResolverStat, error) {
	var out *domain.ResolverStat
	err := r.do(func(st *state) error {
		row, ok := st.stats[statKey(userID, propertyID, skillGroupID)]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *row
		out = &cp
		return nil
	})
	return out, err
}

func (r statRepo) ListEligible(ctx context.Context, propertyID, skillGroupID string) ([]domain.ResolverStat, error) {
	var out []domain.ResolverStat
	err := r.do(func(st *state) error {
		for _, row := range st.stats {
			if row.PropertyID == propertyID && row.SkillGroupID == skillGroupID && row.Eligible() {
				out = append(out, *row)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, err
}

func (r statRepo) modify(userID, propertyID, skillGroupID string, fn func(*domain.ResolverStat)) error {
	return r.do(func(st *state) error {
		row, ok := st.stats[statKey(userID, propertyID, skillGroupID)]
		if !ok {
			return repository.ErrNotFound
		}
		fn(row)
		row.UpdatedAt = r.store.now()
		return nil
	})
}

func (r statRepo) SetAvailability(ctx context.Context, userID, propertyID, skillGroupID string, available bool) error {
	return r.modify(userID, propertyID, skillGroupID, func(s *domain.ResolverStat) { s.Available = available })
}

func (r statRepo) Deactivate(ctx context.Context, userID, propertyID, skillGroupID string) error {
	return r.modify(userID, propertyID, skillGroupID, func(s *domain.ResolverStat) {
		s.Active = false
		s.Available = false
	})
}

func (r statRepo) RecordResolution(ctx context.Context, userID, propertyID, skillGroupID string, minutes float64) error {
	return r.do(func(st *state) error {
		if err := r.fail(OpStatResolution); err != nil {
			return err
		}
		row, ok := st.stats[statKey(userID, propertyID, skillGroupID)]
		if !ok {
			return repository.ErrNotFound
		}
		row.AvgResolutionMinutes = (row.AvgResolutionMinutes*float64(row.ResolvedCount) + minutes) / float64(row.ResolvedCount+1)
		row.ResolvedCount++
		row.UpdatedAt = r.store.now()
		return nil
	})
}

func (r statRepo) SetLoad(ctx context.Context, userID, propertyID, skillGroupID string, load int) error {
	return r.do(func(st *state) error {
		if err := r.fail(OpStatLoad); err != nil {
			return err
		}
		row, ok := st.stats[statKey(userID, propertyID, skillGroupID)]
		if !ok {
			return repository.ErrNotFound
		}
		row.CurrentLoad = load
		row.UpdatedAt = r.store.now()
		return nil
	})
}

type groupRepo struct{ view }

func (r groupRepo) Create(ctx context.Context, group *domain.SkillGroup) error {
	return r.do(func(st *state) error {
		if group.ID == "" {
			group.ID = uuid.NewString()
		}
		now := r.store.now()
		group.CreatedAt, group.UpdatedAt = now, now
		row := *group
		st.groups[group.ID] = &row
		return nil
	})
}

func (r groupRepo) GetByID(ctx context.Context, id string) (*domain.SkillGroup, error) {
	var out *domain.SkillGroup
	err := r.do(func(st *state) error {
		row, ok := st.groups[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *row
		out = &cp
		return nil
	})
	return out, err
}

func (r groupRepo) ListByProperty(ctx context.Context, propertyID string) ([]domain.SkillGroup, error) {
	var out []domain.SkillGroup
	err := r.do(func(st *state) error {
		for _, row := range st.groups {
			if row.PropertyID == propertyID {
				out = append(out, *row)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, err
}

type notificationRepo struct{ view }

func (r notificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	return r.do(func(st *state) error {
		if err := r.fail(OpNotificationCreate); err != nil {
			return err
		}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = r.store.now()
		}
		st.notifications = append(st.notifications, *n)
		return nil
	})
}

func (r notificationRepo) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Notification
	err := r.do(func(st *state) error {
		for i := len(st.notifications) - 1; i >= 0 && len(out) < limit; i-- {
			if st.notifications[i].RecipientID == recipientID {
				out = append(out, st.notifications[i])
			}
		}
		return nil
	})
	return out, err
}

func (r notificationRepo) DeleteByTicket(ctx context.Context, ticketID string) (int64, error) {
	var removed int64
	err := r.do(func(st *state) error {
		kept := st.notifications[:0:0]
		for _, n := range st.notifications {
			if n.TicketID == ticketID {
				removed++
				continue
			}
			kept = append(kept, n)
		}
		st.notifications = kept
		return nil
	})
	return removed, err
}

type propertyRepo struct{ view }

func (r propertyRepo) OrganizationOf(ctx context.Context, propertyID string) (string, error) {
	var org string
	err := r.do(func(st *state) error {
		v, ok := st.properties[propertyID]
		if !ok {
			return repository.ErrNotFound
		}
		org = v
		return nil
	})
	return org, err
}

type feedRepo struct{ view }

func (r feedRepo) Append(ctx context.Context, entry *domain.PropertyActivity) error {
	return r.do(func(st *state) error {
		if err := r.fail(OpFeedAppend); err != nil {
			return err
		}
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = r.store.now()
		}
		st.feed = append(st.feed, *entry)
		return nil
	})
}

func (r feedRepo) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]domain.PropertyActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.PropertyActivity
	err := r.do(func(st *state) error {
		for i := len(st.feed) - 1; i >= 0 && len(out) < limit; i-- {
			if st.feed[i].OrganizationID == organizationID {
				out = append(out, st.feed[i])
			}
		}
		return nil
	})
	return out, err
}
