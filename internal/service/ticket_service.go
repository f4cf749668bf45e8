package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-tickets/internal/auth"
	"github.com/spec-kit/facility-tickets/internal/domain"
	"github.com/spec-kit/facility-tickets/internal/events"
	"github.com/spec-kit/facility-tickets/internal/observability"
	"github.com/spec-kit/facility-tickets/internal/repository"
	"github.com/spec-kit/facility-tickets/internal/sla"
	"github.com/spec-kit/facility-tickets/internal/workflow"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// liveStatuses are shown on the board and scanned by the SLA sweeper.
var liveStatuses = []domain.TicketStatus{
	domain.TicketStatusOpen,
	domain.TicketStatusWaitlist,
	domain.TicketStatusAssigned,
	domain.TicketStatusInProgress,
	domain.TicketStatusBlocked,
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	*executor
	policy      *sla.Policy
	assignments *AssignmentService
	autoAssign  bool
	deleteCmd   workflow.Delete
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store       repository.Store
	Policy      *sla.Policy
	Assignments *AssignmentService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	AutoAssign  bool
	// DeleteAnySkill lets resolver-role owners delete without the technical skill.
	DeleteAnySkill bool
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	PropertyID   string
	Category     string
	SubCategory  *string
	SkillGroupID string
	Priority     domain.TicketPriority
	Title        string
	Description  string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	policy := deps.Policy
	if policy == nil {
		policy = sla.NewPolicy(nil, nil)
	}
	return &TicketService{
		executor:    newExecutor(deps.Store, deps.Dispatcher, deps.Logger, deps.Metrics, deps.Clock),
		policy:      policy,
		assignments: deps.Assignments,
		autoAssign:  deps.AutoAssign,
		deleteCmd:   workflow.Delete{AnySkill: deps.DeleteAnySkill},
	}
}

func newExecutor(store repository.Store, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, clock func() time.Time) *executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &executor{store: store, dispatcher: dispatcher, logger: logger, metrics: metrics, now: clock}
}

// CreateTicket raises a ticket at a property, computes its SLA deadline and,
// when auto-assignment is on, routes it.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if !actor.Authenticated() {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	input.PropertyID = strings.TrimSpace(input.PropertyID)
	input.Category = strings.TrimSpace(input.Category)
	input.Title = strings.TrimSpace(input.Title)
	input.SkillGroupID = strings.TrimSpace(input.SkillGroupID)
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}

	details := map[string]any{}
	if input.PropertyID == "" {
		details["property_id"] = "required"
	}
	if input.Category == "" {
		details["category"] = "required"
	}
	if input.SkillGroupID == "" {
		details["skill_group_id"] = "required"
	}
	if input.Title == "" {
		details["title"] = "required"
	}
	if !input.Priority.Valid() {
		details["priority"] = "must be one of low, medium, high, urgent"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}
	if !actor.MemberOf(input.PropertyID) && !actor.IsAdminFor(input.PropertyID) {
		return nil, apperrors.NewForbidden("you are not a member of this property")
	}

	now := s.now()
	ticket := &domain.Ticket{
		PropertyID:   input.PropertyID,
		Category:     input.Category,
		SubCategory:  input.SubCategory,
		SkillGroupID: input.SkillGroupID,
		Priority:     input.Priority,
		Title:        input.Title,
		Description:  strings.TrimSpace(input.Description),
		Status:       domain.TicketStatusOpen,
		RaisedBy:     actor.ID,
		CreatedAt:    now,
		SLADeadline:  s.policy.ComputeDeadline(input.Category, input.Priority, now),
	}

	err := s.store.InTx(ctx, func(repos repository.Repositories) error {
		group, err := repos.SkillGroups().GetByID(ctx, input.SkillGroupID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewValidationError("unknown skill group", map[string]any{"skill_group_id": input.SkillGroupID})
			}
			return err
		}
		if group.PropertyID != input.PropertyID {
			return apperrors.NewValidationError("skill group belongs to another property", map[string]any{"skill_group_id": input.SkillGroupID})
		}
		if err := repos.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		return repos.Activity().Create(ctx, &domain.ActivityRecord{
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Action:   domain.ActionTicketCreated,
			NewValue: map[string]any{
				"status":         ticket.Status,
				"priority":       ticket.Priority,
				"skill_group_id": ticket.SkillGroupID,
				"sla_deadline":   ticket.SLADeadline,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		s.metrics.RecordOperation("create", domainErr.Code)
		return nil, domainErr
	}
	s.metrics.RecordOperation("create", "ok")
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("key", ticket.Key()),
		zap.String("property_id", ticket.PropertyID))

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Ticket:   events.StateOf(ticket),
		Payload: events.TicketCreatedPayload{
			SkillGroupID: ticket.SkillGroupID,
			Priority:     ticket.Priority,
			Title:        ticket.Title,
			SLADeadline:  ticket.SLADeadline,
		},
	})

	if s.autoAssign && s.assignments != nil {
		routed, err := s.assignments.AutoRoute(ctx, ticket.ID)
		if err != nil {
			s.logger.Warn("auto routing failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			return ticket, nil
		}
		return routed, nil
	}
	return ticket, nil
}

// GetTicket returns a ticket the actor may view.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(ticketLookupError(ticketID, err))
	}
	if err := auth.Authorize(actor, ticket, auth.CapView).Err(); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Execute applies one state machine command to a ticket.
func (s *TicketService) Execute(ctx context.Context, actor *domain.Actor, ticketID string, cmd workflow.Command) (*domain.Ticket, error) {
	return s.ExecuteAt(ctx, actor, ticketID, cmd, nil)
}

// ExecuteAt is Execute with an optimistic version check: when expectedVersion is
// set and the stored ticket has moved on, the command fails with Conflict.
func (s *TicketService) ExecuteAt(ctx context.Context, actor *domain.Actor, ticketID string, cmd workflow.Command, expectedVersion *int64) (*domain.Ticket, error) {
	switch cmd.(type) {
	case workflow.Claim:
		return nil, apperrors.NewValidationError("use the claim operation", nil)
	case workflow.Delete:
		return nil, apperrors.NewValidationError("use the delete operation", nil)
	}
	res, err := s.execute(ctx, actor, ticketID, expectedVersion, func(context.Context, repository.Repositories, *domain.Ticket) (workflow.Command, error) {
		return cmd, nil
	})
	if err != nil {
		return nil, err
	}
	return res.outcome.Ticket, nil
}

// DeleteTicket hard-deletes a ticket with its activity and notifications, then
// records the deletion in the property feed.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.Actor, ticketID string) error {
	if !actor.Authenticated() {
		return apperrors.NewUnauthorized("authentication required")
	}
	current, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return apperrors.MapError(ticketLookupError(ticketID, err))
	}
	if _, err := workflow.Apply(current, actor, s.deleteCmd, s.now()); err != nil {
		s.metrics.RecordOperation("delete", apperrors.ToDomainError(err).Code)
		return err
	}

	s.logger.Info("hard deleting ticket",
		zap.String("ticket_id", current.ID),
		zap.String("key", current.Key()),
		zap.String("property_id", current.PropertyID),
		zap.String("status", string(current.Status)),
		zap.String("actor_id", actor.ID))

	var removedActivity, removedNotifications int64
	err = s.store.InTx(ctx, func(repos repository.Repositories) error {
		locked, err := repos.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return ticketLookupError(ticketID, err)
		}
		if _, err := workflow.Apply(locked, actor, s.deleteCmd, s.now()); err != nil {
			return err
		}
		if removedActivity, err = repos.Activity().DeleteByTicket(ctx, ticketID); err != nil {
			return err
		}
		if removedNotifications, err = repos.Notifications().DeleteByTicket(ctx, ticketID); err != nil {
			return err
		}
		return repos.Tickets().Delete(ctx, ticketID)
	})
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		s.metrics.RecordOperation("delete", domainErr.Code)
		return domainErr
	}
	s.metrics.RecordOperation("delete", "ok")
	s.logger.Info("ticket deleted",
		zap.String("ticket_id", ticketID),
		zap.Int64("activity_removed", removedActivity),
		zap.Int64("notifications_removed", removedNotifications))

	if current.AssignedTo != nil {
		s.bestEffort(ctx, "resolver_load", func(ctx context.Context) error {
			return s.refreshLoads(ctx, current.PropertyID, current.SkillGroupID, current.AssignedTo)
		})
	}

	var orgID string
	s.bestEffort(ctx, "property_feed", func(ctx context.Context) error {
		org, err := s.store.Properties().OrganizationOf(ctx, current.PropertyID)
		if err != nil {
			return err
		}
		orgID = org
		return s.store.PropertyFeed().Append(ctx, &domain.PropertyActivity{
			OrganizationID: org,
			PropertyID:     current.PropertyID,
			ActorID:        actor.ID,
			Action:         domain.ActionTicketDeleted,
			Details: map[string]any{
				"ticket_id": current.ID,
				"key":       current.Key(),
				"title":     current.Title,
				"status":    current.Status,
			},
			CreatedAt: s.now(),
		})
	})

	s.publish(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: current.ID,
		ActorID:  actor.ID,
		Ticket:   events.StateOf(current),
		Payload:  events.TicketDeletedPayload{OrganizationID: orgID},
	})
	return nil
}

// History lists the activity records of a ticket in chronological order.
func (s *TicketService) History(ctx context.Context, actor *domain.Actor, ticketID string, limit, offset int) ([]domain.ActivityRecord, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	records, err := s.store.Activity().ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

// Board returns the live tickets of a property for the flow console.
func (s *TicketService) Board(ctx context.Context, actor *domain.Actor, propertyID string) ([]domain.Ticket, error) {
	if !actor.Authenticated() {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !actor.IsAdminFor(propertyID) && !(actor.IsResolverRole() && actor.MemberOf(propertyID)) {
		return nil, apperrors.NewForbidden("board access requires an admin or resolver of this property")
	}
	var board []domain.Ticket
	for offset := 0; ; {
		page, err := s.store.Tickets().ListWithFilter(ctx, repository.TicketFilter{
			PropertyID: &propertyID,
			Statuses:   liveStatuses,
			Limit:      200,
			Offset:     offset,
		})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		board = append(board, page...)
		if len(page) < 200 {
			break
		}
		offset += len(page)
	}
	return board, nil
}

// SweepBreaches latches SLABreached on every live ticket past its adjusted
// deadline and returns how many tickets flipped.
func (s *TicketService) SweepBreaches(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 500
	}
	notBreached := false
	system := domain.SystemActor()
	flipped := 0
	for offset := 0; ; {
		page, err := s.store.Tickets().ListWithFilter(ctx, repository.TicketFilter{
			Statuses:    liveStatuses,
			SLABreached: &notBreached,
			Limit:       batch,
			Offset:      offset,
		})
		if err != nil {
			return flipped, err
		}
		now := s.now()
		for i := range page {
			if !sla.IsBreached(&page[i], now) {
				offset++
				continue
			}
			res, err := s.execute(ctx, system, page[i].ID, nil, func(context.Context, repository.Repositories, *domain.Ticket) (workflow.Command, error) {
				return workflow.EvaluateSLA{}, nil
			})
			if err != nil {
				s.logger.Warn("sla sweep failed", zap.String("ticket_id", page[i].ID), zap.Error(err))
				offset++
				continue
			}
			if res.outcome.Breached {
				flipped++
			} else {
				offset++
			}
		}
		if len(page) < batch {
			return flipped, nil
		}
	}
}
