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
	"github.com/spec-kit/facility-tickets/internal/routing"
	"github.com/spec-kit/facility-tickets/internal/workflow"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// AssignmentService handles claiming, reassignment and routing.
type AssignmentService struct {
	*executor
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      func() time.Time
}

// ReassignItem is one entry of a batch reassignment.
type ReassignItem struct {
	TicketID string
	// To nil returns the ticket to the waitlist.
	To              *string
	ExpectedVersion *int64
}

// ReassignResult reports the outcome of one batch item.
type ReassignResult struct {
	TicketID string
	Ticket   *domain.Ticket
	Err      error
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		executor: newExecutor(deps.Store, deps.Dispatcher, deps.Logger, deps.Metrics, deps.Clock),
	}
}

// CanSelfClaim evaluates the self-claim gates for rendering. The answer can be
// stale by the time the actor claims; Claim re-checks everything.
func (s *AssignmentService) CanSelfClaim(ctx context.Context, actor *domain.Actor, ticketID string) (routing.Decision, error) {
	if !actor.Authenticated() {
		return routing.Decision{}, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return routing.Decision{}, apperrors.MapError(ticketLookupError(ticketID, err))
	}
	if err := auth.Authorize(actor, ticket, auth.CapView).Err(); err != nil {
		return routing.Decision{}, err
	}
	group, stat, err := claimContext(ctx, s.store, ticket, actor.ID)
	if err != nil {
		return routing.Decision{}, apperrors.MapError(err)
	}
	return routing.CanSelfClaim(ticket, group, actor.ID, stat), nil
}

// Claim assigns an open or waitlisted ticket to the calling resolver. The gates
// run against the locked row, so of two concurrent claims exactly one wins; the
// loser gets Conflict.
func (s *AssignmentService) Claim(ctx context.Context, actor *domain.Actor, ticketID string) (*domain.Ticket, error) {
	res, err := s.execute(ctx, actor, ticketID, nil, func(ctx context.Context, repos repository.Repositories, current *domain.Ticket) (workflow.Command, error) {
		group, stat, err := claimContext(ctx, repos, current, actor.ID)
		if err != nil {
			return nil, err
		}
		return workflow.Claim{Group: group, Stat: stat}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket claimed",
		zap.String("ticket_id", ticketID),
		zap.String("resolver_id", actor.ID))
	return res.outcome.Ticket, nil
}

// Reassign sets the assignee as an admin override. Skill and availability gates
// do not apply. A nil to unassigns.
func (s *AssignmentService) Reassign(ctx context.Context, actor *domain.Actor, ticketID string, to *string, expectedVersion *int64) (*domain.Ticket, error) {
	res, err := s.execute(ctx, actor, ticketID, expectedVersion, func(context.Context, repository.Repositories, *domain.Ticket) (workflow.Command, error) {
		return workflow.Reassign{To: to}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.outcome.Ticket, nil
}

// BatchReassign reassigns each item in its own transaction. One failing item
// does not affect the others.
func (s *AssignmentService) BatchReassign(ctx context.Context, actor *domain.Actor, items []ReassignItem) ([]ReassignResult, error) {
	if !actor.Authenticated() {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if len(items) == 0 {
		return nil, apperrors.NewValidationError("no tickets to reassign", nil)
	}
	results := make([]ReassignResult, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.TicketID)
		if id == "" {
			results = append(results, ReassignResult{Err: apperrors.NewValidationError("ticket_id required", nil)})
			continue
		}
		ticket, err := s.Reassign(ctx, actor, id, item.To, item.ExpectedVersion)
		results = append(results, ReassignResult{TicketID: id, Ticket: ticket, Err: err})
	}
	return results, nil
}

// AutoRoute places a freshly created ticket. Tickets in manual groups or with
// no eligible resolver go to the waitlist; otherwise the router picks the
// resolver with the fewest open tickets, then the fastest average, then the
// lowest id. Tickets that are no longer open are left alone.
func (s *AssignmentService) AutoRoute(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	res, err := s.execute(ctx, domain.SystemActor(), ticketID, nil, func(ctx context.Context, repos repository.Repositories, current *domain.Ticket) (workflow.Command, error) {
		if current.Status != domain.TicketStatusOpen || current.AssignedTo != nil {
			return nil, nil
		}
		toWaitlist := workflow.ChangeStatus{To: domain.TicketStatusWaitlist, Comment: "no resolver available"}

		group, err := repos.SkillGroups().GetByID(ctx, current.SkillGroupID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if group == nil || group.IsManualAssign {
			toWaitlist.Comment = "manual assignment required"
			return toWaitlist, nil
		}

		stats, err := repos.ResolverStats().ListEligible(ctx, current.PropertyID, current.SkillGroupID)
		if err != nil {
			return nil, err
		}
		counts, err := repos.Tickets().CountOpenByAssignee(ctx, current.PropertyID, current.SkillGroupID)
		if err != nil {
			return nil, err
		}
		pick, ok := routing.Pick(routing.Candidates(stats, counts))
		if !ok {
			return toWaitlist, nil
		}
		return workflow.Reassign{To: &pick.UserID, Auto: true}, nil
	})
	if err != nil {
		return nil, err
	}
	t := res.outcome.Ticket
	s.logger.Info("ticket routed",
		zap.String("ticket_id", t.ID),
		zap.String("status", string(t.Status)),
		zap.Stringp("assigned_to", t.AssignedTo))
	return t, nil
}

// statSource is satisfied by both repository.Store and repository.Repositories.
type statSource interface {
	SkillGroups() repository.SkillGroupRepository
	ResolverStats() repository.ResolverStatRepository
}

func claimContext(ctx context.Context, repos statSource, ticket *domain.Ticket, userID string) (*domain.SkillGroup, *domain.ResolverStat, error) {
	group, err := repos.SkillGroups().GetByID(ctx, ticket.SkillGroupID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, err
		}
		group = nil
	}
	stat, err := repos.ResolverStats().Get(ctx, userID, ticket.PropertyID, ticket.SkillGroupID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, err
		}
		stat = nil
	}
	return group, stat, nil
}
