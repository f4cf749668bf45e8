package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/facility-tickets/internal/domain"
	"github.com/spec-kit/facility-tickets/internal/events"
	"github.com/spec-kit/facility-tickets/internal/observability"
	"github.com/spec-kit/facility-tickets/internal/repository"
	"github.com/spec-kit/facility-tickets/internal/workflow"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// buildFunc produces the command to apply once the ticket row is locked. It
// may read other rows through repos. A nil command leaves the ticket untouched.
type buildFunc func(ctx context.Context, repos repository.Repositories, current *domain.Ticket) (workflow.Command, error)

// executor runs state machine commands inside one store transaction and fires
// the post-commit effects.
type executor struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

type executed struct {
	before  *domain.Ticket
	outcome *workflow.Outcome
}

func (e *executor) execute(ctx context.Context, actor *domain.Actor, ticketID string, expectedVersion *int64, build buildFunc) (*executed, error) {
	if !actor.Authenticated() {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	var result *executed
	var cmdName string
	err := e.store.InTx(ctx, func(repos repository.Repositories) error {
		current, err := repos.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return ticketLookupError(ticketID, err)
		}
		if expectedVersion != nil && *expectedVersion != current.Version {
			return apperrors.NewConflict("ticket was modified by someone else", map[string]any{
				"reason":           "stale_version",
				"expected_version": *expectedVersion,
				"current_version":  current.Version,
			})
		}
		cmd, err := build(ctx, repos, current)
		if err != nil {
			return err
		}
		if cmd == nil {
			result = &executed{before: current, outcome: &workflow.Outcome{Ticket: current}}
			return nil
		}
		cmdName = cmd.Name()

		outcome, err := workflow.Apply(current, actor, cmd, e.now())
		if err != nil {
			return err
		}
		if outcome.Changed() {
			if err := repos.Tickets().Update(ctx, outcome.Ticket); err != nil {
				if errors.Is(err, repository.ErrStaleVersion) {
					return apperrors.NewConflict("ticket was modified by someone else", map[string]any{"reason": "stale_version"})
				}
				return err
			}
			if err := repos.Activity().Create(ctx, outcome.Record); err != nil {
				return err
			}
		}
		result = &executed{before: current, outcome: outcome}
		return nil
	})
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		e.metrics.RecordOperation(opName(cmdName), domainErr.Code)
		return nil, domainErr
	}
	e.metrics.RecordOperation(opName(cmdName), "ok")
	e.afterCommit(ctx, actor, result)
	return result, nil
}

func opName(cmd string) string {
	if cmd == "" {
		return "command"
	}
	return cmd
}

// afterCommit fires best-effort effects. Nothing here can fail the mutation.
func (e *executor) afterCommit(ctx context.Context, actor *domain.Actor, r *executed) {
	out := r.outcome
	if out.Record == nil {
		return
	}
	t := out.Ticket

	if t.Status == domain.TicketStatusResolved && r.before.Status != domain.TicketStatusResolved {
		e.bestEffort(ctx, "resolver_stats", func(ctx context.Context) error {
			return e.recordResolution(ctx, t)
		})
	}
	if !sameUser(r.before.AssignedTo, t.AssignedTo) || r.before.Status != t.Status {
		e.bestEffort(ctx, "resolver_load", func(ctx context.Context) error {
			return e.refreshLoads(ctx, t.PropertyID, t.SkillGroupID, r.before.AssignedTo, t.AssignedTo)
		})
	}

	for _, event := range eventsFor(actor, r.before, out) {
		e.publish(ctx, event)
	}
}

func (e *executor) recordResolution(ctx context.Context, t *domain.Ticket) error {
	if t.AssignedTo == nil || t.ResolvedAt == nil {
		return nil
	}
	started := t.WorkStartedAt
	if started == nil {
		started = t.AssignedAt
	}
	if started == nil {
		return nil
	}
	minutes := t.ResolvedAt.Sub(*started).Minutes()
	err := e.store.ResolverStats().RecordResolution(ctx, *t.AssignedTo, t.PropertyID, t.SkillGroupID, minutes)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// refreshLoads recounts the open tickets of each given resolver into its stat
// row. Users without a row are skipped.
func (e *executor) refreshLoads(ctx context.Context, propertyID, skillGroupID string, users ...*string) error {
	counts, err := e.store.Tickets().CountOpenByAssignee(ctx, propertyID, skillGroupID)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, u := range users {
		if u == nil || seen[*u] {
			continue
		}
		seen[*u] = true
		err := e.store.ResolverStats().SetLoad(ctx, *u, propertyID, skillGroupID, counts[*u])
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

func sameUser(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// bestEffort runs one non-critical effect, logging a DependencyFailure when it fails.
func (e *executor) bestEffort(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		failure := apperrors.NewDependencyFailure(name, err)
		e.metrics.RecordOperation("effect:"+name, apperrors.CodeDependencyFailure)
		e.logger.Warn("side effect failed", zap.String("effect", name), zap.Error(failure))
	}
}

func (e *executor) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	_ = e.dispatcher.Publish(ctx, event)
}

func eventsFor(actor *domain.Actor, before *domain.Ticket, out *workflow.Outcome) []events.Event {
	t := out.Ticket
	base := events.Event{
		TicketID: t.ID,
		ActorID:  actor.ID,
		Ticket:   events.StateOf(t),
	}
	var list []events.Event
	add := func(typ events.EventType, payload any) {
		ev := base
		ev.Type = typ
		ev.Payload = payload
		list = append(list, ev)
	}

	switch action := out.Record.Action; action {
	case domain.ActionTicketClaimed, domain.ActionTicketAssigned, domain.ActionTicketReassigned, domain.ActionTicketUnassigned:
		add(events.EventTicketAssigned, events.TicketAssignedPayload{Action: action, From: before.AssignedTo, To: t.AssignedTo})
	case domain.ActionStatusChanged, domain.ActionForceClosed:
		add(events.EventTicketStatusChanged, events.TicketStatusChangedPayload{
			OldStatus: before.Status,
			NewStatus: t.Status,
			Comment:   commentOf(out.Record),
		})
	case domain.ActionSLABreached:
		// covered by out.Breached below
	default:
		add(events.EventTicketUpdated, events.TicketUpdatedPayload{Action: action})
	}
	if out.Breached {
		add(events.EventSLABreached, nil)
	}
	return list
}

func commentOf(record *domain.ActivityRecord) string {
	if record == nil || record.NewValue == nil {
		return ""
	}
	comment, _ := record.NewValue["comment"].(string)
	return comment
}

func ticketLookupError(ticketID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return err
}
