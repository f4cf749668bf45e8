package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/facility-tickets/internal/config"
	"github.com/spec-kit/facility-tickets/internal/domain"
	"github.com/spec-kit/facility-tickets/internal/events"
	"github.com/spec-kit/facility-tickets/internal/repository"
	apperrors "github.com/spec-kit/facility-tickets/pkg/util/errorutil"
)

// NotificationService turns domain events into per-recipient notification rows.
type NotificationService struct {
	dispatcher    events.Dispatcher
	notifications repository.NotificationRepository
	logger        *zap.Logger
	cfg           config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifications repository.NotificationRepository, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:    dispatcher,
		notifications: notifications,
		logger:        logger,
		cfg:           cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || !n.cfg.Enabled {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketAssignedPayload)
	var recipients []string
	if payload.To != nil {
		recipients = append(recipients, *payload.To)
	}
	if payload.From != nil {
		recipients = append(recipients, *payload.From)
	}
	recipients = append(recipients, event.Ticket.RaisedBy)

	body := fmt.Sprintf("%s was unassigned", event.Ticket.Key)
	if payload.To != nil {
		body = fmt.Sprintf("%s is now assigned to %s", event.Ticket.Key, *payload.To)
	}
	return n.fanOut(ctx, event, recipients, body)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketStatusChangedPayload)
	body := fmt.Sprintf("%s moved from %s to %s", event.Ticket.Key, payload.OldStatus, payload.NewStatus)
	if payload.Comment != "" {
		body += ": " + preview(payload.Comment, n.cfg.BodyPreview)
	}
	return n.fanOut(ctx, event, participants(event), body)
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	body := fmt.Sprintf("%s breached its SLA", event.Ticket.Key)
	return n.fanOut(ctx, event, participants(event), body)
}

// fanOut writes one row per distinct recipient other than the actor. Each
// write is attempted; the first failure is reported after all attempts.
func (n *NotificationService) fanOut(ctx context.Context, event events.Event, recipients []string, body string) error {
	seen := map[string]bool{event.ActorID: true, "": true}
	var firstErr error
	for _, recipient := range recipients {
		if seen[recipient] {
			continue
		}
		seen[recipient] = true
		err := n.notifications.Create(ctx, &domain.Notification{
			TicketID:    event.TicketID,
			RecipientID: recipient,
			Kind:        string(event.Type),
			Body:        body,
		})
		if err != nil && firstErr == nil {
			firstErr = apperrors.NewDependencyFailure("notification", err)
		}
	}
	if firstErr == nil {
		n.logger.Debug("notifications written",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)))
	}
	return firstErr
}

func participants(event events.Event) []string {
	out := []string{event.Ticket.RaisedBy}
	if event.Ticket.AssignedTo != nil {
		out = append(out, *event.Ticket.AssignedTo)
	}
	return out
}

func preview(body string, limit int) string {
	runes := []rune(body)
	if limit <= 0 || len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "..."
}
