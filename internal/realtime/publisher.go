// Package realtime pushes ticket events onto Redis pub/sub channels and reads
// them back for live clients.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/facility-tickets/internal/events"
)

// PropertyChannel returns "<prefix>:property:<property id>".
func PropertyChannel(prefix, propertyID string) string {
	return fmt.Sprintf("%s:property:%s", prefix, propertyID)
}

// TicketChannel returns "<prefix>:ticket:<ticket id>".
func TicketChannel(prefix, ticketID string) string {
	return fmt.Sprintf("%s:ticket:%s", prefix, ticketID)
}

// publishClient is the part of redis.UniversalClient the publisher uses.
type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher forwards dispatcher events to Redis.
type Publisher struct {
	client publishClient
	prefix string
	logger *zap.Logger
}

// NewPublisher builds a publisher. client is usually a *redis.Client.
func NewPublisher(client publishClient, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = "tickets"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, prefix: prefix, logger: logger}
}

// Register subscribes the publisher to every event type.
func (p *Publisher) Register(dispatcher events.Dispatcher) {
	if p == nil || dispatcher == nil {
		return
	}
	events.SubscribeAll(dispatcher, p.Publish)
}

// Publish sends event to its property channel and its ticket channel.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	channels := []string{TicketChannel(p.prefix, event.TicketID)}
	if event.Ticket.PropertyID != "" {
		channels = append(channels, PropertyChannel(p.prefix, event.Ticket.PropertyID))
	}
	for _, ch := range channels {
		if err := p.client.Publish(ctx, ch, body).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", ch, err)
		}
	}
	p.logger.Debug("event published",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	return nil
}
