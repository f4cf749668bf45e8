package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/facility-tickets/internal/events"
)

// Subscriber reads events for one property.
type Subscriber struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewSubscriber builds a subscriber.
func NewSubscriber(client *redis.Client, prefix string, logger *zap.Logger) *Subscriber {
	if prefix == "" {
		prefix = "tickets"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{client: client, prefix: prefix, logger: logger}
}

// Run delivers every event published for propertyID to fn until ctx is done.
// Messages that fail to decode are logged and skipped.
func (s *Subscriber) Run(ctx context.Context, propertyID string, fn func(events.Event)) error {
	pubsub := s.client.Subscribe(ctx, PropertyChannel(s.prefix, propertyID))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := Decode(msg.Payload)
			if err != nil {
				s.logger.Warn("dropping undecodable event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			fn(event)
		}
	}
}

// Decode parses a published message.
func Decode(payload string) (events.Event, error) {
	var event events.Event
	err := json.Unmarshal([]byte(payload), &event)
	return event, err
}
