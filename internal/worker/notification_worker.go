package worker

import (
	"github.com/spec-kit/facility-tickets/internal/events"
	"github.com/spec-kit/facility-tickets/internal/realtime"
	"github.com/spec-kit/facility-tickets/internal/service"
)

// StartNotificationWorker registers notification handlers and, when a
// publisher is given, the realtime fan-out.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, publisher *realtime.Publisher) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if publisher != nil {
		publisher.Register(dispatcher)
	}
}
