package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/events"
)

// NotificationService reacts to domain events. Right now it emits structured
// log lines and keeps the dashboard cache honest; delivery channels (email,
// Teams webhooks) can hang off the same subscriptions later.
type NotificationService struct {
	analytics *AnalyticsService
	logger    *zap.Logger
}

// NewNotificationService constructs the service and registers its handlers.
func NewNotificationService(dispatcher events.Dispatcher, analytics *AnalyticsService, logger *zap.Logger) *NotificationService {
	s := &NotificationService{analytics: analytics, logger: logger}

	dispatcher.Subscribe(events.EventTicketCreated, s.onTicketChanged)
	dispatcher.Subscribe(events.EventTicketAutoCreated, s.onTicketAutoCreated)
	dispatcher.Subscribe(events.EventTicketStatusChanged, s.onTicketChanged)
	dispatcher.Subscribe(events.EventTicketPriorityChanged, s.onTicketChanged)
	dispatcher.Subscribe(events.EventTicketAssigned, s.onTicketAssigned)
	dispatcher.Subscribe(events.EventPipelineRunFinished, s.onPipelineRunFinished)
	return s
}

func (s *NotificationService) onTicketChanged(ctx context.Context, event events.Event) error {
	s.analytics.InvalidateDashboard(ctx)
	s.logger.Debug("ticket event",
		zap.String("type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID))
	return nil
}

func (s *NotificationService) onTicketAutoCreated(ctx context.Context, event events.Event) error {
	s.analytics.InvalidateDashboard(ctx)
	if payload, ok := event.Payload.(events.TicketAutoCreatedPayload); ok {
		s.logger.Info("auto-created ticket notification",
			zap.String("number", payload.Number),
			zap.String("from", payload.FromEmail))
	}
	return nil
}

func (s *NotificationService) onTicketAssigned(_ context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.TicketAssignedPayload); ok && payload.AssigneeID != nil {
		s.logger.Info("assignment notification",
			zap.Int64("ticket_id", event.TicketID),
			zap.Int64("assignee_id", *payload.AssigneeID))
	}
	return nil
}

func (s *NotificationService) onPipelineRunFinished(ctx context.Context, event events.Event) error {
	s.analytics.InvalidateDashboard(ctx)
	if payload, ok := event.Payload.(events.PipelineRunFinishedPayload); ok {
		s.logger.Info("email pipeline run finished",
			zap.Int("fetched", payload.Fetched),
			zap.Int("tickets_created", payload.TicketsCreated),
			zap.Int("errors", payload.Errors))
	}
	return nil
}
