package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/events"
)

// eventPublisher is the boundary between request handling and the
// workflows. Publication failures are logged and never reach the caller.
type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func newEventPublisher(dispatcher events.Dispatcher, logger *zap.Logger) eventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return eventPublisher{dispatcher: dispatcher, logger: logger}
}

func (p eventPublisher) publish(ctx context.Context, eventType events.EventType, payload any) {
	if p.dispatcher == nil {
		return
	}
	event, err := events.NewEvent(eventType, payload)
	if err != nil {
		p.logger.Error("unable to encode event", zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Error("event publication failed",
			zap.String("event_type", string(eventType)),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return
	}
	p.logger.Debug("event published",
		zap.String("event_type", string(eventType)),
		zap.String("event_id", event.ID))
}
