package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-auth-service/internal/events"
)

// ActivityService writes an audit trail of account and presence events.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger.Named("activity"),
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserSignedUp, a.handleSignedUp)
	a.dispatcher.Subscribe(events.EventUserLoggedIn, a.handleLoggedIn)
	a.dispatcher.Subscribe(events.EventUserLoggedOut, a.handleLoggedOut)
	a.dispatcher.Subscribe(events.EventPresenceExpired, a.handlePresenceExpired)
}

func (a *ActivityService) handleSignedUp(_ context.Context, event events.Event) error {
	a.logger.Info("UserSignedUp", eventFields(event)...)
	return nil
}

func (a *ActivityService) handleLoggedIn(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.LoginPayload); ok {
		fields = append(fields, zap.Int("online_count", p.OnlineCount))
	}
	a.logger.Info("UserLoggedIn", fields...)
	return nil
}

func (a *ActivityService) handleLoggedOut(_ context.Context, event events.Event) error {
	a.logger.Info("UserLoggedOut", eventFields(event)...)
	return nil
}

func (a *ActivityService) handlePresenceExpired(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.PresenceExpiredPayload); ok {
		fields = append(fields, zap.Time("last_active_at", p.LastActiveAt), zap.Duration("idle_for", p.IdleFor))
	}
	a.logger.Info("PresenceExpired", fields...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("user_id", event.UserID),
		zap.String("username", event.Username),
		zap.Time("at", event.Timestamp),
	}
}
