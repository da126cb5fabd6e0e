package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-auth-service/internal/domain"
	"github.com/spec-kit/presence-auth-service/internal/events"
	"github.com/spec-kit/presence-auth-service/internal/presence"
)

// OnlineSummary is a consistent snapshot of who is online.
type OnlineSummary struct {
	Count     int
	Usernames []string
}

// PresenceService applies session activity to the presence registry. Every
// identity is mapped through presence.KeyFromID before touching the registry.
type PresenceService struct {
	registry   *presence.Registry
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewPresenceService builds the service. dispatcher may be nil.
func NewPresenceService(registry *presence.Registry, dispatcher events.Dispatcher, logger *zap.Logger) *PresenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceService{registry: registry, dispatcher: dispatcher, logger: logger}
}

// RecordActivity marks the identity as online. It satisfies auth.ActivityRecorder.
func (s *PresenceService) RecordActivity(identity domain.Identity) {
	s.registry.Touch(presence.KeyFromID(identity.UserID), identity.Username)
}

// Heartbeat refreshes the caller and returns the online count.
func (s *PresenceService) Heartbeat(identity domain.Identity) int {
	s.RecordActivity(identity)
	return s.registry.Count()
}

// Logout removes the caller from the registry. The caller's token is untouched.
func (s *PresenceService) Logout(ctx context.Context, identity domain.Identity) {
	key := presence.KeyFromID(identity.UserID)
	if !s.registry.Remove(key) {
		return
	}
	s.publish(ctx, events.NewEvent(events.EventUserLoggedOut, key.String(), identity.Username, s.registry.Now(), nil))
}

// OnlineCount returns the number of online users.
func (s *PresenceService) OnlineCount() int {
	return s.registry.Count()
}

// Summary returns count and usernames from one registry snapshot.
func (s *PresenceService) Summary() OnlineSummary {
	entries := s.registry.List()
	usernames := make([]string, 0, len(entries))
	for _, e := range entries {
		usernames = append(usernames, e.Username)
	}
	return OnlineSummary{Count: len(entries), Usernames: usernames}
}

func (s *PresenceService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
