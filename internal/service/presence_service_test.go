package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/presence-auth-service/internal/domain"
	"github.com/spec-kit/presence-auth-service/internal/events"
	"github.com/spec-kit/presence-auth-service/internal/presence"
)

func TestPresenceHeartbeatAndLogout(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	alice := domain.Identity{UserID: 1, Username: "alice"}
	bob := domain.Identity{UserID: 2, Username: "bob"}

	assert.Equal(t, 1, f.presence.Heartbeat(alice))
	assert.Equal(t, 1, f.presence.Heartbeat(alice))
	assert.Equal(t, 2, f.presence.Heartbeat(bob))

	summary := f.presence.Summary()
	assert.Equal(t, 2, summary.Count)
	assert.ElementsMatch(t, []string{"alice", "bob"}, summary.Usernames)

	f.presence.Logout(ctx, alice)
	assert.Equal(t, 1, f.presence.OnlineCount())
	assert.False(t, f.registry.Online(presence.KeyFromID(1)))

	f.presence.Logout(ctx, alice)
	assert.Equal(t, []events.EventType{events.EventUserLoggedOut}, f.eventTypes(),
		"logging out twice publishes once")
}

func TestPresenceSummaryEmpty(t *testing.T) {
	f := newFixture(t, nil, nil)

	summary := f.presence.Summary()
	assert.Equal(t, 0, summary.Count)
	assert.NotNil(t, summary.Usernames)
	assert.Empty(t, summary.Usernames)
}
