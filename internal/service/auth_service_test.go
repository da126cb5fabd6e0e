package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/presence-auth-service/internal/clock"
	"github.com/spec-kit/presence-auth-service/internal/config"
	"github.com/spec-kit/presence-auth-service/internal/events"
	"github.com/spec-kit/presence-auth-service/internal/presence"
	"github.com/spec-kit/presence-auth-service/internal/ratelimit"
	"github.com/spec-kit/presence-auth-service/internal/repository"
)

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeThrottle struct {
	mu        sync.Mutex
	allowErr  error
	failures  []string
	resets    []string
	recordErr error
}

func (f *fakeThrottle) Allow(context.Context, string, string) error {
	return f.allowErr
}

func (f *fakeThrottle) RecordFailure(_ context.Context, username, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, username)
	return f.recordErr
}

func (f *fakeThrottle) Reset(_ context.Context, username, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, username)
	return nil
}

type fixture struct {
	clock    *clock.Fake
	registry *presence.Registry
	presence *PresenceService
	auth     *AuthService
	events   []events.Event
	mu       sync.Mutex
}

func (f *fixture) eventTypes() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func newFixture(t *testing.T, mutate func(*config.Config), throttle LoginThrottle) *fixture {
	t.Helper()
	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            bcrypt.MinCost,
			MinPasswordLength:     6,
		},
		Presence: config.PresenceConfig{StaleAfterSeconds: 300, SweepIntervalSeconds: 60},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{clock: clock.NewFake(testEpoch)}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{events.EventUserSignedUp, events.EventUserLoggedIn, events.EventUserLoggedOut} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, e)
			return nil
		})
	}

	f.registry = presence.NewRegistry(f.clock)
	f.presence = NewPresenceService(f.registry, dispatcher, zap.NewNop())

	svc, err := NewAuthService(cfg, AuthDependencies{
		UserRepo:   repository.NewMemoryUserRepository(f.clock),
		Presence:   f.presence,
		Throttle:   throttle,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Clock:      f.clock,
	})
	require.NoError(t, err)
	f.auth = svc
	return f
}

func TestSignup(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	user, token, err := f.auth.Signup(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.Equal(t, testEpoch.Add(time.Hour), token.ExpiresAt)

	claims, err := f.auth.TokenManager().ParseToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	assert.Equal(t, 0, f.registry.Count(), "signup does not mark the user online by default")
	assert.Equal(t, []events.EventType{events.EventUserSignedUp}, f.eventTypes())
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, _, err := f.auth.Signup(ctx, "alice", "password123")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"missing username", "", "password123", ErrMissingCredentials},
		{"blank username", "   ", "password123", ErrMissingCredentials},
		{"missing password", "bob", "", ErrMissingCredentials},
		{"duplicate", "alice", "anything", ErrUsernameTaken},
		{"duplicate with weak password", "alice", "x", ErrUsernameTaken},
		{"weak password", "bob", "12345", ErrWeakPassword},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.auth.Signup(ctx, tc.username, tc.password)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, _, err = f.auth.Signup(ctx, "bob", "123456")
	assert.NoError(t, err, "six characters is the minimum")
}

func TestSignupConcurrentSameUsername(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		ok    atomic.Int32
		taken atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.auth.Signup(ctx, "alice", "password123")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrUsernameTaken):
				taken.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(15), taken.Load())
}

func TestSignupOnlineWhenConfigured(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Presence.OnlineOnSignup = true }, nil)

	user, _, err := f.auth.Signup(context.Background(), "alice", "password123")
	require.NoError(t, err)
	assert.True(t, f.registry.Online(presence.KeyFromID(user.ID)))
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	user, _, err := f.auth.Signup(ctx, "alice", "password123")
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, LoginInput{Username: "alice", Password: "wrongpass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, LoginInput{Username: "nobody", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, LoginInput{Username: "", Password: ""})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, f.registry.Count())

	res, err := f.auth.Login(ctx, LoginInput{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.Equal(t, 1, res.OnlineCount)
	assert.True(t, f.registry.Online(presence.KeyFromID(user.ID)))

	claims, err := f.auth.TokenManager().ParseToken(res.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	res, err = f.auth.Login(ctx, LoginInput{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.OnlineCount, "repeat login must not duplicate the entry")

	assert.Equal(t, []events.EventType{
		events.EventUserSignedUp, events.EventUserLoggedIn, events.EventUserLoggedIn,
	}, f.eventTypes())
}

func TestLoginRepeatedFailuresNeverSucceed(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	_, _, err := f.auth.Signup(ctx, "alice", "password123")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.auth.Login(ctx, LoginInput{Username: "alice", Password: fmt.Sprintf("guess-%d", i)})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestLoginThrottle(t *testing.T) {
	throttle := &fakeThrottle{}
	f := newFixture(t, nil, throttle)
	ctx := context.Background()
	_, _, err := f.auth.Signup(ctx, "alice", "password123")
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, LoginInput{Username: "alice", Password: "nope", ClientIP: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, LoginInput{Username: "ghost", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, []string{"alice", "ghost"}, throttle.failures)

	_, err = f.auth.Login(ctx, LoginInput{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, throttle.resets)

	throttle.allowErr = ratelimit.ErrTooManyAttempts
	_, err = f.auth.Login(ctx, LoginInput{Username: "alice", Password: "password123"})
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	throttle.allowErr = fmt.Errorf("%w: connection refused", ratelimit.ErrUnavailable)
	_, err = f.auth.Login(ctx, LoginInput{Username: "alice", Password: "password123"})
	assert.NoError(t, err, "an unreachable limiter fails open")
}
