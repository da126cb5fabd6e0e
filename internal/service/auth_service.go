package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-auth-service/internal/auth"
	"github.com/spec-kit/presence-auth-service/internal/clock"
	"github.com/spec-kit/presence-auth-service/internal/config"
	"github.com/spec-kit/presence-auth-service/internal/domain"
	"github.com/spec-kit/presence-auth-service/internal/events"
	"github.com/spec-kit/presence-auth-service/internal/presence"
	"github.com/spec-kit/presence-auth-service/internal/ratelimit"
	"github.com/spec-kit/presence-auth-service/internal/repository"
)

// dummyPassword is hashed once at startup so unknown usernames cost the same
// bcrypt comparison as wrong passwords.
const dummyPassword = "presence-auth-timing-equalizer"

// LoginThrottle limits repeated failed logins.
type LoginThrottle interface {
	Allow(ctx context.Context, username, ip string) error
	RecordFailure(ctx context.Context, username, ip string) error
	Reset(ctx context.Context, username, ip string) error
}

// LoginInput carries credentials plus request metadata.
type LoginInput struct {
	Username string
	Password string
	ClientIP string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User        *domain.User
	Token       domain.IssuedToken
	OnlineCount int
}

// AuthService coordinates signup and login flows.
type AuthService struct {
	users          repository.UserRepository
	tokens         *auth.TokenManager
	hasher         *auth.PasswordHasher
	presence       *PresenceService
	throttle       LoginThrottle
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	clock          clock.Clock
	minPassword    int
	onlineOnSignup bool
	dummyDigest    string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Presence   *PresenceService
	Throttle   LoginThrottle
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      clock.Clock
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy digest: %w", err)
	}

	return &AuthService{
		users:          deps.UserRepo,
		tokens:         auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL(), deps.Clock),
		hasher:         hasher,
		presence:       deps.Presence,
		throttle:       deps.Throttle,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		clock:          deps.Clock,
		minPassword:    cfg.Auth.MinPasswordLength,
		onlineOnSignup: cfg.Presence.OnlineOnSignup,
		dummyDigest:    dummy,
	}, nil
}

// Signup creates a new account and issues its first token.
func (s *AuthService) Signup(ctx context.Context, username, password string) (*domain.User, domain.IssuedToken, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.IssuedToken{}, ErrMissingCredentials
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, domain.IssuedToken{}, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, domain.IssuedToken{}, ErrUsernameTaken
	}

	if utf8.RuneCountInString(password) < s.minPassword {
		return nil, domain.IssuedToken{}, ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, domain.IssuedToken{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, username, hash)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, domain.IssuedToken{}, ErrUsernameTaken
		}
		return nil, domain.IssuedToken{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, domain.IssuedToken{}, fmt.Errorf("issue token: %w", err)
	}

	if s.onlineOnSignup && s.presence != nil {
		s.presence.RecordActivity(domain.Identity{UserID: user.ID, Username: user.Username})
	}
	s.publish(ctx, events.NewEvent(events.EventUserSignedUp, presence.KeyFromID(user.ID).String(), user.Username, s.clock.Now(), nil))

	return user, token, nil
}

// Login verifies credentials, issues a token and marks the user online.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	if err := s.checkThrottle(ctx, username, in.ClientIP); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	digest := s.dummyDigest
	if user != nil {
		digest = user.PasswordHash
	}
	if !s.hasher.Verify(in.Password, digest) || user == nil {
		s.recordFailure(ctx, username, in.ClientIP)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.resetThrottle(ctx, username, in.ClientIP)

	count := 0
	if s.presence != nil {
		count = s.presence.Heartbeat(domain.Identity{UserID: user.ID, Username: user.Username})
	}
	s.publish(ctx, events.NewEvent(events.EventUserLoggedIn, presence.KeyFromID(user.ID).String(), user.Username, s.clock.Now(),
		events.LoginPayload{OnlineCount: count}))

	return &LoginResult{User: user, Token: token, OnlineCount: count}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

func (s *AuthService) checkThrottle(ctx context.Context, username, ip string) error {
	if s.throttle == nil {
		return nil
	}
	err := s.throttle.Allow(ctx, username, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ratelimit.ErrTooManyAttempts):
		return ErrTooManyAttempts
	default:
		s.logger.Warn("login throttle unavailable; allowing attempt", zap.Error(err))
		return nil
	}
}

func (s *AuthService) recordFailure(ctx context.Context, username, ip string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, username, ip); err != nil {
		s.logger.Warn("record failed login", zap.Error(err))
	}
}

func (s *AuthService) resetThrottle(ctx context.Context, username, ip string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Reset(ctx, username, ip); err != nil {
		s.logger.Warn("reset login throttle", zap.Error(err))
	}
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
