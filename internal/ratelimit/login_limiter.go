// Package ratelimit throttles repeated failed logins with Redis fixed-window
// counters. A counter is created by INCR and gets its TTL on the first hit,
// so the window starts at the first failure and is not extended by later ones.
//
// Key prefixes:
//   - lt:u:  failed logins per username
//   - lt:ip: failed logins per client IP
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrTooManyAttempts reports that the caller exhausted the failure budget.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// LoginLimiter counts failed logins per username and per client IP.
type LoginLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	window      time.Duration
}

// NewLoginLimiter creates a limiter backed by the given Redis client.
func NewLoginLimiter(client redis.UniversalClient, maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{redis: client, maxAttempts: maxAttempts, window: window}
}

// Allow returns ErrTooManyAttempts when either counter is at the limit.
func (l *LoginLimiter) Allow(ctx context.Context, username, ip string) error {
	for _, key := range l.keys(username, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count >= int64(l.maxAttempts) {
			return ErrTooManyAttempts
		}
	}
	return nil
}

// RecordFailure increments both counters.
func (l *LoginLimiter) RecordFailure(ctx context.Context, username, ip string) error {
	for _, key := range l.keys(username, ip) {
		if err := l.incrementWithTTL(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears both counters after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, username, ip string) error {
	if err := l.redis.Del(ctx, l.keys(username, ip)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *LoginLimiter) incrementWithTTL(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (l *LoginLimiter) keys(username, ip string) []string {
	keys := []string{"lt:u:" + username}
	if ip != "" {
		keys = append(keys, "lt:ip:"+ip)
	}
	return keys
}
