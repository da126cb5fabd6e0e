package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-auth-service/internal/events"
	"github.com/spec-kit/presence-auth-service/internal/observability"
	"github.com/spec-kit/presence-auth-service/internal/presence"
)

// PresenceSweeper periodically drops stale entries from the registry.
type PresenceSweeper struct {
	registry   *presence.Registry
	interval   time.Duration
	staleAfter time.Duration
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	sweeping atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SweeperOptions configures a PresenceSweeper.
type SweeperOptions struct {
	Interval   time.Duration
	StaleAfter time.Duration
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewPresenceSweeper builds a sweeper; zero durations take the registry defaults.
func NewPresenceSweeper(registry *presence.Registry, opts SweeperOptions) *PresenceSweeper {
	if opts.Interval <= 0 {
		opts.Interval = presence.DefaultSweepInterval
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = presence.DefaultStaleAfter
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &PresenceSweeper{
		registry:   registry,
		interval:   opts.Interval,
		staleAfter: opts.StaleAfter,
		dispatcher: opts.Dispatcher,
		metrics:    opts.Metrics,
		logger:     opts.Logger.Named("presence_sweeper"),
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *PresenceSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	s.logger.Info("presence sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("stale_after", s.staleAfter))
}

// Stop cancels the loop and waits for it to exit.
func (s *PresenceSweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("presence sweeper stopped")
}

func (s *PresenceSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps at the registry's current time and returns how many entries
// were removed. If a sweep is already in progress it returns 0 immediately.
func (s *PresenceSweeper) RunOnce(ctx context.Context) int {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug("sweep already running; skipping")
		return 0
	}
	defer s.sweeping.Store(false)

	now := s.registry.Now()
	removed := s.registry.Sweep(now, s.staleAfter)
	if len(removed) == 0 {
		return 0
	}

	s.metrics.RecordPresenceExpired(ctx, len(removed))
	for _, entry := range removed {
		s.logger.Debug("presence expired",
			zap.String("user_id", entry.UserID.String()),
			zap.String("username", entry.Username),
			zap.Time("last_active_at", entry.LastActiveAt))
		s.publish(ctx, events.NewEvent(events.EventPresenceExpired, entry.UserID.String(), entry.Username, now,
			events.PresenceExpiredPayload{LastActiveAt: entry.LastActiveAt, IdleFor: now.Sub(entry.LastActiveAt)}))
	}
	s.logger.Info("presence sweep", zap.Int("removed", len(removed)), zap.Int("online", s.registry.Count()))
	return len(removed)
}

func (s *PresenceSweeper) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
