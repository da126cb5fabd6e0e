// Package presence tracks which users are currently considered online.
//
// A user is online from their last login, heartbeat or authenticated request
// until the staleness threshold passes without further activity. Entries are
// removed eagerly on logout and lazily by Sweep, which a background worker
// calls on a fixed period.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/presence-auth-service/internal/clock"
)

const (
	// DefaultStaleAfter is how long an entry survives without activity.
	DefaultStaleAfter = 5 * time.Minute
	// DefaultSweepInterval is how often stale entries are pruned.
	DefaultSweepInterval = 60 * time.Second
	// ClientHeartbeatInterval is the cadence clients are expected to ping at.
	// It must stay well below DefaultStaleAfter so missed beats are tolerated.
	ClientHeartbeatInterval = 30 * time.Second
)

// Entry is a snapshot of one online user.
type Entry struct {
	UserID       UserKey
	Username     string
	LastActiveAt time.Time
}

type entry struct {
	username     string
	lastActiveAt time.Time
}

// Registry is the in-memory presence table. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	clock   clock.Clock
	entries map[UserKey]entry
}

// NewRegistry creates an empty registry reading time from c.
func NewRegistry(c clock.Clock) *Registry {
	if c == nil {
		c = clock.Real{}
	}
	return &Registry{
		clock:   c,
		entries: make(map[UserKey]entry),
	}
}

// Touch marks the user active now, inserting an entry if needed.
func (r *Registry) Touch(key UserKey, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if existing, ok := r.entries[key]; ok && existing.lastActiveAt.After(now) {
		now = existing.lastActiveAt
	}
	r.entries[key] = entry{username: username, lastActiveAt: now}
}

// Remove drops the user's entry. It reports whether an entry existed.
func (r *Registry) Remove(key UserKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	return true
}

// Count returns the number of tracked users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Online reports whether the user currently has an entry.
func (r *Registry) Online(key UserKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// List returns a snapshot of all entries. Callers must treat the order as
// unspecified; it happens to be sorted by username.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for key, e := range r.entries {
		out = append(out, Entry{UserID: key, Username: e.username, LastActiveAt: e.lastActiveAt})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Username == out[j].Username {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Username < out[j].Username
	})
	return out
}

// Sweep removes every entry idle for longer than threshold as of now and
// returns the removed entries. An entry touched after now is never removed.
func (r *Registry) Sweep(now time.Time, threshold time.Duration) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Entry
	for key, e := range r.entries {
		if now.Sub(e.lastActiveAt) > threshold {
			removed = append(removed, Entry{UserID: key, Username: e.username, LastActiveAt: e.lastActiveAt})
			delete(r.entries, key)
		}
	}
	return removed
}

// Now exposes the registry clock so sweeps and touches share one time source.
func (r *Registry) Now() time.Time {
	return r.clock.Now()
}
