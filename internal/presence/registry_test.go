package presence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/presence-auth-service/internal/clock"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestTouchThenCount(t *testing.T) {
	reg := NewRegistry(clock.NewFake(epoch))

	reg.Touch(KeyFromID(1), "alice")
	assert.Equal(t, 1, reg.Count())
	assert.True(t, reg.Online(KeyFromID(1)))

	reg.Touch(KeyFromID(1), "alice")
	assert.Equal(t, 1, reg.Count(), "touch must be idempotent per user")
}

func TestRemoveIsIdempotent(t *testing.T) {
	reg := NewRegistry(clock.NewFake(epoch))
	reg.Touch(KeyFromID(1), "alice")

	assert.True(t, reg.Remove(KeyFromID(1)))
	assert.Equal(t, 0, reg.Count())
	assert.False(t, reg.Remove(KeyFromID(1)))
	assert.False(t, reg.Remove(KeyFromID(42)))
	assert.Equal(t, 0, reg.Count())
}

func TestTouchRefreshesTimestamp(t *testing.T) {
	clk := clock.NewFake(epoch)
	reg := NewRegistry(clk)

	reg.Touch(KeyFromID(1), "alice")
	clk.Advance(4 * time.Minute)
	reg.Touch(KeyFromID(1), "alice")

	entries := reg.List()
	require.Len(t, entries, 1)
	assert.Equal(t, epoch.Add(4*time.Minute), entries[0].LastActiveAt)
}

func TestTouchNeverMovesBackwards(t *testing.T) {
	clk := clock.NewFake(epoch)
	reg := NewRegistry(clk)

	reg.Touch(KeyFromID(1), "alice")
	clk.Set(epoch.Add(-time.Minute))
	reg.Touch(KeyFromID(1), "alice")

	entries := reg.List()
	require.Len(t, entries, 1)
	assert.Equal(t, epoch, entries[0].LastActiveAt)
}

func TestSweepRemovesOnlyStaleEntries(t *testing.T) {
	clk := clock.NewFake(epoch)
	reg := NewRegistry(clk)

	reg.Touch(KeyFromID(1), "old")
	clk.Advance(2 * time.Minute)
	reg.Touch(KeyFromID(2), "mid")
	clk.Advance(2 * time.Minute)
	reg.Touch(KeyFromID(3), "fresh")

	// old idle 6m, mid 4m, fresh 2m
	now := clk.Now().Add(2 * time.Minute)
	removed := reg.Sweep(now, 5*time.Minute)

	require.Len(t, removed, 1)
	assert.Equal(t, "old", removed[0].Username)
	assert.Equal(t, 2, reg.Count())
	assert.False(t, reg.Online(KeyFromID(1)))

	again := reg.Sweep(now, 5*time.Minute)
	assert.Empty(t, again, "second sweep without activity must be a no-op")
	assert.Equal(t, 2, reg.Count())
}

func TestSweepBoundaryIsExclusive(t *testing.T) {
	reg := NewRegistry(clock.NewFake(epoch))
	reg.Touch(KeyFromID(1), "alice")

	assert.Empty(t, reg.Sweep(epoch.Add(5*time.Minute), 5*time.Minute))
	assert.Len(t, reg.Sweep(epoch.Add(5*time.Minute+time.Nanosecond), 5*time.Minute), 1)
}

func TestSweepKeepsEntryTouchedAfterNow(t *testing.T) {
	clk := clock.NewFake(epoch)
	reg := NewRegistry(clk)

	sweepNow := epoch
	clk.Advance(time.Second)
	reg.Touch(KeyFromID(1), "alice")

	assert.Empty(t, reg.Sweep(sweepNow, 0))
	assert.Equal(t, 1, reg.Count())
}

func TestListIsSnapshot(t *testing.T) {
	reg := NewRegistry(clock.NewFake(epoch))
	reg.Touch(KeyFromID(2), "bob")
	reg.Touch(KeyFromID(1), "alice")

	list := reg.List()
	require.Len(t, list, 2)
	usernames := []string{list[0].Username, list[1].Username}
	assert.ElementsMatch(t, []string{"alice", "bob"}, usernames)

	reg.Remove(KeyFromID(1))
	assert.Len(t, list, 2)
	assert.Len(t, reg.List(), 1)
}

func TestKeyCanonicalization(t *testing.T) {
	reg := NewRegistry(clock.NewFake(epoch))

	fromRaw := []string{"7", "007", " 7 ", "+7"}
	reg.Touch(KeyFromID(7), "alice")
	for _, raw := range fromRaw {
		key, err := ParseKey(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, KeyFromID(7), key, raw)
		reg.Touch(key, "alice")
	}
	assert.Equal(t, 1, reg.Count())

	_, err := ParseKey("alice")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNoDuplicateEntriesAcrossRepresentations(t *testing.T) {
	reg := NewRegistry(clock.NewFake(epoch))

	for id := int64(1); id <= 200; id++ {
		reg.Touch(KeyFromID(id), fmt.Sprintf("user%d", id))
		key, err := ParseKey(fmt.Sprintf("%d", id))
		require.NoError(t, err)
		reg.Touch(key, fmt.Sprintf("user%d", id))
		padded, err := ParseKey(fmt.Sprintf("%05d", id))
		require.NoError(t, err)
		reg.Touch(padded, fmt.Sprintf("user%d", id))
	}
	assert.Equal(t, 200, reg.Count())
}

func TestConcurrentMutations(t *testing.T) {
	clk := clock.NewFake(epoch)
	reg := NewRegistry(clk)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		id := int64(i)
		go func() {
			defer wg.Done()
			reg.Touch(KeyFromID(id), "user")
		}()
		go func() {
			defer wg.Done()
			_ = reg.Sweep(clk.Now(), time.Minute)
		}()
		go func() {
			defer wg.Done()
			_ = reg.List()
			_ = reg.Count()
		}()
	}
	wg.Wait()

	// Nothing is stale at the frozen clock, so every touch survives.
	assert.Equal(t, 50, reg.Count())
}
