package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/types"
)

// Clock abstracts time so tests can advance it deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// CachingAdapter wraps an Adapter with a last-good-snapshot cache. On
// failure it serves the last snapshot if it is younger than staleAfter;
// otherwise it returns the failure so the caller can fall back.
type CachingAdapter struct {
	next       Adapter
	clock      Clock
	staleAfter time.Duration

	mu       sync.Mutex
	lastGood types.SystemState
	lastAt   time.Time
	hasGood  bool
}

// NewCachingAdapter wraps next, serving cached snapshots up to staleAfter
// old whenever next.Snapshot fails.
func NewCachingAdapter(next Adapter, clock Clock, staleAfter time.Duration) *CachingAdapter {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CachingAdapter{next: next, clock: clock, staleAfter: staleAfter}
}

// Snapshot returns a fresh reading, or the last good one if the
// underlying adapter fails and the cache is still fresh.
func (c *CachingAdapter) Snapshot(ctx context.Context) (types.SystemState, error) {
	state, err := c.next.Snapshot(ctx)
	if err == nil {
		c.mu.Lock()
		c.lastGood = state
		c.lastAt = c.clock.Now()
		c.hasGood = true
		c.mu.Unlock()
		return state, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasGood && c.clock.Now().Sub(c.lastAt) <= c.staleAfter {
		log.Ctx(ctx).WarnContext(ctx, "adapter read failed, serving cached snapshot",
			"error", err, "snapshot_age", c.clock.Now().Sub(c.lastAt))
		stale := c.lastGood
		stale.DegradedConfidence = true
		return stale, nil
	}
	return types.SystemState{}, err
}
