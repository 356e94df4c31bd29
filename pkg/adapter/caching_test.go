package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattwise/controller/pkg/types"
)

type fakeAdapter struct {
	state types.SystemState
	err   error
}

func (f *fakeAdapter) Snapshot(context.Context) (types.SystemState, error) {
	return f.state, f.err
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func TestCachingAdapter_ServesFreshOnSuccess(t *testing.T) {
	next := &fakeAdapter{state: types.SystemState{BatterySOCPercent: 42}}
	clock := &fakeClock{now: time.Now()}
	c := NewCachingAdapter(next, clock, 5*time.Minute)

	state, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(42), state.BatterySOCPercent)
	assert.False(t, state.DegradedConfidence)
}

func TestCachingAdapter_ServesStaleCacheWithinThreshold(t *testing.T) {
	next := &fakeAdapter{state: types.SystemState{BatterySOCPercent: 77}}
	clock := &fakeClock{now: time.Now()}
	c := NewCachingAdapter(next, clock, 5*time.Minute)

	_, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	next.err = errors.New("bridge unreachable")
	clock.now = clock.now.Add(2 * time.Minute)

	state, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(77), state.BatterySOCPercent)
	assert.True(t, state.DegradedConfidence)
}

func TestCachingAdapter_FailsPastStaleness(t *testing.T) {
	next := &fakeAdapter{state: types.SystemState{BatterySOCPercent: 77}}
	clock := &fakeClock{now: time.Now()}
	c := NewCachingAdapter(next, clock, 5*time.Minute)

	_, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	next.err = errors.New("bridge unreachable")
	clock.now = clock.now.Add(10 * time.Minute)

	_, err = c.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestCachingAdapter_NoCacheYetPropagatesError(t *testing.T) {
	next := &fakeAdapter{err: errors.New("bridge unreachable")}
	c := NewCachingAdapter(next, &fakeClock{now: time.Now()}, 5*time.Minute)

	_, err := c.Snapshot(context.Background())
	assert.Error(t, err)
}
