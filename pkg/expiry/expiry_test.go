package expiry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wattwise/controller/pkg/types"
)

type fakeExpiryStore struct {
	mu       sync.Mutex
	calls    int
	inFlight chan struct{}
	result   int
}

func (f *fakeExpiryStore) ExpireManualOverrides(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.inFlight != nil {
		<-f.inFlight
	}
	return f.result, nil
}

func (f *fakeExpiryStore) UpsertPricePoints(context.Context, []types.PricePoint) (int, int, int, error) {
	return 0, 0, 0, nil
}
func (f *fakeExpiryStore) GetPricePoints(context.Context, time.Time, time.Time) ([]types.PricePoint, error) {
	return nil, nil
}
func (f *fakeExpiryStore) DeletePricePointsBefore(context.Context, time.Time) (int, error) {
	return 0, nil
}
func (f *fakeExpiryStore) Ping(context.Context) error { return nil }
func (f *fakeExpiryStore) SetManualOverride(context.Context, types.Device, bool, time.Time, string) error {
	return nil
}
func (f *fakeExpiryStore) ClearManualOverride(context.Context, types.Device, string) (int, error) {
	return 0, nil
}
func (f *fakeExpiryStore) ClearAllManualOverrides(context.Context, string) (int, error) {
	return 0, nil
}
func (f *fakeExpiryStore) GetActiveManualOverride(context.Context, types.Device, time.Time) (types.ManualOverride, bool, error) {
	return types.ManualOverride{}, false, nil
}
func (f *fakeExpiryStore) ReportScheduleOverride(context.Context, types.Device, bool, string, time.Time) error {
	return nil
}
func (f *fakeExpiryStore) GetScheduleOverride(context.Context, types.Device) (types.ScheduleOverride, bool, error) {
	return types.ScheduleOverride{}, false, nil
}
func (f *fakeExpiryStore) GetScheduleHistory(context.Context, types.Device, time.Time, time.Time, int) ([]types.ScheduleTransition, error) {
	return nil, nil
}
func (f *fakeExpiryStore) InsertRecommendation(context.Context, types.Recommendation) error {
	return nil
}
func (f *fakeExpiryStore) GetLatestRecommendation(context.Context) (types.Recommendation, bool, error) {
	return types.Recommendation{}, false, nil
}
func (f *fakeExpiryStore) Close() error { return nil }

func TestTick_CallsExpire(t *testing.T) {
	store := &fakeExpiryStore{result: 3}
	w := NewWorker(store, time.Minute)

	w.tick(context.Background())

	assert.Equal(t, 1, store.calls)
}

func TestTick_SkipsWhenPreviousStillRunning(t *testing.T) {
	store := &fakeExpiryStore{inFlight: make(chan struct{})}
	w := NewWorker(store, time.Minute)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.tick(context.Background())
	}()

	// give the first tick time to enter and block
	for !w.running.Load() {
		time.Sleep(time.Millisecond)
	}

	w.tick(context.Background()) // should be dropped immediately

	close(store.inFlight)
	wg.Wait()

	assert.Equal(t, 1, store.calls)
}
