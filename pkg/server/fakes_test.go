package server

import (
	"context"
	"time"

	"github.com/wattwise/controller/pkg/tariff"
	"github.com/wattwise/controller/pkg/types"
)

// fakeProvider is a minimal in-memory storage.Provider, in the same
// style as pkg/override's fakeStore: enough real behaviour to exercise
// the handlers without a database.
type fakeProvider struct {
	prices []types.PricePoint

	manual       map[types.Device][]types.ManualOverride
	schedule     map[types.Device]types.ScheduleOverride
	scheduleHist map[types.Device][]types.ScheduleTransition

	recommendations []types.Recommendation

	pingErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		manual:       make(map[types.Device][]types.ManualOverride),
		schedule:     make(map[types.Device]types.ScheduleOverride),
		scheduleHist: make(map[types.Device][]types.ScheduleTransition),
	}
}

func (f *fakeProvider) UpsertPricePoints(ctx context.Context, points []types.PricePoint) (int, int, int, error) {
	inserted := 0
	for _, p := range points {
		found := false
		for i, existing := range f.prices {
			if existing.ValidFrom.Equal(p.ValidFrom) {
				f.prices[i] = p
				found = true
				break
			}
		}
		if !found {
			f.prices = append(f.prices, p)
			inserted++
		}
	}
	return inserted, len(points) - inserted, 0, nil
}

func (f *fakeProvider) GetPricePoints(ctx context.Context, start, end time.Time) ([]types.PricePoint, error) {
	var out []types.PricePoint
	for _, p := range f.prices {
		if p.ValidFrom.Before(end) && p.ValidTo.After(start) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProvider) DeletePricePointsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (f *fakeProvider) SetManualOverride(ctx context.Context, device types.Device, desiredState bool, expiresAt time.Time, source string) error {
	for i, m := range f.manual[device] {
		if m.IsActive {
			f.manual[device][i].IsActive = false
		}
	}
	f.manual[device] = append(f.manual[device], types.ManualOverride{
		DeviceID: device, IsActive: true, DesiredState: desiredState,
		Source: source, ExpiresAt: expiresAt,
	})
	return nil
}

func (f *fakeProvider) ClearManualOverride(ctx context.Context, device types.Device, clearedBy string) (int, error) {
	count := 0
	for i, m := range f.manual[device] {
		if m.IsActive {
			f.manual[device][i].IsActive = false
			f.manual[device][i].ClearedBy = clearedBy
			count++
		}
	}
	return count, nil
}

func (f *fakeProvider) ClearAllManualOverrides(ctx context.Context, clearedBy string) (int, error) {
	total := 0
	for d := range f.manual {
		n, _ := f.ClearManualOverride(ctx, d, clearedBy)
		total += n
	}
	return total, nil
}

func (f *fakeProvider) GetActiveManualOverride(ctx context.Context, device types.Device, now time.Time) (types.ManualOverride, bool, error) {
	for _, m := range f.manual[device] {
		if m.IsActive && m.ExpiresAt.After(now) {
			return m, true, nil
		}
	}
	return types.ManualOverride{}, false, nil
}

func (f *fakeProvider) ExpireManualOverrides(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (f *fakeProvider) ReportScheduleOverride(ctx context.Context, device types.Device, isActive bool, reason string, at time.Time) error {
	existing, ok := f.schedule[device]
	activatedAt := at
	if ok && existing.IsActive {
		activatedAt = existing.ActivatedAt
	}
	f.schedule[device] = types.ScheduleOverride{
		DeviceID: device, IsActive: isActive, Reason: reason,
		DesiredState: isActive, ActivatedAt: activatedAt, UpdatedAt: at,
	}
	f.scheduleHist[device] = append(f.scheduleHist[device], types.ScheduleTransition{
		DeviceID: device, IsActive: isActive, Reason: reason, DesiredState: isActive, ReportedAt: at,
	})
	return nil
}

func (f *fakeProvider) GetScheduleOverride(ctx context.Context, device types.Device) (types.ScheduleOverride, bool, error) {
	s, ok := f.schedule[device]
	return s, ok, nil
}

func (f *fakeProvider) GetScheduleHistory(ctx context.Context, device types.Device, start, end time.Time, limit int) ([]types.ScheduleTransition, error) {
	var out []types.ScheduleTransition
	for _, t := range f.scheduleHist[device] {
		if !t.ReportedAt.Before(start) && t.ReportedAt.Before(end) {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeProvider) InsertRecommendation(ctx context.Context, rec types.Recommendation) error {
	f.recommendations = append(f.recommendations, rec)
	return nil
}

func (f *fakeProvider) GetLatestRecommendation(ctx context.Context) (types.Recommendation, bool, error) {
	if len(f.recommendations) == 0 {
		return types.Recommendation{}, false, nil
	}
	return f.recommendations[len(f.recommendations)-1], true, nil
}

func (f *fakeProvider) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeProvider) Close() error                   { return nil }

// fakeAdapter is a canned adapter.Adapter.
type fakeAdapter struct {
	state types.SystemState
	err   error
}

func (f *fakeAdapter) Snapshot(ctx context.Context) (types.SystemState, error) {
	return f.state, f.err
}

// fakeFetcher is a canned tariff.Fetcher.
type fakeFetcher struct {
	points []tariff.RawPoint
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]tariff.RawPoint, error) {
	return f.points, f.err
}
