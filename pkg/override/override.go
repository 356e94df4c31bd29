// Package override is the thin domain layer over pkg/storage that
// implements the manual- and schedule-override lifecycle: idempotent
// mutators plus the status queries the resolver and API consume. It
// holds no state of its own.
package override

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wattwise/controller/pkg/storage"
	"github.com/wattwise/controller/pkg/types"
)

// ErrInvalidDevice is a client error: the caller named an unknown device.
var ErrInvalidDevice = errors.New("override: unknown device")

// ErrInvalidDuration is a client error: a negative or over-max duration.
var ErrInvalidDuration = errors.New("override: duration out of range")

// Manager wraps a storage.Provider with the override lifecycle rules.
type Manager struct {
	store          storage.Provider
	defaultHours   float64
	maxHours       float64
	staleThreshold time.Duration
}

func NewManager(store storage.Provider, defaultHours, maxHours float64, staleThreshold time.Duration) *Manager {
	return &Manager{store: store, defaultHours: defaultHours, maxHours: maxHours, staleThreshold: staleThreshold}
}

// Configure replaces the manager's dependency and duration bounds in
// place, so a Manager can be handed out before flag-derived values are
// available and populated once lflag.Configure() runs.
func (m *Manager) Configure(store storage.Provider, defaultHours, maxHours float64, staleThreshold time.Duration) {
	m.store = store
	m.defaultHours = defaultHours
	m.maxHours = maxHours
	m.staleThreshold = staleThreshold
}

// SetManual creates a new active manual override for device, atomically
// deactivating any prior active row. durationHours == 0 uses the
// configured default; a negative duration or one beyond the configured
// max is rejected.
func (m *Manager) SetManual(ctx context.Context, device types.Device, desiredState bool, durationHours float64, source string, now time.Time) (time.Time, error) {
	if !device.Valid() {
		return time.Time{}, ErrInvalidDevice
	}
	if durationHours < 0 {
		return time.Time{}, fmt.Errorf("%w: %.2fh is negative", ErrInvalidDuration, durationHours)
	}
	if durationHours == 0 {
		durationHours = m.defaultHours
	}
	if durationHours > m.maxHours {
		return time.Time{}, fmt.Errorf("%w: %.2fh exceeds max %.2fh", ErrInvalidDuration, durationHours, m.maxHours)
	}
	if source == "" {
		source = "api"
	}

	expiresAt := now.Add(time.Duration(durationHours * float64(time.Hour)))
	if err := m.store.SetManualOverride(ctx, device, desiredState, expiresAt, source); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// ClearManual deactivates device's active manual override, if any.
// Idempotent: clearing an already-inactive device returns 0, nil.
func (m *Manager) ClearManual(ctx context.Context, device types.Device, clearedBy string) (int, error) {
	if !device.Valid() {
		return 0, ErrInvalidDevice
	}
	if clearedBy == "" {
		clearedBy = "api"
	}
	return m.store.ClearManualOverride(ctx, device, clearedBy)
}

// ClearAllManual deactivates every device's active manual override.
func (m *Manager) ClearAllManual(ctx context.Context, clearedBy string) (int, error) {
	if clearedBy == "" {
		clearedBy = "api"
	}
	return m.store.ClearAllManualOverrides(ctx, clearedBy)
}

// ManualStatus reports whether device has a currently-active, unexpired
// manual override.
func (m *Manager) ManualStatus(ctx context.Context, device types.Device, now time.Time) (types.ManualStatus, error) {
	row, ok, err := m.store.GetActiveManualOverride(ctx, device, now)
	if err != nil {
		return types.ManualStatus{}, err
	}
	if !ok {
		return types.ManualStatus{Active: false}, nil
	}
	remaining := row.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return types.ManualStatus{
		Active:               true,
		DesiredState:         row.DesiredState,
		Source:               row.Source,
		ExpiresAt:            row.ExpiresAt,
		TimeRemainingMinutes: int(remaining.Minutes()),
	}, nil
}

// ManualStatusAll reports ManualStatus for every device.
func (m *Manager) ManualStatusAll(ctx context.Context, now time.Time) (map[types.Device]types.ManualStatus, error) {
	out := make(map[types.Device]types.ManualStatus, len(types.Devices()))
	for _, d := range types.Devices() {
		s, err := m.ManualStatus(ctx, d, now)
		if err != nil {
			return nil, err
		}
		out[d] = s
	}
	return out, nil
}

// ReportSchedule records one heartbeat from the external schedule
// source. isActive = false marks the device inactive immediately;
// isActive = true (re-)asserts "heat now" and refreshes the heartbeat.
func (m *Manager) ReportSchedule(ctx context.Context, device types.Device, isActive bool, reason string, at time.Time) error {
	if !device.Valid() {
		return ErrInvalidDevice
	}
	return m.store.ReportScheduleOverride(ctx, device, isActive, reason, at)
}

// ScheduleStatus reports device's schedule status, treating a stale
// heartbeat as inactive regardless of the stored is_active flag.
func (m *Manager) ScheduleStatus(ctx context.Context, device types.Device, now time.Time) (types.ScheduleStatus, error) {
	row, ok, err := m.store.GetScheduleOverride(ctx, device)
	if err != nil {
		return types.ScheduleStatus{}, err
	}
	if !ok || !row.IsActive {
		return types.ScheduleStatus{Active: false}, nil
	}
	if now.Sub(row.UpdatedAt) > m.staleThreshold {
		return types.ScheduleStatus{Active: false, Reason: "heartbeat stale"}, nil
	}
	return types.ScheduleStatus{
		Active:       true,
		DesiredState: row.DesiredState,
		Reason:       row.Reason,
		ActivatedAt:  row.ActivatedAt,
	}, nil
}

// ScheduleStatusAll reports ScheduleStatus for every device.
func (m *Manager) ScheduleStatusAll(ctx context.Context, now time.Time) (map[types.Device]types.ScheduleStatus, error) {
	out := make(map[types.Device]types.ScheduleStatus, len(types.Devices()))
	for _, d := range types.Devices() {
		s, err := m.ScheduleStatus(ctx, d, now)
		if err != nil {
			return nil, err
		}
		out[d] = s
	}
	return out, nil
}

// ScheduleHistory returns device's recent schedule transitions.
func (m *Manager) ScheduleHistory(ctx context.Context, device types.Device, start, end time.Time, limit int) ([]types.ScheduleTransition, error) {
	if !device.Valid() {
		return nil, ErrInvalidDevice
	}
	if limit <= 0 {
		limit = 50
	}
	return m.store.GetScheduleHistory(ctx, device, start, end, limit)
}
