// Package storage is the persistence layer: price points, override
// state, and the recommendation audit log, backed by Postgres.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/wattwise/controller/pkg/types"
)

// ErrDeviceNotFound is the storage-level unknown-device error. No
// Provider method in this package returns it; device names are checked
// before they reach storage.
var ErrDeviceNotFound = errors.New("storage: unknown device")

// Provider is everything the rest of the core needs from persistence.
// One implementation (Postgres) backs it in production; tests use an
// in-memory fake implementing the same interface.
type Provider interface {
	// Tariff
	UpsertPricePoints(ctx context.Context, points []types.PricePoint) (inserted, updated, unchanged int, err error)
	GetPricePoints(ctx context.Context, start, end time.Time) ([]types.PricePoint, error)
	DeletePricePointsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Manual overrides
	SetManualOverride(ctx context.Context, device types.Device, desiredState bool, expiresAt time.Time, source string) error
	ClearManualOverride(ctx context.Context, device types.Device, clearedBy string) (int, error)
	ClearAllManualOverrides(ctx context.Context, clearedBy string) (int, error)
	GetActiveManualOverride(ctx context.Context, device types.Device, now time.Time) (types.ManualOverride, bool, error)
	ExpireManualOverrides(ctx context.Context, now time.Time) (int, error)

	// Schedule overrides
	ReportScheduleOverride(ctx context.Context, device types.Device, isActive bool, reason string, at time.Time) error
	GetScheduleOverride(ctx context.Context, device types.Device) (types.ScheduleOverride, bool, error)
	GetScheduleHistory(ctx context.Context, device types.Device, start, end time.Time, limit int) ([]types.ScheduleTransition, error)

	// Recommendations
	InsertRecommendation(ctx context.Context, rec types.Recommendation) error
	GetLatestRecommendation(ctx context.Context) (types.Recommendation, bool, error)

	// Ping is a cheap reachability check, used by the health endpoint.
	Ping(ctx context.Context) error

	Close() error
}
