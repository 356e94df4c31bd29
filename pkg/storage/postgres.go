package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wattwise/controller/pkg/types"
)

// Postgres is the production Provider, backed by a connection pool
// shared across request handlers and the expiry worker.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-connected pool. Schema setup is handled
// separately by the migration runner (pkg/storage/migrate.go), not here.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Ping is a cheap reachability check for the health endpoint.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) UpsertPricePoints(ctx context.Context, points []types.PricePoint) (inserted, updated, unchanged int, err error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	defer tx.Rollback(ctx)

	const upsertSQL = `
INSERT INTO price_points (valid_from, valid_to, unit_price, classification)
VALUES ($1, $2, $3, $4)
ON CONFLICT (valid_from) DO UPDATE
	SET valid_to = EXCLUDED.valid_to,
	    unit_price = EXCLUDED.unit_price,
	    classification = EXCLUDED.classification
	WHERE price_points.unit_price IS DISTINCT FROM EXCLUDED.unit_price
	   OR price_points.valid_to IS DISTINCT FROM EXCLUDED.valid_to
	   OR price_points.classification IS DISTINCT FROM EXCLUDED.classification
RETURNING (xmax = 0) AS was_insert
`
	for _, pt := range points {
		row := tx.QueryRow(ctx, upsertSQL, pt.ValidFrom, pt.ValidTo, pt.UnitPrice, string(pt.Classification))
		var wasInsert bool
		scanErr := row.Scan(&wasInsert)
		switch {
		case errors.Is(scanErr, pgx.ErrNoRows):
			unchanged++
		case scanErr != nil:
			return 0, 0, 0, scanErr
		case wasInsert:
			inserted++
		default:
			updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, 0, err
	}
	return inserted, updated, unchanged, nil
}

func (p *Postgres) GetPricePoints(ctx context.Context, start, end time.Time) ([]types.PricePoint, error) {
	const query = `
SELECT valid_from, valid_to, unit_price, classification
FROM price_points
WHERE valid_from >= $1 AND valid_from < $2
ORDER BY valid_from ASC
`
	rows, err := p.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []types.PricePoint
	for rows.Next() {
		var pt types.PricePoint
		var class string
		if err := rows.Scan(&pt.ValidFrom, &pt.ValidTo, &pt.UnitPrice, &class); err != nil {
			return nil, err
		}
		pt.Classification = types.Classification(class)
		points = append(points, pt)
	}
	return points, rows.Err()
}

func (p *Postgres) DeletePricePointsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `DELETE FROM price_points WHERE valid_from < $1`
	tag, err := p.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) SetManualOverride(ctx context.Context, device types.Device, desiredState bool, expiresAt time.Time, source string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const deactivateSQL = `
UPDATE manual_overrides
SET is_active = false, cleared_at = now(), cleared_by = $2
WHERE device_id = $1 AND is_active = true
`
	if _, err := tx.Exec(ctx, deactivateSQL, string(device), types.ClearedBySystemReplaced); err != nil {
		return err
	}

	const insertSQL = `
INSERT INTO manual_overrides (device_id, is_active, desired_state, source, created_at, expires_at)
VALUES ($1, true, $2, $3, now(), $4)
`
	if _, err := tx.Exec(ctx, insertSQL, string(device), desiredState, source, expiresAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (p *Postgres) ClearManualOverride(ctx context.Context, device types.Device, clearedBy string) (int, error) {
	const query = `
UPDATE manual_overrides
SET is_active = false, cleared_at = now(), cleared_by = $2
WHERE device_id = $1 AND is_active = true
`
	tag, err := p.pool.Exec(ctx, query, string(device), clearedBy)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) ClearAllManualOverrides(ctx context.Context, clearedBy string) (int, error) {
	const query = `
UPDATE manual_overrides
SET is_active = false, cleared_at = now(), cleared_by = $1
WHERE is_active = true
`
	tag, err := p.pool.Exec(ctx, query, clearedBy)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) GetActiveManualOverride(ctx context.Context, device types.Device, now time.Time) (types.ManualOverride, bool, error) {
	const query = `
SELECT id, device_id, is_active, desired_state, source, created_at, expires_at, cleared_at, cleared_by
FROM manual_overrides
WHERE device_id = $1 AND is_active = true AND expires_at > $2
ORDER BY created_at DESC
LIMIT 1
`
	row := p.pool.QueryRow(ctx, query, string(device), now)
	var (
		m        types.ManualOverride
		deviceID string
		clearedAt *time.Time
		clearedBy *string
	)
	if err := row.Scan(&m.ID, &deviceID, &m.IsActive, &m.DesiredState, &m.Source, &m.CreatedAt, &m.ExpiresAt, &clearedAt, &clearedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ManualOverride{}, false, nil
		}
		return types.ManualOverride{}, false, err
	}
	m.DeviceID = types.Device(deviceID)
	m.ClearedAt = clearedAt
	if clearedBy != nil {
		m.ClearedBy = *clearedBy
	}
	return m, true, nil
}

func (p *Postgres) ExpireManualOverrides(ctx context.Context, now time.Time) (int, error) {
	const query = `
UPDATE manual_overrides
SET is_active = false, cleared_at = $1, cleared_by = $2
WHERE is_active = true AND expires_at <= $1
`
	tag, err := p.pool.Exec(ctx, query, now, types.ClearedBySystemExpiry)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) ReportScheduleOverride(ctx context.Context, device types.Device, isActive bool, reason string, at time.Time) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if isActive {
		const upsertSQL = `
INSERT INTO schedule_overrides (device_id, is_active, reason, desired_state, activated_at, updated_at)
VALUES ($1, true, $2, true, $3, $3)
ON CONFLICT (device_id) DO UPDATE
	SET is_active = true,
	    reason = EXCLUDED.reason,
	    desired_state = true,
	    activated_at = CASE WHEN schedule_overrides.is_active THEN schedule_overrides.activated_at ELSE EXCLUDED.activated_at END,
	    updated_at = EXCLUDED.updated_at
`
		if _, err := tx.Exec(ctx, upsertSQL, string(device), reason, at); err != nil {
			return err
		}
	} else {
		const deactivateSQL = `
UPDATE schedule_overrides
SET is_active = false, reason = $2, deactivated_at = $3, updated_at = $3
WHERE device_id = $1
`
		if _, err := tx.Exec(ctx, deactivateSQL, string(device), reason, at); err != nil {
			return err
		}
	}

	const historySQL = `
INSERT INTO schedule_history (device_id, is_active, reason, desired_state, reported_at)
VALUES ($1, $2, $3, $4, $5)
`
	if _, err := tx.Exec(ctx, historySQL, string(device), isActive, reason, isActive, at); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (p *Postgres) GetScheduleOverride(ctx context.Context, device types.Device) (types.ScheduleOverride, bool, error) {
	const query = `
SELECT device_id, is_active, reason, desired_state, activated_at, deactivated_at, updated_at
FROM schedule_overrides
WHERE device_id = $1
`
	row := p.pool.QueryRow(ctx, query, string(device))
	var (
		s             types.ScheduleOverride
		deviceID      string
		deactivatedAt *time.Time
	)
	if err := row.Scan(&deviceID, &s.IsActive, &s.Reason, &s.DesiredState, &s.ActivatedAt, &deactivatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.ScheduleOverride{}, false, nil
		}
		return types.ScheduleOverride{}, false, err
	}
	s.DeviceID = types.Device(deviceID)
	s.DeactivatedAt = deactivatedAt
	return s, true, nil
}

func (p *Postgres) GetScheduleHistory(ctx context.Context, device types.Device, start, end time.Time, limit int) ([]types.ScheduleTransition, error) {
	const query = `
SELECT device_id, is_active, reason, desired_state, reported_at
FROM schedule_history
WHERE device_id = $1 AND reported_at >= $2 AND reported_at < $3
ORDER BY reported_at DESC
LIMIT $4
`
	rows, err := p.pool.Query(ctx, query, string(device), start, end, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ScheduleTransition
	for rows.Next() {
		var (
			t        types.ScheduleTransition
			deviceID string
		)
		if err := rows.Scan(&deviceID, &t.IsActive, &t.Reason, &t.DesiredState, &t.ReportedAt); err != nil {
			return nil, err
		}
		t.DeviceID = types.Device(deviceID)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertRecommendation(ctx context.Context, rec types.Recommendation) error {
	const query = `
INSERT INTO recommendations (timestamp, horizon_end, battery_mode, discharge_current_amps, devices, optimization_status, solver_elapsed_ns, expected_end_of_horizon_soc, objective_value, manual_override_active, schedule_override_active, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
	devicesJSON, err := encodeDevices(rec.Devices)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, query,
		rec.Timestamp, rec.HorizonEnd, string(rec.BatteryMode), rec.DischargeCurrentAmps,
		devicesJSON, string(rec.OptimizationStatus), rec.SolverElapsed.Nanoseconds(),
		rec.ExpectedEndOfHorizonSOC, rec.ObjectiveValue,
		rec.ManualOverrideActive, rec.ScheduleOverrideActive, rec.Reason,
	)
	return err
}

func (p *Postgres) GetLatestRecommendation(ctx context.Context) (types.Recommendation, bool, error) {
	const query = `
SELECT timestamp, horizon_end, battery_mode, discharge_current_amps, devices, optimization_status, solver_elapsed_ns, expected_end_of_horizon_soc, objective_value, manual_override_active, schedule_override_active, reason
FROM recommendations
ORDER BY timestamp DESC
LIMIT 1
`
	row := p.pool.QueryRow(ctx, query)
	var (
		rec         types.Recommendation
		batteryMode string
		status      string
		devicesJSON []byte
		elapsedNS   int64
	)
	if err := row.Scan(&rec.Timestamp, &rec.HorizonEnd, &batteryMode, &rec.DischargeCurrentAmps, &devicesJSON, &status, &elapsedNS, &rec.ExpectedEndOfHorizonSOC, &rec.ObjectiveValue, &rec.ManualOverrideActive, &rec.ScheduleOverrideActive, &rec.Reason); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Recommendation{}, false, nil
		}
		return types.Recommendation{}, false, err
	}
	rec.BatteryMode = types.BatteryMode(batteryMode)
	rec.OptimizationStatus = types.OptimizationStatus(status)
	rec.SolverElapsed = time.Duration(elapsedNS)
	devices, err := decodeDevices(devicesJSON)
	if err != nil {
		return types.Recommendation{}, false, err
	}
	rec.Devices = devices
	return rec, true, nil
}
