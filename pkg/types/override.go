package types

import "time"

// ScheduleOverride is the externally-driven, heartbeat-refreshed
// assertion that a device should be heated now. At most one row exists
// per device (upsert semantics); it is never deleted.
type ScheduleOverride struct {
	DeviceID Device `json:"deviceId"`
	IsActive bool   `json:"isActive"`
	Reason   string `json:"reason"`

	// DesiredState lets a future extension have a schedule assert OFF as
	// well as ON without changing the resolver's contract (spec.md's own
	// Open Question). Today it is always true when IsActive is true.
	DesiredState bool `json:"desiredState"`

	ActivatedAt   time.Time  `json:"activatedAt"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ManualOverride is a user-driven, time-expiring override. At most one
// row with IsActive = true exists per device at any instant.
type ManualOverride struct {
	ID           int64      `json:"id"`
	DeviceID     Device     `json:"deviceId"`
	IsActive     bool       `json:"isActive"`
	DesiredState bool       `json:"desiredState"`
	Source       string     `json:"source"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	ClearedAt    *time.Time `json:"clearedAt,omitempty"`
	ClearedBy    string     `json:"clearedBy,omitempty"`
}

// ScheduleStatus is what pkg/resolver consumes for one device.
type ScheduleStatus struct {
	Active       bool
	DesiredState bool
	Reason       string
	ActivatedAt  time.Time
}

// ManualStatus is what pkg/resolver consumes for one device.
type ManualStatus struct {
	Active              bool
	DesiredState        bool
	Source              string
	ExpiresAt           time.Time
	TimeRemainingMinutes int
}

const (
	ClearedBySystemReplaced = "system_replaced"
	ClearedBySystemExpiry   = "system_expiry"
)

// ScheduleTransition is one recorded heartbeat/report of a schedule
// override, kept for the `/schedule/history` endpoint. ScheduleOverride
// itself only ever holds the device's current row (upsert semantics);
// this is the append-only log of what it looked like at each report.
type ScheduleTransition struct {
	DeviceID     Device    `json:"deviceId"`
	IsActive     bool      `json:"isActive"`
	Reason       string    `json:"reason"`
	DesiredState bool      `json:"desiredState"`
	ReportedAt   time.Time `json:"reportedAt"`
}
