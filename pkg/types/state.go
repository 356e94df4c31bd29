package types

import "time"

// SystemState is an ephemeral snapshot of the battery/solar system,
// taken at decision time. The core never durably stores this; that's an
// external telemetry concern.
type SystemState struct {
	BatterySOCPercent      float64   `json:"batterySOCPercent"`
	SolarPowerKW           float64   `json:"solarPowerKW"`
	SolarRemainingTodayKWH float64   `json:"solarRemainingTodayKWH"`
	SolarNextHourKWH       float64   `json:"solarNextHourKWH"`
	Timestamp              time.Time `json:"timestamp"`

	// DegradedConfidence is set by an adapter when one or more readings
	// fell back to a safe default rather than a live sensor value.
	DegradedConfidence bool `json:"degradedConfidence"`
}
