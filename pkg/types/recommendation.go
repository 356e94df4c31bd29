package types

import "time"

// BatteryMode is the instantaneous operating mode recommended for the
// battery inverter.
type BatteryMode string

const (
	BatteryModeForceCharge    BatteryMode = "Force Charge"
	BatteryModeForceDischarge BatteryMode = "Force Discharge"
	BatteryModeSelfUse        BatteryMode = "Self Use"
	BatteryModeFeedInFirst    BatteryMode = "Feed-in First"
)

// OptimizationStatus reports how the recommendation was produced.
type OptimizationStatus string

const (
	OptimizationStatusOptimal  OptimizationStatus = "optimal"
	OptimizationStatusFeasible OptimizationStatus = "feasible"
	OptimizationStatusFallback OptimizationStatus = "fallback"
)

// DecisionSource tags where a per-device decision came from.
type DecisionSource string

const (
	DecisionSourceManualOverride   DecisionSource = "manual_override"
	DecisionSourceScheduleOverride DecisionSource = "schedule_override"
	DecisionSourceOptimizer        DecisionSource = "optimizer"
)

// DeviceDecision is the resolved on/off decision for one immersion
// device, tagged with its source and a human-readable reason.
type DeviceDecision struct {
	Desired bool           `json:"desired"`
	Source  DecisionSource `json:"source"`
	Reason  string         `json:"reason"`
}

// Recommendation is the decision engine's output, persisted for audit.
type Recommendation struct {
	Timestamp     time.Time `json:"timestamp"`
	HorizonEnd    time.Time `json:"horizonEnd"`

	BatteryMode           BatteryMode `json:"batteryMode"`
	DischargeCurrentAmps  int         `json:"dischargeCurrentAmps"`

	Devices map[Device]DeviceDecision `json:"devices"`

	OptimizationStatus  OptimizationStatus `json:"optimizationStatus"`
	SolverElapsed       time.Duration      `json:"solverElapsedNanos"`
	ExpectedEndOfHorizonSOC float64        `json:"expectedEndOfHorizonSOC"`
	ObjectiveValue      *float64           `json:"objectiveValue,omitempty"`

	ManualOverrideActive   bool `json:"manualOverrideActive"`
	ScheduleOverrideActive bool `json:"scheduleOverrideActive"`

	Reason string `json:"reason"`
}
