// Package optimizer formulates and solves the battery scheduling linear
// program and decodes its solution into a recommendation.
package optimizer

import (
	"time"

	"github.com/wattwise/controller/pkg/types"
)

// StepLength is the LP's fixed time quantum.
const StepLength = 0.5 // hours

// BatteryParams is the physical envelope of the storage system.
type BatteryParams struct {
	CapacityKWH    float64
	MaxChargeKW    float64
	MaxDischargeKW float64
	Efficiency     float64 // round-trip, in (0, 1]
	MinSOCPct      float64
	MaxSOCPct      float64
}

// Problem is every input the optimiser needs for one solve. It is kept
// as a single struct so the solver behind it can be swapped without
// touching any caller.
type Problem struct {
	Now       time.Time
	StepCount int // H

	CurrentSOCPct float64
	Battery       BatteryParams

	// PricePence and ExportPricePence must both have StepCount entries.
	PricePence       []float64
	ExportPricePence []float64
	Classification   []types.Classification

	// SolarKWH and LoadKWH must both have StepCount entries, in kWh per step.
	SolarKWH []float64
	LoadKWH  []float64

	MinTerminalSOCPct   float64
	CheapThresholdPence float64

	HighSolarKW   float64
	SolverTimeout time.Duration

	// DischargeCurrentScale converts a decoded discharge power (kW) into
	// amps of discharge current; 0 leaves the decoded amps at the
	// caller-supplied default/max constant (DESIGN NOTES §9: discharge
	// current is hardware-specific and never a modelled decision
	// variable, only a derived display/control integer).
	DischargeCurrentScale float64
}

// Result is the optimiser's full output: the solved schedule plus the
// decoded step-0 recommendation.
type Result struct {
	Status types.OptimizationStatus

	Schedule []StepSolution

	BatteryMode          types.BatteryMode
	DischargeCurrentAmps int
	ExpectedEndOfHorizonSOC float64
	ObjectiveValue       *float64
	Elapsed              time.Duration

	ImmersionMain DeviceSuggestion
	ImmersionLucy DeviceSuggestion

	Reason string
}

// StepSolution is one half-hour step of the solved schedule.
type StepSolution struct {
	ChargeKWH    float64
	DischargeKWH float64
	ImportKWH    float64
	ExportKWH    float64
	SOCPct       float64
}

// DeviceSuggestion is the optimiser's immersion recommendation before
// override resolution.
type DeviceSuggestion struct {
	On     bool
	Reason string
}
