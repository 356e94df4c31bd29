package optimizer

import (
	"fmt"

	"github.com/wattwise/controller/pkg/types"
)

const decodeEpsilon = 1e-3

// decodeStepZero turns the solved step-0 values into a battery mode and
// discharge current, per the fixed decode rules. It never appears
// outside this module so the rest of the decision engine can be
// ignorant of the LP's internal variable layout.
func decodeStepZero(p Problem, sol lpSolution, cols columns, battery BatteryParamsRef) (types.BatteryMode, int) {
	charge0 := sol.X[cols.charge(0)]
	discharge0 := sol.X[cols.discharge(0)]
	class0 := classificationAt(p, 0)

	switch {
	case charge0 > decodeEpsilon && (class0 == types.ClassificationNegative || class0 == types.ClassificationCheap):
		return types.BatteryModeForceCharge, 0
	case discharge0 > decodeEpsilon && class0 == types.ClassificationExpensive && p.SolarKWH[0] < battery.highSolarThresholdKWH:
		return types.BatteryModeForceDischarge, dischargeCurrentAmps(discharge0, p.DischargeCurrentScale, battery.maxDischargeAmps)
	default:
		return types.BatteryModeSelfUse, battery.defaultDischargeAmps
	}
}

// dischargeCurrentAmps derives the hardware amperage control value from
// the solved discharge energy for the step, scaled by the configured
// kW-to-amps factor and clamped to the hardware's max. A scale of 0
// means no scale has been configured; fall back to the flat max-amps
// constant rather than producing a nonsensical zero.
func dischargeCurrentAmps(dischargeKWH float64, scale float64, maxAmps int) int {
	if scale <= 0 {
		return maxAmps
	}
	amps := int(dischargeKWH / StepLength * scale)
	if amps > maxAmps {
		return maxAmps
	}
	if amps < 0 {
		return 0
	}
	return amps
}

// BatteryParamsRef carries the discharge-current display scale that
// lives in configuration, not in the LP itself (DESIGN NOTES: discharge
// current is a derived display/control integer, not a modelled
// decision variable).
type BatteryParamsRef struct {
	defaultDischargeAmps int
	maxDischargeAmps     int
	highSolarThresholdKWH float64
}

// immersionSuggestion evaluates the deterministic rule set for one
// device, independent of any override. Both devices share the same
// rule; the optimiser does not model immersions as decision variables.
func immersionSuggestion(price0 float64, class0 types.Classification, cheapThreshold float64, soc float64, solar0KW float64, highSolarKW float64) DeviceSuggestion {
	switch {
	case class0 == types.ClassificationNegative && soc >= 90:
		return DeviceSuggestion{On: true, Reason: fmt.Sprintf("Negative price (%.1fp) + High SOC (%.0f%%)", price0, soc)}
	case price0 <= cheapThreshold && soc >= 95:
		return DeviceSuggestion{On: true, Reason: fmt.Sprintf("Very cheap price (%.1fp) + Battery full (%.0f%%)", price0, soc)}
	case solar0KW >= highSolarKW && soc >= 95:
		return DeviceSuggestion{On: true, Reason: fmt.Sprintf("High solar (%.1fkW) + Battery full (%.0f%%)", solar0KW, soc)}
	default:
		return DeviceSuggestion{On: false, Reason: fmt.Sprintf("Conditions not met (price: %.1fp, SOC: %.0f%%)", price0, soc)}
	}
}

// fallbackResult is the conservative, deterministic output used when
// prices are unavailable, the solver fails, or it times out.
func fallbackResult(reason string, defaultDischargeAmps int) Result {
	return Result{
		Status:               types.OptimizationStatusFallback,
		BatteryMode:          types.BatteryModeSelfUse,
		DischargeCurrentAmps: defaultDischargeAmps,
		ImmersionMain:        DeviceSuggestion{On: false, Reason: "fallback: immersion control suspended"},
		ImmersionLucy:        DeviceSuggestion{On: false, Reason: "fallback: immersion control suspended"},
		Reason:               reason,
	}
}
