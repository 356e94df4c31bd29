// Package resolver applies the fixed per-device priority order (manual
// override, then schedule override, then the optimiser's own suggestion)
// on top of one optimiser result, producing the final recommendation. It
// is pure: no I/O, no clock reads, so it cannot itself fail.
package resolver

import (
	"fmt"
	"time"

	"github.com/wattwise/controller/pkg/optimizer"
	"github.com/wattwise/controller/pkg/types"
)

// Resolve combines one optimiser result with the current override status
// of each device into the recommendation served to clients. Battery mode
// and discharge current always come straight from opt; device overrides
// only ever affect immersion desired state. now is passed in rather than
// read from the clock so this package stays pure.
func Resolve(now time.Time, opt optimizer.Result, schedule map[types.Device]types.ScheduleStatus, manual map[types.Device]types.ManualStatus) types.Recommendation {
	devices := make(map[types.Device]types.DeviceDecision, len(types.Devices()))

	manualActive := false
	scheduleActive := false

	for _, d := range types.Devices() {
		suggestion := deviceSuggestion(d, opt)

		if m, ok := manual[d]; ok && m.Active {
			manualActive = true
			devices[d] = types.DeviceDecision{
				Desired: m.DesiredState,
				Source:  types.DecisionSourceManualOverride,
				Reason:  fmt.Sprintf("Manual override (%d min remaining)", m.TimeRemainingMinutes),
			}
			continue
		}

		if s, ok := schedule[d]; ok && s.Active {
			scheduleActive = true
			devices[d] = types.DeviceDecision{
				Desired: true,
				Source:  types.DecisionSourceScheduleOverride,
				Reason:  s.Reason,
			}
			continue
		}

		devices[d] = types.DeviceDecision{
			Desired: suggestion.On,
			Source:  types.DecisionSourceOptimizer,
			Reason:  suggestion.Reason,
		}
	}

	return types.Recommendation{
		Timestamp:               now,
		BatteryMode:             opt.BatteryMode,
		DischargeCurrentAmps:    opt.DischargeCurrentAmps,
		Devices:                 devices,
		OptimizationStatus:      opt.Status,
		SolverElapsed:           opt.Elapsed,
		ExpectedEndOfHorizonSOC: opt.ExpectedEndOfHorizonSOC,
		ObjectiveValue:          opt.ObjectiveValue,
		ManualOverrideActive:    manualActive,
		ScheduleOverrideActive:  scheduleActive,
		Reason:                  opt.Reason,
	}
}

func deviceSuggestion(d types.Device, opt optimizer.Result) optimizer.DeviceSuggestion {
	if d == types.DeviceLucy {
		return opt.ImmersionLucy
	}
	return opt.ImmersionMain
}
