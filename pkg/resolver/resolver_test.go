package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wattwise/controller/pkg/optimizer"
	"github.com/wattwise/controller/pkg/types"
)

func baseOptimizerResult() optimizer.Result {
	return optimizer.Result{
		Status:               types.OptimizationStatusOptimal,
		BatteryMode:          types.BatteryModeForceCharge,
		DischargeCurrentAmps: 0,
		ImmersionMain:        optimizer.DeviceSuggestion{On: true, Reason: "Negative price (-2.0p) + High SOC (92%)"},
		ImmersionLucy:        optimizer.DeviceSuggestion{On: true, Reason: "Negative price (-2.0p) + High SOC (92%)"},
		Reason:               "optimizer: solved to optimality",
	}
}

func TestResolve_ManualOverrideWinsOverOptimizer(t *testing.T) {
	opt := baseOptimizerResult()
	manual := map[types.Device]types.ManualStatus{
		types.DeviceMain: {Active: true, DesiredState: false, TimeRemainingMinutes: 120},
	}

	rec := Resolve(time.Now(), opt, nil, manual)

	main := rec.Devices[types.DeviceMain]
	assert.False(t, main.Desired)
	assert.Equal(t, types.DecisionSourceManualOverride, main.Source)
	assert.Equal(t, "Manual override (120 min remaining)", main.Reason)
	assert.True(t, rec.ManualOverrideActive)
	assert.False(t, rec.ScheduleOverrideActive)

	lucy := rec.Devices[types.DeviceLucy]
	assert.Equal(t, types.DecisionSourceOptimizer, lucy.Source)
	assert.True(t, lucy.Desired)
}

func TestResolve_ScheduleOverrideWinsOverOptimizer(t *testing.T) {
	opt := baseOptimizerResult()
	opt.ImmersionMain = optimizer.DeviceSuggestion{On: false, Reason: "Conditions not met"}
	schedule := map[types.Device]types.ScheduleStatus{
		types.DeviceMain: {Active: true, Reason: "hot water timer"},
	}

	rec := Resolve(time.Now(), opt, schedule, nil)

	main := rec.Devices[types.DeviceMain]
	assert.True(t, main.Desired)
	assert.Equal(t, types.DecisionSourceScheduleOverride, main.Source)
	assert.Equal(t, "hot water timer", main.Reason)
	assert.True(t, rec.ScheduleOverrideActive)
	assert.False(t, rec.ManualOverrideActive)
}

func TestResolve_NoOverridesFallsThroughToOptimizer(t *testing.T) {
	opt := baseOptimizerResult()

	rec := Resolve(time.Now(), opt, nil, nil)

	for _, d := range types.Devices() {
		dec := rec.Devices[d]
		assert.Equal(t, types.DecisionSourceOptimizer, dec.Source)
		assert.True(t, dec.Desired)
	}
	assert.False(t, rec.ManualOverrideActive)
	assert.False(t, rec.ScheduleOverrideActive)
}

func TestResolve_BatteryModeNeverOverridden(t *testing.T) {
	opt := baseOptimizerResult()
	manual := map[types.Device]types.ManualStatus{
		types.DeviceMain: {Active: true, DesiredState: true, TimeRemainingMinutes: 10},
		types.DeviceLucy: {Active: true, DesiredState: true, TimeRemainingMinutes: 10},
	}

	rec := Resolve(time.Now(), opt, nil, manual)

	assert.Equal(t, types.BatteryModeForceCharge, rec.BatteryMode)
	assert.Equal(t, opt.DischargeCurrentAmps, rec.DischargeCurrentAmps)
}

func TestResolve_InactiveOverridesIgnored(t *testing.T) {
	opt := baseOptimizerResult()
	manual := map[types.Device]types.ManualStatus{
		types.DeviceMain: {Active: false},
	}
	schedule := map[types.Device]types.ScheduleStatus{
		types.DeviceMain: {Active: false},
	}

	rec := Resolve(time.Now(), opt, schedule, manual)

	main := rec.Devices[types.DeviceMain]
	assert.Equal(t, types.DecisionSourceOptimizer, main.Source)
}
