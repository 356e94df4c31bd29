package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattwise/controller/pkg/types"
)

func TestDevicesJSON_RoundTrip(t *testing.T) {
	devices := map[types.Device]types.DeviceDecision{
		types.DeviceMain: {Desired: true, Source: types.DecisionSourceOptimizer, Reason: "High solar"},
		types.DeviceLucy: {Desired: false, Source: types.DecisionSourceManualOverride, Reason: "Manual override (10 min remaining)"},
	}

	raw, err := encodeDevices(devices)
	require.NoError(t, err)

	decoded, err := decodeDevices(raw)
	require.NoError(t, err)
	assert.Equal(t, devices, decoded)
}
