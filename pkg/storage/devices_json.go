package storage

import (
	"encoding/json"

	"github.com/wattwise/controller/pkg/types"
)

func encodeDevices(devices map[types.Device]types.DeviceDecision) ([]byte, error) {
	return json.Marshal(devices)
}

func decodeDevices(raw []byte) (map[types.Device]types.DeviceDecision, error) {
	var devices map[types.Device]types.DeviceDecision
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}
