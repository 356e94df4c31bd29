package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/wattwise/controller/pkg/common"
	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/types"
)

// entityState mirrors one entry of the bridge's REST /api/states/{id}
// response: a free-form state string plus attributes we don't need.
type entityState struct {
	State string `json:"state"`
}

// HTTPAdapter reads sensor entities from a Home-Assistant-shaped REST
// bridge. Unknown or malformed sensors fall back to safe defaults with
// DegradedConfidence set, rather than failing the whole snapshot.
type HTTPAdapter struct {
	baseURL string
	token   string
	client  *http.Client

	entityBatterySOC        string
	entitySolarPower        string
	entitySolarForecastDay  string
	entitySolarForecastHour string
}

// HTTPAdapterConfig names the bridge entities to read.
type HTTPAdapterConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	EntityBatterySOC        string
	EntitySolarPower        string
	EntitySolarForecastDay  string
	EntitySolarForecastHour string
}

// NewHTTPAdapter builds an HTTPAdapter from cfg.
func NewHTTPAdapter(cfg HTTPAdapterConfig) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL:                 cfg.BaseURL,
		token:                   cfg.Token,
		client:                  common.HTTPClient(cfg.Timeout),
		entityBatterySOC:        cfg.EntityBatterySOC,
		entitySolarPower:        cfg.EntitySolarPower,
		entitySolarForecastDay:  cfg.EntitySolarForecastDay,
		entitySolarForecastHour: cfg.EntitySolarForecastHour,
	}
}


// Snapshot performs one bounded-latency read of every tracked entity.
func (a *HTTPAdapter) Snapshot(ctx context.Context) (types.SystemState, error) {
	degraded := false

	soc, ok := a.readFloat(ctx, a.entityBatterySOC)
	if !ok {
		soc = 50
		degraded = true
	}
	solarPower, ok := a.readFloat(ctx, a.entitySolarPower)
	if !ok {
		solarPower = 0
		degraded = true
	}
	solarDay, ok := a.readFloat(ctx, a.entitySolarForecastDay)
	if !ok {
		solarDay = 0
		degraded = true
	}
	solarHour, ok := a.readFloat(ctx, a.entitySolarForecastHour)
	if !ok {
		solarHour = 0
		degraded = true
	}

	return types.SystemState{
		BatterySOCPercent:      soc,
		SolarPowerKW:           solarPower,
		SolarRemainingTodayKWH: solarDay,
		SolarNextHourKWH:       solarHour,
		Timestamp:              time.Now().UTC(),
		DegradedConfidence:     degraded,
	}, nil
}

func (a *HTTPAdapter) readFloat(ctx context.Context, entityID string) (float64, bool) {
	state, err := a.getState(ctx, entityID)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to read bridge entity", "entity_id", entityID, "error", err)
		return 0, false
	}
	v, err := strconv.ParseFloat(state.State, 64)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "bridge entity state is not numeric", "entity_id", entityID, "state", state.State)
		return 0, false
	}
	return v, true
}

func (a *HTTPAdapter) getState(ctx context.Context, entityID string) (entityState, error) {
	url := fmt.Sprintf("%s/api/states/%s", a.baseURL, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return entityState{}, err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return entityState{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entityState{}, fmt.Errorf("bridge returned status %d for %s", resp.StatusCode, entityID)
	}

	var state entityState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return entityState{}, fmt.Errorf("decoding state for %s: %w", entityID, err)
	}
	return state, nil
}
