package adapter

import (
	"context"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/wattwise/controller/pkg/log"
)

// StaleSnapshotAge is the subset of config.Config the factory needs; kept
// as a tiny interface so pkg/adapter doesn't import pkg/config back.
type StaleSnapshotAge interface {
	AdapterStaleSnapshotAge() time.Duration
}

// Configured registers every bridge flag (both HTTP and MQTT transports)
// and returns an Adapter, backed by whichever transport bridge-transport
// selects and wrapped in a CachingAdapter. Every flag is registered
// eagerly so --help lists it regardless of which transport is chosen;
// construction itself waits for lflag.Configure() to run, following the
// same deferred-init pattern pkg/storage.Configured uses.
func Configured(cfg StaleSnapshotAge) Adapter {
	transport := lflag.String("bridge-transport", "http", "adapter transport: http or mqtt")

	httpURL := lflag.String("bridge-url", "", "base URL of the smart-home bridge REST API")
	httpToken := lflag.String("bridge-token", "", "bearer token for the smart-home bridge REST API")
	httpTimeoutS := lflag.Int("bridge-timeout-s", 3, "deadline for one bridge read")
	entitySOC := lflag.String("bridge-entity-battery-soc", "sensor.battery_soc", "entity ID for battery state of charge")
	entitySolar := lflag.String("bridge-entity-solar-power", "sensor.solar_power", "entity ID for current solar power")
	entitySolarDay := lflag.String("bridge-entity-solar-forecast-today", "sensor.solar_forecast_today", "entity ID for remaining-today solar forecast")
	entitySolarHour := lflag.String("bridge-entity-solar-forecast-next-hour", "sensor.solar_forecast_next_hour", "entity ID for next-hour solar forecast")

	mqttBroker := lflag.String("bridge-mqtt-broker", "tcp://localhost:1883", "MQTT broker address")
	mqttClientID := lflag.String("bridge-mqtt-client-id", "wattwise-controller", "MQTT client ID")
	topicSOC := lflag.String("bridge-mqtt-topic-battery-soc", "wattwise/battery_soc", "topic for battery state of charge")
	topicSolar := lflag.String("bridge-mqtt-topic-solar-power", "wattwise/solar_power", "topic for current solar power")
	topicSolarDay := lflag.String("bridge-mqtt-topic-solar-forecast-today", "wattwise/solar_forecast_today", "topic for remaining-today solar forecast")
	topicSolarHour := lflag.String("bridge-mqtt-topic-solar-forecast-next-hour", "wattwise/solar_forecast_next_hour", "topic for next-hour solar forecast")

	var wrapped struct{ Adapter }

	lflag.Do(func() {
		var next Adapter
		switch *transport {
		case "mqtt":
			m := NewMQTTAdapter(MQTTAdapterConfig{
				Broker:                 *mqttBroker,
				ClientID:               *mqttClientID,
				TopicBatterySOC:        *topicSOC,
				TopicSolarPower:        *topicSolar,
				TopicSolarForecastDay:  *topicSolarDay,
				TopicSolarForecastHour: *topicSolarHour,
			})
			if err := m.Connect(context.Background()); err != nil {
				log.Ctx(context.Background()).ErrorContext(context.Background(), "adapter: mqtt connect failed, snapshots will degrade to defaults", "error", err)
			}
			next = m
		default:
			next = NewHTTPAdapter(HTTPAdapterConfig{
				BaseURL:                 *httpURL,
				Token:                   *httpToken,
				Timeout:                 time.Duration(*httpTimeoutS) * time.Second,
				EntityBatterySOC:        *entitySOC,
				EntitySolarPower:        *entitySolar,
				EntitySolarForecastDay:  *entitySolarDay,
				EntitySolarForecastHour: *entitySolarHour,
			})
		}
		wrapped.Adapter = NewCachingAdapter(next, nil, cfg.AdapterStaleSnapshotAge())
	})

	return &wrapped
}
