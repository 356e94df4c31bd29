package adapter

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/types"
)

// MQTTAdapterConfig names the broker and topics an MQTTAdapter
// subscribes to for state updates.
type MQTTAdapterConfig struct {
	Broker   string
	ClientID string

	TopicBatterySOC        string
	TopicSolarPower        string
	TopicSolarForecastDay  string
	TopicSolarForecastHour string
}

// MQTTAdapter maintains the latest reading of each subscribed topic in
// memory and serves Snapshot from that cache. Readings arrive
// asynchronously via the broker's publish/subscribe model, so a
// snapshot is never a live round trip; staleness is bounded by whatever
// publish interval the bridge uses upstream of the broker.
type MQTTAdapter struct {
	client paho.Client
	cfg    MQTTAdapterConfig

	mu       sync.Mutex
	latest   types.SystemState
	received map[string]bool
}

// NewMQTTAdapter builds an MQTTAdapter for the broker described by cfg.
// It does not connect; Connect opens the connection and subscribes.
func NewMQTTAdapter(cfg MQTTAdapterConfig) *MQTTAdapter {
	a := &MQTTAdapter{
		cfg:      cfg,
		received: make(map[string]bool),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	a.client = paho.NewClient(opts)
	return a
}

// Connect opens the broker connection and subscribes to every tracked
// topic. It blocks until the connection succeeds or times out.
func (a *MQTTAdapter) Connect(ctx context.Context) error {
	token := a.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("adapter: mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return err
	}

	subs := map[string]func(float64){
		a.cfg.TopicBatterySOC:        func(v float64) { a.set(func(s *types.SystemState) { s.BatterySOCPercent = v }, a.cfg.TopicBatterySOC) },
		a.cfg.TopicSolarPower:        func(v float64) { a.set(func(s *types.SystemState) { s.SolarPowerKW = v }, a.cfg.TopicSolarPower) },
		a.cfg.TopicSolarForecastDay:  func(v float64) { a.set(func(s *types.SystemState) { s.SolarRemainingTodayKWH = v }, a.cfg.TopicSolarForecastDay) },
		a.cfg.TopicSolarForecastHour: func(v float64) { a.set(func(s *types.SystemState) { s.SolarNextHourKWH = v }, a.cfg.TopicSolarForecastHour) },
	}

	for topic, apply := range subs {
		apply := apply
		topic := topic
		token := a.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
			v, err := strconv.ParseFloat(string(msg.Payload()), 64)
			if err != nil {
				log.Ctx(ctx).WarnContext(ctx, "mqtt adapter received non-numeric payload", "topic", topic, "error", err)
				return
			}
			apply(v)
		})
		if !token.WaitTimeout(5 * time.Second) {
			return errors.New("adapter: mqtt subscribe timed out for " + topic)
		}
		if err := token.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (a *MQTTAdapter) set(mutate func(*types.SystemState), topic string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mutate(&a.latest)
	a.latest.Timestamp = time.Now().UTC()
	a.received[topic] = true
}

// Snapshot returns the most recently received values. Topics never
// heard from fall back to safe defaults with DegradedConfidence set.
func (a *MQTTAdapter) Snapshot(_ context.Context) (types.SystemState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.latest
	if !a.received[a.cfg.TopicBatterySOC] {
		state.BatterySOCPercent = 50
		state.DegradedConfidence = true
	}
	if !a.received[a.cfg.TopicSolarPower] || !a.received[a.cfg.TopicSolarForecastDay] || !a.received[a.cfg.TopicSolarForecastHour] {
		state.DegradedConfidence = true
	}
	if state.Timestamp.IsZero() {
		state.Timestamp = time.Now().UTC()
	}
	return state, nil
}

// Close disconnects from the broker.
func (a *MQTTAdapter) Close() {
	a.client.Disconnect(250)
}
