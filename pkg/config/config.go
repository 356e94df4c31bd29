// Package config gathers every tunable of the decision engine behind a
// single struct, populated from flags/environment via go-lflag.
package config

import (
	"time"

	"github.com/levenlabs/go-lflag"
)

// Battery holds the physical envelope of the storage system.
type Battery struct {
	CapacityKWH     float64
	MaxChargeKW     float64
	MaxDischargeKW  float64
	Efficiency      float64
	MinSOCPct       float64
	MaxSOCPct       float64

	// DischargeCurrentScale converts a decoded discharge power (kW) into
	// the hardware's amperage control value. Not modelled by the source
	// material; kept as a configurable scale rather than guessed.
	DischargeCurrentScale float64
	DefaultDischargeAmps  int
	MaxDischargeAmps      int
}

// Solar holds nameplate figures used only for sanity checks.
type Solar struct {
	CapacityKW float64
}

// Tariff controls ingestion and classification.
type Tariff struct {
	RetentionDays   int
	RefreshInterval time.Duration
	EgressFraction  float64
	EgressFixedP    float64 // pence/kWh; 0 means "use EgressFraction"
}

// Optimizer controls the solver.
type Optimizer struct {
	HorizonSteps       int
	LoadProfileKWHStep float64
	SolverTimeout      time.Duration
	DesiredEndSOC      float64 // 0 means unset; falls back to Battery.MinSOCPct
}

// Override controls manual/schedule override bounds.
type Override struct {
	ManualDefaultHours    float64
	ManualMaxHours        float64
	ScheduleStaleThreshold time.Duration
}

// Immersion controls the deterministic immersion rule set.
type Immersion struct {
	HighSolarKW float64
}

// Config is the fully resolved set of tunables for one process.
type Config struct {
	Battery   Battery
	Solar     Solar
	Tariff    Tariff
	Optimizer Optimizer
	Override  Override
	Immersion Immersion

	ExpiryWorkerPeriod time.Duration
	APIRequestTimeout  time.Duration
	AdapterTimeout     time.Duration
	StaleSnapshotAge   time.Duration

	HTTPListenAddr string
	DatabaseURL    string
}

// Configured registers every tunable as an lflag flag with the defaults
// from the tunables table and returns a Config populated once flags are
// parsed. Callers must not read the returned pointer's fields until after
// lflag.Configure() has run.
func Configured() *Config {
	c := &Config{}

	capacityKWH := lflag.Float64("battery-capacity-kwh", 10.0, "usable battery storage in kWh")
	maxChargeKW := lflag.Float64("battery-max-charge-kw", 5.0, "maximum battery charge power in kW")
	maxDischargeKW := lflag.Float64("battery-max-discharge-kw", 5.0, "maximum battery discharge power in kW")
	efficiency := lflag.Float64("battery-efficiency", 0.95, "round-trip battery efficiency")
	minSOC := lflag.Float64("battery-min-soc-pct", 10.0, "minimum battery state of charge percent")
	maxSOC := lflag.Float64("battery-max-soc-pct", 100.0, "maximum battery state of charge percent")
	dischargeScale := lflag.Float64("battery-discharge-current-scale", 10.0, "amps of discharge current per kW of discharge power")
	defaultAmps := lflag.Int("battery-default-discharge-amps", 50, "discharge current used in Self Use mode")
	maxAmps := lflag.Int("battery-max-discharge-amps", 100, "upper bound on discharge current in Force Discharge mode (used directly when the scale is 0)")

	solarCapacityKW := lflag.Float64("solar-capacity-kw", 8.0, "installed solar capacity in kW, used only for sanity checks")

	retentionDays := lflag.Int("tariff-retention-days", 7, "rolling window of price points to retain")
	refreshIntervalS := lflag.Int("tariff-refresh-interval-s", 1800, "period of the automatic tariff re-fetch cron job")
	egressFraction := lflag.Float64("tariff-egress-price-fraction", 0.15, "export price as a fraction of the import price, if egress-price-fixed-pence is 0")
	egressFixed := lflag.Float64("tariff-egress-price-fixed-pence", 0.0, "absolute export price in pence/kWh; overrides egress-price-fraction when non-zero")

	horizonSteps := lflag.Int("optimizer-horizon-steps", 48, "number of half-hour steps solved per optimisation")
	loadProfile := lflag.Float64("optimizer-load-profile-kwh-per-step", 0.25, "flat load forecast used when no per-step forecast is supplied")
	solverTimeoutMS := lflag.Int("optimizer-solver-timeout-ms", 1000, "hard wall-clock cap on one solve, in milliseconds")
	desiredEndSOC := lflag.Float64("optimizer-desired-end-of-horizon-soc", 0, "optional terminal SoC target beyond min-soc-pct; 0 disables")

	manualDefaultHours := lflag.Float64("override-manual-default-hours", 2.0, "default duration for a manual override")
	manualMaxHours := lflag.Float64("override-manual-max-hours", 24.0, "maximum duration allowed for a manual override")
	scheduleStaleS := lflag.Int("override-schedule-stale-threshold-s", 300, "age after which a schedule override heartbeat is considered stale")

	highSolarKW := lflag.Float64("immersion-high-solar-kw", 5.0, "solar generation threshold for the high-solar immersion rule")

	expiryPeriodS := lflag.Int("expiry-worker-period-s", 300, "manual override expiry sweep period in seconds")
	apiTimeoutS := lflag.Int("api-request-timeout-s", 5, "per-request deadline covering adapter, solver and resolver")
	adapterTimeoutS := lflag.Int("adapter-timeout-s", 3, "deadline for one forecast and state adapter read")
	staleSnapshotS := lflag.Int("adapter-stale-snapshot-s", 300, "age after which a cached snapshot is no longer used on adapter failure")

	listenAddr := lflag.String("http-listen", ":8080", "HTTP server listen address")
	databaseURL := lflag.RequiredString("database-url", "Postgres connection string")

	lflag.Do(func() {
		c.Battery = Battery{
			CapacityKWH:           *capacityKWH,
			MaxChargeKW:           *maxChargeKW,
			MaxDischargeKW:        *maxDischargeKW,
			Efficiency:            *efficiency,
			MinSOCPct:             *minSOC,
			MaxSOCPct:             *maxSOC,
			DischargeCurrentScale: *dischargeScale,
			DefaultDischargeAmps:  *defaultAmps,
			MaxDischargeAmps:      *maxAmps,
		}
		c.Solar = Solar{CapacityKW: *solarCapacityKW}
		c.Tariff = Tariff{
			RetentionDays:   *retentionDays,
			RefreshInterval: time.Duration(*refreshIntervalS) * time.Second,
			EgressFraction:  *egressFraction,
			EgressFixedP:    *egressFixed,
		}
		c.Optimizer = Optimizer{
			HorizonSteps:       *horizonSteps,
			LoadProfileKWHStep: *loadProfile,
			SolverTimeout:      time.Duration(*solverTimeoutMS) * time.Millisecond,
			DesiredEndSOC:      *desiredEndSOC,
		}
		c.Override = Override{
			ManualDefaultHours:     *manualDefaultHours,
			ManualMaxHours:         *manualMaxHours,
			ScheduleStaleThreshold: time.Duration(*scheduleStaleS) * time.Second,
		}
		c.Immersion = Immersion{HighSolarKW: *highSolarKW}

		c.ExpiryWorkerPeriod = time.Duration(*expiryPeriodS) * time.Second
		c.APIRequestTimeout = time.Duration(*apiTimeoutS) * time.Second
		c.AdapterTimeout = time.Duration(*adapterTimeoutS) * time.Second
		c.StaleSnapshotAge = time.Duration(*staleSnapshotS) * time.Second

		c.HTTPListenAddr = *listenAddr
		c.DatabaseURL = *databaseURL
	})

	return c
}

// DatabaseDSN satisfies pkg/storage's DSN interface without pkg/storage
// importing pkg/config back.
func (c *Config) DatabaseDSN() string {
	return c.DatabaseURL
}

// AdapterStaleSnapshotAge satisfies pkg/adapter's StaleSnapshotAge
// interface without pkg/adapter importing pkg/config back.
func (c *Config) AdapterStaleSnapshotAge() time.Duration {
	return c.StaleSnapshotAge
}

// EgressPrice returns the export price in pence/kWh for a given import
// price, honouring the fixed-price override.
func (t Tariff) EgressPrice(importPrice float64) float64 {
	if t.EgressFixedP != 0 {
		return t.EgressFixedP
	}
	return importPrice * t.EgressFraction
}
