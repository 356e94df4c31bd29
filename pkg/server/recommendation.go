package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/optimizer"
	"github.com/wattwise/controller/pkg/resolver"
	"github.com/wattwise/controller/pkg/tariff"
	"github.com/wattwise/controller/pkg/types"
)

// handleRecommendationNow assembles one optimiser Problem from the
// tariff store and the live adapter snapshot, solves it, resolves it
// against current override status, persists the result for audit, and
// returns it.
func (s *Server) handleRecommendationNow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.clock()

	rec, err := s.buildRecommendation(ctx, now)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: building recommendation", slog.Any("error", err))
		writeJSONError(w, "failed to build recommendation", http.StatusInternalServerError)
		return
	}

	if err := s.store.InsertRecommendation(ctx, rec); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: persisting recommendation", slog.Any("error", err))
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) buildRecommendation(ctx context.Context, now time.Time) (types.Recommendation, error) {
	horizonSteps := s.cfg.Optimizer.HorizonSteps
	if horizonSteps <= 0 {
		horizonSteps = 48
	}
	horizonEnd := now.Add(time.Duration(float64(horizonSteps) * optimizer.StepLength * float64(time.Hour)))

	state, err := s.adapter.Snapshot(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "server: adapter snapshot failed, proceeding with safe defaults", slog.Any("error", err))
		state = types.SystemState{BatterySOCPercent: 50, Timestamp: now, DegradedConfidence: true}
	}

	window, err := s.tariff.GetWindow(ctx, now, horizonEnd)
	if err != nil {
		return types.Recommendation{}, err
	}

	opt := s.solveOptimizer(ctx, now, state, window, horizonSteps)

	schedule, err := s.overrides.ScheduleStatusAll(ctx, now)
	if err != nil {
		return types.Recommendation{}, err
	}
	manual, err := s.overrides.ManualStatusAll(ctx, now)
	if err != nil {
		return types.Recommendation{}, err
	}

	rec := resolver.Resolve(now, opt, schedule, manual)
	rec.HorizonEnd = horizonEnd
	return rec, nil
}

// solveOptimizer builds the LP problem from the tariff window and
// adapter snapshot, falling back to the optimiser's own degraded path
// (never an error) when there isn't enough tariff coverage to solve.
func (s *Server) solveOptimizer(ctx context.Context, now time.Time, state types.SystemState, window []types.PricePoint, horizonSteps int) optimizer.Result {
	if len(window) == 0 {
		return optimizer.Result{
			Status:               types.OptimizationStatusFallback,
			BatteryMode:          types.BatteryModeSelfUse,
			DischargeCurrentAmps: s.cfg.Battery.DefaultDischargeAmps,
			ImmersionMain:        optimizer.DeviceSuggestion{On: false, Reason: "fallback: no tariff data"},
			ImmersionLucy:        optimizer.DeviceSuggestion{On: false, Reason: "fallback: no tariff data"},
			Reason:               "fallback: no tariff data",
		}
	}

	price := make([]float64, horizonSteps)
	export := make([]float64, horizonSteps)
	class := make([]types.Classification, horizonSteps)
	solar := make([]float64, horizonSteps)
	load := make([]float64, horizonSteps)

	last := window[len(window)-1]
	for t := 0; t < horizonSteps; t++ {
		p := last
		if t < len(window) {
			p = window[t]
		}
		price[t] = p.UnitPrice
		export[t] = s.cfg.Tariff.EgressPrice(p.UnitPrice)
		class[t] = p.Classification

		load[t] = s.cfg.Optimizer.LoadProfileKWHStep
		switch {
		case t == 0:
			solar[t] = state.SolarPowerKW * optimizer.StepLength
		case t == 1 && state.SolarNextHourKWH > 0:
			solar[t] = state.SolarNextHourKWH
		default:
			solar[t] = 0
		}
	}

	stats := tariff.Stats(window)

	problem := optimizer.Problem{
		Now:           now,
		StepCount:     horizonSteps,
		CurrentSOCPct: state.BatterySOCPercent,
		Battery: optimizer.BatteryParams{
			CapacityKWH:    s.cfg.Battery.CapacityKWH,
			MaxChargeKW:    s.cfg.Battery.MaxChargeKW,
			MaxDischargeKW: s.cfg.Battery.MaxDischargeKW,
			Efficiency:     s.cfg.Battery.Efficiency,
			MinSOCPct:      s.cfg.Battery.MinSOCPct,
			MaxSOCPct:      s.cfg.Battery.MaxSOCPct,
		},
		PricePence:            price,
		ExportPricePence:      export,
		Classification:        class,
		SolarKWH:              solar,
		LoadKWH:               load,
		MinTerminalSOCPct:     s.cfg.Battery.MinSOCPct,
		CheapThresholdPence:   stats.CheapThreshold,
		HighSolarKW:           s.cfg.Immersion.HighSolarKW,
		SolverTimeout:         s.cfg.Optimizer.SolverTimeout,
		DischargeCurrentScale: s.cfg.Battery.DischargeCurrentScale,
	}
	if s.cfg.Optimizer.DesiredEndSOC > 0 {
		problem.MinTerminalSOCPct = s.cfg.Optimizer.DesiredEndSOC
	}

	return optimizer.Solve(ctx, problem, s.cfg.Battery.DefaultDischargeAmps, s.cfg.Battery.MaxDischargeAmps)
}
