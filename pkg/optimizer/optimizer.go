package optimizer

import (
	"context"
	"log/slog"
	"time"

	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/types"
)

// Solve builds the LP for p, solves it within p.SolverTimeout, and decodes
// the result into a step-0 recommendation. It never returns an error: any
// failure to solve degrades to the fallback path, matching the resolver's
// requirement to always produce a decision.
func Solve(ctx context.Context, p Problem, defaultDischargeAmps, maxDischargeAmps int) Result {
	start := time.Now()

	if p.StepCount <= 0 || len(p.PricePence) < p.StepCount || len(p.SolarKWH) < p.StepCount || len(p.LoadKWH) < p.StepCount {
		log.Ctx(ctx).WarnContext(ctx, "optimizer: incomplete forecast inputs, falling back")
		r := fallbackResult("fallback: incomplete forecast inputs", defaultDischargeAmps)
		r.Elapsed = time.Since(start)
		return r
	}

	lp, cols := buildLP(p)
	minTerminal := p.MinTerminalSOCPct
	if minTerminal <= 0 {
		minTerminal = p.Battery.MinSOCPct
	}
	lp = appendTerminalConstraint(lp, cols, minTerminal)

	deadline := start.Add(p.SolverTimeout)
	sol, err := solveBoundedSimplex(lp, deadline)
	elapsed := time.Since(start)

	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "optimizer: solve failed, falling back", slog.Any("error", err))
		r := fallbackResult("fallback: "+err.Error(), defaultDischargeAmps)
		r.Elapsed = elapsed
		return r
	}

	battery := BatteryParamsRef{
		defaultDischargeAmps:  defaultDischargeAmps,
		maxDischargeAmps:      maxDischargeAmps,
		highSolarThresholdKWH: p.HighSolarKW * StepLength,
	}
	mode, amps := decodeStepZero(p, sol, cols, battery)

	schedule := make([]StepSolution, p.StepCount)
	for t := 0; t < p.StepCount; t++ {
		schedule[t] = StepSolution{
			ChargeKWH:    sol.X[cols.charge(t)],
			DischargeKWH: sol.X[cols.discharge(t)],
			ImportKWH:    sol.X[cols.imp(t)],
			ExportKWH:    sol.X[cols.exp(t)],
			SOCPct:       sol.X[cols.soc(t+1)],
		}
	}

	class0 := classificationAt(p, 0)
	main := immersionSuggestion(p.PricePence[0], class0, p.CheapThresholdPence, p.CurrentSOCPct, p.SolarKWH[0]/StepLength, p.HighSolarKW)
	lucy := immersionSuggestion(p.PricePence[0], class0, p.CheapThresholdPence, p.CurrentSOCPct, p.SolarKWH[0]/StepLength, p.HighSolarKW)

	objective := sol.Objective
	status := types.OptimizationStatusOptimal

	log.Ctx(ctx).DebugContext(ctx, "optimizer: solved",
		slog.String("status", string(status)),
		slog.String("battery_mode", string(mode)),
		slog.Duration("elapsed", elapsed),
		slog.Float64("objective", objective),
	)

	return Result{
		Status:                  status,
		Schedule:                schedule,
		BatteryMode:             mode,
		DischargeCurrentAmps:    amps,
		ExpectedEndOfHorizonSOC: schedule[p.StepCount-1].SOCPct,
		ObjectiveValue:          &objective,
		Elapsed:                 elapsed,
		ImmersionMain:           main,
		ImmersionLucy:           lucy,
		Reason:                  "optimizer: solved to optimality",
	}
}
