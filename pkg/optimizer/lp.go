package optimizer

import "github.com/wattwise/controller/pkg/types"

// variable layout, per step t in [0, H):
//   charge[t], discharge[t], import[t], export[t]
// plus soc[1..H] (soc[0] is the fixed current SoC, not a variable).
//
// column index helpers keep the LP construction readable without a
// sparse-matrix abstraction the rest of the pack has no equivalent for.
type columns struct {
	h int
}

func (c columns) charge(t int) int    { return t }
func (c columns) discharge(t int) int { return c.h + t }
func (c columns) imp(t int) int       { return 2*c.h + t }
func (c columns) exp(t int) int       { return 3*c.h + t }
func (c columns) soc(t int) int       { return 4*c.h + (t - 1) } // t in [1, H]
func (c columns) count() int          { return 5 * c.h }

// buildLP translates a Problem into standard form A x = b, lower <= x
// <= upper, minimizing Cost. Division by a decision variable never
// appears: battery dynamics use a precomputed 1/efficiency constant.
func buildLP(p Problem) (lpStandardForm, columns) {
	h := p.StepCount
	cols := columns{h: h}
	n := cols.count()

	maxChargeStep := p.Battery.MaxChargeKW * StepLength
	maxDischargeStep := p.Battery.MaxDischargeKW * StepLength
	gridCap := bigGridCap(p)

	lower := make([]float64, n)
	upper := make([]float64, n)
	cost := make([]float64, n)

	for t := 0; t < h; t++ {
		upper[cols.charge(t)] = maxChargeStep
		upper[cols.discharge(t)] = maxDischargeStep
		upper[cols.imp(t)] = gridCap
		upper[cols.exp(t)] = gridCap
		cost[cols.imp(t)] = p.PricePence[t]
		cost[cols.exp(t)] = -p.ExportPricePence[t]
	}
	for t := 1; t <= h; t++ {
		lower[cols.soc(t)] = p.Battery.MinSOCPct
		upper[cols.soc(t)] = p.Battery.MaxSOCPct
	}

	var rows [][]float64
	var rhs []float64

	addRow := func(coeffs map[int]float64, b float64) {
		row := make([]float64, n)
		for idx, v := range coeffs {
			row[idx] = v
		}
		rows = append(rows, row)
		rhs = append(rhs, b)
	}

	invEfficiency := 1 / p.Battery.Efficiency
	socGain := 100 / p.Battery.CapacityKWH

	// energy balance: solar + discharge + import = load + charge + export
	for t := 0; t < h; t++ {
		addRow(map[int]float64{
			cols.discharge(t): 1,
			cols.imp(t):       1,
			cols.charge(t):    -1,
			cols.exp(t):       -1,
		}, p.LoadKWH[t]-p.SolarKWH[t])
	}

	// SoC evolution: soc[t+1] = soc[t] + socGain*(eff*charge[t] - discharge[t]/eff)
	// soc[0] is a constant (p.CurrentSOCPct), folded into the RHS for t=0.
	for t := 0; t < h; t++ {
		coeffs := map[int]float64{
			cols.charge(t):    -socGain * p.Battery.Efficiency,
			cols.discharge(t): socGain * invEfficiency,
		}
		rhsVal := 0.0
		if t == 0 {
			rhsVal = p.CurrentSOCPct
		} else {
			coeffs[cols.soc(t)] = -1
		}
		coeffs[cols.soc(t+1)] = 1
		addRow(coeffs, rhsVal)
	}

	lp := lpStandardForm{A: rows, B: rhs, Lower: lower, Upper: upper, Cost: cost}
	return lp, cols
}

// bigGridCap bounds import/export generously; the source material never
// specifies a grid connection limit, so this is sized off the battery
// and load envelope rather than hardcoded.
func bigGridCap(p Problem) float64 {
	capKW := p.Battery.MaxChargeKW + p.Battery.MaxDischargeKW
	for _, l := range p.LoadKWH {
		if l > capKW {
			capKW = l
		}
	}
	for _, s := range p.SolarKWH {
		if s > capKW {
			capKW = s
		}
	}
	return (capKW + 1) * 10
}

// appendTerminalConstraint appends soc[H] >= minTerminal as soc[H] - slack
// = minTerminal, slack >= 0, i.e. an inequality folded into an equality
// with a slack variable so the whole system stays A x = b.
func appendTerminalConstraint(lp lpStandardForm, cols columns, minTerminal float64) lpStandardForm {
	n := len(lp.Lower)
	slackCol := n

	for i := range lp.A {
		lp.A[i] = append(lp.A[i], 0)
	}
	row := make([]float64, n+1)
	row[cols.soc(cols.h)] = 1
	row[slackCol] = -1
	lp.A = append(lp.A, row)
	lp.B = append(lp.B, minTerminal)

	lp.Lower = append(lp.Lower, 0)
	lp.Upper = append(lp.Upper, bigRangeForSlack())
	lp.Cost = append(lp.Cost, 0)
	return lp
}

func bigRangeForSlack() float64 {
	return 1e6
}

// classificationAt returns the classification of step t, or normal when
// t is outside the problem's horizon. Used by the decode rules.
func classificationAt(p Problem, t int) types.Classification {
	if t < 0 || t >= len(p.Classification) {
		return types.ClassificationNormal
	}
	return p.Classification[t]
}
