package optimizer

import (
	"errors"
	"time"
)

// No LP solver exists anywhere in the reference pack; this is a
// from-scratch dense, bounded-variable primal simplex using a two-phase
// method with Bland's rule (guards against cycling; this problem is
// solved repeatedly on a tight wall-clock budget, so throughput matters
// more than the marginal speed Dantzig's rule would buy).
//
// Variables keep their natural [lower, upper] bounds throughout; a
// nonbasic variable's value is implicit (lower or upper, tracked by
// atUpper) and y holds, per constraint ROW, the shifted value
// (basic value - its lower bound) of whichever variable is currently
// basic in that row.

const simplexTolerance = 1e-7
const bigRange = 1e18

// errLPInfeasible is returned when phase one cannot drive every
// artificial variable to zero.
var errLPInfeasible = errors.New("optimizer: linear program is infeasible")

// errLPTimeout is returned when the solve exceeds its wall-clock budget.
var errLPTimeout = errors.New("optimizer: solver timeout")

// lpStandardForm is A x = b with per-variable bounds, for x of length n.
type lpStandardForm struct {
	A     [][]float64 // m x n
	B     []float64   // m
	Lower []float64   // n
	Upper []float64   // n
	Cost  []float64   // n, minimized
}

// lpSolution is the solved structural variable values and objective.
type lpSolution struct {
	X         []float64
	Objective float64
}

// solveBoundedSimplex solves lp, returning errLPInfeasible or
// errLPTimeout on failure. deadline is a hard wall-clock cutoff checked
// between pivots.
func solveBoundedSimplex(lp lpStandardForm, deadline time.Time) (lpSolution, error) {
	m := len(lp.A)
	if m == 0 {
		return lpSolution{X: append([]float64(nil), lp.Lower...)}, nil
	}
	n := len(lp.Lower)
	total := n + m // structural + one artificial per row

	rang := make([]float64, total)
	for j := 0; j < n; j++ {
		rang[j] = lp.Upper[j] - lp.Lower[j]
	}

	// residual at x = lower
	resid := make([]float64, m)
	for i := 0; i < m; i++ {
		r := lp.B[i]
		for j := 0; j < n; j++ {
			r -= lp.A[i][j] * lp.Lower[j]
		}
		resid[i] = r
	}

	// aBar starts as [A | artificial identity with sign(resid)]
	aBar := make([][]float64, m)
	for i := range aBar {
		aBar[i] = make([]float64, total)
		copy(aBar[i], lp.A[i])
	}
	y := make([]float64, m)
	basis := make([]int, m)
	atUpper := make([]bool, total)
	for i := 0; i < m; i++ {
		s := 1.0
		if resid[i] < 0 {
			s = -1.0
		}
		col := n + i
		aBar[i][col] = s
		rang[col] = bigRange
		basis[i] = col
		y[i] = resid[i] * s // == |resid[i]|
	}

	// phase 1: minimize sum of artificial variables
	phase1Cost := make([]float64, total)
	for i := 0; i < m; i++ {
		phase1Cost[n+i] = 1
	}
	zbar1, obj1 := reducedCostsFromScratch(aBar, phase1Cost, basis, y)

	if err := runSimplex(aBar, y, basis, atUpper, rang, zbar1, &obj1, deadline); err != nil {
		return lpSolution{}, err
	}
	if obj1 > simplexTolerance*float64(m+1) {
		return lpSolution{}, errLPInfeasible
	}

	// drive any remaining artificial variables out of the basis (degenerate,
	// value 0); if a row is structurally redundant, leave it basic at 0 and
	// lock its range to 0 so phase two can never reintroduce it.
	for i := 0; i < m; i++ {
		if basis[i] < n {
			continue
		}
		pivoted := false
		for j := 0; j < n; j++ {
			if atUpper[j] {
				continue
			}
			if aBar[i][j] <= simplexTolerance && aBar[i][j] >= -simplexTolerance {
				continue
			}
			pivotOn(aBar, basis, zbar1, i, j)
			pivoted = true
			break
		}
		if !pivoted {
			rang[basis[i]] = 0
		}
	}
	for i := 0; i < m; i++ {
		rang[n+i] = 0 // artificial variables may never move again
	}

	// phase 2: minimize the real objective
	phase2Cost := make([]float64, total)
	copy(phase2Cost, lp.Cost)
	zbar2, obj2 := reducedCostsFromScratch(aBar, phase2Cost, basis, y)

	if err := runSimplex(aBar, y, basis, atUpper, rang, zbar2, &obj2, deadline); err != nil {
		return lpSolution{}, err
	}

	x := make([]float64, n)
	for j := 0; j < n; j++ {
		if atUpper[j] {
			x[j] = lp.Upper[j]
		} else {
			x[j] = lp.Lower[j]
		}
	}
	for i := 0; i < m; i++ {
		if basis[i] < n {
			x[basis[i]] = lp.Lower[basis[i]] + y[i]
		}
	}

	objective := 0.0
	for j := 0; j < n; j++ {
		objective += lp.Cost[j] * x[j]
	}

	return lpSolution{X: x, Objective: objective}, nil
}

// runSimplex iterates Bland's-rule pivots until optimal or deadline.
// y is indexed by row: y[i] is the shifted value of basis[i].
func runSimplex(aBar [][]float64, y []float64, basis []int, atUpper []bool, rang []float64, zbar []float64, objective *float64, deadline time.Time) error {
	total := len(zbar)
	iterCheck := 0
	for {
		iterCheck++
		if iterCheck%64 == 0 && time.Now().After(deadline) {
			return errLPTimeout
		}

		entering := -1
		direction := 0.0
		for j := 0; j < total; j++ {
			if isBasic(basis, j) {
				continue
			}
			if !atUpper[j] && zbar[j] < -simplexTolerance {
				entering = j
				direction = 1
				break
			}
			if atUpper[j] && zbar[j] > simplexTolerance {
				entering = j
				direction = -1
				break
			}
		}
		if entering == -1 {
			return nil
		}

		tMax := rang[entering]
		leavingRow := -1
		leavingHitsUpper := false
		for i, b := range basis {
			coef := aBar[i][entering] * direction
			switch {
			case coef > simplexTolerance:
				t := y[i] / coef
				if t < tMax {
					tMax = t
					leavingRow = i
					leavingHitsUpper = false
				}
			case coef < -simplexTolerance:
				t := (rang[b] - y[i]) / (-coef)
				if t < tMax {
					tMax = t
					leavingRow = i
					leavingHitsUpper = true
				}
			}
		}
		if tMax < 0 {
			tMax = 0
		}

		delta := direction * tMax
		for i := range basis {
			y[i] -= aBar[i][entering] * delta
		}
		*objective += zbar[entering] * delta

		if leavingRow == -1 {
			atUpper[entering] = direction > 0
			continue
		}

		oldBasic := basis[leavingRow]
		if direction > 0 {
			y[leavingRow] = tMax
		} else {
			y[leavingRow] = rang[entering] - tMax
		}
		atUpper[oldBasic] = leavingHitsUpper
		pivotOn(aBar, basis, zbar, leavingRow, entering)
	}
}

// pivotOn performs Gauss-Jordan elimination to make column col the unit
// vector for row, updating the reduced-cost row alongside. y is
// maintained separately by the caller and is untouched here.
func pivotOn(aBar [][]float64, basis []int, zbar []float64, row, col int) {
	pivotVal := aBar[row][col]
	width := len(aBar[row])
	for k := 0; k < width; k++ {
		aBar[row][k] /= pivotVal
	}
	for i := range aBar {
		if i == row {
			continue
		}
		factor := aBar[i][col]
		if factor == 0 {
			continue
		}
		for k := 0; k < width; k++ {
			aBar[i][k] -= factor * aBar[row][k]
		}
	}
	zFactor := zbar[col]
	if zFactor != 0 {
		for k := 0; k < width; k++ {
			zbar[k] -= zFactor * aBar[row][k]
		}
	}
	basis[row] = col
}

func isBasic(basis []int, j int) bool {
	for _, b := range basis {
		if b == j {
			return true
		}
	}
	return false
}

// reducedCostsFromScratch computes the initial reduced-cost row and
// objective value for a fresh basis by eliminating each basic column's
// cost out of the cost row directly (equivalent to cB^T * Binv * A).
func reducedCostsFromScratch(aBar [][]float64, cost []float64, basis []int, y []float64) ([]float64, float64) {
	total := len(cost)
	zbar := make([]float64, total)
	copy(zbar, cost)
	obj := 0.0
	for i, b := range basis {
		cB := cost[b]
		obj += cB * y[i]
		if cB == 0 {
			continue
		}
		for k := 0; k < total; k++ {
			zbar[k] -= cB * aBar[i][k]
		}
	}
	return zbar, obj
}
