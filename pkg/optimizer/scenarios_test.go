package optimizer

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wattwise/controller/pkg/types"
)

type scenarioFixture struct {
	Scenarios []struct {
		Name       string    `yaml:"name"`
		SOCPct     float64   `yaml:"soc_pct"`
		PricePence []float64 `yaml:"price_pence"`
		ExpectMode string    `yaml:"expect_mode"`
	} `yaml:"scenarios"`
}

// TestSolve_Scenarios replays recorded price/SoC fixtures (spec.md's S5
// negative-price/full-battery case and its expensive/low-solar mirror)
// rather than synthetic flat inputs, matching the degraded-path fixture
// style the backtest sibling repo in the pack uses.
func TestSolve_Scenarios(t *testing.T) {
	raw, err := os.ReadFile("testdata/scenarios.yaml")
	require.NoError(t, err)

	var fixture scenarioFixture
	require.NoError(t, yaml.Unmarshal(raw, &fixture))
	require.NotEmpty(t, fixture.Scenarios)

	for _, sc := range fixture.Scenarios {
		sc := sc
		t.Run(sc.Name, func(t *testing.T) {
			h := len(sc.PricePence)
			p := flatProblem(h, sc.PricePence)
			p.CurrentSOCPct = sc.SOCPct
			for i, price := range sc.PricePence {
				switch {
				case price < 0:
					p.Classification[i] = types.ClassificationNegative
				case price >= 25:
					p.Classification[i] = types.ClassificationExpensive
				default:
					p.Classification[i] = types.ClassificationNormal
				}
			}
			p.SolarKWH = make([]float64, h) // no solar in either recorded scenario

			result := Solve(context.Background(), p, 50, 100)
			require.Equal(t, types.OptimizationStatus(types.OptimizationStatusOptimal), result.Status)
			require.Equal(t, types.BatteryMode(sc.ExpectMode), result.BatteryMode)
		})
	}
}
