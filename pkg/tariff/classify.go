package tariff

import (
	"sort"

	"github.com/samber/lo"

	"github.com/wattwise/controller/pkg/types"
)

// Classify recomputes classification for every point in the window,
// using the 33rd/67th percentile thresholds over the non-negative
// subset. It does not mutate the input slice's order and is idempotent:
// calling it twice on the same window yields the same classifications.
func Classify(points []types.PricePoint) []types.PricePoint {
	if len(points) == 0 {
		return points
	}

	nonNegative := lo.FilterMap(points, func(p types.PricePoint, _ int) (float64, bool) {
		return p.UnitPrice, p.UnitPrice >= 0
	})
	sort.Float64s(nonNegative)

	cheapThreshold := percentile(nonNegative, 0.33)
	expensiveThreshold := percentile(nonNegative, 0.67)

	return lo.Map(points, func(p types.PricePoint, _ int) types.PricePoint {
		p.Classification = classifyOne(p.UnitPrice, cheapThreshold, expensiveThreshold)
		return p
	})
}

func classifyOne(price, cheapThreshold, expensiveThreshold float64) types.Classification {
	switch {
	case price < 0:
		return types.ClassificationNegative
	case price <= cheapThreshold:
		return types.ClassificationCheap
	case price >= expensiveThreshold:
		return types.ClassificationExpensive
	default:
		return types.ClassificationNormal
	}
}
