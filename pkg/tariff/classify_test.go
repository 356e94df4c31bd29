package tariff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattwise/controller/pkg/types"
)

func point(price float64, offset time.Duration) types.PricePoint {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	from := base.Add(offset)
	return types.PricePoint{ValidFrom: from, ValidTo: from.Add(30 * time.Minute), UnitPrice: price}
}

func TestClassify_NegativeAlwaysNegative(t *testing.T) {
	points := []types.PricePoint{
		point(-5, 0),
		point(1, 30*time.Minute),
		point(20, time.Hour),
	}
	out := Classify(points)
	require.Len(t, out, 3)
	assert.Equal(t, types.ClassificationNegative, out[0].Classification)
}

func TestClassify_ThresholdsOverNonNegativeSubset(t *testing.T) {
	points := []types.PricePoint{
		point(-10, 0),
		point(1, 30*time.Minute),
		point(2, time.Hour),
		point(3, 90*time.Minute),
		point(4, 2*time.Hour),
		point(5, 150*time.Minute),
	}
	out := Classify(points)

	byPrice := map[float64]types.Classification{}
	for _, p := range out {
		byPrice[p.UnitPrice] = p.Classification
	}

	assert.Equal(t, types.ClassificationNegative, byPrice[-10])
	assert.Equal(t, types.ClassificationCheap, byPrice[1])
	assert.Equal(t, types.ClassificationExpensive, byPrice[5])
}

func TestClassify_Idempotent(t *testing.T) {
	points := []types.PricePoint{
		point(-1, 0),
		point(3, 30*time.Minute),
		point(7, time.Hour),
		point(12, 90*time.Minute),
	}
	first := Classify(points)
	second := Classify(first)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Classification, second[i].Classification)
	}
}

func TestClassify_Empty(t *testing.T) {
	assert.Empty(t, Classify(nil))
}
