// Package tariff maintains the rolling window of half-hourly unit prices
// and their derived classification.
package tariff

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wattwise/controller/pkg/types"
)

// Reader is the subset of storage.Provider the store needs to read prices.
type Reader interface {
	GetPricePoints(ctx context.Context, start, end time.Time) ([]types.PricePoint, error)
}

// Writer is the subset of storage.Provider the store needs to write prices.
type Writer interface {
	UpsertPricePoints(ctx context.Context, points []types.PricePoint) (inserted, updated, unchanged int, err error)
	DeletePricePointsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ReadWriter is the persistence dependency of a Store.
type ReadWriter interface {
	Reader
	Writer
}

// RawPoint is a price point before classification, as received from the
// external tariff source.
type RawPoint struct {
	ValidFrom time.Time
	ValidTo   time.Time
	UnitPrice float64
}

// Store classifies and persists tariff price points.
type Store struct {
	db             ReadWriter
	retentionDays  int
}

// NewStore builds a Store backed by db, retaining retentionDays of
// history on each Ingest call.
func NewStore(db ReadWriter, retentionDays int) *Store {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &Store{db: db, retentionDays: retentionDays}
}

// Configure replaces the store's dependency and retention policy in
// place. It exists so a Store can be handed out before flag-derived
// values (retentionDays) are available and populated once
// lflag.Configure() runs, without the caller ever copying the struct
// itself (whole-value copies of types with embedded lock-like fields
// elsewhere in this module are a known foot-gun; this keeps Store
// mutation confined to its own exported setter).
func (s *Store) Configure(db ReadWriter, retentionDays int) {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	s.db = db
	s.retentionDays = retentionDays
}

// Ingest upserts raw points (classifying them against the resulting
// look-ahead window), prunes anything older than the retention window,
// and returns a summary of the effect. Malformed points are skipped, not
// fatal to the batch.
func (s *Store) Ingest(ctx context.Context, now time.Time, raw []RawPoint) (types.IngestReport, error) {
	var report types.IngestReport

	valid := make([]RawPoint, 0, len(raw))
	for _, p := range raw {
		if p.ValidFrom.IsZero() || p.ValidTo.IsZero() || !p.ValidTo.After(p.ValidFrom) {
			report.Skipped++
			continue
		}
		valid = append(valid, p)
	}

	windowStart := now
	windowEnd := now.Add(48 * time.Hour)
	existing, err := s.db.GetPricePoints(ctx, windowStart.Add(-s.lookback()), windowEnd)
	if err != nil {
		return report, fmt.Errorf("tariff: loading window for classification: %w", err)
	}

	merged := mergePoints(existing, valid)
	classified := Classify(merged)

	inserted, updated, unchanged, err := s.db.UpsertPricePoints(ctx, classified)
	if err != nil {
		return report, fmt.Errorf("tariff: upserting price points: %w", err)
	}
	report.Inserted = inserted
	report.Updated = updated
	report.Unchanged = unchanged

	cutoff := now.AddDate(0, 0, -s.retentionDays)
	if _, err := s.db.DeletePricePointsBefore(ctx, cutoff); err != nil {
		return report, fmt.Errorf("tariff: pruning retention window: %w", err)
	}

	return report, nil
}

func (s *Store) lookback() time.Duration {
	return time.Duration(s.retentionDays) * 24 * time.Hour
}

// GetWindow returns ordered price points starting in [start, end). Missing
// coverage is not an error: callers get whatever is available.
func (s *Store) GetWindow(ctx context.Context, start, end time.Time) ([]types.PricePoint, error) {
	points, err := s.db.GetPricePoints(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("tariff: get window: %w", err)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].ValidFrom.Before(points[j].ValidFrom) })
	return points, nil
}

// Stats derives PriceWindowStats from an already-fetched window.
func Stats(points []types.PricePoint) types.PriceWindowStats {
	var s types.PriceWindowStats
	if len(points) == 0 {
		return s
	}

	sorted := make([]types.PricePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ValidFrom.Before(sorted[j].ValidFrom) })

	s.TotalCount = len(sorted)
	s.OldestPoint = sorted[0].ValidFrom
	s.NewestPoint = sorted[len(sorted)-1].ValidFrom
	s.WindowStart = sorted[0].ValidFrom
	s.WindowEnd = sorted[len(sorted)-1].ValidTo

	prices := make([]float64, len(sorted))
	for i, p := range sorted {
		prices[i] = p.UnitPrice
		switch p.Classification {
		case types.ClassificationNegative:
			s.NegativeCount++
		case types.ClassificationCheap:
			s.CheapCount++
		case types.ClassificationExpensive:
			s.ExpensiveCount++
		default:
			s.NormalCount++
		}
	}

	sortedPrices := append([]float64(nil), prices...)
	sort.Float64s(sortedPrices)

	s.Min = sortedPrices[0]
	s.Max = sortedPrices[len(sortedPrices)-1]
	s.Mean = mean(prices)
	s.Median = percentile(sortedPrices, 0.5)

	nonNegative := nonNegativeSorted(sortedPrices)
	s.CheapThreshold = percentile(nonNegative, 0.33)
	s.ExpensiveThreshold = percentile(nonNegative, 0.67)

	return s
}

// mergePoints replaces any existing point sharing a ValidFrom with the
// corresponding raw point, keeping everything else as-is.
func mergePoints(existing []types.PricePoint, raw []RawPoint) []types.PricePoint {
	byStart := make(map[int64]types.PricePoint, len(existing)+len(raw))
	for _, p := range existing {
		byStart[p.ValidFrom.Unix()] = p
	}
	for _, r := range raw {
		byStart[r.ValidFrom.Unix()] = types.PricePoint{
			ValidFrom: r.ValidFrom,
			ValidTo:   r.ValidTo,
			UnitPrice: r.UnitPrice,
		}
	}

	merged := make([]types.PricePoint, 0, len(byStart))
	for _, p := range byStart {
		merged = append(merged, p)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ValidFrom.Before(merged[j].ValidFrom) })
	return merged
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// percentile expects sorted input and interpolates linearly between the
// two closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func nonNegativeSorted(sorted []float64) []float64 {
	out := make([]float64, 0, len(sorted))
	for _, x := range sorted {
		if x >= 0 {
			out = append(out, x)
		}
	}
	return out
}
