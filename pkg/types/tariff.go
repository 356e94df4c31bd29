package types

import "time"

// Classification is the bucket assigned to a PricePoint by the
// percentile thresholds computed over its look-ahead window.
type Classification string

const (
	ClassificationNegative  Classification = "negative"
	ClassificationCheap     Classification = "cheap"
	ClassificationNormal    Classification = "normal"
	ClassificationExpensive Classification = "expensive"
)

// PricePoint is a single half-hourly tariff window.
type PricePoint struct {
	ValidFrom      time.Time      `json:"validFrom"`
	ValidTo        time.Time      `json:"validTo"`
	UnitPrice      float64        `json:"unitPrice"`
	Classification Classification `json:"classification"`
}

// PriceWindowStats is derived from a window of PricePoints; it is never
// the primary source of truth and is not stored: it is computed on demand
// from a fetched window.
type PriceWindowStats struct {
	Min                float64 `json:"min"`
	Max                float64 `json:"max"`
	Mean               float64 `json:"mean"`
	Median             float64 `json:"median"`
	CheapThreshold     float64 `json:"cheapThreshold"`
	ExpensiveThreshold float64 `json:"expensiveThreshold"`

	NegativeCount  int `json:"negativeCount"`
	CheapCount     int `json:"cheapCount"`
	NormalCount    int `json:"normalCount"`
	ExpensiveCount int `json:"expensiveCount"`
	TotalCount     int `json:"totalCount"`

	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	OldestPoint time.Time `json:"oldestPoint"`
	NewestPoint time.Time `json:"newestPoint"`
}

// IngestReport summarizes the effect of a tariff ingest call.
type IngestReport struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped  int `json:"skipped"`
}
