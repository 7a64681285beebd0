package metrics

import (
	"math"
	"sort"
)

// LatencySummary holds order statistics over a set of per-request latencies,
// all in seconds.
type LatencySummary struct {
	Median float64
	P90    float64
	P99    float64
	Min    float64
	Max    float64
}

// SummarizeLatencies computes the order statistics of vals. Returns nil if
// vals is empty so callers cannot mistake "no data" for zero latency.
func SummarizeLatencies(vals []float64) *LatencySummary {
	if len(vals) == 0 {
		return nil
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	return &LatencySummary{
		Median: medianSorted(sorted),
		P90:    percentile(sorted, 90),
		P99:    percentile(sorted, 99),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
}

// medianSorted returns the statistical median of a sorted slice. For an
// even count the two middle values are averaged.
func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Throughput returns tokens per second, or 0 when seconds is not positive.
func Throughput(tokens int, seconds float64) float64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return float64(tokens) / seconds
}

// percentile computes the p-th percentile from a sorted slice using
// the nearest-rank method.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100.0) * float64(len(sorted))
	idx := int(math.Ceil(rank)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
