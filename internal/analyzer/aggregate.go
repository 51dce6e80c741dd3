package analyzer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"tracecmp/internal/models"
)

// GroupByOperation buckets rows by operation name, keeping input order in each bucket.
func GroupByOperation(rows []models.FeatureRow) map[string][]models.FeatureRow {
	grouped := make(map[string][]models.FeatureRow)
	for _, row := range rows {
		grouped[row.Operation] = append(grouped[row.Operation], row)
	}
	return grouped
}

// LatestByOperation keeps the row with the greatest start time per operation.
// On equal start times the row seen last wins.
func LatestByOperation(rows []models.FeatureRow) map[string]models.FeatureRow {
	out := make(map[string]models.FeatureRow)
	for _, row := range rows {
		current, ok := out[row.Operation]
		if !ok || row.StartTime >= current.StartTime {
			out[row.Operation] = row
		}
	}
	return out
}

// LatestNByOperation returns, per operation, up to n rows sorted by start time
// descending. Equal start times keep input order. n below 1 is treated as 1.
func LatestNByOperation(rows []models.FeatureRow, n int) map[string][]models.FeatureRow {
	if n < 1 {
		n = 1
	}

	out := make(map[string][]models.FeatureRow)
	for op, items := range GroupByOperation(rows) {
		sorted := make([]models.FeatureRow, len(items))
		copy(sorted, items)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].StartTime > sorted[j].StartTime
		})
		if len(sorted) > n {
			sorted = sorted[:n]
		}
		out[op] = sorted
	}
	return out
}

// Median returns the middle value of values, averaging the two middle values
// for even counts. values is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Summarize reduces rows, already sorted newest first, into a latency summary.
// The latest_* fields come from rows[0]. It returns nil for no rows.
func Summarize(rows []models.FeatureRow) *models.Summary {
	if len(rows) == 0 {
		return nil
	}

	durations := make([]float64, len(rows))
	for i, r := range rows {
		durations[i] = r.DurationSec
	}

	minSec := floats.Min(durations)
	maxSec := floats.Max(durations)
	// Summation rounding can push the mean a hair outside [min, max].
	avgSec := math.Min(math.Max(stat.Mean(durations, nil), minSec), maxSec)

	latest := rows[0]
	return &models.Summary{
		Operation:         latest.Operation,
		Count:             len(rows),
		P50Sec:            Median(durations),
		AvgSec:            avgSec,
		MinSec:            minSec,
		MaxSec:            maxSec,
		LatestTraceID:     latest.TraceID,
		LatestTopChild:    latest.TopChild,
		LatestTopChildSec: latest.TopChildSec,
	}
}

// SummarizeGroups summarizes every operation group, skipping empty ones.
func SummarizeGroups(groups map[string][]models.FeatureRow) map[string]*models.Summary {
	out := make(map[string]*models.Summary, len(groups))
	for op, rows := range groups {
		if s := Summarize(rows); s != nil {
			out[op] = s
		}
	}
	return out
}

// SortedOperations returns the keys of m in lexicographic order.
func SortedOperations[V any](m map[string]V) []string {
	ops := make([]string, 0, len(m))
	for op := range m {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// unionOperations returns the sorted union of the keys of a and b.
func unionOperations[A, B any](a map[string]A, b map[string]B) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for op := range a {
		seen[op] = struct{}{}
	}
	for op := range b {
		seen[op] = struct{}{}
	}
	return SortedOperations(seen)
}
