package analyzer

import "tracecmp/internal/models"

// Compare computes head minus base. The percentage is 0 when base is 0.
func Compare(base, head float64) models.Delta {
	abs := head - base
	pct := 0.0
	if base != 0 {
		pct = abs / base * 100.0
	}
	return models.Delta{Abs: abs, Pct: pct}
}

// LatestComparison pairs the latest base and head rows of one operation.
// Base or Head is nil when the operation was only seen on the other side,
// and Duration is then nil too.
type LatestComparison struct {
	Operation string
	Base      *models.FeatureRow
	Head      *models.FeatureRow
	Duration  *models.Delta
}

// CompareLatest lines up single-sample results over the union of operations,
// sorted by name.
func CompareLatest(base, head map[string]models.FeatureRow) []LatestComparison {
	ops := unionOperations(base, head)
	out := make([]LatestComparison, 0, len(ops))

	for _, op := range ops {
		c := LatestComparison{Operation: op}
		if b, ok := base[op]; ok {
			c.Base = &b
		}
		if h, ok := head[op]; ok {
			c.Head = &h
		}
		if c.Base != nil && c.Head != nil {
			d := Compare(c.Base.DurationSec, c.Head.DurationSec)
			c.Duration = &d
		}
		out = append(out, c)
	}
	return out
}

// SummaryComparison pairs base and head summaries of one operation.
type SummaryComparison struct {
	Operation string
	Base      *models.Summary
	Head      *models.Summary
	P50       *models.Delta
	Avg       *models.Delta
}

// CompareSummaries lines up multi-sample summaries over the union of
// operations, sorted by name.
func CompareSummaries(base, head map[string]*models.Summary) []SummaryComparison {
	ops := unionOperations(base, head)
	out := make([]SummaryComparison, 0, len(ops))

	for _, op := range ops {
		c := SummaryComparison{
			Operation: op,
			Base:      base[op],
			Head:      head[op],
		}
		if c.Base != nil && c.Head != nil {
			p50 := Compare(c.Base.P50Sec, c.Head.P50Sec)
			avg := Compare(c.Base.AvgSec, c.Head.AvgSec)
			c.P50 = &p50
			c.Avg = &avg
		}
		out = append(out, c)
	}
	return out
}
