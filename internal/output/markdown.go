// Package output renders pipeline results as Markdown tables.
package output

import (
	"fmt"
	"strings"

	"tracecmp/internal/analyzer"
	"tracecmp/internal/models"
	"tracecmp/internal/orchestrator"
)

// No-match messages printed in place of a table.
const (
	NoMatchReport  = "No traces found for the specified commit."
	NoMatchCompare = "No traces found for either commit."
)

func fmtSec(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func code(s string) string {
	return "`" + s + "`"
}

type headerRow struct {
	key   string
	value string
}

// writeHeader emits the key/value table listing the active filters.
func writeHeader(b *strings.Builder, service string, selectors []headerRow, samples int, status models.StatusFilter) {
	b.WriteString("| key | value |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(b, "| service | %s |\n", code(service))
	for _, s := range selectors {
		fmt.Fprintf(b, "| %s | %s |\n", s.key, code(s.value))
	}
	fmt.Fprintf(b, "| samples | %s |\n", code(fmt.Sprint(samples)))
	fmt.Fprintf(b, "| status_filter | %s |\n", code(string(status)))
	b.WriteString("\n")
}

// Report renders a single-selector report.
func Report(res *orchestrator.ReportResult) string {
	var b strings.Builder
	q := res.Query
	writeHeader(&b, q.Service, []headerRow{{"commit", q.Selector}}, q.Samples, q.Status)

	if res.Empty() {
		b.WriteString(NoMatchReport + "\n")
		return b.String()
	}

	if !res.MultiSample() {
		b.WriteString("| operation | trace_id | duration_sec | top_child | top_child_sec | status |\n")
		b.WriteString("|---|---|---:|---|---:|---|\n")
		for _, op := range analyzer.SortedOperations(res.Latest) {
			row := res.Latest[op]
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				code(op),
				code(row.TraceID),
				fmtSec(row.DurationSec),
				code(row.TopChild),
				fmtSec(row.TopChildSec),
				code(string(row.Status)),
			)
		}
		return b.String()
	}

	b.WriteString("| operation | samples | latest_trace_id | p50_sec | avg_sec | min_sec | max_sec | latest_top_child | latest_top_child_sec |\n")
	b.WriteString("|---|---:|---|---:|---:|---:|---:|---|---:|\n")
	for _, op := range analyzer.SortedOperations(res.Summaries) {
		s := res.Summaries[op]
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s | %s | %s | %s |\n",
			code(op),
			s.Count,
			code(s.LatestTraceID),
			fmtSec(s.P50Sec),
			fmtSec(s.AvgSec),
			fmtSec(s.MinSec),
			fmtSec(s.MaxSec),
			code(s.LatestTopChild),
			fmtSec(s.LatestTopChildSec),
		)
	}
	return b.String()
}

// Comparison renders a base vs head comparison.
func Comparison(res *orchestrator.CompareResult) string {
	var b strings.Builder
	q := res.Query
	writeHeader(&b, q.Service, []headerRow{{"base", q.Base}, {"head", q.Head}}, q.Samples, q.Status)

	if res.Empty() {
		b.WriteString(NoMatchCompare + "\n")
		return b.String()
	}

	if !res.MultiSample() {
		writeLatestComparison(&b, res)
	} else {
		writeSummaryComparison(&b, res)
	}
	return b.String()
}

func writeLatestComparison(b *strings.Builder, res *orchestrator.CompareResult) {
	b.WriteString("| operation | base_trace_id | base_sec | base_top_child (sec) | head_trace_id | head_sec | head_top_child (sec) | delta_sec | delta_% |\n")
	b.WriteString("|---|---|---:|---|---|---:|---|---:|---:|\n")

	for _, c := range res.Latest {
		bTrace, bSec, bChild := latestCells(c.Base)
		hTrace, hSec, hChild := latestCells(c.Head)

		delta, pct := models.Placeholder, models.Placeholder
		if c.Duration != nil {
			delta = fmtSec(c.Duration.Abs)
			pct = fmtSec(c.Duration.Pct)
		}

		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			code(c.Operation), bTrace, bSec, bChild, hTrace, hSec, hChild, delta, pct)
	}
}

func latestCells(row *models.FeatureRow) (trace, sec, child string) {
	if row == nil {
		return models.Placeholder, models.Placeholder, models.Placeholder
	}
	return code(row.TraceID),
		fmtSec(row.DurationSec),
		fmt.Sprintf("%s (%s)", code(row.TopChild), fmtSec(row.TopChildSec))
}

func writeSummaryComparison(b *strings.Builder, res *orchestrator.CompareResult) {
	b.WriteString("| operation | base_n | base_p50 | base_avg | head_n | head_p50 | head_avg | delta_p50 | delta_p50_% | delta_avg | delta_avg_% |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")

	for _, c := range res.Summaries {
		bN, bP50, bAvg := summaryCells(c.Base)
		hN, hP50, hAvg := summaryCells(c.Head)

		dP50, dP50Pct, dAvg, dAvgPct := models.Placeholder, models.Placeholder, models.Placeholder, models.Placeholder
		if c.P50 != nil && c.Avg != nil {
			dP50, dP50Pct = fmtSec(c.P50.Abs), fmtSec(c.P50.Pct)
			dAvg, dAvgPct = fmtSec(c.Avg.Abs), fmtSec(c.Avg.Pct)
		}

		fmt.Fprintf(b, "| %s | %d | %s | %s | %d | %s | %s | %s | %s | %s | %s |\n",
			code(c.Operation), bN, bP50, bAvg, hN, hP50, hAvg, dP50, dP50Pct, dAvg, dAvgPct)
	}
}

func summaryCells(s *models.Summary) (n int, p50, avg string) {
	if s == nil {
		return 0, models.Placeholder, models.Placeholder
	}
	return s.Count, fmtSec(s.P50Sec), fmtSec(s.AvgSec)
}
