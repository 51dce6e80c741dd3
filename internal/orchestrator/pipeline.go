// Package orchestrator runs the tracecmp pipeline: one fetch from the Trace
// Source, feature extraction, selector and status filtering, then aggregation
// or comparison.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"tracecmp/internal/analyzer"
	"tracecmp/internal/clients/git"
	"tracecmp/internal/clients/jaeger"
	"tracecmp/internal/metrics"
	"tracecmp/internal/models"
	"tracecmp/internal/selector"
)

// TraceSource fetches raw traces for a service.
type TraceSource interface {
	FetchTraces(ctx context.Context, service string, limit int) ([]jaeger.Trace, error)
}

// FetchError wraps a transport or decode failure from the Trace Source.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Orchestrator coordinates the trace fetch and the analysis stages.
type Orchestrator struct {
	source   TraceSource
	resolver git.Resolver
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a new orchestrator. A nil resolver disables git resolution,
// nil metrics get a private registry and a nil logger uses slog.Default.
func New(source TraceSource, resolver git.Resolver, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if resolver == nil {
		resolver = git.NoopResolver
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		source:   source,
		resolver: resolver,
		metrics:  m,
		logger:   logger,
	}
}

// ReportQuery selects the traces of a single build.
type ReportQuery struct {
	Service  string
	Limit    int
	Selector string
	Samples  int
	Status   models.StatusFilter
}

// ReportResult holds the rows matched by a ReportQuery and their aggregation.
// Latest is set for single-sample queries, Summaries otherwise.
type ReportResult struct {
	Query      ReportQuery
	Candidates []string
	Rows       []models.FeatureRow
	Latest     map[string]models.FeatureRow
	Summaries  map[string]*models.Summary
}

// MultiSample reports whether the result summarizes more than one sample per operation.
func (r *ReportResult) MultiSample() bool {
	return r.Query.Samples > 1
}

// Empty is true when no row matched the selector and status filter.
func (r *ReportResult) Empty() bool {
	return len(r.Rows) == 0
}

// CompareQuery selects a base and a head build to compare.
type CompareQuery struct {
	Service string
	Limit   int
	Base    string
	Head    string
	Samples int
	Status  models.StatusFilter
}

// CompareResult pairs per-operation base and head metrics.
type CompareResult struct {
	Query          CompareQuery
	BaseCandidates []string
	HeadCandidates []string
	BaseRows       []models.FeatureRow
	HeadRows       []models.FeatureRow
	Latest         []analyzer.LatestComparison
	Summaries      []analyzer.SummaryComparison
}

// MultiSample reports whether the comparison is over summaries.
func (r *CompareResult) MultiSample() bool {
	return r.Query.Samples > 1
}

// Empty is true when neither side matched any row.
func (r *CompareResult) Empty() bool {
	return len(r.BaseRows) == 0 && len(r.HeadRows) == 0
}

// Report fetches traces once and aggregates the rows matching q.Selector.
func (o *Orchestrator) Report(ctx context.Context, q ReportQuery) (*ReportResult, error) {
	rows, err := o.fetchRows(ctx, q.Service, q.Limit)
	if err != nil {
		return nil, err
	}

	m := selector.NewMatcher(ctx, q.Selector, o.resolver)
	o.logger.Debug("Expanded selector", "selector", q.Selector, "candidates", m.Candidates)

	matched := filterRows(rows, m, q.Status)
	o.metrics.RowsMatched.WithLabelValues(metrics.SideReport).Add(float64(len(matched)))
	o.logger.Debug("Filtered rows", "selector", q.Selector, "status", q.Status, "matched", len(matched))

	res := &ReportResult{
		Query:      q,
		Candidates: m.Candidates,
		Rows:       matched,
	}
	if res.MultiSample() {
		res.Summaries = analyzer.SummarizeGroups(analyzer.LatestNByOperation(matched, q.Samples))
	} else {
		res.Latest = analyzer.LatestByOperation(matched)
	}
	return res, nil
}

// Compare fetches traces once and compares the rows matching q.Base and q.Head.
func (o *Orchestrator) Compare(ctx context.Context, q CompareQuery) (*CompareResult, error) {
	rows, err := o.fetchRows(ctx, q.Service, q.Limit)
	if err != nil {
		return nil, err
	}

	base := selector.NewMatcher(ctx, q.Base, o.resolver)
	head := selector.NewMatcher(ctx, q.Head, o.resolver)
	o.logger.Debug("Expanded selectors", "base", base.Candidates, "head", head.Candidates)

	baseRows := filterRows(rows, base, q.Status)
	headRows := filterRows(rows, head, q.Status)
	o.metrics.RowsMatched.WithLabelValues(metrics.SideBase).Add(float64(len(baseRows)))
	o.metrics.RowsMatched.WithLabelValues(metrics.SideHead).Add(float64(len(headRows)))
	o.logger.Debug("Filtered rows", "status", q.Status, "base", len(baseRows), "head", len(headRows))

	res := &CompareResult{
		Query:          q,
		BaseCandidates: base.Candidates,
		HeadCandidates: head.Candidates,
		BaseRows:       baseRows,
		HeadRows:       headRows,
	}
	if res.MultiSample() {
		res.Summaries = analyzer.CompareSummaries(
			analyzer.SummarizeGroups(analyzer.LatestNByOperation(baseRows, q.Samples)),
			analyzer.SummarizeGroups(analyzer.LatestNByOperation(headRows, q.Samples)),
		)
	} else {
		res.Latest = analyzer.CompareLatest(
			analyzer.LatestByOperation(baseRows),
			analyzer.LatestByOperation(headRows),
		)
	}
	return res, nil
}

// fetchRows performs the single Trace Source call and flattens its traces.
func (o *Orchestrator) fetchRows(ctx context.Context, service string, limit int) ([]models.FeatureRow, error) {
	timer := prometheus.NewTimer(o.metrics.FetchDuration)
	traces, err := o.source.FetchTraces(ctx, service, limit)
	timer.ObserveDuration()
	if err != nil {
		o.metrics.FetchFailures.Inc()
		return nil, &FetchError{Err: err}
	}

	rows := analyzer.CollectRows(traces)
	o.metrics.TracesFetched.Add(float64(len(traces)))
	o.metrics.RowsExtracted.Add(float64(len(rows)))
	o.logger.Debug("Extracted rows", "service", service, "traces", len(traces), "rows", len(rows))
	return rows, nil
}

// filterRows keeps rows matching the selector and the status filter. Status
// is judged per root row, so one multi-root trace can land on both sides of
// an ok/error split.
func filterRows(rows []models.FeatureRow, m *selector.Matcher, status models.StatusFilter) []models.FeatureRow {
	var out []models.FeatureRow
	for _, r := range rows {
		if m.Match(r.Commit, r.ServiceVersion) && status.Allows(r.Status) {
			out = append(out, r)
		}
	}
	return out
}
