// Package models defines the shared data structures flowing through the tracecmp pipeline.
package models

import "fmt"

const (
	// Unknown is recorded when a commit or version tag is absent.
	Unknown = "unknown"
	// Placeholder stands in for missing names and table cells.
	Placeholder = "-"
)

// Status is the outcome of a root span.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// StatusFilter selects rows by Status. StatusAll keeps everything.
type StatusFilter string

const (
	StatusAll      StatusFilter = "all"
	StatusOnlyOK   StatusFilter = "ok"
	StatusOnlyFail StatusFilter = "error"
)

// ParseStatusFilter validates a --status value.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(s); f {
	case StatusAll, StatusOnlyOK, StatusOnlyFail:
		return f, nil
	default:
		return "", fmt.Errorf("invalid status filter %q (want all, ok or error)", s)
	}
}

// Allows returns true if a row with the given status passes the filter.
func (f StatusFilter) Allows(status Status) bool {
	if f == StatusAll || f == "" {
		return true
	}
	return Status(f) == status
}

// FeatureRow is the flattened timing and identity record of one root span.
type FeatureRow struct {
	TraceID        string  `json:"trace_id"`
	Operation      string  `json:"operation"`
	DurationSec    float64 `json:"duration_sec"`
	StartTime      int64   `json:"start_time"`
	Commit         string  `json:"commit"`
	ServiceVersion string  `json:"service_version"`
	TopChild       string  `json:"top_child"`
	TopChildSec    float64 `json:"top_child_sec"`
	Status         Status  `json:"status"`
}

// Summary aggregates the latest N samples of one operation.
type Summary struct {
	Operation         string  `json:"operation"`
	Count             int     `json:"count"`
	P50Sec            float64 `json:"p50_sec"`
	AvgSec            float64 `json:"avg_sec"`
	MinSec            float64 `json:"min_sec"`
	MaxSec            float64 `json:"max_sec"`
	LatestTraceID     string  `json:"latest_trace_id"`
	LatestTopChild    string  `json:"latest_top_child"`
	LatestTopChildSec float64 `json:"latest_top_child_sec"`
}

// Delta is the head-minus-base difference of one metric.
type Delta struct {
	Abs float64 `json:"delta_abs"`
	Pct float64 `json:"delta_pct"`
}
