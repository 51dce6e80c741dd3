// Package analyzer turns raw Jaeger traces into per-operation latency rows,
// aggregates them and compares two builds against each other.
package analyzer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"tracecmp/internal/clients/jaeger"
	"tracecmp/internal/models"
)

// Tag keys read from root spans and process resources.
const (
	TagGitCommit      = "git.commit"
	TagServiceVersion = "service.version"
	TagError          = "error"
	TagOtelStatusCode = "otel.status_code"
)

const microsPerSecond = 1_000_000.0

// truthyStrings are the free-text spellings of an error flag.
var truthyStrings = map[string]struct{}{
	"1": {}, "true": {}, "yes": {}, "y": {},
}

// IsTruthy normalizes a loosely typed tag value into a strict boolean.
// Booleans are taken as-is, numbers are true when nonzero and strings when
// they spell 1/true/yes/y in any case. Everything else is false.
func IsTruthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case float32:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case string:
		_, ok := truthyStrings[strings.ToLower(strings.TrimSpace(v))]
		return ok
	default:
		return false
	}
}

// tagText renders a tag value for identity fields. Empty and zero-like values
// return "" so callers can fall through to the next source.
func tagText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if !v {
			return ""
		}
		return "true"
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orPlaceholder(s string) string {
	if s == "" {
		return models.Placeholder
	}
	return s
}

// RootSpans returns the spans of trace that reference no other span, in input order.
func RootSpans(trace jaeger.Trace) []jaeger.Span {
	var roots []jaeger.Span
	for _, span := range trace.Spans {
		if span.IsRoot() {
			roots = append(roots, span)
		}
	}
	return roots
}

// TopChild finds the slowest span holding a CHILD_OF reference to root.
// Ties keep the first span seen. Without children it returns ("-", 0).
func TopChild(root jaeger.Span, spans []jaeger.Span) (string, float64) {
	var longest *jaeger.Span
	for i := range spans {
		if !spans[i].IsChildOf(root.SpanID) {
			continue
		}
		if longest == nil || spans[i].Duration > longest.Duration {
			longest = &spans[i]
		}
	}

	if longest == nil {
		return models.Placeholder, 0.0
	}
	return orPlaceholder(longest.OperationName), float64(longest.Duration) / microsPerSecond
}

// IsErrorSpan classifies a root span from its tags.
func IsErrorSpan(tags map[string]any) bool {
	if IsTruthy(tags[TagError]) {
		return true
	}
	code, ok := tags[TagOtelStatusCode]
	if !ok || code == nil {
		return false
	}
	return strings.EqualFold(fmt.Sprint(code), "ERROR")
}

// ExtractRows produces one FeatureRow per root span of trace. Missing
// processes or tags are defaulted, never reported.
func ExtractRows(trace jaeger.Trace) []models.FeatureRow {
	roots := RootSpans(trace)
	rows := make([]models.FeatureRow, 0, len(roots))

	for _, root := range roots {
		process := trace.Processes[root.ProcessID]
		processTags := jaeger.TagMap(process.Tags)
		rootTags := jaeger.TagMap(root.Tags)

		commit := firstNonEmpty(
			tagText(processTags[TagGitCommit]),
			tagText(rootTags[TagGitCommit]),
			models.Unknown,
		)
		version := firstNonEmpty(tagText(processTags[TagServiceVersion]), models.Unknown)

		status := models.StatusOK
		if IsErrorSpan(rootTags) {
			status = models.StatusError
		}

		topChild, topChildSec := TopChild(root, trace.Spans)

		rows = append(rows, models.FeatureRow{
			TraceID:        orPlaceholder(trace.TraceID),
			Operation:      orPlaceholder(root.OperationName),
			DurationSec:    float64(root.Duration) / microsPerSecond,
			StartTime:      root.StartTime,
			Commit:         commit,
			ServiceVersion: version,
			TopChild:       topChild,
			TopChildSec:    topChildSec,
			Status:         status,
		})
	}

	return rows
}

// CollectRows flattens every trace into feature rows, preserving input order.
func CollectRows(traces []jaeger.Trace) []models.FeatureRow {
	var rows []models.FeatureRow
	for _, trace := range traces {
		rows = append(rows, ExtractRows(trace)...)
	}
	return rows
}
