package jaeger

// RefTypeChildOf marks a reference to the span's direct parent.
const RefTypeChildOf = "CHILD_OF"

// Trace represents a complete distributed trace as returned by the Jaeger query API.
type Trace struct {
	TraceID   string             `json:"traceID"`
	Spans     []Span             `json:"spans"`
	Processes map[string]Process `json:"processes"`
}

// Span represents a single timed operation within a larger trace.
// StartTime is in epoch microseconds and Duration in microseconds.
type Span struct {
	TraceID       string      `json:"traceID"`
	SpanID        string      `json:"spanID"`
	OperationName string      `json:"operationName"`
	References    []Reference `json:"references"`
	StartTime     int64       `json:"startTime"`
	Duration      int64       `json:"duration"`
	Tags          []KeyValue  `json:"tags"`
	ProcessID     string      `json:"processID"`
}

// Reference links a span to another span in the same or a different trace.
type Reference struct {
	RefType string `json:"refType"`
	TraceID string `json:"traceID"`
	SpanID  string `json:"spanID"`
}

// Process holds the emitting process identity and its resource tags.
type Process struct {
	ServiceName string     `json:"serviceName"`
	Tags        []KeyValue `json:"tags"`
}

// KeyValue is a typed tag. Value keeps whatever JSON type the backend sent.
type KeyValue struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// IsRoot reports whether the span has no references to other spans.
func (s Span) IsRoot() bool {
	return len(s.References) == 0
}

// IsChildOf returns true if the span has a CHILD_OF reference to parentID.
func (s Span) IsChildOf(parentID string) bool {
	for _, ref := range s.References {
		if ref.RefType == RefTypeChildOf && ref.SpanID == parentID {
			return true
		}
	}
	return false
}

// TagMap flattens tags into a lookup map. Later keys overwrite earlier ones
// and tags without a key are dropped.
func TagMap(tags []KeyValue) map[string]any {
	out := make(map[string]any, len(tags))
	for _, tag := range tags {
		if tag.Key == "" {
			continue
		}
		out[tag.Key] = tag.Value
	}
	return out
}

// QueryResult represents the Jaeger /api/traces response envelope.
type QueryResult struct {
	Data   []Trace `json:"data"`
	Errors []struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"errors"`
}
