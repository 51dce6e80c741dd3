package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracecmp/internal/clients/git"
	"tracecmp/internal/clients/jaeger"
	"tracecmp/internal/metrics"
	"tracecmp/internal/models"
)

type stubSource struct {
	traces []jaeger.Trace
	err    error
	calls  int
}

func (s *stubSource) FetchTraces(_ context.Context, _ string, _ int) ([]jaeger.Trace, error) {
	s.calls++
	return s.traces, s.err
}

// rootTrace builds a single-root trace for op.
func rootTrace(traceID, op, commit string, start, durationMicros int64, tags ...jaeger.KeyValue) jaeger.Trace {
	tags = append(tags, jaeger.KeyValue{Key: "git.commit", Value: commit})
	return jaeger.Trace{
		TraceID: traceID,
		Spans: []jaeger.Span{
			{SpanID: traceID + "-root", OperationName: op, StartTime: start, Duration: durationMicros, Tags: tags},
		},
	}
}

func TestReportSingleSample(t *testing.T) {
	src := &stubSource{traces: []jaeger.Trace{
		rootTrace("t1", "build", "abc123def456", 10, 2_000_000),
		rootTrace("t2", "build", "abc123def456", 20, 2_500_000),
		rootTrace("t3", "build", "fff000", 30, 9_000_000),
		rootTrace("t4", "test", "abc123def456", 5, 1_000_000),
	}}
	m := metrics.New()
	o := New(src, git.NoopResolver, m, nil)

	res, err := o.Report(context.Background(), ReportQuery{Service: "svc", Limit: 10, Selector: "abc123", Samples: 1, Status: models.StatusAll})
	require.NoError(t, err)

	assert.False(t, res.Empty())
	assert.False(t, res.MultiSample())
	assert.Len(t, res.Rows, 3)
	require.Len(t, res.Latest, 2)
	assert.Equal(t, "t2", res.Latest["build"].TraceID)
	assert.Equal(t, "t4", res.Latest["test"].TraceID)
	assert.Nil(t, res.Summaries)
	assert.Equal(t, []string{"abc123", "vabc123"}, res.Candidates)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TracesFetched))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RowsExtracted))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsMatched.WithLabelValues(metrics.SideReport)))
}

func TestReportMultiSample(t *testing.T) {
	src := &stubSource{traces: []jaeger.Trace{
		rootTrace("t1", "build", "abc1234", 10, 1_000_000),
		rootTrace("t2", "build", "abc1234", 20, 2_000_000),
		rootTrace("t3", "build", "abc1234", 30, 3_000_000),
		rootTrace("t4", "build", "abc1234", 40, 10_000_000),
	}}
	o := New(src, nil, nil, nil)

	res, err := o.Report(context.Background(), ReportQuery{Selector: "abc1234", Samples: 3, Status: models.StatusAll})
	require.NoError(t, err)

	assert.True(t, res.MultiSample())
	require.Contains(t, res.Summaries, "build")
	s := res.Summaries["build"]
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, "t4", s.LatestTraceID)
	assert.InDelta(t, 3.0, s.P50Sec, 1e-9)
	assert.InDelta(t, 5.0, s.AvgSec, 1e-9)
	assert.Equal(t, 2.0, s.MinSec)
	assert.Equal(t, 10.0, s.MaxSec)
}

func TestReportStatusFilter(t *testing.T) {
	src := &stubSource{traces: []jaeger.Trace{
		rootTrace("ok", "build", "abc1234", 10, 1_000_000),
		rootTrace("flag", "build", "abc1234", 20, 1_000_000, jaeger.KeyValue{Key: "error", Value: true}),
		rootTrace("otel", "deploy", "abc1234", 30, 1_000_000, jaeger.KeyValue{Key: "otel.status_code", Value: "ERROR"}),
	}}
	o := New(src, nil, nil, nil)

	res, err := o.Report(context.Background(), ReportQuery{Selector: "abc1234", Samples: 1, Status: models.StatusOnlyFail})
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "flag", res.Latest["build"].TraceID)
	assert.Equal(t, "otel", res.Latest["deploy"].TraceID)
	assert.Equal(t, models.StatusError, res.Latest["deploy"].Status)

	res, err = o.Report(context.Background(), ReportQuery{Selector: "abc1234", Samples: 1, Status: models.StatusOnlyOK})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "ok", res.Rows[0].TraceID)
}

func TestReportMultiRootStatusPerRow(t *testing.T) {
	trace := jaeger.Trace{
		TraceID: "multi",
		Spans: []jaeger.Span{
			{SpanID: "a", OperationName: "ingest", Tags: []jaeger.KeyValue{{Key: "git.commit", Value: "abc1234"}}},
			{SpanID: "b", OperationName: "export", Tags: []jaeger.KeyValue{{Key: "git.commit", Value: "abc1234"}, {Key: "error", Value: "1"}}},
		},
	}
	o := New(&stubSource{traces: []jaeger.Trace{trace}}, nil, nil, nil)

	okRes, err := o.Report(context.Background(), ReportQuery{Selector: "abc1234", Samples: 1, Status: models.StatusOnlyOK})
	require.NoError(t, err)
	errRes, err := o.Report(context.Background(), ReportQuery{Selector: "abc1234", Samples: 1, Status: models.StatusOnlyFail})
	require.NoError(t, err)

	assert.Contains(t, okRes.Latest, "ingest")
	assert.NotContains(t, okRes.Latest, "export")
	assert.Contains(t, errRes.Latest, "export")
	assert.NotContains(t, errRes.Latest, "ingest")
}

func TestReportNoMatch(t *testing.T) {
	src := &stubSource{traces: []jaeger.Trace{rootTrace("t1", "build", "abc1234", 10, 1)}}
	o := New(src, nil, nil, nil)

	res, err := o.Report(context.Background(), ReportQuery{Selector: "fff9999", Samples: 1, Status: models.StatusAll})
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Latest)

	res, err = o.Report(context.Background(), ReportQuery{Selector: "  ", Samples: 1, Status: models.StatusAll})
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestReportUsesResolver(t *testing.T) {
	src := &stubSource{traces: []jaeger.Trace{rootTrace("t1", "build", "abc123def456", 10, 1)}}
	resolver := git.ResolverFunc(func(_ context.Context, ref string) (string, bool) {
		if ref == "release-7" {
			return "abc123def456", true
		}
		return "", false
	})
	o := New(src, resolver, nil, nil)

	res, err := o.Report(context.Background(), ReportQuery{Selector: "release-7", Samples: 1, Status: models.StatusAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"release-7", "abc123def456", "vrelease-7"}, res.Candidates)
	assert.Len(t, res.Rows, 1)
}

func TestFetchFailure(t *testing.T) {
	cause := errors.New("connection refused")
	m := metrics.New()
	o := New(&stubSource{err: cause}, nil, m, nil)

	_, err := o.Report(context.Background(), ReportQuery{Selector: "abc"})
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "connection refused", err.Error())

	_, err = o.Compare(context.Background(), CompareQuery{Base: "a", Head: "b"})
	assert.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchFailures))
}

func TestCompareSingleSample(t *testing.T) {
	src := &stubSource{traces: []jaeger.Trace{
		rootTrace("b1", "deploy", "aaa111", 10, 10_000_000),
		rootTrace("h1", "deploy", "bbb222", 20, 12_000_000),
		rootTrace("h2", "migrate", "bbb222", 30, 1_000_000),
	}}
	o := New(src, nil, nil, nil)

	res, err := o.Compare(context.Background(), CompareQuery{Base: "aaa111", Head: "bbb222", Samples: 1, Status: models.StatusAll})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.False(t, res.Empty())

	require.Len(t, res.Latest, 2)
	deploy := res.Latest[0]
	assert.Equal(t, "deploy", deploy.Operation)
	require.NotNil(t, deploy.Duration)
	assert.InDelta(t, 2.0, deploy.Duration.Abs, 1e-9)
	assert.InDelta(t, 20.0, deploy.Duration.Pct, 1e-9)

	migrate := res.Latest[1]
	assert.Equal(t, "migrate", migrate.Operation)
	assert.Nil(t, migrate.Base)
	assert.Nil(t, migrate.Duration)
}

func TestCompareMultiSample(t *testing.T) {
	src := &stubSource{traces: []jaeger.Trace{
		rootTrace("b1", "deploy", "aaa111", 10, 10_000_000),
		rootTrace("b2", "deploy", "aaa111", 11, 12_000_000),
		rootTrace("h1", "deploy", "bbb222", 20, 15_000_000),
	}}
	o := New(src, nil, nil, nil)

	res, err := o.Compare(context.Background(), CompareQuery{Base: "aaa111", Head: "bbb222", Samples: 5, Status: models.StatusAll})
	require.NoError(t, err)

	require.Len(t, res.Summaries, 1)
	c := res.Summaries[0]
	assert.Equal(t, 2, c.Base.Count)
	assert.Equal(t, 1, c.Head.Count)
	require.NotNil(t, c.P50)
	assert.InDelta(t, 4.0, c.P50.Abs, 1e-9)
	assert.InDelta(t, 36.3636, c.P50.Pct, 1e-3)
}

func TestCompareBothEmpty(t *testing.T) {
	o := New(&stubSource{}, nil, nil, nil)

	res, err := o.Compare(context.Background(), CompareQuery{Base: "aaa111", Head: "bbb222", Samples: 1, Status: models.StatusAll})
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Latest)
}
