package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracecmp/internal/clients/git"
	"tracecmp/internal/clients/jaeger"
	"tracecmp/internal/config"
	"tracecmp/internal/metrics"
	"tracecmp/internal/orchestrator"
	"tracecmp/internal/output"
)

const fakeTraces = `{
	"data": [
		{
			"traceID": "t-base",
			"spans": [
				{"spanID": "r", "operationName": "deploy", "references": [], "startTime": 100, "duration": 10000000,
				 "tags": [{"key": "git.commit", "type": "string", "value": "aaa1111bbbb2"}]},
				{"spanID": "c", "operationName": "rollout", "references": [{"refType": "CHILD_OF", "spanID": "r"}], "duration": 4000000}
			]
		},
		{
			"traceID": "t-head",
			"spans": [
				{"spanID": "r", "operationName": "deploy", "references": [], "startTime": 200, "duration": 12000000,
				 "tags": [{"key": "git.commit", "type": "string", "value": "ccc3333dddd4"}]}
			]
		}
	]
}`

// newFakeJaeger serves body with the given status for /api/traces.
func newFakeJaeger(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/traces", r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T, jaegerURL string) (chi.Router, *metrics.Metrics) {
	t.Helper()
	cfg, err := config.Load(config.NewViper(), "")
	require.NoError(t, err)
	cfg.Jaeger.URL = jaegerURL

	m := metrics.New()
	orch := orchestrator.New(jaeger.NewClient(jaegerURL, 5*time.Second, nil), git.NoopResolver, m, nil)
	return SetupRouter(NewHandler(cfg, orch, m, nil)), m
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleReport(t *testing.T) {
	jaegerSrv := newFakeJaeger(t, http.StatusOK, fakeTraces)
	router, _ := newTestRouter(t, jaegerSrv.URL)

	w := get(router, "/report?commit=aaa1111")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, markdownContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "| commit | `aaa1111` |")
	assert.Contains(t, w.Body.String(), "| `deploy` | `t-base` | 10.000 | `rollout` | 4.000 | `ok` |")
	assert.NotContains(t, w.Body.String(), "t-head")
}

func TestHandleReportNoMatch(t *testing.T) {
	jaegerSrv := newFakeJaeger(t, http.StatusOK, fakeTraces)
	router, _ := newTestRouter(t, jaegerSrv.URL)

	w := get(router, "/report?commit=fff9999")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "| key | value |")
	assert.Contains(t, w.Body.String(), output.NoMatchReport)
}

func TestHandleReportBadRequest(t *testing.T) {
	jaegerSrv := newFakeJaeger(t, http.StatusOK, fakeTraces)
	router, _ := newTestRouter(t, jaegerSrv.URL)

	tests := []struct {
		name   string
		target string
	}{
		{"missing commit", "/report"},
		{"blank commit", "/report?commit=%20"},
		{"bad status", "/report?commit=aaa1111&status=failed"},
		{"bad samples", "/report?commit=aaa1111&samples=many"},
		{"bad limit", "/report?commit=aaa1111&limit=0"},
		{"missing head", "/compare?base=aaa1111"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, tt.target)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleCompare(t *testing.T) {
	jaegerSrv := newFakeJaeger(t, http.StatusOK, fakeTraces)
	router, _ := newTestRouter(t, jaegerSrv.URL)

	w := get(router, "/compare?base=aaa1111&head=ccc3333")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(),
		"| `deploy` | `t-base` | 10.000 | `rollout` (4.000) | `t-head` | 12.000 | `-` (0.000) | 2.000 | 20.000 |")
}

func TestHandleCompareMultiSample(t *testing.T) {
	jaegerSrv := newFakeJaeger(t, http.StatusOK, fakeTraces)
	router, _ := newTestRouter(t, jaegerSrv.URL)

	w := get(router, "/compare?base=aaa1111&head=ccc3333&samples=3")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "| samples | `3` |")
	assert.Contains(t, w.Body.String(),
		"| `deploy` | 1 | 10.000 | 10.000 | 1 | 12.000 | 12.000 | 2.000 | 20.000 | 2.000 | 20.000 |")
}

func TestHandleCompareNoMatch(t *testing.T) {
	jaegerSrv := newFakeJaeger(t, http.StatusOK, `{"data": []}`)
	router, _ := newTestRouter(t, jaegerSrv.URL)

	w := get(router, "/compare?base=aaa1111&head=ccc3333")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), output.NoMatchCompare)
}

func TestHandleFetchFailure(t *testing.T) {
	jaegerSrv := newFakeJaeger(t, http.StatusOK, "not json")
	router, m := newTestRouter(t, jaegerSrv.URL)

	w := get(router, "/report?commit=aaa1111")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to fetch traces from Jaeger: ")
	assert.NotContains(t, w.Body.String(), "| key | value |")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TracesFetched))

	w = get(router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tracecmp_fetch_failures_total 1")
}

func TestHandleMetrics(t *testing.T) {
	jaegerSrv := newFakeJaeger(t, http.StatusOK, fakeTraces)
	router, _ := newTestRouter(t, jaegerSrv.URL)

	get(router, "/report?commit=aaa1111")
	w := get(router, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tracecmp_traces_fetched_total 2")
	assert.Contains(t, w.Body.String(), `tracecmp_rows_matched_total{side="report"} 1`)
}

func TestHandleHealth(t *testing.T) {
	router, _ := newTestRouter(t, "http://127.0.0.1:0")

	w := get(router, "/health")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "healthy", response["status"])
	assert.Contains(t, response, "timestamp")
}

func TestServerRunShutdown(t *testing.T) {
	jaegerSrv := newFakeJaeger(t, http.StatusOK, fakeTraces)
	cfg, err := config.Load(config.NewViper(), "")
	require.NoError(t, err)
	orch := orchestrator.New(jaeger.NewClient(jaegerSrv.URL, 5*time.Second, nil), nil, nil, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(ln.Addr().String(), NewHandler(cfg, orch, nil, nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/report?commit=ccc3333")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "`t-head`")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
