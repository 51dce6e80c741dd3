package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tracecmp/internal/config"
	"tracecmp/internal/metrics"
	"tracecmp/internal/models"
	"tracecmp/internal/orchestrator"
	"tracecmp/internal/output"
)

const markdownContentType = "text/markdown; charset=utf-8"

// Handler holds the server dependencies
type Handler struct {
	cfg          *config.Config
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(cfg *config.Config, orch *orchestrator.Orchestrator, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:          cfg,
		orchestrator: orch,
		metrics:      m,
		logger:       logger,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/report", h.HandleReport)
	r.Get("/compare", h.HandleCompare)
	r.Get("/health", h.HandleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
}

// queryOptions are the per-request overrides shared by /report and /compare.
type queryOptions struct {
	service string
	limit   int
	samples int
	status  models.StatusFilter
}

// parseOptions reads service, limit, samples and status, falling back to the
// configured defaults.
func (h *Handler) parseOptions(r *http.Request) (queryOptions, error) {
	q := r.URL.Query()
	opts := queryOptions{
		service: h.cfg.Jaeger.Service,
		limit:   h.cfg.Jaeger.Limit,
		samples: h.cfg.Report.Samples,
		status:  h.cfg.Report.StatusFilter(),
	}

	if s := strings.TrimSpace(q.Get("service")); s != "" {
		opts.service = s
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("invalid limit %q", s)
		}
		opts.limit = n
	}
	if s := q.Get("samples"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return opts, fmt.Errorf("invalid samples %q", s)
		}
		opts.samples = n
	}
	if s := q.Get("status"); s != "" {
		f, err := models.ParseStatusFilter(s)
		if err != nil {
			return opts, err
		}
		opts.status = f
	}
	return opts, nil
}

// HandleReport renders the report for one commit selector.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	commit := strings.TrimSpace(r.URL.Query().Get("commit"))
	if commit == "" {
		http.Error(w, "missing required parameter: commit", http.StatusBadRequest)
		return
	}
	opts, err := h.parseOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.orchestrator.Report(r.Context(), orchestrator.ReportQuery{
		Service:  opts.service,
		Limit:    opts.limit,
		Selector: commit,
		Samples:  opts.samples,
		Status:   opts.status,
	})
	if err != nil {
		h.fetchFailed(w, err)
		return
	}

	status := http.StatusOK
	if res.Empty() {
		status = http.StatusNotFound
	}
	h.logger.Info("Served report", "commit", commit, "rows", len(res.Rows), "status", status)
	writeMarkdown(w, status, output.Report(res))
}

// HandleCompare renders the comparison between a base and a head selector.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSpace(r.URL.Query().Get("base"))
	head := strings.TrimSpace(r.URL.Query().Get("head"))
	if base == "" || head == "" {
		http.Error(w, "missing required parameters: base and head", http.StatusBadRequest)
		return
	}
	opts, err := h.parseOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.orchestrator.Compare(r.Context(), orchestrator.CompareQuery{
		Service: opts.service,
		Limit:   opts.limit,
		Base:    base,
		Head:    head,
		Samples: opts.samples,
		Status:  opts.status,
	})
	if err != nil {
		h.fetchFailed(w, err)
		return
	}

	status := http.StatusOK
	if res.Empty() {
		status = http.StatusNotFound
	}
	h.logger.Info("Served comparison", "base", base, "head", head,
		"base_rows", len(res.BaseRows), "head_rows", len(res.HeadRows), "status", status)
	writeMarkdown(w, status, output.Comparison(res))
}

func (h *Handler) fetchFailed(w http.ResponseWriter, err error) {
	var fetchErr *orchestrator.FetchError
	if !errors.As(err, &fetchErr) {
		h.logger.Error("Pipeline failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.logger.Warn("Failed to fetch traces from Jaeger", "error", err)
	http.Error(w, "Failed to fetch traces from Jaeger: "+err.Error(), http.StatusBadGateway)
}

func writeMarkdown(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", markdownContentType)
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

// HandleHealth returns health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":%q}`, time.Now().UTC().Format(time.RFC3339))
}
