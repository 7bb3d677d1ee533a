package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/replicode-ai/replicode/internal/analysis"
	"github.com/replicode-ai/replicode/internal/observability"
	"github.com/replicode-ai/replicode/internal/rpc"
)

// Analyzer is the slice of the analysis core the handlers need.
type Analyzer interface {
	CheckFeasibility(ctx context.Context, paperText, model string) (analysis.Feasibility, error)
	SynthesizeMethod(ctx context.Context, paperText, model string) (analysis.MethodSummary, error)
}

// Handler serves the pre-replication analysis endpoints.
type Handler struct {
	analyzer Analyzer
	metrics  *observability.Metrics
}

// NewHandler constructs a handler instance.
func NewHandler(analyzer Analyzer, metrics *observability.Metrics) *Handler {
	return &Handler{analyzer: analyzer, metrics: metrics}
}

// Feasibility handles POST /analysis/feasibility.
func (h *Handler) Feasibility(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, req rpc.AnalyzeRequest) (interface{}, error) {
		return h.analyzer.CheckFeasibility(ctx, req.PaperText, req.Model)
	})
}

// Method handles POST /analysis/method.
func (h *Handler) Method(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, req rpc.AnalyzeRequest) (interface{}, error) {
		return h.analyzer.SynthesizeMethod(ctx, req.PaperText, req.Model)
	})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, req rpc.AnalyzeRequest) (interface{}, error)) {
	if r.Method != http.MethodPost {
		h.metrics.RecordTransportError("json", "method_not_allowed")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpc.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordTransportError("json", "decode")
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.PaperText) == "" {
		http.Error(w, "paper_text is required", http.StatusBadRequest)
		return
	}

	out, err := fn(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
