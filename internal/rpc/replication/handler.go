package replication

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/replicode-ai/replicode/internal/observability"
	"github.com/replicode-ai/replicode/internal/rpc"
)

// Handler serves replication runs over plain JSON and NDJSON streaming.
type Handler struct {
	runner  Runner
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHandler constructs a handler instance.
func NewHandler(runner Runner, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, metrics: metrics, logger: logger}
}

// ServeHTTP handles POST /replication/run. It drains the run to completion
// and replies with the final result document.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.metrics.RecordTransportError("json", "method_not_allowed")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.metrics.IncActiveRuns("json")
	defer h.metrics.DecActiveRuns("json")

	var req rpc.ReplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordTransportError("json", "decode")
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	events, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.metrics.RecordTransportError("json", "runner_error")
		http.Error(w, fmt.Sprintf("runner error: %v", err), http.StatusBadRequest)
		return
	}

	var final rpc.ReplicateEvent
	for ev := range events {
		if ev.Done {
			final = ev
		}
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case final.Type == "result" && final.Result != nil:
		_ = json.NewEncoder(w).Encode(final.Result)
	case final.Type == "error":
		// Full detail stays in the server log; the caller gets a generic
		// failure plus the run id to quote when reporting it.
		h.logger.Error("replication run failed", zap.String("run_id", final.RunID), zap.String("error", final.Error))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"run_id": final.RunID, "error": "replication run failed"})
	default:
		h.metrics.RecordTransportError("json", "no_result")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "run produced no result"})
	}
}

// StreamHandler serves POST /replication/run/stream as NDJSON events.
type StreamHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

// NewStreamHandler constructs a streaming handler instance.
func NewStreamHandler(runner Runner, metrics *observability.Metrics) *StreamHandler {
	return &StreamHandler{runner: runner, metrics: metrics}
}

// ServeHTTP streams each step of the run as one JSON line.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.metrics.RecordTransportError("ndjson", "method_not_allowed")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.metrics.IncActiveRuns("ndjson")
	defer h.metrics.DecActiveRuns("ndjson")

	var req rpc.ReplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordTransportError("ndjson", "decode")
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.metrics.RecordTransportError("ndjson", "runner_error")
		http.Error(w, fmt.Sprintf("runner error: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	writer := bufio.NewWriter(w)
	for ev := range events {
		if err := json.NewEncoder(writer).Encode(ev); err != nil {
			break
		}
		writer.Flush()
		flusher.Flush()
	}
}
