package replication

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicode-ai/replicode/internal/config"
	"github.com/replicode-ai/replicode/internal/replication"
	"github.com/replicode-ai/replicode/internal/rpc"
	"github.com/replicode-ai/replicode/internal/sandbox"
)

type runnerFunc func(ctx context.Context, req rpc.ReplicateRequest) (<-chan rpc.ReplicateEvent, error)

func (f runnerFunc) Run(ctx context.Context, req rpc.ReplicateRequest) (<-chan rpc.ReplicateEvent, error) {
	return f(ctx, req)
}

func eventChan(events ...rpc.ReplicateEvent) <-chan rpc.ReplicateEvent {
	out := make(chan rpc.ReplicateEvent, len(events))
	for _, ev := range events {
		out <- ev
	}
	close(out)
	return out
}

func replicateBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(rpc.ReplicateRequest{Task: "replicate"})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHandlerReturnsFinalResult(t *testing.T) {
	want := replication.Result{
		RunID:       "run-1",
		Success:     true,
		FinalOutput: "report",
		Steps: []replication.Step{{
			Iteration:  0,
			Suggestion: replication.Suggestion{Code: "x"},
			Run:        sandbox.Success("report"),
		}},
	}
	h := NewHandler(runnerFunc(func(ctx context.Context, req rpc.ReplicateRequest) (<-chan rpc.ReplicateEvent, error) {
		return eventChan(
			rpc.ReplicateEvent{Type: "suggestion", RunID: "run-1"},
			rpc.ReplicateEvent{Type: "result", RunID: "run-1", Result: &want, Done: true},
		), nil
	}), nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/replication/run", replicateBody(t)))
	require.Equal(t, http.StatusOK, rec.Code)

	var got replication.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, want, got)
}

func TestHandlerFatalRunBecomesInternalError(t *testing.T) {
	h := NewHandler(runnerFunc(func(ctx context.Context, req rpc.ReplicateRequest) (<-chan rpc.ReplicateEvent, error) {
		return eventChan(rpc.ReplicateEvent{Type: "error", RunID: "run-1", Error: "generate suggestion: model offline", Done: true}), nil
	}), nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/replication/run", replicateBody(t)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "run-1", body["run_id"])
	require.Equal(t, "replication run failed", body["error"])
	require.NotContains(t, rec.Body.String(), "model offline", "internal error detail must not leak to the caller")
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	h := NewHandler(runnerFunc(func(ctx context.Context, req rpc.ReplicateRequest) (<-chan rpc.ReplicateEvent, error) {
		return nil, errors.New("task is required")
	}), nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/replication/run", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/replication/run", bytes.NewBufferString("{not json")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/replication/run", replicateBody(t)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamHandlerEmitsNDJSON(t *testing.T) {
	h := NewStreamHandler(runnerFunc(func(ctx context.Context, req rpc.ReplicateRequest) (<-chan rpc.ReplicateEvent, error) {
		return eventChan(
			rpc.ReplicateEvent{Type: "suggestion", RunID: "run-1", Suggestion: &replication.Suggestion{Code: "x"}},
			rpc.ReplicateEvent{Type: "execution", RunID: "run-1", Execution: &sandbox.Result{Output: "report"}},
			rpc.ReplicateEvent{Type: "result", RunID: "run-1", Done: true},
		), nil
	}), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/replication/run/stream", replicateBody(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var types []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var ev rpc.ReplicateEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		types = append(types, ev.Type)
	}
	require.Equal(t, []string{"suggestion", "execution", "result"}, types)
}

func TestSchemaHandlerServesStrictSchemas(t *testing.T) {
	h := SchemaHandler{Cfg: config.ReplicationConfig{MaxListItems: 20}}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/replication/schemas", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]struct {
		Type                 string   `json:"type"`
		Required             []string `json:"required"`
		AdditionalProperties *bool    `json:"additionalProperties"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))

	suggestion, ok := payload["code_suggestion"]
	require.True(t, ok)
	require.Equal(t, "object", suggestion.Type)
	require.Equal(t, []string{"code", "explanation", "language"}, suggestion.Required)
	require.NotNil(t, suggestion.AdditionalProperties)
	require.False(t, *suggestion.AdditionalProperties)

	assessment, ok := payload["output_assessment"]
	require.True(t, ok)
	require.Contains(t, assessment.Required, "sufficient")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/replication/schemas", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
