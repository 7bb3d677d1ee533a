package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicode-ai/replicode/internal/analysis"
)

type stubAnalyzer struct {
	feasibility analysis.Feasibility
	method      analysis.MethodSummary
	err         error
}

func (s *stubAnalyzer) CheckFeasibility(ctx context.Context, paperText, model string) (analysis.Feasibility, error) {
	return s.feasibility, s.err
}

func (s *stubAnalyzer) SynthesizeMethod(ctx context.Context, paperText, model string) (analysis.MethodSummary, error) {
	return s.method, s.err
}

func TestFeasibilityEndpoint(t *testing.T) {
	h := NewHandler(&stubAnalyzer{
		feasibility: analysis.Feasibility{Feasible: true, Confidence: "high"},
	}, nil)

	body := bytes.NewBufferString(`{"paper_text":"we simulate a queue"}`)
	rec := httptest.NewRecorder()
	h.Feasibility(rec, httptest.NewRequest(http.MethodPost, "/analysis/feasibility", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var out analysis.Feasibility
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.Feasible)
	require.Equal(t, "high", out.Confidence)
}

func TestMethodEndpoint(t *testing.T) {
	h := NewHandler(&stubAnalyzer{
		method: analysis.MethodSummary{Steps: []string{"build the grid"}},
	}, nil)

	body := bytes.NewBufferString(`{"paper_text":"paper"}`)
	rec := httptest.NewRecorder()
	h.Method(rec, httptest.NewRequest(http.MethodPost, "/analysis/method", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var out analysis.MethodSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, []string{"build the grid"}, out.Steps)
}

func TestAnalysisHandlerRejectsBadRequests(t *testing.T) {
	h := NewHandler(&stubAnalyzer{}, nil)

	rec := httptest.NewRecorder()
	h.Feasibility(rec, httptest.NewRequest(http.MethodGet, "/analysis/feasibility", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.Feasibility(rec, httptest.NewRequest(http.MethodPost, "/analysis/feasibility", bytes.NewBufferString("{bad")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Feasibility(rec, httptest.NewRequest(http.MethodPost, "/analysis/feasibility", bytes.NewBufferString(`{"paper_text":"  "}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisHandlerPropagatesUpstreamFailure(t *testing.T) {
	h := NewHandler(&stubAnalyzer{err: errors.New("provider down")}, nil)

	body := bytes.NewBufferString(`{"paper_text":"paper"}`)
	rec := httptest.NewRecorder()
	h.Method(rec, httptest.NewRequest(http.MethodPost, "/analysis/method", body))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "provider down")
}
