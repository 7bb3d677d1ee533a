package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/replicode-ai/replicode/internal/config"
	"github.com/replicode-ai/replicode/internal/llm"
)

// Judge decides whether captured output is adequate evidence of replicability,
// through a single strict-schema LLM call.
type Judge struct {
	registry *llm.Registry
	cfg      config.ReplicationConfig
}

// NewJudge builds a Judge backed by the model registry.
func NewJudge(registry *llm.Registry, cfg config.ReplicationConfig) *Judge {
	return &Judge{registry: registry, cfg: cfg}
}

type assessmentPayload struct {
	Sufficient       bool          `json:"sufficient"`
	Missing          []interface{} `json:"missing"`
	Rationale        string        `json:"rationale"`
	RequestedChanges []interface{} `json:"requested_changes"`
}

// Assess performs one judgment call. Failure modes mirror the generator's and
// come back as a *JudgmentError.
func (j *Judge) Assess(ctx context.Context, in AssessInput) (Assessment, error) {
	if strings.TrimSpace(in.Task) == "" {
		return Assessment{}, &JudgmentError{Err: fmt.Errorf("task is required")}
	}

	provider, route, err := j.registry.Resolve(in.Model)
	if err != nil {
		return Assessment{}, &JudgmentError{Err: err}
	}

	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Model: route.Model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: judgeSystemPrompt},
			{Role: llm.RoleUser, Content: buildAssessPrompt(in, j.cfg.PaperCharBudget, j.cfg.OutputCharBudget)},
		},
		MaxTokens:   route.MaxTokens,
		Temperature: route.Temperature,
		ResponseFormat: &llm.ResponseFormat{
			Name:   "output_assessment",
			Strict: true,
			Schema: AssessmentSchema(j.cfg.MaxListItems),
		},
	})
	if err != nil {
		return Assessment{}, &JudgmentError{Err: err}
	}

	return j.parseAssessment(resp.Message.Content)
}

func (j *Judge) parseAssessment(content string) (Assessment, error) {
	fragment, err := extractJSONObject(content)
	if err != nil {
		return Assessment{}, &JudgmentError{Err: err}
	}

	var payload assessmentPayload
	if err := json.Unmarshal([]byte(fragment), &payload); err != nil {
		return Assessment{}, &JudgmentError{Err: fmt.Errorf("decode assessment: %w", err)}
	}

	return Assessment{
		Sufficient:       payload.Sufficient,
		Missing:          sanitizeList(payload.Missing, j.cfg.MaxListItems),
		Rationale:        strings.TrimSpace(payload.Rationale),
		RequestedChanges: sanitizeList(payload.RequestedChanges, j.cfg.MaxListItems),
	}, nil
}
