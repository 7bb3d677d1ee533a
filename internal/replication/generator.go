package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/replicode-ai/replicode/internal/config"
	"github.com/replicode-ai/replicode/internal/llm"
)

// Generator produces code suggestions through a single strict-schema LLM call.
type Generator struct {
	registry *llm.Registry
	cfg      config.ReplicationConfig
}

// NewGenerator builds a Generator backed by the model registry.
func NewGenerator(registry *llm.Registry, cfg config.ReplicationConfig) *Generator {
	return &Generator{registry: registry, cfg: cfg}
}

type suggestionPayload struct {
	Code        string `json:"code"`
	Language    string `json:"language"`
	Explanation string `json:"explanation"`
}

// Suggest performs one generation call. Every failure mode (transport, non-OK
// status, unparseable output, empty code) comes back as a *GenerationError.
func (g *Generator) Suggest(ctx context.Context, in SuggestInput) (Suggestion, error) {
	if strings.TrimSpace(in.Task) == "" {
		return Suggestion{}, &GenerationError{Err: fmt.Errorf("task is required")}
	}

	provider, route, err := g.registry.Resolve(in.Model)
	if err != nil {
		return Suggestion{}, &GenerationError{Err: err}
	}

	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Model: route.Model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: generatorSystemPrompt},
			{Role: llm.RoleUser, Content: buildSuggestPrompt(in, g.cfg.PaperCharBudget)},
		},
		MaxTokens:   route.MaxTokens,
		Temperature: route.Temperature,
		ResponseFormat: &llm.ResponseFormat{
			Name:   "code_suggestion",
			Strict: true,
			Schema: SuggestionSchema(),
		},
	})
	if err != nil {
		return Suggestion{}, &GenerationError{Err: err}
	}

	return parseSuggestion(resp.Message.Content)
}

func parseSuggestion(content string) (Suggestion, error) {
	fragment, err := extractJSONObject(content)
	if err != nil {
		return Suggestion{}, &GenerationError{Err: err}
	}

	var payload suggestionPayload
	if err := json.Unmarshal([]byte(fragment), &payload); err != nil {
		return Suggestion{}, &GenerationError{Err: fmt.Errorf("decode suggestion: %w", err)}
	}

	if strings.TrimSpace(payload.Code) == "" {
		return Suggestion{}, &GenerationError{Err: fmt.Errorf("suggestion has empty code")}
	}

	return Suggestion{
		Code:        payload.Code,
		Language:    strings.TrimSpace(payload.Language),
		Explanation: strings.TrimSpace(payload.Explanation),
	}, nil
}
