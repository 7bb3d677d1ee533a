package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/replicode-ai/replicode/internal/config"
	"github.com/replicode-ai/replicode/internal/llm"
)

const feasibilitySystemPrompt = `You are a research replication analyst. Given material from a research
paper, decide whether its experimental method can be replicated as a single
self-contained script with no external data, no network access and no GPUs.
Respond with a single JSON object with exactly the fields feasible,
confidence, reasons and concerns.`

const methodSystemPrompt = `You are a research replication analyst. Distill the paper material into a
concrete method summary a programmer could implement directly: ordered
implementation steps, the assumptions required where the paper is silent,
and any insights about pitfalls. Respond with a single JSON object with
exactly the fields steps, assumptions and insights.`

// Feasibility is the analyst's verdict on whether a paper can be replicated
// inside the sandbox constraints.
type Feasibility struct {
	Feasible   bool     `json:"feasible"`
	Confidence string   `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Concerns   []string `json:"concerns"`
}

// MethodSummary is a distilled, implementable description of the paper's
// method. Flattened output feeds the replication loop as method text.
type MethodSummary struct {
	Steps       []string `json:"steps"`
	Assumptions []string `json:"assumptions"`
	Insights    []string `json:"insights"`
}

// Flattened renders the summary as the method text consumed by generation
// and judgment prompts.
func (m MethodSummary) Flattened() string {
	var b strings.Builder
	if len(m.Steps) > 0 {
		b.WriteString("Steps:\n")
		for i, s := range m.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	if len(m.Assumptions) > 0 {
		b.WriteString("Assumptions:\n")
		for _, a := range m.Assumptions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	if len(m.Insights) > 0 {
		b.WriteString("Insights:\n")
		for _, in := range m.Insights {
			fmt.Fprintf(&b, "- %s\n", in)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ModelResolver selects the provider and route serving a given role. The
// replication strategy engine satisfies this for the analysis role.
type ModelResolver interface {
	ResolveModel(role, override string) (llm.Provider, llm.ModelRoute, error)
}

// Analyzer runs the one-shot pre-replication calls: feasibility screening and
// method synthesis.
type Analyzer struct {
	registry *llm.Registry
	strategy ModelResolver
	cfg      config.AnalysisConfig
	retry    RetryPolicy
}

// NewAnalyzer builds an Analyzer with the retry policy from config. Strategy
// may be nil, in which case models resolve straight against the registry.
func NewAnalyzer(registry *llm.Registry, strategy ModelResolver, cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{
		registry: registry,
		strategy: strategy,
		cfg:      cfg,
		retry: RetryPolicy{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: time.Duration(cfg.RetryBaseDelayMS) * time.Millisecond,
		},
	}
}

// FeasibilitySchema is the strict output schema for the feasibility call.
func FeasibilitySchema() *llm.Schema {
	return llm.ObjectSchema(map[string]*llm.Schema{
		"feasible": {
			Type:        "boolean",
			Description: "Whether the method fits a single offline script.",
		},
		"confidence": {
			Type:        "string",
			Description: "low, medium or high.",
		},
		"reasons": {
			Type:        "array",
			Items:       &llm.Schema{Type: "string"},
			Description: "Evidence supporting the verdict.",
		},
		"concerns": {
			Type:        "array",
			Items:       &llm.Schema{Type: "string"},
			Description: "Risks even if feasible.",
		},
	})
}

// MethodSchema is the strict output schema for the method synthesis call.
func MethodSchema() *llm.Schema {
	return llm.ObjectSchema(map[string]*llm.Schema{
		"steps": {
			Type:        "array",
			Items:       &llm.Schema{Type: "string"},
			Description: "Ordered implementation steps.",
		},
		"assumptions": {
			Type:        "array",
			Items:       &llm.Schema{Type: "string"},
			Description: "Assumptions filling gaps in the paper.",
		},
		"insights": {
			Type:        "array",
			Items:       &llm.Schema{Type: "string"},
			Description: "Pitfalls and implementation notes.",
		},
	})
}

// CheckFeasibility screens a paper before spending replication iterations
// on it.
func (a *Analyzer) CheckFeasibility(ctx context.Context, paperText, model string) (Feasibility, error) {
	if strings.TrimSpace(paperText) == "" {
		return Feasibility{}, fmt.Errorf("paper text is required")
	}

	content, err := a.call(ctx, model, feasibilitySystemPrompt, a.userPrompt(paperText), "feasibility_verdict", FeasibilitySchema())
	if err != nil {
		return Feasibility{}, err
	}

	var out Feasibility
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Feasibility{}, fmt.Errorf("decode feasibility verdict: %w", err)
	}
	return out, nil
}

// SynthesizeMethod distills the paper into method text for the loop.
func (a *Analyzer) SynthesizeMethod(ctx context.Context, paperText, model string) (MethodSummary, error) {
	if strings.TrimSpace(paperText) == "" {
		return MethodSummary{}, fmt.Errorf("paper text is required")
	}

	content, err := a.call(ctx, model, methodSystemPrompt, a.userPrompt(paperText), "method_summary", MethodSchema())
	if err != nil {
		return MethodSummary{}, err
	}

	var out MethodSummary
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return MethodSummary{}, fmt.Errorf("decode method summary: %w", err)
	}
	return out, nil
}

func (a *Analyzer) userPrompt(paperText string) string {
	text := paperText
	if a.cfg.PaperCharBudget > 0 && len(text) > a.cfg.PaperCharBudget {
		text = fmt.Sprintf("%s\n[truncated: %d characters omitted]",
			text[:a.cfg.PaperCharBudget], len(text)-a.cfg.PaperCharBudget)
	}
	return "Paper text:\n" + text
}

// resolve picks the model for one call: the strategy engine's analysis role
// when an engine is configured, the plain registry otherwise. A per-request
// model override wins in both paths.
func (a *Analyzer) resolve(model string) (llm.Provider, llm.ModelRoute, error) {
	if a.strategy != nil {
		provider, route, err := a.strategy.ResolveModel("analysis", model)
		if err != nil {
			return nil, llm.ModelRoute{}, err
		}
		if provider != nil {
			return provider, route, nil
		}
	}
	return a.registry.Resolve(model)
}

func (a *Analyzer) call(ctx context.Context, model, system, user, schemaName string, schema *llm.Schema) (string, error) {
	provider, route, err := a.resolve(model)
	if err != nil {
		return "", err
	}

	var content string
	err = a.retry.Do(ctx, func(ctx context.Context) error {
		resp, err := provider.Chat(ctx, llm.ChatRequest{
			Model: route.Model,
			Messages: []llm.ChatMessage{
				{Role: llm.RoleSystem, Content: system},
				{Role: llm.RoleUser, Content: user},
			},
			MaxTokens:   route.MaxTokens,
			Temperature: route.Temperature,
			ResponseFormat: &llm.ResponseFormat{
				Name:   schemaName,
				Strict: true,
				Schema: schema,
			},
		})
		if err != nil {
			return err
		}
		content = strings.TrimSpace(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}

	content = stripFence(content)
	if !json.Valid([]byte(content)) {
		return "", fmt.Errorf("analysis response is not valid JSON")
	}
	return content, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return strings.TrimSpace(s[start : end+1])
}
