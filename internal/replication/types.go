package replication

import (
	"context"

	"github.com/replicode-ai/replicode/internal/sandbox"
)

// Suggestion is one generated replication attempt. Language and Explanation
// are optional; an empty Language defers to the run's default.
type Suggestion struct {
	Code        string `json:"code"`
	Language    string `json:"language,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Assessment is the judge's verdict on a successful execution's output.
type Assessment struct {
	Sufficient       bool     `json:"sufficient"`
	Missing          []string `json:"missing"`
	Rationale        string   `json:"rationale"`
	RequestedChanges []string `json:"requested_changes"`
}

// Step records one full iteration: the suggestion, its execution result and
// the judge's verdict when one was requested. Steps are appended in iteration
// order; the verdict is attached once the judge returns.
type Step struct {
	Iteration  int            `json:"iteration"`
	Suggestion Suggestion     `json:"suggestion"`
	Run        sandbox.Result `json:"run_result"`
	Assessment *Assessment    `json:"output_assessment,omitempty"`
}

// Result is the terminal outcome of a replication run. The full step history
// is returned on both success and failure so every attempt can be inspected.
type Result struct {
	RunID           string      `json:"run_id,omitempty"`
	Success         bool        `json:"success"`
	Steps           []Step      `json:"steps"`
	FinalOutput     string      `json:"final_output,omitempty"`
	FinalAssessment *Assessment `json:"final_assessment,omitempty"`
	LastError       string      `json:"last_error,omitempty"`
}

// Params configures a single replication run. MaxIterations and
// DefaultLanguage must already be resolved by the caller; zero MaxIterations
// means the loop body never runs and the run fails with a generic message.
type Params struct {
	RunID                   string
	Task                    string
	PaperText               string
	MethodText              string
	MaxIterations           int
	DefaultLanguage         string
	GeneratorModel          string
	JudgeModel              string
	RequireSufficientOutput bool
}

// SuggestInput carries everything the generator needs for one attempt.
type SuggestInput struct {
	Task       string
	PaperText  string
	MethodText string
	Previous   *Suggestion
	LastError  string
	Iteration  int
	Model      string
}

// AssessInput carries everything the judge needs for one verdict.
type AssessInput struct {
	Task       string
	PaperText  string
	MethodText string
	Output     string
	Model      string
}

// SuggestionSource produces code suggestions.
type SuggestionSource interface {
	Suggest(ctx context.Context, in SuggestInput) (Suggestion, error)
}

// OutputJudge decides whether captured output is sufficient replication evidence.
type OutputJudge interface {
	Assess(ctx context.Context, in AssessInput) (Assessment, error)
}

// Observer receives each recorded step as the run progresses. Implementations
// must not block for long; the loop is strictly sequential.
type Observer interface {
	OnStep(step Step)
}
