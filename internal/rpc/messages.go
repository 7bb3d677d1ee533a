package rpc

import (
	"github.com/replicode-ai/replicode/internal/replication"
	"github.com/replicode-ai/replicode/internal/sandbox"
)

// ReplicateRequest is the top-level request for starting a replication run.
// Unset optional fields take their values from the daemon configuration.
type ReplicateRequest struct {
	RunID                   string `json:"run_id,omitempty"`
	Task                    string `json:"task"`
	PaperText               string `json:"paper_text,omitempty"`
	MethodText              string `json:"method_text,omitempty"`
	MaxIterations           *int   `json:"max_iterations,omitempty"`
	DefaultLanguage         string `json:"default_language,omitempty"`
	Model                   string `json:"model,omitempty"`
	GeneratorModel          string `json:"generator_model,omitempty"`
	JudgeModel              string `json:"judge_model,omitempty"`
	RequireSufficientOutput *bool  `json:"require_sufficient_output,omitempty"`
}

// ReplicateEvent streams back progress from the daemon.
type ReplicateEvent struct {
	Type       string                  `json:"type"` // suggestion|execution|assessment|result|error
	RunID      string                  `json:"run_id,omitempty"`
	Iteration  int                     `json:"iteration,omitempty"`
	Suggestion *replication.Suggestion `json:"suggestion,omitempty"`
	Execution  *sandbox.Result         `json:"execution,omitempty"`
	Assessment *replication.Assessment `json:"assessment,omitempty"`
	Result     *replication.Result     `json:"result,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Done       bool                    `json:"done,omitempty"`
}

// ReplicateStreamRequest is the bidirectional stream payload for Connect RPC.
// The first message must carry the run; later messages may carry control
// signals.
type ReplicateStreamRequest struct {
	Run    *ReplicateRequest `json:"run,omitempty"`
	Cancel bool              `json:"cancel,omitempty"`
	RunID  string            `json:"run_id,omitempty"`
}

// AnalyzeRequest asks for a pre-replication analysis of a paper.
type AnalyzeRequest struct {
	PaperText string `json:"paper_text"`
	Model     string `json:"model,omitempty"`
}
