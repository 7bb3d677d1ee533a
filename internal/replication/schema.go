package replication

import "github.com/replicode-ai/replicode/internal/llm"

// SuggestionSchema is the strict output schema for the generator call.
func SuggestionSchema() *llm.Schema {
	return llm.ObjectSchema(map[string]*llm.Schema{
		"code": {
			Type:        "string",
			Description: "Complete, directly executable program text.",
		},
		"language": {
			Type:        "string",
			Description: "Runtime hint such as python; empty to use the default.",
		},
		"explanation": {
			Type:        "string",
			Description: "Rationale and documented assumptions; never embedded in code.",
		},
	})
}

// AssessmentSchema is the strict output schema for the judge call.
func AssessmentSchema(maxItems int) *llm.Schema {
	return llm.ObjectSchema(map[string]*llm.Schema{
		"sufficient": {
			Type:        "boolean",
			Description: "Whether a third party could assess replicability from the output alone.",
		},
		"missing": {
			Type:        "array",
			Items:       &llm.Schema{Type: "string"},
			MaxItems:    maxItems,
			Description: "Evidence absent from the output.",
		},
		"rationale": {
			Type:        "string",
			Description: "Why the verdict was reached.",
		},
		"requested_changes": {
			Type:        "array",
			Items:       &llm.Schema{Type: "string"},
			MaxItems:    maxItems,
			Description: "Program changes that would produce the missing evidence.",
		},
	})
}
