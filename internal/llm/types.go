package llm

import (
	"context"
	"fmt"
	"sort"
)

// Role is the message role used in chat exchanges.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage represents a single message exchanged with the model.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Schema is a minimal JSON-schema node used to constrain model output.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
	MaxItems             int                `json:"maxItems,omitempty"`
}

// ObjectSchema builds an object schema with every property required and
// additionalProperties set to false, the shape strict structured output expects.
func ObjectSchema(props map[string]*Schema) *Schema {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	// Deterministic required ordering keeps serialized schemas stable.
	sort.Strings(required)
	no := false
	return &Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: &no,
	}
}

// ResponseFormat asks the provider for a strictly-typed JSON object result.
type ResponseFormat struct {
	Name   string  `json:"name"`
	Strict bool    `json:"strict"`
	Schema *Schema `json:"schema"`
}

// ChatRequest is the input for chat providers.
type ChatRequest struct {
	Model          string
	Messages       []ChatMessage
	MaxTokens      int
	Temperature    float64
	ResponseFormat *ResponseFormat
}

// Usage captures token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the result of a chat completion.
type ChatResponse struct {
	Message      ChatMessage
	FinishReason string
	Usage        Usage
	ProviderName string
	Model        string
	RequestID    string
}

// Provider defines the contract for LLM providers.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// StatusError reports a non-2xx provider response. The request id, when the
// upstream returned one, is folded into the message for traceability.
type StatusError struct {
	Provider  string
	Code      int
	Body      string
	RequestID string
}

func (e *StatusError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: status %d (request %s): %s", e.Provider, e.Code, e.RequestID, e.Body)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// Retryable reports whether the status indicates a transient upstream problem.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}
