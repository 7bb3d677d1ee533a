package replication

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicode-ai/replicode/internal/llm"
	llmmock "github.com/replicode-ai/replicode/internal/llm/mock"
)

func mockRegistry(chat func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)) *llm.Registry {
	reg := llm.NewRegistry()
	reg.RegisterProvider("mock", &llmmock.Provider{ChatFn: chat})
	reg.RegisterModel("default", llm.ModelRoute{Provider: "mock", Model: "mock-model"}, true)
	return reg
}

func TestGeneratorSuggestParsesStrictJSON(t *testing.T) {
	var captured llm.ChatRequest
	reg := mockRegistry(func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		captured = req
		return llm.ChatResponse{Message: llm.ChatMessage{
			Role:    llm.RoleAssistant,
			Content: `{"code":"print('hi')","language":" python ","explanation":" runs the method "}`,
		}}, nil
	})

	gen := NewGenerator(reg, testCfg())
	s, err := gen.Suggest(context.Background(), SuggestInput{Task: "replicate"})
	require.NoError(t, err)
	require.Equal(t, "print('hi')", s.Code)
	require.Equal(t, "python", s.Language)
	require.Equal(t, "runs the method", s.Explanation)

	require.NotNil(t, captured.ResponseFormat)
	require.True(t, captured.ResponseFormat.Strict)
	require.Equal(t, "code_suggestion", captured.ResponseFormat.Name)
	require.Equal(t, []string{"code", "explanation", "language"}, captured.ResponseFormat.Schema.Required)
}

func TestGeneratorSuggestToleratesFencedJSON(t *testing.T) {
	reg := mockRegistry(func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{Message: llm.ChatMessage{
			Role:    llm.RoleAssistant,
			Content: "```json\n{\"code\":\"x = 1\",\"language\":\"\",\"explanation\":\"\"}\n```",
		}}, nil
	})

	gen := NewGenerator(reg, testCfg())
	s, err := gen.Suggest(context.Background(), SuggestInput{Task: "replicate"})
	require.NoError(t, err)
	require.Equal(t, "x = 1", s.Code)
}

func TestGeneratorSuggestRejectsNonJSON(t *testing.T) {
	reg := mockRegistry(func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{Message: llm.ChatMessage{
			Role:    llm.RoleAssistant,
			Content: "sure, here is the code you asked for",
		}}, nil
	})

	gen := NewGenerator(reg, testCfg())
	_, err := gen.Suggest(context.Background(), SuggestInput{Task: "replicate"})
	require.Error(t, err)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
}

func TestGeneratorSuggestRejectsEmptyCode(t *testing.T) {
	reg := mockRegistry(func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{Message: llm.ChatMessage{
			Role:    llm.RoleAssistant,
			Content: `{"code":"   ","language":"python","explanation":"oops"}`,
		}}, nil
	})

	gen := NewGenerator(reg, testCfg())
	_, err := gen.Suggest(context.Background(), SuggestInput{Task: "replicate"})
	require.Error(t, err)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	require.Contains(t, genErr.Error(), "empty code")
}

func TestGeneratorSuggestWrapsProviderFailure(t *testing.T) {
	statusErr := &llm.StatusError{Provider: "mock", Code: 401, Body: "bad key"}
	reg := mockRegistry(func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{}, statusErr
	})

	gen := NewGenerator(reg, testCfg())
	_, err := gen.Suggest(context.Background(), SuggestInput{Task: "replicate"})

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	require.ErrorIs(t, err, statusErr)
}

func TestGeneratorSuggestRequiresTask(t *testing.T) {
	gen := NewGenerator(mockRegistry(nil), testCfg())
	_, err := gen.Suggest(context.Background(), SuggestInput{Task: "  "})

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
}

func TestGeneratorSuggestRetryPromptCarriesContext(t *testing.T) {
	var prompt string
	reg := mockRegistry(func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		prompt = req.Messages[len(req.Messages)-1].Content
		return llm.ChatResponse{Message: llm.ChatMessage{
			Role:    llm.RoleAssistant,
			Content: `{"code":"print(2)","language":"","explanation":""}`,
		}}, nil
	})

	gen := NewGenerator(reg, testCfg())
	_, err := gen.Suggest(context.Background(), SuggestInput{
		Task:      "replicate",
		Previous:  &Suggestion{Code: "print(1)"},
		LastError: "NameError: name 'np' is not defined",
		Iteration: 1,
	})
	require.NoError(t, err)
	require.Contains(t, prompt, "print(1)")
	require.Contains(t, prompt, "NameError: name 'np' is not defined")
	require.Contains(t, prompt, "iteration 0")
}
