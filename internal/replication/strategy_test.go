package replication

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicode-ai/replicode/internal/config"
	"github.com/replicode-ai/replicode/internal/llm"
	llmmock "github.com/replicode-ai/replicode/internal/llm/mock"
)

func strategyRegistry(t *testing.T) *llm.Registry {
	t.Helper()
	reg := llm.NewRegistry()
	reg.RegisterProvider("mock", &llmmock.Provider{})
	reg.RegisterModel("small", llm.ModelRoute{Provider: "mock", Model: "small-1"}, true)
	reg.RegisterModel("large", llm.ModelRoute{Provider: "mock", Model: "large-1"}, false)
	reg.RegisterModel("judge-only", llm.ModelRoute{Provider: "mock", Model: "judge-1"}, false)
	reg.MarkExpensive("large", true)
	return reg
}

func TestStrategyResolvesPerRoleModels(t *testing.T) {
	eng := NewStrategyEngine(strategyRegistry(t), config.StrategyConfig{
		DefaultModel:   "small",
		GeneratorModel: "large",
		JudgeModel:     "judge-only",
	})

	_, route, err := eng.ResolveModel("generator", "")
	require.NoError(t, err)
	require.Equal(t, "large", route.Name)

	_, route, err = eng.ResolveModel("judge", "")
	require.NoError(t, err)
	require.Equal(t, "judge-only", route.Name)

	_, route, err = eng.ResolveModel("analysis", "")
	require.NoError(t, err)
	require.Equal(t, "small", route.Name)
}

func TestStrategyRequestOverrideWins(t *testing.T) {
	eng := NewStrategyEngine(strategyRegistry(t), config.StrategyConfig{
		DefaultModel:   "small",
		GeneratorModel: "small",
	})

	_, route, err := eng.ResolveModel("generator", "large")
	require.NoError(t, err)
	require.Equal(t, "large", route.Name)
}

func TestStrategyUnknownModelFallsBack(t *testing.T) {
	eng := NewStrategyEngine(strategyRegistry(t), config.StrategyConfig{
		GeneratorModel: "missing",
		Fallbacks:      []string{"also-missing", "small"},
	})

	_, route, err := eng.ResolveModel("generator", "")
	require.NoError(t, err)
	require.Equal(t, "small", route.Name)
}

func TestStrategyBudgetDemotesExpensiveModel(t *testing.T) {
	eng := NewStrategyEngine(strategyRegistry(t), config.StrategyConfig{
		DefaultModel:   "small",
		GeneratorModel: "large",
		Fallbacks:      []string{"small"},
		MaxExpensive:   1,
	})

	_, _, chosen, isExp, err := eng.PickWithBudget("generator", "", 0)
	require.NoError(t, err)
	require.Equal(t, "large", chosen)
	require.True(t, isExp)

	_, _, chosen, isExp, err = eng.PickWithBudget("generator", "", 1)
	require.NoError(t, err)
	require.Equal(t, "small", chosen)
	require.False(t, isExp)
}
