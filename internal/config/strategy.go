package config

// StrategyConfig defines per-role model selections and fallbacks.
type StrategyConfig struct {
	DefaultModel   string            `mapstructure:"default_model"`
	GeneratorModel string            `mapstructure:"generator_model"`
	JudgeModel     string            `mapstructure:"judge_model"`
	AnalysisModel  string            `mapstructure:"analysis_model"`
	Overrides      map[string]string `mapstructure:"overrides"`     // arbitrary role->model id
	Fallbacks      []string          `mapstructure:"fallbacks"`     // ordered fallback model ids
	MaxExpensive   int               `mapstructure:"max_expensive"` // limit expensive model uses per run (0=unlimited)
}
