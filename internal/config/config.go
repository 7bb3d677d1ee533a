package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version     string                    `mapstructure:"version"`
	Providers   map[string]ProviderConfig `mapstructure:"providers"`
	Models      map[string]ModelConfig    `mapstructure:"models"`
	Strategy    StrategyConfig            `mapstructure:"strategy"`
	Sandbox     SandboxConfig             `mapstructure:"sandbox"`
	Replication ReplicationConfig         `mapstructure:"replication"`
	Analysis    AnalysisConfig            `mapstructure:"analysis"`
	Logging     LoggingConfig             `mapstructure:"logging"`
	Server      ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents LLM provider configuration such as OpenAI, Ollama, or custom gateways.
type ProviderConfig struct {
	Type      string        `mapstructure:"type"`       // openai, openrouter, ollama, vllm, lmstudio, custom
	Model     string        `mapstructure:"model"`      // default model for the provider
	BaseURL   string        `mapstructure:"base_url"`   // API base URL
	APIKey    string        `mapstructure:"api_key"`    // optional API key
	Timeout   time.Duration `mapstructure:"timeout"`    // request timeout
	MaxTokens int           `mapstructure:"max_tokens"` // optional provider-level token cap
}

// ModelConfig binds a logical model name to a provider entry and model parameters.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Default     bool    `mapstructure:"default"`
	Expensive   bool    `mapstructure:"expensive"`
}

// SandboxConfig controls where generated code is executed.
type SandboxConfig struct {
	Type                    string `mapstructure:"type"`     // subprocess or http
	BaseURL                 string `mapstructure:"base_url"` // http executor endpoint
	APIKey                  string `mapstructure:"api_key"`  // http executor credential
	TimeoutSeconds          int    `mapstructure:"timeout_seconds"`
	ProvisionTimeoutSeconds int    `mapstructure:"provision_timeout_seconds"`
	PythonBinary            string `mapstructure:"python_binary"`
}

// ReplicationConfig describes replication loop runtime parameters.
type ReplicationConfig struct {
	MaxIterations           int    `mapstructure:"max_iterations"`
	DefaultLanguage         string `mapstructure:"default_language"`
	RequireSufficientOutput bool   `mapstructure:"require_sufficient_output"`
	PaperCharBudget         int    `mapstructure:"paper_char_budget"`
	OutputCharBudget        int    `mapstructure:"output_char_budget"`
	SnippetCharBudget       int    `mapstructure:"snippet_char_budget"`
	MaxListItems            int    `mapstructure:"max_list_items"`
}

// AnalysisConfig controls the feasibility/method one-shot calls.
type AnalysisConfig struct {
	RetryAttempts    int `mapstructure:"retry_attempts"`
	RetryBaseDelayMS int `mapstructure:"retry_base_delay_ms"`
	PaperCharBudget  int `mapstructure:"paper_char_budget"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or ndjson
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: REPLICODE_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REPLICODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("sandbox.type", "subprocess")
	// Empty-string defaults keep these keys visible to AutomaticEnv so
	// REPLICODE_SANDBOX_API_KEY et al. override without a config entry.
	v.SetDefault("sandbox.base_url", "")
	v.SetDefault("sandbox.api_key", "")
	v.SetDefault("sandbox.timeout_seconds", 60)
	v.SetDefault("sandbox.provision_timeout_seconds", 60)
	v.SetDefault("sandbox.python_binary", "python3")

	v.SetDefault("replication.max_iterations", 5)
	v.SetDefault("replication.default_language", "python3")
	v.SetDefault("replication.require_sufficient_output", true)
	v.SetDefault("replication.paper_char_budget", 40000)
	v.SetDefault("replication.output_char_budget", 8000)
	v.SetDefault("replication.snippet_char_budget", 2000)
	v.SetDefault("replication.max_list_items", 20)

	v.SetDefault("analysis.retry_attempts", 5)
	v.SetDefault("analysis.retry_base_delay_ms", 500)
	v.SetDefault("analysis.paper_char_budget", 40000)

	v.SetDefault("strategy.default_model", "")
	v.SetDefault("strategy.generator_model", "")
	v.SetDefault("strategy.judge_model", "")
	v.SetDefault("strategy.analysis_model", "")
	v.SetDefault("strategy.overrides", map[string]string{})
	v.SetDefault("strategy.fallbacks", []string{})
	v.SetDefault("strategy.max_expensive", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	var defaultFound bool
	for name, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("provider %q must define type", name)
		}
	}

	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}

		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}

		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}

		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}

		if m.Default {
			defaultFound = true
		}
	}

	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	switch strings.ToLower(strings.TrimSpace(c.Sandbox.Type)) {
	case "subprocess":
	case "http":
		if strings.TrimSpace(c.Sandbox.BaseURL) == "" {
			return errors.New("sandbox.base_url must be set when sandbox.type is http")
		}
	default:
		return fmt.Errorf("sandbox.type must be one of subprocess or http, got %q", c.Sandbox.Type)
	}

	if c.Sandbox.TimeoutSeconds <= 0 {
		return errors.New("sandbox.timeout_seconds must be > 0")
	}
	if c.Sandbox.ProvisionTimeoutSeconds <= 0 {
		return errors.New("sandbox.provision_timeout_seconds must be > 0")
	}

	if c.Replication.MaxIterations <= 0 {
		return errors.New("replication.max_iterations must be > 0")
	}
	if strings.TrimSpace(c.Replication.DefaultLanguage) == "" {
		return errors.New("replication.default_language must be set")
	}
	if c.Replication.PaperCharBudget <= 0 {
		return errors.New("replication.paper_char_budget must be > 0")
	}
	if c.Replication.OutputCharBudget <= 0 {
		return errors.New("replication.output_char_budget must be > 0")
	}
	if c.Replication.SnippetCharBudget <= 0 {
		return errors.New("replication.snippet_char_budget must be > 0")
	}
	if c.Replication.MaxListItems <= 0 {
		return errors.New("replication.max_list_items must be > 0")
	}

	if c.Analysis.RetryAttempts < 0 {
		return errors.New("analysis.retry_attempts must be >= 0")
	}
	if c.Analysis.RetryBaseDelayMS < 0 {
		return errors.New("analysis.retry_base_delay_ms must be >= 0")
	}
	if c.Analysis.PaperCharBudget <= 0 {
		return errors.New("analysis.paper_char_budget must be > 0")
	}

	for _, modelID := range []string{
		c.Strategy.DefaultModel, c.Strategy.GeneratorModel, c.Strategy.JudgeModel, c.Strategy.AnalysisModel,
	} {
		if strings.TrimSpace(modelID) == "" {
			continue
		}
		if _, ok := c.Models[modelID]; !ok {
			return fmt.Errorf("strategy references unknown model %q", modelID)
		}
	}
	for _, modelID := range c.Strategy.Fallbacks {
		if _, ok := c.Models[modelID]; !ok {
			return fmt.Errorf("strategy fallback references unknown model %q", modelID)
		}
	}
	for _, modelID := range c.Strategy.Overrides {
		if _, ok := c.Models[modelID]; !ok {
			return fmt.Errorf("strategy override references unknown model %q", modelID)
		}
	}
	if c.Strategy.MaxExpensive < 0 {
		return fmt.Errorf("strategy.max_expensive must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return fmt.Errorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}

	return nil
}
