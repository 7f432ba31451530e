// Package config holds the typed MindWing configuration, loaded by viper
// from ~/.mindwing/config.yaml (or --config) and MINDWING_* environment
// overrides, then validated as a struct.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment overrides, e.g. MINDWING_VERBOSE.
	EnvPrefix = "MINDWING"

	// DataDirName is the per-user data directory under $HOME.
	DataDirName = ".mindwing"
)

// validate is a single validator instance; it caches struct info.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Config is the full application configuration tree.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Judges        JudgesConfig        `mapstructure:"judges"`
	WorkingMemory WorkingMemoryConfig `mapstructure:"working_memory"`
	Graph         GraphConfig         `mapstructure:"graph"`
	Timeouts      TimeoutConfig       `mapstructure:"timeouts"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Policy        PolicyConfig        `mapstructure:"policy"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// EmbeddingConfig selects the embedding provider and its fixed dimension.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider" validate:"oneof=openai ollama gemini"`
	Model      string `mapstructure:"model" validate:"required"`
	Dimensions int    `mapstructure:"dimensions" validate:"gt=0"`
	BaseURL    string `mapstructure:"base_url"`
}

// JudgeModel names one scorer provider.
type JudgeModel struct {
	Provider string `mapstructure:"provider" validate:"oneof=openai anthropic gemini ollama"`
	Model    string `mapstructure:"model" validate:"required"`
	BaseURL  string `mapstructure:"base_url"`
}

// JudgesConfig holds the two independent judges.
type JudgesConfig struct {
	Judge1 JudgeModel `mapstructure:"judge1"`
	Judge2 JudgeModel `mapstructure:"judge2"`
}

// WorkingMemoryConfig bounds the working set.
type WorkingMemoryConfig struct {
	Capacity          int     `mapstructure:"capacity" validate:"gt=0"`
	CriticalThreshold float64 `mapstructure:"critical_threshold" validate:"gte=0,lte=1"`
}

// GraphConfig tunes memory-strength decay.
type GraphConfig struct {
	DecayTauHours        float64 `mapstructure:"decay_tau_hours" validate:"gt=0"`
	DecayIntervalMinutes int     `mapstructure:"decay_interval_minutes" validate:"gte=0"`
}

// TimeoutConfig carries per-operation deadlines in milliseconds.
type TimeoutConfig struct {
	RequestMS      int `mapstructure:"request_ms" validate:"gt=0"`
	HybridSearchMS int `mapstructure:"hybrid_search_ms" validate:"gt=0"`
	TraversalMS    int `mapstructure:"traversal_ms" validate:"gt=0"`
	PathMS         int `mapstructure:"path_ms" validate:"gt=0"`
	ProviderMS     int `mapstructure:"provider_ms" validate:"gt=0"`
}

// RetryConfig bounds provider retries. Delays double from the base each
// attempt and are scaled by jitter in [0.8, 1.2].
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" validate:"gt=0"`
	BaseDelayMS int `mapstructure:"base_delay_ms" validate:"gt=0"`
}

// TelemetryConfig controls opt-in anonymous usage telemetry.
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"`
}

// PolicyConfig locates Rego ingestion guardrails.
type PolicyConfig struct {
	Dir string `mapstructure:"dir"`
}

// DefaultDataDir returns ~/.mindwing, falling back to the working directory
// when the home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDirName
	}
	return filepath.Join(home, DataDirName)
}

// SetDefaults registers every configuration default with viper. Call once
// before unmarshaling.
func SetDefaults() {
	dataDir := DefaultDataDir()

	viper.SetDefault("database.path", filepath.Join(dataDir, "memory.db"))

	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)
	viper.SetDefault("embedding.base_url", "")

	viper.SetDefault("judges.judge1.provider", "openai")
	viper.SetDefault("judges.judge1.model", "gpt-4o-mini")
	viper.SetDefault("judges.judge2.provider", "anthropic")
	viper.SetDefault("judges.judge2.model", "claude-3-5-haiku-20241022")

	viper.SetDefault("working_memory.capacity", 10)
	viper.SetDefault("working_memory.critical_threshold", 0.8)

	viper.SetDefault("graph.decay_tau_hours", 168.0)
	viper.SetDefault("graph.decay_interval_minutes", 30)

	viper.SetDefault("timeouts.request_ms", 5000)
	viper.SetDefault("timeouts.hybrid_search_ms", 1000)
	viper.SetDefault("timeouts.traversal_ms", 100)
	viper.SetDefault("timeouts.path_ms", 400)
	viper.SetDefault("timeouts.provider_ms", 30000)

	viper.SetDefault("retry.max_attempts", 4)
	viper.SetDefault("retry.base_delay_ms", 1000)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.host", "https://us.i.posthog.com")

	viper.SetDefault("policy.dir", filepath.Join(dataDir, "policies"))
}

// Load unmarshals the merged viper state into a validated Config.
func Load() (*Config, error) {
	SetDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Database.Path = expandHome(cfg.Database.Path)
	cfg.Policy.Dir = expandHome(cfg.Policy.Dir)

	// MINDWING_DB_PATH is the documented short-form override.
	if p := os.Getenv(EnvPrefix + "_DB_PATH"); p != "" {
		cfg.Database.Path = expandHome(p)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
