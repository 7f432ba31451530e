/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/josephgoksu/MindWing/internal/config"
	"github.com/josephgoksu/MindWing/internal/llm"
	"github.com/josephgoksu/MindWing/internal/logging"
	"github.com/josephgoksu/MindWing/internal/memory"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// initConfig reads the .env file, the config file, and MINDWING_* env
// overrides. Called by cobra before every command.
func initConfig() {
	// Load .env first if present. It is fine when it doesn't exist.
	_ = godotenv.Load()

	// Environment variable handling must be set up before reading the
	// config file so env overrides apply to every key.
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfgFileFlag := viper.GetString("config")
	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		viper.AddConfigPath(config.DefaultDataDir())
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if cfgFileFlag != "" {
				fmt.Fprintln(os.Stderr, "Error: specified config file not found:", cfgFileFlag)
			} else if viper.GetBool("verbose") {
				fmt.Fprintln(os.Stderr, "No config file found. Using defaults and environment variables.")
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}
}

// loadConfig returns the validated configuration tree.
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// openStore opens the SQLite store, creating the data directory when
// needed. The caller owns the Close.
func openStore(cfg *config.Config) (*memory.Store, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "" && dir != "." && cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}
	store, err := memory.NewStore(cfg.Database.Path, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("open memory store at %s: %w", cfg.Database.Path, err)
	}
	return store, nil
}

// costRecorder books every provider call into the cost ledger. Booking
// failures are logged, never surfaced: the memory operation already
// succeeded or failed on its own.
func costRecorder(store *memory.Store) llm.RecordFunc {
	return func(ctx context.Context, ev llm.CostEvent) {
		rec := memory.ApiCostRecord{
			Timestamp: time.Now().UTC(),
			Provider:  ev.Provider,
			Operation: ev.Operation,
			Model:     ev.Model,
			Tokens:    ev.Tokens,
			CostUSD:   ev.CostUSD,
			QueryID:   ev.QueryID,
		}
		if err := store.InsertCost(ctx, rec); err != nil {
			logging.L().Warn("cost booking failed",
				zap.String("provider", ev.Provider),
				zap.String("operation", ev.Operation),
				zap.Error(err))
		}
	}
}

// retryPolicy converts the retry config into the shared provider policy.
func retryPolicy(cfg *config.Config) llm.Policy {
	return llm.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
	}
}

// newEmbedder builds the configured embedding provider with retries,
// dimension enforcement and cost booking attached.
func newEmbedder(ctx context.Context, cfg *config.Config, record llm.RecordFunc) (*llm.ProviderEmbedder, error) {
	provider, err := llm.ValidateProvider(cfg.Embedding.Provider)
	if err != nil {
		return nil, err
	}
	apiKey, _ := config.ProviderAPIKey(cfg.Embedding.Provider)
	return llm.NewEmbedder(ctx, llm.Config{
		Provider: provider,
		Model:    cfg.Embedding.Model,
		APIKey:   apiKey,
		BaseURL:  cfg.Embedding.BaseURL,
	}, llm.EmbedderOptions{
		Dimensions: cfg.Embedding.Dimensions,
		Policy:     retryPolicy(cfg),
		Timeout:    time.Duration(cfg.Timeouts.ProviderMS) * time.Millisecond,
		Record:     record,
	})
}

// newScorer builds one judge over the given provider/model pair.
func newScorer(ctx context.Context, jm config.JudgeModel, cfg *config.Config, record llm.RecordFunc) (*llm.JudgeScorer, error) {
	provider, err := llm.ValidateProvider(jm.Provider)
	if err != nil {
		return nil, err
	}
	apiKey, _ := config.ProviderAPIKey(jm.Provider)
	return llm.NewScorer(ctx, llm.Config{
		Provider: provider,
		Model:    jm.Model,
		APIKey:   apiKey,
		BaseURL:  jm.BaseURL,
	}, llm.ScorerOptions{
		Policy:  retryPolicy(cfg),
		Timeout: time.Duration(cfg.Timeouts.ProviderMS) * time.Millisecond,
		Record:  record,
	})
}
