package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	medrec "github.com/doshi-kevin/medrec"
	"github.com/doshi-kevin/medrec/internal/config"
	logpkg "github.com/doshi-kevin/medrec/internal/logger"
)

var (
	flagEnv     string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "medrec",
	Short: "Medicine recommendation pipeline",
	Long: `medrec recommends medicines for patient-reported symptoms.

Free text is normalized to canonical symptom tokens, scored by an
ensemble of local models over the reference dataset, and optionally
re-ranked and explained by an external generative-AI service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", config.GetEnv(),
		"configuration environment (local, dev, prod)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"log pipeline detail to stderr")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration for the selected environment.
func loadConfig() (config.Config, error) {
	return config.Load(flagEnv)
}

// newCLILogger builds a logger for one-shot commands. Quiet by default so
// command output stays readable; --verbose restores the configured level.
func newCLILogger(cfg config.Config) (*zap.Logger, error) {
	level := "warn"
	if flagVerbose {
		level = cfg.Logging.Level
	}
	return logpkg.NewLogger(flagEnv, level)
}

// newClient wires the embeddable pipeline client from the configuration.
func newClient(cfg config.Config, logger *zap.Logger) (*medrec.Client, error) {
	opts := []medrec.Option{
		medrec.WithLogger(logger),
		medrec.WithDataset(cfg.Dataset.Path),
		medrec.WithMaxRecords(cfg.Dataset.MaxRecords),
		medrec.WithEnsemble(cfg.Ensemble.TopK, cfg.Ensemble.PoolSize),
	}
	if cfg.Artifacts.Dir != "" {
		opts = append(opts, medrec.WithArtifacts(cfg.Artifacts.Dir))
	}

	switch cfg.Ranking.Provider {
	case "openai":
		opts = append(opts, medrec.WithOpenAIRanking(
			cfg.Ranking.APIKey, cfg.Ranking.BaseURL, cfg.Ranking.Model))
	case "anthropic":
		opts = append(opts, medrec.WithAnthropicRanking(
			cfg.Ranking.APIKey, cfg.Ranking.Model))
	case "none", "":
		// Pipeline runs with ranking permanently in fallback.
	default:
		return nil, fmt.Errorf("unknown ranking provider %q", cfg.Ranking.Provider)
	}
	if cfg.Ranking.Provider == "openai" || cfg.Ranking.Provider == "anthropic" {
		opts = append(opts,
			medrec.WithRankingTimeout(time.Duration(cfg.Ranking.TimeoutSec)*time.Second),
			medrec.WithRankingRetry(cfg.Ranking.MaxAttempts,
				time.Duration(cfg.Ranking.BackoffMs)*time.Millisecond),
			medrec.WithRankingRateLimit(cfg.Ranking.RateLimitRPS),
		)
		if cfg.Ranking.Breaker.Enabled {
			opts = append(opts, medrec.WithRankingBreaker(
				cfg.Ranking.Breaker.MinRequests,
				time.Duration(cfg.Ranking.Breaker.OpenSec)*time.Second))
		}
		if cfg.Ranking.Budget.DailyCallLimit > 0 {
			opts = append(opts, medrec.WithCallBudget(
				cfg.Ranking.Budget.DailyCallLimit,
				cfg.Ranking.Budget.Action == "reject"))
		}
	}

	if cfg.Cache.Enabled {
		opts = append(opts, medrec.WithRedisCache(
			cfg.Cache.Addrs, cfg.Cache.Password,
			time.Duration(cfg.Cache.TTLSec)*time.Second))
	}
	if cfg.Results.Enabled {
		opts = append(opts, medrec.WithResults(cfg.Results.Path))
	}

	return medrec.New(opts...)
}
