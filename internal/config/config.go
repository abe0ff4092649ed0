package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the medrec service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Ensemble  EnsembleConfig  `yaml:"ensemble"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Cache     CacheConfig     `yaml:"cache"`
	Results   ResultsConfig   `yaml:"results"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatasetConfig holds reference dataset settings.
type DatasetConfig struct {
	Path       string `yaml:"path"`
	MaxRecords int    `yaml:"max_records"` // 0 = unlimited
}

// ArtifactsConfig holds model artifact settings.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"` // empty = run without trained artifacts
}

// EnsembleConfig holds candidate selection and combination settings.
type EnsembleConfig struct {
	TopK     int `yaml:"top_k"`
	PoolSize int `yaml:"pool_size"`
}

// RankingConfig holds external ranking service settings.
type RankingConfig struct {
	Provider     string        `yaml:"provider"` // openai, anthropic, none (default: none)
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	TimeoutSec   int           `yaml:"timeout_sec"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BackoffMs    int           `yaml:"backoff_ms"`     // base delay, doubles per attempt
	RateLimitRPS float64       `yaml:"rate_limit_rps"` // 0 = unlimited
	Breaker      BreakerConfig `yaml:"breaker"`
	Budget       BudgetConfig  `yaml:"budget"`
}

// BreakerConfig holds circuit breaker settings for the ranking client.
type BreakerConfig struct {
	Enabled     bool `yaml:"enabled"`
	MinRequests int  `yaml:"min_requests"`
	OpenSec     int  `yaml:"open_sec"`
}

// BudgetConfig holds ranking call budget settings.
type BudgetConfig struct {
	DailyCallLimit int64  `yaml:"daily_call_limit"` // 0 = unlimited
	Action         string `yaml:"action"`           // "reject" | "warn" (default)
}

// CacheConfig holds ranking cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	TTLSec           int      `yaml:"ttl_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ResultsConfig holds recommendation persistence settings.
type ResultsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite database file
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Ensemble.TopK <= 0 {
		c.Ensemble.TopK = 2
	}
	if c.Ensemble.PoolSize <= 0 {
		c.Ensemble.PoolSize = 20
	}
	if c.Ranking.Provider == "" {
		c.Ranking.Provider = "none"
	}
	if c.Ranking.TimeoutSec <= 0 {
		c.Ranking.TimeoutSec = 15
	}
	if c.Ranking.MaxAttempts <= 0 {
		c.Ranking.MaxAttempts = 3
	}
	if c.Ranking.BackoffMs <= 0 {
		c.Ranking.BackoffMs = 1000
	}
	if c.Ranking.Breaker.MinRequests <= 0 {
		c.Ranking.Breaker.MinRequests = 5
	}
	if c.Ranking.Breaker.OpenSec <= 0 {
		c.Ranking.Breaker.OpenSec = 30
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "medrec:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Results.Path == "" {
		c.Results.Path = "medrec.db"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	switch c.Ranking.Provider {
	case "none", "openai", "anthropic":
		// ok
	default:
		return fmt.Errorf(
			"ranking.provider must be \"openai\", \"anthropic\" or \"none\", got %q",
			c.Ranking.Provider,
		)
	}
	if c.Ranking.Provider != "none" && c.Ranking.APIKey == "" {
		return fmt.Errorf("ranking.api_key is required for provider %q", c.Ranking.Provider)
	}
	switch c.Ranking.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"ranking.budget.action must be \"warn\" or \"reject\", got %q",
			c.Ranking.Budget.Action,
		)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	if c.Ensemble.TopK > c.Ensemble.PoolSize {
		return fmt.Errorf(
			"ensemble.top_k (%d) must not exceed ensemble.pool_size (%d)",
			c.Ensemble.TopK, c.Ensemble.PoolSize,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./configs/
	if path := filepath.Join("configs", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "configs", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./configs/
	return filepath.Join("configs", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
