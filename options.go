package medrec

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	logger *zap.Logger

	datasetPath string
	maxRecords  int

	artifactsDir string

	topK     int
	poolSize int

	ranking rankingConfig

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	budgetDailyLimit int64
	budgetReject     bool

	resultsPath string
}

type rankingConfig struct {
	provider string
	apiKey   string
	baseURL  string
	model    string

	timeout      time.Duration
	maxAttempts  int
	backoffBase  time.Duration
	rateLimitRPS float64

	breakerEnabled     bool
	breakerMinRequests uint32
	breakerOpenFor     time.Duration
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		topK:     2,
		poolSize: 20,
		cacheTTL: time.Hour,
		ranking: rankingConfig{
			timeout:     15 * time.Second,
			maxAttempts: 3,
			backoffBase: time.Second,
		},
	}
}

// WithLogger sets the logger. Without one the client is silent.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithDataset sets the reference medicine CSV path. Required.
func WithDataset(path string) Option {
	return func(c *clientConfig) {
		c.datasetPath = path
	}
}

// WithMaxRecords caps the number of dataset rows loaded. 0 means unlimited.
func WithMaxRecords(n int) Option {
	return func(c *clientConfig) {
		c.maxRecords = n
	}
}

// WithArtifacts sets the trained model artifact directory. Without one the
// ensemble runs on the lexical model only.
func WithArtifacts(dir string) Option {
	return func(c *clientConfig) {
		c.artifactsDir = dir
	}
}

// WithEnsemble sets the final list size and the candidate pool cap.
// Non-positive values keep the defaults (2 and 20).
func WithEnsemble(topK, poolSize int) Option {
	return func(c *clientConfig) {
		if topK > 0 {
			c.topK = topK
		}
		if poolSize > 0 {
			c.poolSize = poolSize
		}
	}
}

// WithOpenAIRanking enables ranking through an OpenAI-compatible chat
// completions API. baseURL may be empty for the default endpoint.
func WithOpenAIRanking(apiKey, baseURL, model string) Option {
	return func(c *clientConfig) {
		c.ranking.provider = "openai"
		c.ranking.apiKey = apiKey
		c.ranking.baseURL = baseURL
		c.ranking.model = model
	}
}

// WithAnthropicRanking enables ranking through the Anthropic Messages API.
func WithAnthropicRanking(apiKey, model string) Option {
	return func(c *clientConfig) {
		c.ranking.provider = "anthropic"
		c.ranking.apiKey = apiKey
		c.ranking.model = model
	}
}

// WithRankingTimeout bounds each individual ranking provider call.
func WithRankingTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.ranking.timeout = d
		}
	}
}

// WithRankingRetry sets the transport retry policy for ranking calls:
// maxAttempts total attempts with backoffBase delay doubling per attempt.
func WithRankingRetry(maxAttempts int, backoffBase time.Duration) Option {
	return func(c *clientConfig) {
		if maxAttempts > 0 {
			c.ranking.maxAttempts = maxAttempts
		}
		if backoffBase > 0 {
			c.ranking.backoffBase = backoffBase
		}
	}
}

// WithRankingRateLimit throttles ranking calls client-side. 0 disables.
func WithRankingRateLimit(rps float64) Option {
	return func(c *clientConfig) {
		c.ranking.rateLimitRPS = rps
	}
}

// WithRankingBreaker enables the circuit breaker around ranking calls:
// minRequests consecutive failures open the breaker for openFor.
func WithRankingBreaker(minRequests int, openFor time.Duration) Option {
	return func(c *clientConfig) {
		c.ranking.breakerEnabled = true
		if minRequests > 0 {
			c.ranking.breakerMinRequests = uint32(minRequests)
		}
		c.ranking.breakerOpenFor = openFor
	}
}

// WithRedisCache enables the ranking cache and budget persistence on a
// Redis-compatible store. ttl 0 keeps the default of one hour.
func WithRedisCache(addrs []string, password string, ttl time.Duration) Option {
	return func(c *clientConfig) {
		c.cacheAddrs = addrs
		c.cachePassword = password
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithCallBudget caps daily ranking provider calls. When reject is true an
// exhausted budget short-circuits to the ensemble order; otherwise it only
// warns. 0 disables the budget.
func WithCallBudget(dailyLimit int64, reject bool) Option {
	return func(c *clientConfig) {
		c.budgetDailyLimit = dailyLimit
		c.budgetReject = reject
	}
}

// WithResults persists completed outcomes to a SQLite database at path.
func WithResults(path string) Option {
	return func(c *clientConfig) {
		c.resultsPath = path
	}
}
