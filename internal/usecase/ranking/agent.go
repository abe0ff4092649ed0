package ranking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/doshi-kevin/medrec/internal/domain"
)

const maxResponseTokens = 1024

// failureClass buckets transport failures for the retry decision.
type failureClass int

const (
	failureTimeout failureClass = iota
	failureRateLimit
	failureServer
	failureClient
	failureBreakerOpen
)

func (c failureClass) String() string {
	switch c {
	case failureTimeout:
		return "timeout"
	case failureRateLimit:
		return "rate_limit"
	case failureServer:
		return "server"
	case failureClient:
		return "client"
	case failureBreakerOpen:
		return "breaker_open"
	default:
		return "unknown"
	}
}

// Config holds the agent's defensive-client settings.
type Config struct {
	Provider string
	Model    string
	// Timeout bounds each individual provider call.
	Timeout time.Duration
	// MaxAttempts bounds transport retries (content retries share the cap).
	MaxAttempts int
	// BackoffBase is the delay before the second attempt; it doubles per
	// attempt after that.
	BackoffBase time.Duration
	// RateLimitRPS throttles provider calls client-side. 0 disables.
	RateLimitRPS float64
	// BreakerEnabled turns on the circuit breaker around provider calls.
	BreakerEnabled     bool
	BreakerMinRequests uint32
	BreakerOpenTimeout time.Duration
}

// Agent is the defensive client for the external ranking service. Every
// provider call is rate limited, bounded by a timeout, guarded by a
// circuit breaker, and retried with backoff on transient failures; replies
// are validated before anything downstream sees them. All failures unwrap
// to ErrRankingUnavailable so callers can fall back to the ensemble order.
type Agent struct {
	gen         domain.Generator
	provider    string
	model       string
	timeout     time.Duration
	attempts    int
	backoffBase time.Duration
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[domain.GenerateResult]
	logger      *zap.Logger
}

// NewAgent creates the ranking agent over a text generation provider.
func NewAgent(gen domain.Generator, cfg Config, logger *zap.Logger) *Agent {
	a := &Agent{
		gen:         gen,
		provider:    cfg.Provider,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		attempts:    cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		logger:      logger,
	}
	if a.timeout <= 0 {
		a.timeout = 15 * time.Second
	}
	if a.attempts <= 0 {
		a.attempts = 3
	}
	if a.backoffBase <= 0 {
		a.backoffBase = time.Second
	}
	if cfg.RateLimitRPS > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}
	if cfg.BreakerEnabled {
		a.breaker = gobreaker.NewCircuitBreaker[domain.GenerateResult](gobreaker.Settings{
			Name:    "ranking-" + cfg.Provider,
			Timeout: cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerMinRequests
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Ranking circuit breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	return a
}

// Rank implements domain.Ranker.
func (a *Agent) Rank(ctx context.Context, req domain.RankRequest) (domain.RankResult, error) {
	if len(req.Items) == 0 {
		return domain.RankResult{}, nil
	}

	var result domain.RankResult
	err := a.run(ctx, "rank", buildRankPrompt(req), func(text string) error {
		parsed, err := parseRankResponse(text, req.Items)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	})
	if err != nil {
		return domain.RankResult{}, err
	}
	return result, nil
}

// CheckSafety implements domain.SafetyChecker.
func (a *Agent) CheckSafety(
	ctx context.Context, profile domain.PatientProfile, items []domain.RankItem,
) (domain.SafetyReport, error) {
	var report domain.SafetyReport
	err := a.run(ctx, "safety", buildSafetyPrompt(profile, items), func(text string) error {
		parsed, err := parseSafetyResponse(text)
		if err != nil {
			return err
		}
		report = parsed
		return nil
	})
	if err != nil {
		return domain.SafetyReport{}, err
	}
	return report, nil
}

// run executes the attempt loop: generate, then parse and validate.
// Transient transport failures back off and retry; invalid content retries
// immediately with corrective feedback appended to the prompt. Both kinds
// share the attempt cap.
func (a *Agent) run(ctx context.Context, op, prompt string, parse func(text string) error) error {
	feedback := ""
	var lastErr error
	for attempt := 1; attempt <= a.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrRankingUnavailable, err)
		}

		full := prompt
		if feedback != "" {
			full += "\n\n" + feedback
		}

		start := time.Now()
		res, err := a.generate(ctx, full)
		if err != nil {
			class := classify(err)
			a.logger.Warn("Ranking call failed",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Stringer("class", class),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			lastErr = err
			if transient(class) && attempt < a.attempts {
				if err := a.backoff(ctx, attempt); err != nil {
					return fmt.Errorf("%w: %w", domain.ErrRankingUnavailable, err)
				}
				continue
			}
			return fmt.Errorf("%w: %w", domain.ErrRankingUnavailable, err)
		}

		if err := parse(res.Text); err != nil {
			a.logger.Warn("Ranking response rejected",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			lastErr = err
			if attempt < a.attempts {
				feedback = fmt.Sprintf(
					"Your previous response was invalid: %s. Return strict JSON only, "+
						"exactly as specified.", err)
				continue
			}
			return fmt.Errorf("%w: %w", domain.ErrRankingUnavailable, err)
		}

		a.logger.Debug("Ranking call completed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrRankingUnavailable, lastErr)
}

// generate performs one rate-limited, breaker-guarded, timeout-bounded
// provider call.
func (a *Agent) generate(ctx context.Context, prompt string) (domain.GenerateResult, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return domain.GenerateResult{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	call := func() (domain.GenerateResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.gen.GenerateJSON(callCtx, domain.GenerateRequest{
			System:    systemPrompt,
			Prompt:    prompt,
			MaxTokens: maxResponseTokens,
		})
	}

	if a.breaker != nil {
		return a.breaker.Execute(call)
	}
	return call()
}

// backoff waits base, 2*base, 4*base... between transient failures,
// honoring ctx.
func (a *Agent) backoff(ctx context.Context, attempt int) error {
	delay := a.backoffBase * time.Duration(1<<(attempt-1))
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// classify buckets a transport error. Typed provider errors carry the HTTP
// status; everything else falls back to message sniffing, erring on the
// retryable side for unrecognized failures.
func classify(err error) failureClass {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return failureBreakerOpen
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		switch {
		case pe.StatusCode == 429:
			return failureRateLimit
		case pe.StatusCode >= 500:
			return failureServer
		case pe.StatusCode >= 400:
			return failureClient
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return failureRateLimit
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return failureTimeout
	case strings.Contains(msg, "status 4"), strings.Contains(msg, "error 4"):
		return failureClient
	default:
		return failureServer
	}
}

func transient(c failureClass) bool {
	return c == failureTimeout || c == failureRateLimit || c == failureServer
}
