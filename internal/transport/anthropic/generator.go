package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/metrics"
)

// Generator is a ranking text provider using the Anthropic Messages API.
// It returns the raw model text; prompt construction and parsing stay with
// the ranking agent.
type Generator struct {
	messages Messager
	model    string
	provider string
	logger   *zap.Logger
}

// Messager is the slice of the Anthropic client the generator uses.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
	CountTokens(ctx context.Context, params anthropic.MessageCountTokensParams, opts ...option.RequestOption) (*anthropic.MessageTokensCount, error)
}

// Config holds the ranking provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Logger   *zap.Logger
}

// NewGenerator creates an Anthropic messages provider.
func NewGenerator(cfg *Config) *Generator {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &Generator{
		messages: &client.Messages,
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// GenerateJSON implements domain.Generator with transport-level metrics.
// Temperature is pinned to zero; the API has no JSON response mode, so the
// system prompt carries the strict-JSON instruction and the caller
// validates the content.
func (g *Generator) GenerateJSON(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResult, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(0),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()

	resp, err := g.messages.New(ctx, params)

	duration := time.Since(start)

	if err != nil {
		metrics.RankingRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return domain.GenerateResult{}, parseAPIError(err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	text := sb.String()
	if text == "" {
		metrics.RankingRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return domain.GenerateResult{}, &domain.ProviderError{
			StatusCode: 502,
			Message:    "empty messages response",
		}
	}

	metrics.RankingRequestsTotal.WithLabelValues(g.provider, g.model, "success").Inc()
	metrics.RankingRequestDuration.WithLabelValues(g.provider, g.model).Observe(duration.Seconds())
	metrics.RankingTokensTotal.WithLabelValues(g.provider, g.model, "prompt").
		Add(float64(resp.Usage.InputTokens))
	metrics.RankingTokensTotal.WithLabelValues(g.provider, g.model, "completion").
		Add(float64(resp.Usage.OutputTokens))

	return domain.GenerateResult{
		Text:             text,
		Model:            string(resp.Model),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// HealthCheck verifies API availability and credentials via the token
// counting endpoint (free, no generation).
func (g *Generator) HealthCheck(ctx context.Context) error {
	_, err := g.messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(g.model),
		Messages: []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	if err != nil {
		return fmt.Errorf("count tokens: %w", err)
	}
	return nil
}

// parseAPIError converts an SDK error into a typed ProviderError so the
// retry layer can classify it by HTTP status. Transport errors without a
// status (network, context) pass through wrapped.
func parseAPIError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
	}
	return fmt.Errorf("messages request failed: %w", err)
}
