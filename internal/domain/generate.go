package domain

import (
	"context"
	"fmt"
)

// Generator is the shared text generation contract between layers.
// Implementations call an external generative-AI service and are expected to
// return the model's raw text; prompt construction and response parsing stay
// with the caller.
type Generator interface {
	GenerateJSON(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// HealthChecker verifies ranking provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// GenerateRequest describes one generation call.
type GenerateRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// GenerateResult carries the model output and token usage through the
// decorator chain.
type GenerateResult struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ProviderError carries the HTTP status of a failed provider call so the
// retry layer can tell transient failures (429, 5xx) from permanent ones.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Message)
}
