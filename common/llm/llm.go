package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"golang.org/x/time/rate"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const DefaultModel = "gpt-4o-mini"

// Config holds LLM client configuration.
type Config struct {
	Provider string        // "openai" or "anthropic"
	APIKey   string        // Required: API key for the provider
	BaseURL  string        // Optional: custom API endpoint
	Model    string        // Default model when a request does not name one
	Timeout  time.Duration // Per-call bound; a call that exceeds it counts as failed
	RPS      float64       // Process-wide request rate; 0 disables limiting
	Burst    int
}

// Generator produces free-text completions. Every parameter that shapes the call
// travels on the request; implementations hold no per-run state.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string   // empty = provider default
	Temperature  *float64 // nil = model default
	MaxTokens    int
}

// NewGenerator builds a Generator for cfg.Provider, bounded by cfg.Timeout and cfg.RPS.
// Defaults to OpenAI if no provider is specified.
func NewGenerator(cfg Config) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	var gen Generator
	switch cfg.Provider {
	case "", ProviderOpenAI:
		gen = newOpenAIGenerator(cfg)
	case ProviderAnthropic:
		gen = newAnthropicGenerator(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return NewBoundedGenerator(gen, limiter, cfg.Timeout), nil
}

func Temp(t float64) *float64 {
	return &t
}

func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	status := 0
	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	switch {
	case errors.As(err, &openaiErr):
		status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	default:
		// Network errors (no API response) are generally retryable
		slog.WarnContext(ctx, "llm network error, will retry", "error", err)
		return true
	}

	switch {
	case status == 429:
		slog.WarnContext(ctx, "llm rate limited, will retry", "status_code", status)
		return true
	case status >= 500:
		slog.WarnContext(ctx, "llm server error, will retry", "status_code", status)
		return true
	default:
		slog.ErrorContext(ctx, "llm client error, not retryable", "status_code", status)
		return false
	}
}
