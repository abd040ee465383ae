package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicGenerator struct {
	client anthropic.Client
	model  string
}

func newAnthropicGenerator(cfg Config) *anthropicGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "claude-haiku-4-5"
	}

	return &anthropicGenerator{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (g *anthropicGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := req.Model
	switch {
	case model == "":
		model = g.model
	case !strings.HasPrefix(model, "claude"):
		// Billing still prices the requested model.
		slog.WarnContext(ctx, "requested model is not an anthropic model, substituting the configured one",
			"requested_model", req.Model,
			"model", g.model)
		model = g.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 300
	}

	// Anthropic takes the system prompt separately, not in the messages array.
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: req.SystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	start := time.Now()
	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	slog.DebugContext(ctx, "llm generate completed",
		"provider", ProviderAnthropic,
		"model", model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason)

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
