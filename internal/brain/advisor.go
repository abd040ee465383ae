package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"autoreply.app/relay/common/llm"
	"autoreply.app/relay/internal/model"
)

const advisorSystemPrompt = `You analyze customer messages sent to a business on a messaging channel.

Pick exactly one label:
- "order": the customer wants to buy, book, reserve or subscribe to something
- "get_context": answering needs business information (hours, services, pricing, location)
- "ai_response": a simple message that can be answered directly

Give a one sentence reasoning.`

const (
	advisorHistoryTurns = 5
	advisorAttempts     = 3
	advisorBackoff      = 250 * time.Millisecond
)

type advisorOutput struct {
	Label     string `json:"label" jsonschema:"enum=order,enum=get_context,enum=ai_response"`
	Reasoning string `json:"reasoning"`
}

var advisorSchema = llm.GenerateSchema[advisorOutput]()

type llmAdvisor struct {
	client  llm.Client
	backoff time.Duration
}

// NewLLMAdvisor classifies messages with a structured-output chat. Transient failures are
// retried with exponential backoff before the error is returned.
func NewLLMAdvisor(client llm.Client) Advisor {
	return &llmAdvisor{client: client, backoff: advisorBackoff}
}

func (a *llmAdvisor) Advise(ctx context.Context, text string, history []model.Turn) (Advice, error) {
	var sb strings.Builder
	if recent := lastTurns(history, advisorHistoryTurns); len(recent) > 0 {
		sb.WriteString("Conversation history:\n")
		sb.WriteString(formatHistory(recent))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Current message: ")
	sb.WriteString(text)

	req := llm.Request{
		SystemPrompt: advisorSystemPrompt,
		UserPrompt:   sb.String(),
		SchemaName:   "message_classification",
		Schema:       advisorSchema,
		MaxTokens:    200,
		Temperature:  llm.Temp(0),
	}

	var out advisorOutput
	var err error
	for attempt := 0; attempt < advisorAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Advice{}, fmt.Errorf("advisor chat: %w", ctx.Err())
			case <-time.After(a.backoff << (attempt - 1)):
			}
		}

		_, err = a.client.Chat(ctx, req, &out)
		if err == nil {
			return Advice{Label: out.Label, Reasoning: out.Reasoning}, nil
		}
		if !llm.IsRetryable(ctx, err) {
			return Advice{}, fmt.Errorf("advisor chat: %w", err)
		}
		slog.WarnContext(ctx, "advisor chat retry", "attempt", attempt+1, "error", err)
	}

	return Advice{}, fmt.Errorf("advisor chat after %d attempts: %w", advisorAttempts, err)
}
