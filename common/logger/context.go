package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so the conversation a log line belongs to
// (key, event, merchant, stage) is attached without passing it to every call.
type LogFields struct {
	ConversationKey *string // "<channel>_<counterparty>"
	EventID         *string // Inbound message id that triggered the run
	MessageID       *string // Redis stream message ID
	MerchantID      *string
	Stage           *string // Orchestration stage (analyze, context, respond, ...)
	Component       string  // Component name (OTel semantic convention style, e.g., "relay.brain.orchestrator")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.ConversationKey != nil {
		result.ConversationKey = new.ConversationKey
	}
	if new.EventID != nil {
		result.EventID = new.EventID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.MerchantID != nil {
		result.MerchantID = new.MerchantID
	}
	if new.Stage != nil {
		result.Stage = new.Stage
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{EventID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging customer messages and model output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
