package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"autoreply.app/relay/common"
	"autoreply.app/relay/common/llm"
	"autoreply.app/relay/common/logger"
	"autoreply.app/relay/internal/model"
)

var greetingWords = []string{
	"hi", "hello", "hey", "hallo", "halo", "hai", "hola", "yo",
	"good morning", "good afternoon", "good evening",
	"selamat pagi", "selamat siang", "selamat sore", "selamat malam",
	"assalamualaikum",
}

// Responder generates the direct reply for the respond path.
type Responder struct {
	gen llm.Generator
}

func NewResponder(gen llm.Generator) *Responder {
	return &Responder{gen: gen}
}

// Respond never fails: an erroring, timed out or blank generation yields a canned reply.
func (r *Responder) Respond(ctx context.Context, state *model.ConversationState) string {
	settings := ResolveSettings(state.AIConfig)
	prompt := buildResponsePrompt(state, settings)

	reply, err := r.gen.Generate(ctx, settings.request(prompt, state.MessageText))
	if err != nil {
		slog.WarnContext(ctx, "reply generation failed, using fallback",
			"error", fmt.Errorf("%w: %w", ErrGeneration, err),
			"model", settings.Model)
		return fallbackReply(state)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		slog.WarnContext(ctx, "reply generation returned empty output, using fallback", "model", settings.Model)
		return fallbackReply(state)
	}

	slog.DebugContext(ctx, "reply generated",
		"model", settings.Model,
		"reply", logger.Truncate(reply, 200))
	return reply
}

func fallbackReply(state *model.ConversationState) string {
	name := state.Profile().DisplayName()
	if isGreeting(state.MessageText) {
		return fmt.Sprintf("Hello! 👋 Thank you for contacting %s. How can we help you today?", name)
	}
	return fmt.Sprintf("Thank you for your message! The team at %s has received it and will get back to you shortly.", name)
}

func isGreeting(text string) bool {
	return containsWord(text, greetingWords)
}

// containsWord matches whole words or word sequences, so "this" does not count as "hi".
func containsWord(text string, words []string) bool {
	normalized := common.Normalize(text)
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || strings.ContainsRune(".,!?;:~-'\"()", r)
	})
	joined := " " + strings.Join(fields, " ") + " "
	for _, w := range words {
		if strings.Contains(joined, " "+w+" ") {
			return true
		}
	}
	return false
}
