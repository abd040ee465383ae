package brain

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"autoreply.app/relay/common/llm"
	"autoreply.app/relay/common/logger"
	"autoreply.app/relay/internal/model"
)

const orderReceivedDetails = "Order request received"

// Markers are matched case-insensitively on the original text so byte offsets stay valid
// whatever the surrounding script.
var (
	orderDetailsMarker     = regexp.MustCompile(`(?i)ORDER DETAILS:`)
	customerResponseMarker = regexp.MustCompile(`(?i)CUSTOMER RESPONSE:`)
)

const orderExtractionInstructions = `The customer wants to place an order, booking or reservation.

Extract:
- Product/Service requested
- Quantity or duration
- Special requirements
- Urgency or preferred date/time

Answer in exactly this format:

ORDER DETAILS:
<one line per extracted item, "not specified" when missing>

CUSTOMER RESPONSE:
<a short confirmation for the customer saying the order was received and the business will contact them to confirm>`

var indonesianMarkers = []string{
	"saya", "mau", "pesan", "ingin", "tolong", "bisa", "terima kasih", "kak", "beli", "dong", "berapa",
}

// OrderExtractor captures structured order details and a customer confirmation.
// Notify tells the merchant about the order when escalation is enabled on the profile.
type OrderExtractor struct {
	gen      llm.Generator
	notifier Notifier
}

// NewOrderExtractor creates an extractor. notifier may be nil to disable notifications.
func NewOrderExtractor(gen llm.Generator, notifier Notifier) *OrderExtractor {
	return &OrderExtractor{gen: gen, notifier: notifier}
}

// Extract returns the customer reply and the order summary for the merchant. It never fails.
func (e *OrderExtractor) Extract(ctx context.Context, state *model.ConversationState) (string, string) {
	settings := ResolveSettings(state.AIConfig)
	prompt := buildResponsePrompt(state, settings) + "\n\n" + orderExtractionInstructions

	// Extraction needs room for both blocks regardless of the merchant's reply length.
	if settings.MaxTokens < replyLengthTokens[model.LevelDefault] {
		settings.MaxTokens = replyLengthTokens[model.LevelDefault]
	}

	var reply, summary string
	output, err := e.gen.Generate(ctx, settings.request(prompt, state.MessageText))
	if err != nil {
		slog.WarnContext(ctx, "order extraction failed, using fallback",
			"error", fmt.Errorf("%w: %w", ErrOrderExtraction, err))
		reply, summary = orderConfirmation(state), orderReceivedDetails
	} else {
		var ok bool
		summary, reply, ok = parseOrderOutput(output)
		if !ok {
			slog.WarnContext(ctx, "order extraction output malformed, synthesizing confirmation",
				"output", logger.Truncate(output, 200))
			summary = strings.TrimSpace(output)
			if summary == "" {
				summary = orderReceivedDetails
			}
			reply = orderConfirmation(state)
		}
	}

	return reply, summary
}

// Notify sends the order notification the merchant's escalation settings ask for.
// A failure is logged and not returned.
func (e *OrderExtractor) Notify(ctx context.Context, state *model.ConversationState, summary string) {
	profile := state.Profile()
	if e.notifier == nil || !profile.Escalation.Enabled {
		return
	}

	method := profile.Escalation.Method
	if method == "" {
		method = model.EscalationMethodEmail
	}

	if err := e.notifier.NotifyMerchant(ctx, model.MerchantNotification{
		Profile:         profile,
		ChannelID:       state.Key.ChannelID,
		CounterpartyID:  state.Key.CounterpartyID,
		OrderSummary:    summary,
		OriginalMessage: state.MessageText,
		Method:          method,
	}); err != nil {
		slog.ErrorContext(ctx, "merchant order notification failed", "error", err, "method", method)
		return
	}

	slog.InfoContext(ctx, "merchant notified of order", "method", method)
}

// parseOrderOutput splits the two-part answer. ok is false when the response marker is
// missing or either block is empty.
func parseOrderOutput(output string) (details, reply string, ok bool) {
	loc := customerResponseMarker.FindStringIndex(output)
	if loc == nil {
		return "", "", false
	}

	details = output[:loc[0]]
	if d := orderDetailsMarker.FindStringIndex(details); d != nil {
		details = details[d[1]:]
	}
	details = strings.TrimSpace(details)
	reply = strings.TrimSpace(output[loc[1]:])

	if details == "" || reply == "" {
		return "", "", false
	}
	return details, reply, true
}

func orderConfirmation(state *model.ConversationState) string {
	name := state.Profile().DisplayName()
	if containsWord(state.MessageText, indonesianMarkers) {
		return fmt.Sprintf("Terima kasih atas pesanan Anda! 🙏 Detail pesanan sudah kami terima dan tim %s akan segera menghubungi Anda untuk konfirmasi.", name)
	}
	return fmt.Sprintf("Thank you for your order! 🙏 We've received your order details and the %s team will contact you shortly to confirm.", name)
}
