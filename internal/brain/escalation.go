package brain

import (
	"context"
	"log/slog"

	"autoreply.app/relay/internal/model"
)

// EscalationReply is sent whenever a customer asks for a human, whatever the profile says.
const EscalationReply = `Thank you for reaching out! 👋

I've received your message and our customer service team will get back to you as soon as possible. We typically respond within a few hours during business hours.

If this is urgent, please don't hesitate to call us directly.

Thank you for your patience! 🙏`

const simpleEscalationReply = "Thank you for your message. Our customer service team will respond shortly."

// EscalationHandler produces the canned handoff acknowledgment. It makes no external calls.
type EscalationHandler struct {
	reply string
}

func NewEscalationHandler() *EscalationHandler {
	return &EscalationHandler{reply: EscalationReply}
}

func (h *EscalationHandler) Reply(ctx context.Context, state *model.ConversationState) string {
	if h == nil || h.reply == "" || state == nil {
		slog.WarnContext(ctx, "escalation handler misconfigured, using simple reply")
		return simpleEscalationReply
	}
	return h.reply
}
