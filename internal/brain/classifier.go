package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"autoreply.app/relay/common"
	"autoreply.app/relay/internal/model"
)

var handoffPhrases = []string{
	"human",
	"agent",
	"representative",
	"speak to someone",
	"customer support",
	"live chat",
	"real person",
}

var purchaseKeywords = []string{
	"buy",
	"order",
	"purchase",
	"book",
	"reserve",
	"subscribe",
	"interested",
	"want",
	"need",
	"would like",
	"sign me up",
	"proceed",
	"yes",
	"okay",
}

const (
	confidenceEscalate      = 0.9
	confidenceOrder         = 0.85
	confidenceRespond       = 0.8
	confidenceAdvisorFailed = 0.5
)

type Classification struct {
	Decision    model.Decision
	Confidence  float64
	Reasoning   string
	OrderIntent bool
}

// Classifier picks the handling path for one message. Rules are evaluated in order and the
// first match wins: handoff phrase, purchase keyword or advisory order signal, otherwise respond.
type Classifier struct {
	advisor Advisor
}

// NewClassifier creates a classifier. advisor may be nil, in which case only keywords are used.
func NewClassifier(advisor Advisor) *Classifier {
	return &Classifier{advisor: advisor}
}

func (c *Classifier) Classify(ctx context.Context, text string, history []model.Turn) Classification {
	if phrase, ok := common.MatchAny(text, handoffPhrases); ok {
		return Classification{
			Decision:   model.DecisionEscalate,
			Confidence: confidenceEscalate,
			Reasoning:  fmt.Sprintf("explicit handoff request (%q)", phrase),
		}
	}

	if keyword, ok := common.MatchAny(text, purchaseKeywords); ok {
		return Classification{
			Decision:    model.DecisionProcessOrder,
			Confidence:  confidenceOrder,
			Reasoning:   fmt.Sprintf("purchase intent keyword (%q)", keyword),
			OrderIntent: true,
		}
	}

	if c.advisor == nil {
		return Classification{
			Decision:   model.DecisionRespond,
			Confidence: confidenceRespond,
			Reasoning:  "no handoff or purchase signal",
		}
	}

	advice, err := c.advisor.Advise(ctx, text, history)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrClassification, err)
		slog.WarnContext(ctx, "advisory classification failed, defaulting to respond", "error", err)
		return Classification{
			Decision:   model.DecisionRespond,
			Confidence: confidenceAdvisorFailed,
			Reasoning:  err.Error(),
		}
	}

	if strings.Contains(strings.ToLower(advice.Label), "order") {
		return Classification{
			Decision:    model.DecisionProcessOrder,
			Confidence:  confidenceOrder,
			Reasoning:   "advisory order signal: " + advice.Reasoning,
			OrderIntent: true,
		}
	}

	return Classification{
		Decision:   model.DecisionRespond,
		Confidence: confidenceRespond,
		Reasoning:  "advisory: " + advice.Reasoning,
	}
}
