package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"autoreply.app/relay/common"
	"autoreply.app/relay/internal/model"
)

const wordsIncluded = 100

// Base cost per reply, keyed by model name. Dated model variants match by longest prefix.
var defaultModelCosts = map[string]int64{
	"gpt-4o-mini":       40,
	"gpt-4o":            80,
	"gpt-4.1-mini":      40,
	"gpt-4.1":           100,
	"gpt-4":             120,
	"gpt-3.5-turbo":     25,
	"claude-haiku-4-5":  40,
	"claude-sonnet-4-5": 100,
}

type BillingConfig struct {
	DefaultBaseCost int64
	FallbackCharge  int64
	// Zero disables the corresponding bound.
	MinCharge int64
	MaxCharge int64
	// Overrides the built-in price table when non-empty.
	ModelCosts map[string]int64
}

// BillingCalculator meters one reply. Escalations are free; generated replies cost the
// model's base price plus a proportional surcharge beyond the included words.
type BillingCalculator struct {
	cfg BillingConfig
}

func NewBillingCalculator(cfg BillingConfig) *BillingCalculator {
	if cfg.DefaultBaseCost <= 0 {
		cfg.DefaultBaseCost = 50
	}
	if cfg.FallbackCharge < 0 {
		cfg.FallbackCharge = 0
	}
	if len(cfg.ModelCosts) == 0 {
		cfg.ModelCosts = defaultModelCosts
	}
	return &BillingCalculator{cfg: cfg}
}

// Calculate never panics and never returns a negative amount.
func (b *BillingCalculator) Calculate(ctx context.Context, decision model.Decision, reply string, aiConfig *model.AIConfig) (amount int64, reason string) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "billing calculation panicked, using fallback charge", "panic", r)
			amount, reason = b.fallback(fmt.Errorf("%w: panic: %v", ErrBilling, r))
		}
	}()

	if decision == model.DecisionEscalate {
		return 0, "escalation, no generation cost"
	}
	if !decision.Valid() {
		return b.fallback(fmt.Errorf("%w: unknown decision %q", ErrBilling, decision))
	}
	if strings.TrimSpace(reply) == "" {
		return b.fallback(fmt.Errorf("%w: empty reply", ErrBilling))
	}

	modelName := ""
	if aiConfig != nil {
		modelName = aiConfig.Model
	}
	base, known := b.baseCost(modelName)

	words := common.WordCount(reply)
	amount = base
	if words > wordsIncluded {
		amount += int64(words-wordsIncluded) * base / wordsIncluded
	}
	amount = b.clamp(amount)

	label := modelName
	if !known {
		label = fmt.Sprintf("default (%q)", modelName)
	}
	return amount, fmt.Sprintf("model=%s words=%d base=%d", label, words, base)
}

func (b *BillingCalculator) baseCost(modelName string) (int64, bool) {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return b.cfg.DefaultBaseCost, false
	}
	if cost, ok := b.cfg.ModelCosts[name]; ok {
		return cost, true
	}

	best := ""
	for prefix := range b.cfg.ModelCosts {
		if strings.HasPrefix(name, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		return b.cfg.ModelCosts[best], true
	}
	return b.cfg.DefaultBaseCost, false
}

func (b *BillingCalculator) clamp(amount int64) int64 {
	if b.cfg.MinCharge > 0 && amount < b.cfg.MinCharge {
		amount = b.cfg.MinCharge
	}
	if b.cfg.MaxCharge > 0 && amount > b.cfg.MaxCharge {
		amount = b.cfg.MaxCharge
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

func (b *BillingCalculator) fallback(err error) (int64, string) {
	return b.cfg.FallbackCharge, "fallback charge: " + err.Error()
}
