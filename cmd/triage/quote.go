package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"autoreply.app/relay/common"
	"autoreply.app/relay/core/config"
	"autoreply.app/relay/internal/brain"
	"autoreply.app/relay/internal/model"
)

// QuoteCommand returns the quote command
func QuoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "quote",
		Usage: "Price a reply the way the ledger would be charged",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "Merchant's configured model (empty uses the default base cost)",
			},
			&cli.StringFlag{
				Name:    "decision",
				Aliases: []string{"d"},
				Value:   string(model.DecisionRespond),
				Usage:   "respond, process_order or escalate",
			},
			&cli.Int64Flag{
				Name:  "min",
				Usage: "Minimum charge, 0 disables (default BILLING_MIN_CHARGE)",
			},
			&cli.Int64Flag{
				Name:  "max",
				Usage: "Maximum charge, 0 disables (default BILLING_MAX_CHARGE)",
			},
		},
		ArgsUsage: "REPLY",
		Action:    runQuote,
	}
}

func runQuote(c *cli.Context) error {
	decision := model.Decision(c.String("decision"))
	if !decision.Valid() {
		return fmt.Errorf("unknown decision %q", decision)
	}

	reply := strings.Join(c.Args().Slice(), " ")
	if reply == "" && decision != model.DecisionEscalate {
		return fmt.Errorf("missing required argument: REPLY")
	}

	cfg, err := config.Load(config.ServiceTypeTriage)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	billing := brain.BillingConfig{
		DefaultBaseCost: cfg.Billing.DefaultBaseCost,
		FallbackCharge:  cfg.Billing.FallbackCharge,
		MinCharge:       cfg.Billing.MinCharge,
		MaxCharge:       cfg.Billing.MaxCharge,
	}
	if c.IsSet("min") {
		billing.MinCharge = c.Int64("min")
	}
	if c.IsSet("max") {
		billing.MaxCharge = c.Int64("max")
	}
	calc := brain.NewBillingCalculator(billing)

	var aiConfig *model.AIConfig
	if m := c.String("model"); m != "" {
		aiConfig = &model.AIConfig{Model: m}
	}

	amount, reason := calc.Calculate(c.Context, decision, reply, aiConfig)

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"amount": amount,
		"reason": reason,
		"words":  common.WordCount(reply),
	})
}
