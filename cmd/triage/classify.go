package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"autoreply.app/relay/common/llm"
	"autoreply.app/relay/core/config"
	"autoreply.app/relay/internal/brain"
	"autoreply.app/relay/internal/model"
)

// ClassifyCommand returns the classify command
func ClassifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Show which path a customer message would take",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "advisor",
				Aliases: []string{"a"},
				Usage:   "Consult the LLM advisor when no keyword matches (needs LLM_API_KEY)",
			},
			&cli.StringSliceFlag{
				Name:    "history",
				Aliases: []string{"H"},
				Usage:   "Earlier incoming turns, oldest first",
			},
		},
		ArgsUsage: "TEXT",
		Action:    runClassify,
	}
}

func runClassify(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: TEXT")
	}
	text := strings.Join(c.Args().Slice(), " ")

	var advisor brain.Advisor
	if c.Bool("advisor") {
		cfg, err := config.Load(config.ServiceTypeTriage)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		client, err := llm.New(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create llm client: %w", err)
		}
		advisor = brain.NewLLMAdvisor(client)
	}

	var history []model.Turn
	for _, h := range c.StringSlice("history") {
		history = append(history, model.Turn{Text: h, Direction: model.DirectionIncoming})
	}

	result := brain.NewClassifier(advisor).Classify(c.Context, text, history)

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"decision":     result.Decision,
		"confidence":   result.Confidence,
		"reasoning":    result.Reasoning,
		"order_intent": result.OrderIntent,
	})
}
