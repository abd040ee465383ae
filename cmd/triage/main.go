package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "triage",
		Usage: "Dry-run the reply pipeline's classification and billing against sample text",
		Commands: []*cli.Command{
			ClassifyCommand(),
			QuoteCommand(),
		},
	}
}
