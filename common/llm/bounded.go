package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type boundedGenerator struct {
	next    Generator
	limiter *rate.Limiter
	timeout time.Duration
}

// NewBoundedGenerator wraps next with an optional rate limiter and per-call timeout.
// A nil limiter or zero timeout disables the respective bound.
func NewBoundedGenerator(next Generator, limiter *rate.Limiter, timeout time.Duration) Generator {
	return &boundedGenerator{next: next, limiter: limiter, timeout: timeout}
}

func (g *boundedGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for llm rate limit: %w", err)
		}
	}

	return g.next.Generate(ctx, req)
}
