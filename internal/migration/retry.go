package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lmoreira/gateway-migration-workbench/internal/models"
)

// Policy retries a migration attempt up to MaxRetries times, waiting Delay
// between attempts. A constant delay is the default; Exponential switches to
// exponential backoff starting at Delay.
type Policy struct {
	MaxRetries  int
	Delay       time.Duration
	Exponential bool
}

// DefaultPolicy matches the orchestrator defaults: three attempts, one
// second apart.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, Delay: time.Second}
}

func (p Policy) backoff() backoff.BackOff {
	if p.Exponential {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = p.Delay
		b.MaxElapsedTime = 0
		return b
	}
	return backoff.NewConstantBackOff(p.Delay)
}

// Execute runs attempt until it produces a terminal result (success, skip,
// or duplicate), a permanent failure, or the retry budget is exhausted. On
// exhaustion the last failure is returned with its message annotated and
// Attempts set to MaxRetries. A duplicate at the destination short-circuits
// on the first attempt: retrying a conflict is pointless.
func (p Policy) Execute(ctx context.Context, attempt func(context.Context) models.MigrationResult) models.MigrationResult {
	maxRetries := p.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	b := p.backoff()

	var res models.MigrationResult
	for n := 1; ; n++ {
		res = attempt(ctx)
		res.Attempts = n

		if res.Terminal() || res.Permanent {
			return res
		}
		if n >= maxRetries {
			res.Message += fmt.Sprintf(" (failed after %d retries)", maxRetries)
			return res
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			res.Message += fmt.Sprintf(" (failed after %d retries)", n)
			return res
		}
		select {
		case <-ctx.Done():
			res.Message += " (run cancelled)"
			return res
		case <-time.After(wait):
		}
	}
}
