package executor

import (
	"context"
	"time"

	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

// maxDelay bounds a single delay node. Longer waits belong in a scheduled
// trigger, not a parked goroutine.
const maxDelay = 24 * time.Hour

// executeDelay sleeps in-process. The wait is cancellable: shutting the
// engine down does not leak the goroutine, it ends the path.
func (ex *Executor) executeDelay(ctx context.Context, node *schema.Node, vars *variables.Store) StepResult {
	var cfg schema.DelayConfig
	if err := decodeConfig(node, &cfg); err != nil {
		ex.recordFailure(ctx, node, vars, err)
		return advance()
	}

	d := delayDuration(cfg)
	if d <= 0 {
		return advance()
	}
	if d > maxDelay {
		ex.logger.WarnContext(ctx, "delay clamped to maximum",
			"node_id", node.ID, "configured", d.String(), "max", maxDelay.String())
		vars.Set(node.ID+".clamped", true)
		d = maxDelay
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return advance()
	case <-ctx.Done():
		return end()
	}
}

func delayDuration(cfg schema.DelayConfig) time.Duration {
	unit := time.Second
	switch cfg.Unit {
	case "", "seconds":
	case "minutes":
		unit = time.Minute
	case "hours":
		unit = time.Hour
	case "days":
		unit = 24 * time.Hour
	default:
		return 0
	}
	return time.Duration(cfg.Amount * float64(unit))
}
