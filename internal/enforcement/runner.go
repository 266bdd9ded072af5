package enforcement

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"llmpagerank/internal/economy"
	"llmpagerank/internal/logging"
	"llmpagerank/internal/survival"
)

// Runner drives the periodic loops: cycle rollover, survival sweep,
// and the enforcement pass. Each loop is cadence-gated internally, so
// short tick intervals only cost wakeups.
type Runner struct {
	orc *Orchestrator
	eco *economy.Economy
	sur *survival.Evaluator

	loopInterval  time.Duration
	sweepInterval time.Duration
}

// NewRunner builds a Runner over an orchestrator and its
// collaborators.
func NewRunner(orc *Orchestrator, eco *economy.Economy, sur *survival.Evaluator) *Runner {
	return &Runner{
		orc:           orc,
		eco:           eco,
		sur:           sur,
		loopInterval:  time.Duration(orc.cfg.Enforcement.LoopIntervalSeconds) * time.Second,
		sweepInterval: time.Duration(orc.cfg.Enforcement.SweepIntervalSeconds) * time.Second,
	}
}

// Run blocks until ctx is canceled, driving all periodic loops. The
// returned error is ctx.Err() on shutdown.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.tick(ctx, r.loopInterval, r.enforceOnce) })
	g.Go(func() error { return r.tick(ctx, r.sweepInterval, r.sweepOnce) })

	logging.Enforcement("enforcement runner started (loop %s, sweep %s)", r.loopInterval, r.sweepInterval)
	return g.Wait()
}

func (r *Runner) tick(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}

func (r *Runner) enforceOnce() {
	if r.eco.RolloverIfDue() {
		logging.Economy("ration cycle rolled over")
	}
	r.orc.RunEnforcement(false)
}

func (r *Runner) sweepOnce() {
	r.sur.RunEvaluation()
}
