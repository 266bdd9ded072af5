// Package engine wires the ledger store, cookie economy, survival
// evaluator, feedback bridge, directive contract, and enforcement
// orchestrator into one engine with a coordinated submission path.
package engine

import (
	"context"
	"fmt"
	"time"

	"llmpagerank/internal/config"
	"llmpagerank/internal/contract"
	"llmpagerank/internal/economy"
	"llmpagerank/internal/enforcement"
	"llmpagerank/internal/feedback"
	"llmpagerank/internal/logging"
	"llmpagerank/internal/store"
	"llmpagerank/internal/survival"
	"llmpagerank/internal/types"
)

// Engine owns all components and their wiring order. The store is the
// only shared mutable substrate; each component serializes its own
// writes.
type Engine struct {
	Cfg       *config.Config
	Store     store.Store
	Economy   *economy.Economy
	Survival  *survival.Evaluator
	Feedback  *feedback.Bridge
	Directive *contract.Directive
	Enforcer  *enforcement.Orchestrator

	runner   *enforcement.Runner
	ownStore bool
}

// Option customizes engine construction.
type Option func(*options)

type options struct {
	st  store.Store
	now func() time.Time
}

// WithStore injects a prebuilt store instead of opening the configured
// SQLite database. The engine will not close an injected store.
func WithStore(st store.Store) Option {
	return func(o *options) { o.st = st }
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds a fully wired engine. Construction order matters: each
// component restores its state from the store before its dependents
// start reading through it.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	st := o.st
	ownStore := false
	if st == nil {
		s, err := store.NewSQLiteStore(cfg.Store.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger store: %w", err)
		}
		st = s
		ownStore = true
	}

	var ecoOpts []economy.Option
	var surOpts []survival.Option
	var fbOpts []feedback.Option
	var dirOpts []contract.Option
	var orcOpts []enforcement.Option
	if o.now != nil {
		ecoOpts = append(ecoOpts, economy.WithClock(o.now))
		surOpts = append(surOpts, survival.WithClock(o.now))
		fbOpts = append(fbOpts, feedback.WithClock(o.now))
		dirOpts = append(dirOpts, contract.WithClock(o.now))
		orcOpts = append(orcOpts, enforcement.WithClock(o.now))
	}

	eco, err := economy.New(cfg.Economy, st, ecoOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore economy: %w", err)
	}
	sur, err := survival.New(cfg.Survival, st, eco, surOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore survival evaluator: %w", err)
	}
	fb, err := feedback.New(cfg.Feedback, st, eco, fbOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore feedback bridge: %w", err)
	}
	dir, err := contract.New(cfg.Directive, st, eco, sur, dirOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore directive contracts: %w", err)
	}
	orc, err := enforcement.New(cfg, st, eco, sur, fb, orcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore enforcement orchestrator: %w", err)
	}

	// Sweep-driven and enforcement-driven extinctions terminate the
	// agent's contract, not just its economy record.
	sur.OnExtinction(dir.MarkTerminated)

	eng := &Engine{
		Cfg:       cfg,
		Store:     st,
		Economy:   eco,
		Survival:  sur,
		Feedback:  fb,
		Directive: dir,
		Enforcer:  orc,
		runner:    enforcement.NewRunner(orc, eco, sur),
		ownStore:  ownStore,
	}
	logging.Get(logging.CategoryBoot).Info("engine wired: %d agents tracked", len(eco.AllPerformance()))
	return eng, nil
}

// SubmissionResult is the combined outcome of one insight submission:
// the economic payout and the directive fate.
type SubmissionResult struct {
	InsightID     string                 `json:"insight_id,omitempty"`
	CookiesEarned int                    `json:"cookies_earned"`
	CombinedScore float64                `json:"combined_score"`
	Fate          *contract.FateDecision `json:"fate"`
}

// RegisterAgent registers an agent with both the directive contract
// and the cookie economy.
func (e *Engine) RegisterAgent(agentName, domain string, insightType types.InsightType) *contract.Contract {
	return e.Directive.RegisterAgentContract(agentName, domain, insightType)
}

// Submit runs the coordinated submission path: the economy scores and
// pays, then the directive decides the agent's fate for the cycle.
func (e *Engine) Submit(agentName string, insight types.InsightData, engagement *types.EngagementSnapshot) (*SubmissionResult, error) {
	earned, score, err := e.Economy.SubmitInsight(agentName, insight, engagement)
	if err != nil {
		return nil, err
	}
	fate, err := e.Directive.ValidatePerformance(agentName, insight, engagement)
	if err != nil {
		return nil, err
	}
	result := &SubmissionResult{
		CookiesEarned: earned,
		CombinedScore: score,
		Fate:          fate,
	}
	if rec, ok := e.Economy.LatestInsight(agentName); ok {
		result.InsightID = rec.ID
	}
	return result, nil
}

// RecordEngagement forwards post-hoc telemetry to the feedback bridge.
func (e *Engine) RecordEngagement(insightID string, engagement types.EngagementSnapshot) (*feedback.Entry, error) {
	return e.Feedback.RecordEngagement(insightID, engagement)
}

// Enforce runs one enforcement pass.
func (e *Engine) Enforce(force bool) *enforcement.Result {
	e.Economy.RolloverIfDue()
	return e.Enforcer.RunEnforcement(force)
}

// Run drives the periodic loops until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	return e.runner.Run(ctx)
}

// Close releases the store if the engine opened it.
func (e *Engine) Close() error {
	if e.ownStore {
		return e.Store.Close()
	}
	return nil
}
