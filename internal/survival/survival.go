// Package survival implements the population-wide survival sweep:
// a cadence-gated pass over every agent performance record that
// decides extinction, last-chance intervention, probation, and at-risk
// status independent of individual submissions.
package survival

import (
	"encoding/json"
	"sync"
	"time"

	"llmpagerank/internal/config"
	"llmpagerank/internal/economy"
	"llmpagerank/internal/logging"
	"llmpagerank/internal/store"
	"llmpagerank/internal/types"
)

// ExtinctionEvent records one irreversible removal.
type ExtinctionEvent struct {
	AgentName           string    `json:"agent_name"`
	Reason              string    `json:"reason"`
	ConsecutiveFailures int       `json:"consecutive_failures,omitempty"`
	StarvationEvents    int       `json:"starvation_events,omitempty"`
	QualityTrend        []float64 `json:"quality_trend,omitempty"`
	ExtinctionDate      time.Time `json:"extinction_date"`
}

// InterventionEvent records a last-chance flag for an at-risk agent
// that is not improving.
type InterventionEvent struct {
	AgentName        string       `json:"agent_name"`
	Reason           string       `json:"reason"`
	CurrentStrata    types.Strata `json:"current_strata"`
	QualityTrend     []float64    `json:"quality_trend,omitempty"`
	InterventionDate time.Time    `json:"intervention_date"`
}

// ProbationEvent records a time-boxed probation window for an at-risk
// agent that is improving.
type ProbationEvent struct {
	AgentName          string    `json:"agent_name"`
	Reason             string    `json:"reason"`
	QualityImprovement float64   `json:"quality_improvement"`
	ProbationStart     time.Time `json:"probation_start_date"`
	ProbationEnd       time.Time `json:"probation_end_date"`
}

// AtRiskEntry is informational only.
type AtRiskEntry struct {
	AgentName           string       `json:"agent_name"`
	Reason              string       `json:"reason"`
	CurrentStrata       types.Strata `json:"current_strata"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	StarvationEvents    int          `json:"starvation_events"`
}

// EvaluationEntry is the immutable audit record of one sweep.
type EvaluationEntry struct {
	EvaluationDate  time.Time           `json:"evaluation_date"`
	AgentsEvaluated int                 `json:"agents_evaluated"`
	AtRisk          []AtRiskEntry       `json:"at_risk_agents"`
	Extinct         []ExtinctionEvent   `json:"extinct_agents"`
	Interventions   []InterventionEvent `json:"intervention_agents"`
	Probations      []ProbationEvent    `json:"probation_agents"`
	Thresholds      Thresholds          `json:"survival_metrics"`
}

// Thresholds are the policy values a sweep was evaluated under,
// recorded for audit.
type Thresholds struct {
	ExtinctionThreshold           int     `json:"extinction_threshold"`
	QualityImprovementRequirement float64 `json:"quality_improvement_requirement"`
}

// Evaluator runs the survival sweep over the economy's population.
type Evaluator struct {
	mu  sync.Mutex
	cfg config.SurvivalConfig
	st  store.Store
	eco *economy.Economy
	now func() time.Time

	lastEvaluation time.Time
	evaluations    []EvaluationEntry
	extinctions    []ExtinctionEvent
	interventions  []InterventionEvent
	onExtinct      func(agentName string)
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(ev *Evaluator) { ev.now = now }
}

// New builds an Evaluator, restoring prior evaluation entries from the
// store so probation windows survive restarts. The first sweep is
// allowed immediately after a cold start.
func New(cfg config.SurvivalConfig, st store.Store, eco *economy.Economy, opts ...Option) (*Evaluator, error) {
	ev := &Evaluator{cfg: cfg, st: st, eco: eco, now: time.Now}
	for _, opt := range opts {
		opt(ev)
	}

	entries, err := st.ReadLog(store.StreamEvaluations)
	if err != nil {
		return nil, err
	}
	for _, data := range entries {
		var entry EvaluationEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, err
		}
		ev.evaluations = append(ev.evaluations, entry)
		ev.extinctions = append(ev.extinctions, entry.Extinct...)
		ev.interventions = append(ev.interventions, entry.Interventions...)
		ev.lastEvaluation = entry.EvaluationDate
	}
	if ev.lastEvaluation.IsZero() {
		ev.lastEvaluation = ev.now().AddDate(0, 0, -cfg.EvaluationCycleDays)
	}
	return ev, nil
}

// RunEvaluation sweeps the whole population. It returns nil when the
// evaluation cadence has not yet elapsed.
func (ev *Evaluator) RunEvaluation() *EvaluationEntry {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	now := ev.now()
	elapsed := now.Sub(ev.lastEvaluation)
	if int(elapsed.Hours()/24) < ev.cfg.EvaluationCycleDays {
		logging.Get(logging.CategorySurvival).Info("survival evaluation still within cadence window")
		return nil
	}

	logging.Get(logging.CategorySurvival).Warn("running survival evaluation: evolve or die")

	population := ev.eco.AllPerformance()
	entry := EvaluationEntry{
		EvaluationDate:  now,
		AgentsEvaluated: len(population),
		AtRisk:          []AtRiskEntry{},
		Extinct:         []ExtinctionEvent{},
		Interventions:   []InterventionEvent{},
		Probations:      []ProbationEvent{},
		Thresholds: Thresholds{
			ExtinctionThreshold:           ev.cfg.ExtinctionThreshold,
			QualityImprovementRequirement: ev.cfg.QualityImprovementRequirement,
		},
	}

	for agentName, perf := range population {
		if perf.Extinct {
			continue
		}

		recent := perf.EvolutionTrend
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		avgDelta := 0.0
		if len(recent) > 0 {
			sum := 0.0
			for _, d := range recent {
				sum += d
			}
			avgDelta = sum / float64(len(recent))
		}

		switch {
		case perf.Strata == types.StrataRust && perf.ConsecutiveFailures >= ev.cfg.ExtinctionThreshold:
			entry.Extinct = append(entry.Extinct, ExtinctionEvent{
				AgentName:           agentName,
				Reason:              "consecutive_failures_in_rust_strata",
				ConsecutiveFailures: perf.ConsecutiveFailures,
				QualityTrend:        recent,
				ExtinctionDate:      now,
			})
			logging.Get(logging.CategorySurvival).Error(
				"EXTINCTION: agent %s, %d consecutive failures in rust strata", agentName, perf.ConsecutiveFailures)

		case perf.Strata == types.StrataRust && perf.StarvationEvents >= ev.cfg.ExtinctionThreshold:
			entry.Extinct = append(entry.Extinct, ExtinctionEvent{
				AgentName:        agentName,
				Reason:           "starvation_in_rust_strata",
				StarvationEvents: perf.StarvationEvents,
				QualityTrend:     recent,
				ExtinctionDate:   now,
			})
			logging.Get(logging.CategorySurvival).Error(
				"EXTINCTION: agent %s, %d starvation events in rust strata", agentName, perf.StarvationEvents)

		case perf.ExtinctionRisk && avgDelta < ev.cfg.QualityImprovementRequirement:
			entry.Interventions = append(entry.Interventions, InterventionEvent{
				AgentName:        agentName,
				Reason:           "extinction_risk_with_inadequate_evolution",
				CurrentStrata:    perf.Strata,
				QualityTrend:     recent,
				InterventionDate: now,
			})
			logging.Get(logging.CategorySurvival).Warn(
				"INTERVENTION: agent %s receives last-chance intervention", agentName)

		case perf.ExtinctionRisk:
			entry.Probations = append(entry.Probations, ProbationEvent{
				AgentName:          agentName,
				Reason:             "showing_improvement_despite_risk",
				QualityImprovement: avgDelta,
				ProbationStart:     now,
				ProbationEnd:       now.AddDate(0, 0, ev.cfg.EvaluationCycleDays*2),
			})
			logging.Get(logging.CategorySurvival).Info("PROBATION: agent %s placed on probation", agentName)

		case perf.Strata == types.StrataRust || perf.ConsecutiveFailures > 0 || perf.StarvationEvents > 1:
			reason := "at_risk_due_to_failures"
			if perf.Strata == types.StrataRust {
				reason = "at_risk_due_to_rust_strata"
			}
			entry.AtRisk = append(entry.AtRisk, AtRiskEntry{
				AgentName:           agentName,
				Reason:              reason,
				CurrentStrata:       perf.Strata,
				ConsecutiveFailures: perf.ConsecutiveFailures,
				StarvationEvents:    perf.StarvationEvents,
			})
			logging.Get(logging.CategorySurvival).Warn("AT RISK: agent %s", agentName)
		}
	}

	for _, ext := range entry.Extinct {
		ev.removeExtinctLocked(ext.AgentName)
		ev.extinctions = append(ev.extinctions, ext)
	}
	ev.interventions = append(ev.interventions, entry.Interventions...)

	ev.evaluations = append(ev.evaluations, entry)
	ev.lastEvaluation = now
	if data, err := json.Marshal(entry); err == nil {
		if err := ev.st.Append(store.StreamEvaluations, data); err != nil {
			logging.Get(logging.CategoryStore).Error("failed to append evaluation entry: %v", err)
		}
	}
	return &entry
}

// RemoveExtinctAgent irreversibly removes an agent from economic
// participation, keeping an audit snapshot. Also called by the
// directive contract's termination path and the orchestrator.
func (ev *Evaluator) RemoveExtinctAgent(agentName string) bool {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.removeExtinctLocked(agentName)
}

func (ev *Evaluator) removeExtinctLocked(agentName string) bool {
	_, ok := ev.eco.MarkExtinct(agentName)
	if ok && ev.onExtinct != nil {
		ev.onExtinct(agentName)
	}
	return ok
}

// OnExtinction registers a hook invoked after every successful
// extinction removal, whichever path triggered it. The engine uses it
// to move the agent's directive contract into the terminated state.
func (ev *Evaluator) OnExtinction(fn func(agentName string)) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.onExtinct = fn
}

// Extinctions returns all recorded extinction events.
func (ev *Evaluator) Extinctions() []ExtinctionEvent {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return append([]ExtinctionEvent(nil), ev.extinctions...)
}

// Interventions returns all recorded intervention events.
func (ev *Evaluator) Interventions() []InterventionEvent {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return append([]InterventionEvent(nil), ev.interventions...)
}

// Evaluations returns all sweep audit entries.
func (ev *Evaluator) Evaluations() []EvaluationEntry {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return append([]EvaluationEntry(nil), ev.evaluations...)
}
