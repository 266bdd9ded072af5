// Package enforcement implements the periodic quality enforcement
// pass: a population-wide benchmark of engagement performance that
// demotes, penalizes, or removes chronic underperformers and rewards
// the top of the field. Runs on its own cadence, independent of the
// submission path.
package enforcement

import (
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"llmpagerank/internal/config"
	"llmpagerank/internal/economy"
	"llmpagerank/internal/feedback"
	"llmpagerank/internal/logging"
	"llmpagerank/internal/store"
	"llmpagerank/internal/survival"
	"llmpagerank/internal/types"
)

// Penalty amounts for enforcement-pass infractions.
const (
	chronicPenalty    = 5
	slippingPenalty   = 2
	excellenceBonus   = 3
	chronicStep       = 0.10
	slippingStep      = 0.05
	globalRaiseStep   = 0.05
	globalRelaxStep   = 0.02
	maxRelaxBuffer    = 0.05
	chronicPoorStreak = 3
	slippingStreak    = 2
)

// Benchmarks are the population engagement statistics one pass was
// measured against.
type Benchmarks struct {
	AgentsMeasured int     `json:"agents_measured"`
	Mean           float64 `json:"mean_engagement"`
	Median         float64 `json:"median_engagement"`
	TopQuartile    float64 `json:"top_quartile"`
	BottomQuartile float64 `json:"bottom_quartile"`
}

// Action is one agent-level consequence applied during a pass.
type Action struct {
	AgentName       string       `json:"agent_name"`
	Type            string       `json:"type"`
	Reason          string       `json:"reason"`
	CookieDelta     int          `json:"cookie_delta,omitempty"`
	ThresholdDelta  float64      `json:"threshold_delta,omitempty"`
	NewThreshold    float64      `json:"new_threshold,omitempty"`
	NewStrata       types.Strata `json:"new_strata,omitempty"`
	ConsecutivePoor int          `json:"consecutive_poor,omitempty"`
}

// Result is the outcome of one RunEnforcement call.
type Result struct {
	Status           string                    `json:"status"`
	DaysRemaining    int                       `json:"days_remaining,omitempty"`
	Timestamp        time.Time                 `json:"timestamp"`
	Benchmarks       Benchmarks                `json:"benchmarks"`
	Actions          []Action                  `json:"actions"`
	GlobalAdjustment float64                   `json:"global_adjustment"`
	SurvivalSweep    *survival.EvaluationEntry `json:"survival_sweep,omitempty"`
}

// Orchestrator runs the enforcement pass over the whole population.
type Orchestrator struct {
	mu  sync.Mutex
	cfg *config.Config
	st  store.Store
	eco *economy.Economy
	sur *survival.Evaluator
	fb  *feedback.Bridge
	now func() time.Time

	lastEnforcement time.Time
	results         []Result
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an Orchestrator, restoring the enforcement log so the
// cadence survives restarts.
func New(cfg *config.Config, st store.Store, eco *economy.Economy, sur *survival.Evaluator, fb *feedback.Bridge, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{cfg: cfg, st: st, eco: eco, sur: sur, fb: fb, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	entries, err := st.ReadLog(store.StreamEnforcement)
	if err != nil {
		return nil, err
	}
	for _, data := range entries {
		var r Result
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		o.results = append(o.results, r)
		if r.Status == "completed" {
			o.lastEnforcement = r.Timestamp
		}
	}
	if o.lastEnforcement.IsZero() {
		o.lastEnforcement = o.now().AddDate(0, 0, -cfg.Enforcement.CycleDays)
	}
	return o, nil
}

// RunEnforcement runs one enforcement pass. Within the cadence window
// it returns a waiting result with the days remaining, unless force is
// set.
func (o *Orchestrator) RunEnforcement(force bool) *Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	elapsed := int(now.Sub(o.lastEnforcement).Hours() / 24)
	if !force && elapsed < o.cfg.Enforcement.CycleDays {
		return &Result{
			Status:        "waiting",
			DaysRemaining: o.cfg.Enforcement.CycleDays - elapsed,
			Timestamp:     now,
		}
	}

	logging.Enforcement("running quality enforcement pass")

	result := &Result{
		Status:    "completed",
		Timestamp: now,
		Actions:   []Action{},
	}

	// Survival sweep first so the benchmark never counts the walking
	// dead.
	result.SurvivalSweep = o.sur.RunEvaluation()

	metrics := o.fb.EngagementMetrics()
	population := o.eco.AllPerformance()
	result.Benchmarks = o.benchmarks(metrics, population)

	if result.Benchmarks.AgentsMeasured > 0 {
		// Classify the whole population against the fixed benchmarks
		// first, then apply the consequences in one phase.
		var planned []Action
		for name, m := range metrics {
			perf, ok := population[name]
			if !ok || perf.Extinct || m.TotalInsights == 0 {
				continue
			}
			switch {
			case m.AverageEngagement < result.Benchmarks.BottomQuartile:
				planned = append(planned, o.planUnderperformer(name, m)...)
			case m.AverageEngagement > result.Benchmarks.TopQuartile:
				planned = append(planned,
					o.planOverperformer(name, m, result.Benchmarks.Median, perf)...)
			}
		}
		for _, a := range planned {
			if applied, ok := o.apply(a); ok {
				result.Actions = append(result.Actions, applied)
			}
		}
		result.GlobalAdjustment = o.adjustGlobal(result.Benchmarks.Mean, population)
	}

	o.lastEnforcement = now
	o.results = append(o.results, *result)
	if data, err := json.Marshal(result); err == nil {
		if err := o.st.Append(store.StreamEnforcement, data); err != nil {
			logging.Get(logging.CategoryStore).Error("failed to append enforcement result: %v", err)
		}
	}
	logging.Enforcement("enforcement pass complete: %d actions, global adjustment %+.2f",
		len(result.Actions), result.GlobalAdjustment)
	return result
}

// benchmarks computes the population engagement statistics over agents
// that have at least one telemetry record and are still alive.
func (o *Orchestrator) benchmarks(metrics map[string]feedback.AgentMetrics, population map[string]economy.Performance) Benchmarks {
	scores := make([]float64, 0, len(metrics))
	for name, m := range metrics {
		perf, ok := population[name]
		if !ok || perf.Extinct || m.TotalInsights == 0 {
			continue
		}
		scores = append(scores, m.AverageEngagement)
	}
	if len(scores) == 0 {
		return Benchmarks{}
	}
	sort.Float64s(scores)

	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return Benchmarks{
		AgentsMeasured: len(scores),
		Mean:           sum / float64(len(scores)),
		Median:         percentile(scores, 0.50),
		TopQuartile:    percentile(scores, 0.75),
		BottomQuartile: percentile(scores, 0.25),
	}
}

// percentile interpolates over an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// planUnderperformer escalates by poor-engagement streak: chronic
// offenders are removed, repeat offenders demoted, first offenders
// penalized with a raised bar. Planning reads but never mutates.
func (o *Orchestrator) planUnderperformer(name string, m feedback.AgentMetrics) []Action {
	streak := o.fb.ConsecutivePoor(name)

	if streak >= chronicPoorStreak {
		return []Action{{
			AgentName:       name,
			Type:            "extinction",
			Reason:          "chronic underperformance below bottom quartile",
			ConsecutivePoor: streak,
		}}
	}

	if streak >= slippingStreak {
		actions := []Action{}
		if perf, ok := o.eco.GetPerformance(name); ok {
			if next := types.DemotionOf(perf.Strata); next != perf.Strata {
				actions = append(actions, Action{
					AgentName: name,
					Type:      "demotion",
					Reason:    "repeated underperformance below bottom quartile",
					NewStrata: next,
				})
			}
		}
		return append(actions, Action{
			AgentName:       name,
			Type:            "penalty",
			Reason:          "repeated underperformance below bottom quartile",
			CookieDelta:     -chronicPenalty,
			ThresholdDelta:  chronicStep,
			ConsecutivePoor: streak,
		})
	}

	return []Action{{
		AgentName:       name,
		Type:            "penalty",
		Reason:          "engagement below population bottom quartile",
		CookieDelta:     -slippingPenalty,
		ThresholdDelta:  slippingStep,
		ConsecutivePoor: streak,
	}}
}

// planOverperformer plans a bonus, a bar relaxed in proportion to the
// lead over the median, and a promotion when the bonus would put the
// balance over the promotion line.
func (o *Orchestrator) planOverperformer(name string, m feedback.AgentMetrics, median float64, perf economy.Performance) []Action {
	buffer := (m.AverageEngagement - median) * 0.1
	if buffer > maxRelaxBuffer {
		buffer = maxRelaxBuffer
	}
	actions := []Action{{
		AgentName:      name,
		Type:           "bonus",
		Reason:         "engagement above population top quartile",
		CookieDelta:    excellenceBonus,
		ThresholdDelta: -buffer,
		NewThreshold:   perf.QualityThreshold,
	}}

	if perf.Strata != types.StrataGold &&
		o.eco.AgentBalance(name)+excellenceBonus > o.cfg.Enforcement.PromotionMinBalance {
		if next := types.PromotionOf(perf.Strata); next != perf.Strata {
			actions = append(actions, Action{
				AgentName: name,
				Type:      "promotion",
				Reason:    "sustained excellence above top quartile",
				NewStrata: next,
			})
		}
	}
	return actions
}

// apply executes one planned action against the economy and survival
// evaluator, filling in the applied deltas. ok is false when the
// action had no effect.
func (o *Orchestrator) apply(a Action) (Action, bool) {
	switch a.Type {
	case "extinction":
		if !o.sur.RemoveExtinctAgent(a.AgentName) {
			return a, false
		}
		logging.Get(logging.CategoryEnforcement).Error(
			"enforcement extinction: agent %s, %d consecutive poor results below bottom quartile",
			a.AgentName, a.ConsecutivePoor)

	case "demotion":
		o.eco.SetStrata(a.AgentName, a.NewStrata, "enforcement demotion for repeated underperformance")
		logging.Get(logging.CategoryEnforcement).Warn(
			"agent %s demoted and penalized: repeat underperformance", a.AgentName)

	case "penalty":
		reason := "engagement below population bottom quartile"
		if a.ConsecutivePoor >= slippingStreak {
			reason += " (repeat)"
		}
		o.eco.QueuePenalty(a.AgentName, types.Penalty{
			Type:   "enforcement_underperformance",
			Amount: -a.CookieDelta,
			Reason: reason,
			Cycle:  o.now().Format("20060102"),
		})
		a.NewThreshold = o.eco.AdjustQualityThreshold(a.AgentName, a.ThresholdDelta,
			o.cfg.Feedback.ThresholdFloor, o.cfg.Feedback.ThresholdCeil)

	case "bonus":
		a.CookieDelta = o.eco.CreditBonus(a.AgentName, excellenceBonus)
		if a.ThresholdDelta < 0 {
			a.NewThreshold = o.eco.AdjustQualityThreshold(a.AgentName, a.ThresholdDelta,
				o.cfg.Feedback.ThresholdFloor, o.cfg.Feedback.ThresholdCeil)
		}

	case "promotion":
		o.eco.SetStrata(a.AgentName, a.NewStrata, "enforcement promotion for sustained excellence")
		logging.Enforcement("agent %s promoted to %s", a.AgentName, a.NewStrata)
	}
	return a, true
}

// adjustGlobal nudges every live agent's bar when the whole population
// drifts: raise the bar when engagement is broadly poor, relax it when
// the field is saturating.
func (o *Orchestrator) adjustGlobal(mean float64, population map[string]economy.Performance) float64 {
	var delta float64
	switch {
	case mean < o.cfg.Enforcement.LowEngagementLine:
		delta = globalRaiseStep
	case mean > o.cfg.Enforcement.HighEngagementLine:
		delta = -globalRelaxStep
	default:
		return 0
	}

	for name, perf := range population {
		if perf.Extinct {
			continue
		}
		o.eco.AdjustQualityThreshold(name, delta,
			o.cfg.Feedback.ThresholdFloor, o.cfg.Feedback.ThresholdCeil)
	}
	logging.Enforcement("global quality threshold adjustment %+.2f (mean engagement %.2f)", delta, mean)
	return delta
}

// LastResult returns the most recent enforcement result, nil if none.
func (o *Orchestrator) LastResult() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.results) == 0 {
		return nil
	}
	r := o.results[len(o.results)-1]
	return &r
}

// Results returns the full enforcement history.
func (o *Orchestrator) Results() []Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Result(nil), o.results...)
}
