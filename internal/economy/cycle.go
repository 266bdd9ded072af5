package economy

import (
	"encoding/json"
	"time"

	"llmpagerank/internal/logging"
	"llmpagerank/internal/store"
	"llmpagerank/internal/types"
)

// CycleSummary is the immutable per-cycle accounting entry appended at
// every rollover.
type CycleSummary struct {
	CycleID            string                     `json:"cycle_id"`
	StartDate          time.Time                  `json:"start_date"`
	EndDate            time.Time                  `json:"end_date"`
	CookiesDistributed int                        `json:"cookies_distributed"`
	AgentPerformance   map[string]CycleAgentStats `json:"agent_performance"`
	StarvingAgents     []string                   `json:"starving_agents,omitempty"`
	NonEvolvingAgents  []string                   `json:"non_evolving_agents,omitempty"`
}

// CycleAgentStats captures one agent's results for a single cycle.
type CycleAgentStats struct {
	CookiesEarned       int     `json:"cookies_earned"`
	InsightsContributed int     `json:"insights_contributed"`
	AverageQuality      float64 `json:"average_quality"`
	QualityDelta        float64 `json:"quality_delta"`
	Evolved             bool    `json:"evolved"`
	Starved             bool    `json:"starved"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	ExtinctionRisk      bool    `json:"extinction_risk"`
}

// RolloverIfDue closes the current cycle and opens a new one when the
// cycle window has elapsed. It reports whether a rollover happened.
// Submissions trigger this lazily; the orchestrator calls it on its
// cadence so idle populations still roll.
func (e *Economy) RolloverIfDue() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rolloverIfDueLocked()
}

func (e *Economy) rolloverIfDueLocked() bool {
	now := e.now()
	if !now.After(e.cycleEnd) {
		return false
	}

	logging.Economy("starting new cookie cycle")
	e.endCycleLocked()

	e.cycleStart = now
	e.cycleEnd = now.AddDate(0, 0, e.cfg.CycleDays)
	e.pool = e.cfg.PoolSize
	e.saveLedgerLocked()
	return true
}

// endCycleLocked folds cycle balances into cumulative records, applies
// the evolution and starvation mechanics, recomputes strata, and
// verifies the pool invariant before the ledger resets.
func (e *Economy) endCycleLocked() {
	cycleID := e.cycleStart.Format("20060102")

	summary := CycleSummary{
		CycleID:            cycleID,
		StartDate:          e.cycleStart,
		EndDate:            e.cycleEnd,
		CookiesDistributed: e.cfg.PoolSize - e.pool,
		AgentPerformance:   make(map[string]CycleAgentStats),
	}

	var starving, nonEvolving []string
	starved := make(map[string]bool)

	for agentName, balance := range e.balances {
		perf := e.perf[agentName]
		if perf == nil || perf.Extinct {
			continue
		}

		insightsThisCycle := 0
		qualitySum := 0.0
		for _, rec := range e.insights {
			if rec.AgentName != agentName {
				continue
			}
			if rec.Timestamp.Before(e.cycleStart) || rec.Timestamp.After(e.cycleEnd) {
				continue
			}
			insightsThisCycle++
			qualitySum += rec.QualityScore
		}
		cycleQuality := 0.0
		if insightsThisCycle > 0 {
			cycleQuality = qualitySum / float64(insightsThisCycle)
		}

		// Evolution: quality must improve by the minimum delta each
		// cycle. The first tracked cycle always counts as evolved.
		delta := cycleQuality - perf.LastCycleQuality
		evolved := perf.LastCycleQuality <= 0 || delta >= e.cfg.EvolutionMinimum
		if !evolved {
			nonEvolving = append(nonEvolving, agentName)
			perf.ConsecutiveFailures++
			if perf.ConsecutiveFailures >= e.cfg.ConsecutiveFailureLimit {
				perf.ExtinctionRisk = true
				logging.Get(logging.CategoryEconomy).Error(
					"agent %s extinction risk: failed to evolve for %d consecutive cycles",
					agentName, perf.ConsecutiveFailures)
			}
		} else {
			perf.ConsecutiveFailures = 0
		}

		perf.EvolutionTrend = append(perf.EvolutionTrend, delta)
		if len(perf.EvolutionTrend) > 5 {
			perf.EvolutionTrend = perf.EvolutionTrend[len(perf.EvolutionTrend)-5:]
		}
		perf.LastCycleQuality = cycleQuality

		// Starvation: earning under the line costs a tracked event.
		isStarved := balance < e.cfg.StarvationLine
		if isStarved {
			perf.StarvationEvents++
			starving = append(starving, agentName)
			starved[agentName] = true
			if perf.StarvationEvents >= 3 {
				perf.ExtinctionRisk = true
				logging.Get(logging.CategoryEconomy).Error(
					"agent %s extinction risk: starved for %d cycles", agentName, perf.StarvationEvents)
			}
		}

		e.updateStrataLocked(perf, cycleQuality, balance, "performance_evaluation")

		// Fold into cumulative totals.
		perf.TotalCookies += balance
		perf.CyclesActive++
		previousInsights := perf.InsightsContributed
		perf.InsightsContributed += insightsThisCycle
		if perf.InsightsContributed > 0 {
			perf.AverageQuality = (perf.AverageQuality*float64(previousInsights) +
				cycleQuality*float64(insightsThisCycle)) / float64(perf.InsightsContributed)
		}

		summary.AgentPerformance[agentName] = CycleAgentStats{
			CookiesEarned:       balance,
			InsightsContributed: insightsThisCycle,
			AverageQuality:      cycleQuality,
			QualityDelta:        delta,
			Evolved:             evolved,
			Starved:             isStarved,
			ConsecutiveFailures: perf.ConsecutiveFailures,
			ExtinctionRisk:      perf.ExtinctionRisk,
		}
	}

	// Collective punishment: when any agent starves, every non-starved
	// agent is docked next cycle. Help each other or all suffer.
	if len(starving) > 0 {
		logging.Get(logging.CategoryEconomy).Warn(
			"applying collective punishment for %d starving agents", len(starving))
		for agentName := range e.balances {
			perf := e.perf[agentName]
			if perf == nil || perf.Extinct || starved[agentName] {
				continue
			}
			perf.Penalties = append(perf.Penalties, types.Penalty{
				Type:   "collective_starvation",
				Amount: e.cfg.StarvationPenalty,
				Reason: "failed to help starving agents",
				Cycle:  cycleID,
			})
		}
	}

	for _, agentName := range nonEvolving {
		e.perf[agentName].Penalties = append(e.perf[agentName].Penalties, types.Penalty{
			Type:   "quality_decline",
			Amount: e.cfg.QualityDeclinePenalty,
			Reason: "failed to evolve quality",
			Cycle:  cycleID,
		})
	}

	summary.StarvingAgents = starving
	summary.NonEvolvingAgents = nonEvolving
	if data, err := json.Marshal(summary); err == nil {
		if err := e.st.Append(store.StreamCycles, data); err != nil {
			logging.Get(logging.CategoryStore).Error("failed to append cycle summary: %v", err)
		}
	}

	// Invariant check before the reset: every cookie that left the
	// pool must sit in exactly one balance.
	total := e.pool
	for _, b := range e.balances {
		total += b
	}
	if total != e.cfg.PoolSize {
		e.frozen = true
		logging.Get(logging.CategoryEconomy).Error(
			"LEDGER INVARIANT VIOLATED: balances+pool=%d, want %d; payouts frozen", total, e.cfg.PoolSize)
	}

	// Reset balances, keeping every live agent tracked for the next
	// cycle's starvation sweep.
	fresh := make(map[string]int, len(e.balances))
	for agentName := range e.balances {
		if perf := e.perf[agentName]; perf != nil && !perf.Extinct {
			fresh[agentName] = 0
		}
	}
	e.balances = fresh

	for agentName := range e.perf {
		e.savePerformanceLocked(agentName)
	}
}

// updateStrataLocked applies the strata transition rule and logs any
// transition to the agent's strata history.
func (e *Economy) updateStrataLocked(perf *Performance, quality float64, cookies int, reason string) {
	current := perf.Strata
	next := current

	switch {
	case cookies > 30 && quality > 0.85:
		next = types.StrataGold
	case cookies > 20 && quality > 0.75:
		next = types.StrataSilver
	case cookies > 10 && quality > 0.6:
		next = types.StrataBronze
	case perf.ConsecutiveFailures >= e.cfg.ConsecutiveFailureLimit:
		next = types.StrataRust
	}

	if next != current {
		e.setStrataLocked(perf, next, reason)
	}
}

func (e *Economy) setStrataLocked(perf *Performance, next types.Strata, reason string) {
	if perf.Strata == next {
		return
	}
	logging.Economy("agent %s moved from %s to %s strata (%s)", perf.AgentName, perf.Strata, next, reason)
	perf.StrataHistory = append(perf.StrataHistory, types.StrataChange{
		From:      perf.Strata,
		To:        next,
		Timestamp: e.now(),
		Reason:    reason,
	})
	perf.Strata = next
}

func (e *Economy) forceRustLocked(perf *Performance, reason string) {
	if perf.Strata != types.StrataRust {
		e.setStrataLocked(perf, types.StrataRust, reason)
		logging.Get(logging.CategoryEconomy).Warn(
			"agent %s forcibly demoted to rust strata", perf.AgentName)
	}
}
