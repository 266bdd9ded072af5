package economy

import (
	"encoding/json"
	"time"

	"llmpagerank/internal/logging"
	"llmpagerank/internal/store"
	"llmpagerank/internal/types"
)

// CreditBonus pays cookies to an agent out of the shared pool, clamped
// to pool_remaining so the pool invariant survives. It returns the
// amount actually credited.
func (e *Economy) CreditBonus(agentName string, amount int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registerLocked(agentName)
	if amount > e.pool {
		amount = e.pool
	}
	if amount <= 0 {
		return 0
	}
	e.pool -= amount
	e.balances[agentName] += amount
	e.saveLedgerLocked()
	logging.Economy("agent %s credited %d bonus cookies (pool %d left)", agentName, amount, e.pool)
	return amount
}

// QueuePenalty adds a deferred deduction drained on the agent's next
// submission. Unknown agents are ignored.
func (e *Economy) QueuePenalty(agentName string, p types.Penalty) {
	e.mu.Lock()
	defer e.mu.Unlock()

	perf, ok := e.perf[agentName]
	if !ok {
		return
	}
	perf.Penalties = append(perf.Penalties, p)
	e.savePerformanceLocked(agentName)
}

// ClearPenalties drops all pending penalties for an agent.
func (e *Economy) ClearPenalties(agentName string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	perf, ok := e.perf[agentName]
	if !ok {
		return
	}
	perf.Penalties = nil
	e.savePerformanceLocked(agentName)
}

// AdjustQualityThreshold moves an agent's acceptance bar by delta,
// clamped to [floor, ceil], and returns the new threshold.
func (e *Economy) AdjustQualityThreshold(agentName string, delta, floor, ceil float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	perf, ok := e.perf[agentName]
	if !ok {
		return 0
	}
	next := perf.QualityThreshold + delta
	if next < floor {
		next = floor
	}
	if next > ceil {
		next = ceil
	}
	if next != perf.QualityThreshold {
		logging.Get(logging.CategoryFeedback).Info(
			"agent %s quality threshold %.2f -> %.2f", agentName, perf.QualityThreshold, next)
		perf.QualityThreshold = next
		e.savePerformanceLocked(agentName)
	}
	return perf.QualityThreshold
}

// SetExtinctionRisk flags an agent for the next survival sweep.
func (e *Economy) SetExtinctionRisk(agentName string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	perf, ok := e.perf[agentName]
	if !ok {
		return
	}
	if !perf.ExtinctionRisk {
		perf.ExtinctionRisk = true
		e.savePerformanceLocked(agentName)
	}
}

// SetStrata forces an agent onto a strata with a logged transition.
// Used by the orchestrator's promotion and demotion actions.
func (e *Economy) SetStrata(agentName string, strata types.Strata, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	perf, ok := e.perf[agentName]
	if !ok {
		return
	}
	e.setStrataLocked(perf, strata, reason)
	e.savePerformanceLocked(agentName)
}

// ExtinctionSnapshot is the audit record written when an agent is
// removed from economic participation.
type ExtinctionSnapshot struct {
	AgentName           string      `json:"agent_name"`
	ExtinctionDate      time.Time   `json:"extinction_date"`
	CookiesAtExtinction int         `json:"cookies_at_extinction"`
	Performance         Performance `json:"performance"`
}

// MarkExtinct irreversibly removes an agent from economic
// participation: the performance record is flagged (never deleted) and
// the cycle balance returns to the pool so the invariant holds. The
// returned snapshot is the audit record; ok is false for unknown or
// already-extinct agents.
func (e *Economy) MarkExtinct(agentName string) (ExtinctionSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	perf, ok := e.perf[agentName]
	if !ok || perf.Extinct {
		return ExtinctionSnapshot{}, false
	}

	when := e.now()
	snap := ExtinctionSnapshot{
		AgentName:           agentName,
		ExtinctionDate:      when,
		CookiesAtExtinction: e.balances[agentName],
		Performance:         *perf,
	}

	perf.Extinct = true
	perf.ExtinctionDate = &when

	// Unearned-by-death cookies flow back to the pool rather than
	// vanishing, keeping sum(balances) + pool == PoolSize.
	returned := e.balances[agentName]
	e.pool += returned
	if e.pool > e.cfg.PoolSize {
		e.pool = e.cfg.PoolSize
	}
	e.balances[agentName] = 0

	e.savePerformanceLocked(agentName)
	e.saveLedgerLocked()
	if data, err := json.Marshal(snap); err == nil {
		if err := e.st.Append(store.StreamExtinctions, data); err != nil {
			logging.Get(logging.CategoryStore).Error("failed to append extinction snapshot: %v", err)
		}
	}
	logging.Get(logging.CategoryEconomy).Error("agent %s marked EXTINCT (%d cookies returned to pool)", agentName, returned)
	return snap, true
}

// Reconcile restores the pool invariant after a detected violation and
// unfreezes payouts. The balances are treated as authoritative.
func (e *Economy) Reconcile() {
	e.mu.Lock()
	defer e.mu.Unlock()

	sum := 0
	for _, b := range e.balances {
		sum += b
	}
	e.pool = e.cfg.PoolSize - sum
	if e.pool < 0 {
		e.pool = 0
	}
	e.frozen = false
	e.saveLedgerLocked()
	logging.Economy("ledger reconciled: pool reset to %d", e.pool)
}
