package economy

import (
	"sort"
	"time"

	"llmpagerank/internal/types"
)

// PoolStatus is a read-only projection of the cycle ledger.
type PoolStatus struct {
	PoolRemaining int       `json:"cookie_pool_remaining"`
	PoolTotal     int       `json:"cookie_pool_total"`
	CycleStart    time.Time `json:"cycle_start"`
	CycleEnd      time.Time `json:"cycle_end"`
	AgentsActive  int       `json:"agents_active"`
	Frozen        bool      `json:"frozen"`
}

// GetPoolStatus returns the current pool state.
func (e *Economy) GetPoolStatus() PoolStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return PoolStatus{
		PoolRemaining: e.pool,
		PoolTotal:     e.cfg.PoolSize,
		CycleStart:    e.cycleStart,
		CycleEnd:      e.cycleEnd,
		AgentsActive:  len(e.balances),
		Frozen:        e.frozen,
	}
}

// AgentBalance returns an agent's cookie balance for this cycle.
func (e *Economy) AgentBalance(agentName string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[agentName]
}

// GetPerformance returns a copy of an agent's performance record.
func (e *Economy) GetPerformance(agentName string) (Performance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	perf, ok := e.perf[agentName]
	if !ok {
		return Performance{}, false
	}
	return clonePerformance(perf), true
}

// AllPerformance returns copies of every performance record keyed by
// agent name, extinct agents included (they carry the audit trail).
func (e *Economy) AllPerformance() map[string]Performance {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]Performance, len(e.perf))
	for name, perf := range e.perf {
		out[name] = clonePerformance(perf)
	}
	return out
}

func clonePerformance(perf *Performance) Performance {
	c := *perf
	c.StrataHistory = append([]types.StrataChange(nil), perf.StrataHistory...)
	c.EvolutionTrend = append([]float64(nil), perf.EvolutionTrend...)
	c.Penalties = append([]types.Penalty(nil), perf.Penalties...)
	return c
}

// LeaderboardEntry is one row of the cycle leaderboard.
type LeaderboardEntry struct {
	AgentName     string `json:"agent_name"`
	CookieBalance int    `json:"cookie_balance"`
}

// Leaderboard returns this cycle's balances, highest first. Ties break
// by name so the ordering is stable.
func (e *Economy) Leaderboard() []LeaderboardEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]LeaderboardEntry, 0, len(e.balances))
	for name, balance := range e.balances {
		out = append(out, LeaderboardEntry{AgentName: name, CookieBalance: balance})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CookieBalance != out[j].CookieBalance {
			return out[i].CookieBalance > out[j].CookieBalance
		}
		return out[i].AgentName < out[j].AgentName
	})
	return out
}

// Trends counts insight submissions by category, domain, and brand.
type Trends struct {
	Categories map[string]int `json:"categories"`
	Domains    map[string]int `json:"domains"`
	Brands     map[string]int `json:"brands"`
}

// InsightTrends aggregates the full insight history.
func (e *Economy) InsightTrends() Trends {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := Trends{
		Categories: make(map[string]int),
		Domains:    make(map[string]int),
		Brands:     make(map[string]int),
	}
	for _, rec := range e.insights {
		if rec.Category != "" {
			t.Categories[rec.Category]++
		}
		if rec.Domain != "" {
			t.Domains[rec.Domain]++
		}
		for _, b := range rec.Brands {
			t.Brands[b]++
		}
	}
	return t
}

// LatestInsight returns an agent's most recent insight record.
func (e *Economy) LatestInsight(agentName string) (InsightRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.insights) - 1; i >= 0; i-- {
		if e.insights[i].AgentName == agentName {
			return e.insights[i], true
		}
	}
	return InsightRecord{}, false
}

// FindInsight looks up an insight record by ID. Used by the feedback
// bridge to locate the originating agent for a telemetry snapshot.
func (e *Economy) FindInsight(id string) (InsightRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.insights) - 1; i >= 0; i-- {
		if e.insights[i].ID == id {
			return e.insights[i], true
		}
	}
	return InsightRecord{}, false
}
