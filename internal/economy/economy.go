// Package economy implements the cookie economy: a shared,
// periodically replenished reward pool that agents compete for by
// submitting quality-scored insights. The economy owns the ledger
// (pool + per-cycle balances) and the cumulative per-agent performance
// records; all mutation is serialized behind one mutex so the pool
// invariant sum(balances) + pool == PoolSize holds at every observable
// point inside a cycle.
package economy

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"llmpagerank/internal/config"
	"llmpagerank/internal/logging"
	"llmpagerank/internal/store"
	"llmpagerank/internal/types"
)

// Scoring weights. Quality dominates novelty; the engagement
// multiplier is bounded at 2x.
const (
	qualityWeight = 0.8
	noveltyWeight = 0.2

	rejectionQualityBelowThreshold = "quality_below_threshold"
)

var (
	// ErrLedgerFrozen is returned by SubmitInsight after an invariant
	// violation was detected at a cycle boundary. Payouts stay blocked
	// until Reconcile restores the ledger.
	ErrLedgerFrozen = errors.New("ledger frozen: pool invariant violated, reconcile required")

	// ErrAgentExtinct is returned by SubmitInsight for an agent whose
	// performance record is marked extinct. Extinction is final; the
	// record stays for audit but earns nothing further.
	ErrAgentExtinct = errors.New("agent extinct: removed from economic participation")
)

// Performance is the cumulative, cross-cycle record for one agent.
// Records are never deleted; extinction flags the record and zeroes
// the cycle balance so the audit trail survives.
type Performance struct {
	AgentName           string               `json:"agent_name"`
	TotalCookies        int                  `json:"total_cookies"`
	CyclesActive        int                  `json:"cycles_active"`
	InsightsContributed int                  `json:"insights_contributed"`
	AverageQuality      float64              `json:"average_quality"`
	Strata              types.Strata         `json:"strata"`
	StrataHistory       []types.StrataChange `json:"strata_history,omitempty"`
	ConsecutiveFailures int                  `json:"consecutive_failures"`
	StarvationEvents    int                  `json:"starvation_events"`
	ExtinctionRisk      bool                 `json:"extinction_risk"`
	EvolutionTrend      []float64            `json:"evolution_trend,omitempty"`
	LastCycleQuality    float64              `json:"last_cycle_quality"`
	QualityThreshold    float64              `json:"quality_threshold"`
	Penalties           []types.Penalty      `json:"penalties,omitempty"`
	Extinct             bool                 `json:"extinct"`
	ExtinctionDate      *time.Time           `json:"extinction_date,omitempty"`
}

// InsightRecord is the immutable append-only log entry for one
// submission, accepted or rejected.
type InsightRecord struct {
	ID                   string                    `json:"id"`
	AgentName            string                    `json:"agent_name"`
	Timestamp            time.Time                 `json:"timestamp"`
	Type                 types.InsightType         `json:"type"`
	Content              string                    `json:"content,omitempty"`
	Category             string                    `json:"category,omitempty"`
	Domain               string                    `json:"domain,omitempty"`
	Brands               []string                  `json:"brands,omitempty"`
	QualityScore         float64                   `json:"quality_score"`
	NoveltyScore         float64                   `json:"novelty_score"`
	CombinedScore        float64                   `json:"combined_score"`
	EngagementMultiplier float64                   `json:"engagement_multiplier"`
	Engagement           *types.EngagementSnapshot `json:"engagement,omitempty"`
	CookiesEarned        int                       `json:"cookies_earned"`
	PenaltiesApplied     int                       `json:"penalties_applied"`
	RejectionReason      string                    `json:"rejection_reason,omitempty"`
}

// ledgerSnapshot is the persisted form of the cycle ledger.
type ledgerSnapshot struct {
	Pool       int            `json:"pool_remaining"`
	CycleStart time.Time      `json:"cycle_start"`
	CycleEnd   time.Time      `json:"cycle_end"`
	Balances   map[string]int `json:"agent_balances"`
	Frozen     bool           `json:"frozen"`
	UpdatedAt  time.Time      `json:"last_updated"`
}

// Economy owns the cookie ledger and agent performance records.
type Economy struct {
	mu  sync.Mutex
	cfg config.EconomyConfig
	st  store.Store
	now func() time.Time

	pool       int
	cycleStart time.Time
	cycleEnd   time.Time
	balances   map[string]int
	perf       map[string]*Performance
	insights   []InsightRecord
	frozen     bool
}

// Option customizes an Economy; used by tests to control the clock.
type Option func(*Economy)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Economy) { e.now = now }
}

// New builds an Economy over the given ledger store, restoring any
// persisted ledger, performance records, and insight history.
func New(cfg config.EconomyConfig, st store.Store, opts ...Option) (*Economy, error) {
	e := &Economy{
		cfg:      cfg,
		st:       st,
		now:      time.Now,
		balances: make(map[string]int),
		perf:     make(map[string]*Performance),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.load(); err != nil {
		return nil, err
	}
	if e.cycleStart.IsZero() {
		e.cycleStart = e.now()
		e.cycleEnd = e.cycleStart.AddDate(0, 0, cfg.CycleDays)
		e.pool = cfg.PoolSize
		e.saveLedgerLocked()
	}
	return e, nil
}

func (e *Economy) load() error {
	if data, ok, err := e.st.Get(store.KeyLedger); err != nil {
		return err
	} else if ok {
		var snap ledgerSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return err
		}
		e.pool = snap.Pool
		e.cycleStart = snap.CycleStart
		e.cycleEnd = snap.CycleEnd
		e.frozen = snap.Frozen
		if snap.Balances != nil {
			e.balances = snap.Balances
		}
	}

	records, err := e.st.ListByPrefix(store.PrefixPerformance)
	if err != nil {
		return err
	}
	for _, data := range records {
		var p Performance
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		e.perf[p.AgentName] = &p
	}

	entries, err := e.st.ReadLog(store.StreamInsights)
	if err != nil {
		return err
	}
	for _, data := range entries {
		var rec InsightRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		e.insights = append(e.insights, rec)
	}
	return nil
}

// Register adds an agent to the economy. Re-registration is a no-op.
func (e *Economy) Register(agentName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.registerLocked(agentName) {
		e.saveLedgerLocked()
		e.savePerformanceLocked(agentName)
		logging.Economy("agent %s registered in cookie economy", agentName)
	}
}

func (e *Economy) registerLocked(agentName string) bool {
	_, hadBalance := e.balances[agentName]
	if !hadBalance {
		e.balances[agentName] = 0
	}
	if _, ok := e.perf[agentName]; !ok {
		e.perf[agentName] = &Performance{
			AgentName:        agentName,
			Strata:           types.StrataBronze,
			QualityThreshold: e.cfg.MinQualityThreshold,
		}
		return true
	}
	return !hadBalance
}

// SubmitInsight scores an insight, pays out from the shared pool, and
// records the submission. It returns the cookies earned and the
// combined score (the raw quality score on rejection). The only errors
// are ErrLedgerFrozen and ErrAgentExtinct; rejection is an expected
// result, not an error.
func (e *Economy) SubmitInsight(agentName string, insight types.InsightData, engagement *types.EngagementSnapshot) (int, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.frozen {
		return 0, 0, ErrLedgerFrozen
	}

	e.rolloverIfDueLocked()
	e.registerLocked(agentName)
	perf := e.perf[agentName]
	if perf.Extinct {
		return 0, 0, ErrAgentExtinct
	}

	// Drain queued penalties. They consume regardless of outcome and
	// never push a balance negative.
	penaltyAmount := 0
	for _, p := range perf.Penalties {
		penaltyAmount += p.Amount
		logging.Get(logging.CategoryEconomy).Warn("agent %s penalized %d cookies: %s", agentName, p.Amount, p.Reason)
	}
	perf.Penalties = nil

	noveltyScore := e.noveltyLocked(insight)

	bar := e.cfg.MinQualityThreshold
	if perf.QualityThreshold > bar {
		bar = perf.QualityThreshold
	}

	if insight.QualityScore < bar {
		perf.ConsecutiveFailures++
		if perf.ConsecutiveFailures >= e.cfg.ConsecutiveFailureLimit {
			perf.ExtinctionRisk = true
			e.forceRustLocked(perf, "quality_extinction_risk")
			logging.Get(logging.CategoryEconomy).Error(
				"agent %s extinction risk: failed quality check %d times in a row", agentName, perf.ConsecutiveFailures)
		} else {
			logging.Get(logging.CategoryEconomy).Warn(
				"agent %s rejected: quality %.2f below threshold %.2f", agentName, insight.QualityScore, bar)
		}

		e.appendInsightLocked(InsightRecord{
			ID:               uuid.NewString(),
			AgentName:        agentName,
			Timestamp:        e.now(),
			Type:             insight.Type,
			Content:          insight.Content,
			Category:         insight.Category,
			Domain:           insight.Domain,
			Brands:           insight.Brands,
			QualityScore:     insight.QualityScore,
			NoveltyScore:     noveltyScore,
			PenaltiesApplied: penaltyAmount,
			RejectionReason:  rejectionQualityBelowThreshold,
		})
		e.savePerformanceLocked(agentName)
		e.saveLedgerLocked()
		return 0, insight.QualityScore, nil
	}

	combined := qualityWeight*insight.QualityScore + noveltyWeight*noveltyScore

	multiplier := 1.0
	if engagement != nil {
		score := engagement.Score()
		if score > 1.0 {
			score = 1.0
		}
		multiplier = 1.0 + score
		combined *= multiplier
	}

	// Progressive reward curve, bounded by min(per-insight cap, pool).
	maxCookies := e.cfg.MaxCookiesPerInsight
	if e.pool < maxCookies {
		maxCookies = e.pool
	}
	var earned int
	switch {
	case insight.QualityScore > 0.95:
		earned = maxInt(10, int(combined*float64(maxCookies)*1.5))
	case insight.QualityScore > 0.90:
		earned = maxInt(5, int(combined*float64(maxCookies)*1.2))
	default:
		earned = maxInt(1, int(combined*float64(maxCookies)))
	}
	if earned > maxCookies {
		earned = maxCookies
	}
	earned -= penaltyAmount
	if earned < 0 {
		earned = 0
	}

	perf.ConsecutiveFailures = 0
	e.pool -= earned
	e.balances[agentName] += earned

	e.appendInsightLocked(InsightRecord{
		ID:                   uuid.NewString(),
		AgentName:            agentName,
		Timestamp:            e.now(),
		Type:                 insight.Type,
		Content:              insight.Content,
		Category:             insight.Category,
		Domain:               insight.Domain,
		Brands:               insight.Brands,
		QualityScore:         insight.QualityScore,
		NoveltyScore:         noveltyScore,
		CombinedScore:        combined,
		EngagementMultiplier: multiplier,
		Engagement:           engagement,
		CookiesEarned:        earned,
		PenaltiesApplied:     penaltyAmount,
	})
	e.savePerformanceLocked(agentName)
	e.saveLedgerLocked()

	logging.Economy("agent %s earned %d cookies (quality %.2f, novelty %.2f, pool %d left)",
		agentName, earned, insight.QualityScore, noveltyScore, e.pool)
	return earned, combined, nil
}

func (e *Economy) appendInsightLocked(rec InsightRecord) {
	e.insights = append(e.insights, rec)
	if data, err := json.Marshal(rec); err == nil {
		if err := e.st.Append(store.StreamInsights, data); err != nil {
			logging.Get(logging.CategoryStore).Error("failed to append insight record: %v", err)
		}
	}
}

func (e *Economy) saveLedgerLocked() {
	snap := ledgerSnapshot{
		Pool:       e.pool,
		CycleStart: e.cycleStart,
		CycleEnd:   e.cycleEnd,
		Balances:   e.balances,
		Frozen:     e.frozen,
		UpdatedAt:  e.now(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := e.st.Put(store.KeyLedger, data); err != nil {
		logging.Get(logging.CategoryStore).Error("failed to persist ledger: %v", err)
	}
}

func (e *Economy) savePerformanceLocked(agentName string) {
	perf, ok := e.perf[agentName]
	if !ok {
		return
	}
	data, err := json.Marshal(perf)
	if err != nil {
		return
	}
	if err := e.st.Put(store.PrefixPerformance+agentName, data); err != nil {
		logging.Get(logging.CategoryStore).Error("failed to persist performance for %s: %v", agentName, err)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
