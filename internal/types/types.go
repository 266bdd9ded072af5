// Package types holds the shared domain types for the agent economy:
// insight submissions, engagement telemetry, agent lifecycle states,
// and strata tiers. It has no dependencies so every other package can
// import it freely.
package types

import "time"

// AgentStatus is an agent's lifecycle state under the directive contract.
type AgentStatus string

const (
	StatusActive              AgentStatus = "active"
	StatusWatch               AgentStatus = "watch"
	StatusTerminationSequence AgentStatus = "termination_sequence"
	StatusTerminated          AgentStatus = "terminated"
	StatusReassigned          AgentStatus = "reassigned"
)

// Strata is a coarse performance tier used for promotion and demotion.
type Strata string

const (
	StrataGold   Strata = "gold"
	StrataSilver Strata = "silver"
	StrataBronze Strata = "bronze"
	StrataRust   Strata = "rust"
)

// DemotionOf returns the strata one tier below s. Rust demotes to rust.
func DemotionOf(s Strata) Strata {
	switch s {
	case StrataGold:
		return StrataSilver
	case StrataSilver:
		return StrataBronze
	default:
		return StrataRust
	}
}

// PromotionOf returns the strata one tier above s. Gold promotes to gold.
func PromotionOf(s Strata) Strata {
	switch s {
	case StrataRust:
		return StrataBronze
	case StrataBronze:
		return StrataSilver
	default:
		return StrataGold
	}
}

// InsightType categorizes what kind of signal an insight carries.
// Only the listed types count as actionable under the directive.
type InsightType string

const (
	InsightNewCitation      InsightType = "new_citation"
	InsightComparative      InsightType = "comparative_insight"
	InsightEventDrivenShift InsightType = "event_driven_shift"
	InsightMemoryRecovery   InsightType = "memory_recovery"
	InsightUserInteraction  InsightType = "user_interaction"
)

// Actionable reports whether t is one of the whitelisted insight types.
func (t InsightType) Actionable() bool {
	switch t {
	case InsightNewCitation, InsightComparative, InsightEventDrivenShift,
		InsightMemoryRecovery, InsightUserInteraction:
		return true
	}
	return false
}

// InsightData is one insight submission as supplied by the generator.
// QualityScore is externally assessed and in [0, 1].
type InsightData struct {
	Type         InsightType `json:"type"`
	Content      string      `json:"content"`
	QualityScore float64     `json:"quality_score"`
	Brands       []string    `json:"brands"`
	Category     string      `json:"category"`
	Domain       string      `json:"domain"`
}

// EngagementSnapshot is the real-world engagement signal for one
// insight, supplied by external telemetry. RetentionTime is in seconds.
type EngagementSnapshot struct {
	ClickRate     float64 `json:"click_rate"`
	RetentionTime float64 `json:"retention_time"`
	ShareRate     float64 `json:"share_rate"`
	RequeryRate   float64 `json:"requery_rate"`
}

// Score computes the normalized engagement score in [0, 1]:
// 0.4*click_rate + 0.4*min(retention/60, 1) + 0.2*share_rate.
func (e EngagementSnapshot) Score() float64 {
	retention := e.RetentionTime / 60.0
	if retention > 1.0 {
		retention = 1.0
	}
	return 0.4*e.ClickRate + 0.4*retention + 0.2*e.ShareRate
}

// Minimum signal thresholds for directive engagement validation.
// At least one must be met for the snapshot to count as engagement.
const (
	MinSignalClickRate   = 0.10
	MinSignalRetention   = 20.0
	MinSignalShareRate   = 0.05
	MinSignalRequeryRate = 0.03
)

// MeetsMinimumSignal reports whether any single engagement metric
// clears its floor.
func (e EngagementSnapshot) MeetsMinimumSignal() bool {
	return e.ClickRate >= MinSignalClickRate ||
		e.RetentionTime >= MinSignalRetention ||
		e.ShareRate >= MinSignalShareRate ||
		e.RequeryRate >= MinSignalRequeryRate
}

// Penalty is a deferred cookie deduction queued against an agent and
// drained on its next submission.
type Penalty struct {
	Type   string `json:"type"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
	Cycle  string `json:"cycle"`
}

// StrataChange records one strata transition. Transitions are always
// logged, never silently applied.
type StrataChange struct {
	From      Strata    `json:"from"`
	To        Strata    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}
