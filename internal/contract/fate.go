package contract

import (
	"strings"

	"llmpagerank/internal/logging"
	"llmpagerank/internal/types"
)

// Fate is the outcome of one performance validation.
type Fate string

const (
	FateSurvival          Fate = "survival"
	FateWarning           Fate = "warning"
	FateWatchFinalWarning Fate = "watch_final_warning"
	FateWatchStatus       Fate = "watch_status"
	FateTermination       Fate = "termination"
)

// FateDecision is the typed result of ValidatePerformance.
type FateDecision struct {
	AgentName           string               `json:"agent_name"`
	Fate                Fate                 `json:"fate"`
	Reason              string               `json:"reason"`
	ContractStatus      types.AgentStatus    `json:"contract_status"`
	CyclesCompleted     int                  `json:"cycles_completed"`
	ConsecutiveFailures int                  `json:"consecutive_failures"`
	ActionableInsight   bool                 `json:"actionable_insight"`
	EngagementValid     bool                 `json:"engagement_valid"`
	Replacement         *ReplacementDecision `json:"replacement,omitempty"`
}

// ReplacementDecision says whether a terminated agent's slot needs a
// replacement spawned.
type ReplacementDecision struct {
	Create bool   `json:"create"`
	Reason string `json:"reason"`
}

// Content patterns that mark an insight as actionable on their own.
var actionablePatterns = []string{
	"dropped from",
	"rose from",
	"new citation",
	"fresh quote",
	"sentiment increased",
	"sentiment decreased",
	"memory recovery",
	"after ipo",
	"compared to",
	"ranked #",
}

// ValidatePerformance validates one submission against the directive
// and applies the resulting fate. An unknown agent or an already
// terminated agent is a caller error; every well-formed submission
// yields a FateDecision, never an error.
func (d *Directive) ValidatePerformance(agentName string, insight types.InsightData, engagement *types.EngagementSnapshot) (*FateDecision, error) {
	d.mu.Lock()

	c, ok := d.contracts[agentName]
	if !ok {
		d.mu.Unlock()
		return nil, ErrAgentNotRegistered
	}
	if c.Status == types.StatusTerminated {
		d.mu.Unlock()
		return nil, ErrAlreadyTerminated
	}

	c.CyclesCompleted++

	engagementValid := engagement != nil && engagement.MeetsMinimumSignal()
	actionable := d.isActionable(insight, engagementValid)

	c.PerformanceHistory = append(c.PerformanceHistory, PerformanceEntry{
		Cycle:           c.CyclesCompleted,
		Timestamp:       d.now(),
		InsightQuality:  insight.QualityScore,
		InsightType:     insight.Type,
		Actionable:      actionable,
		EngagementValid: engagementValid,
	})
	if len(c.PerformanceHistory) > d.cfg.HistoryLimit {
		c.PerformanceHistory = c.PerformanceHistory[len(c.PerformanceHistory)-d.cfg.HistoryLimit:]
	}

	decision := d.decideFateLocked(c, actionable, engagementValid)
	d.saveContractLocked(agentName)
	d.mu.Unlock()

	// Economy side effects happen outside the contract lock; each
	// economy call is internally serialized.
	switch decision.Fate {
	case FateSurvival:
		d.eco.CreditBonus(agentName, survivalBonus)
		d.eco.ClearPenalties(agentName)
		logging.Contract("agent %s survived: delivered insight with engagement", agentName)
	case FateTermination:
		d.sur.RemoveExtinctAgent(agentName)
		d.MarkTerminated(agentName)
		logging.Get(logging.CategoryContract).Error(
			"agent %s failed to gather signal, termination sequence initiated", agentName)
	case FateWarning:
		logging.Get(logging.CategoryContract).Warn("agent %s warning: needs engagement next cycle", agentName)
	case FateWatchFinalWarning:
		logging.Get(logging.CategoryContract).Warn("agent %s on final warning: no engagement detected", agentName)
	case FateWatchStatus:
		logging.Get(logging.CategoryContract).Warn("agent %s failed to gather signal, moved to watch status", agentName)
	}
	return decision, nil
}

// MarkTerminated moves a contract into the absorbing terminated state
// once the economy removal has completed. Terminated is final; only an
// explicit external reassignment overrides it. Besides the fate path
// above, the survival evaluator calls this for sweep-driven and
// enforcement-driven extinctions.
func (d *Directive) MarkTerminated(agentName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.contracts[agentName]
	if !ok || c.Status == types.StatusTerminated {
		return
	}
	c.Status = types.StatusTerminated
	d.saveContractLocked(agentName)
}

// isActionable decides whether an insight counts under the directive:
// quality at or above the floor, a whitelisted type, and either
// actionable content or valid engagement.
func (d *Directive) isActionable(insight types.InsightData, engagementValid bool) bool {
	if insight.QualityScore < d.cfg.MinQuality {
		return false
	}
	if !insight.Type.Actionable() {
		return false
	}
	content := strings.ToLower(insight.Content)
	for _, pattern := range actionablePatterns {
		if strings.Contains(content, pattern) {
			return true
		}
	}
	return engagementValid
}

func (d *Directive) decideFateLocked(c *Contract, actionable, engagementValid bool) *FateDecision {
	decision := &FateDecision{
		AgentName:         c.AgentName,
		ActionableInsight: actionable,
		EngagementValid:   engagementValid,
	}
	now := d.now()

	switch {
	case actionable && engagementValid:
		c.ConsecutiveFailures = 0
		c.LastEngagement = &now
		c.LastInsight = &now
		c.Status = types.StatusActive
		decision.Fate = FateSurvival
		decision.Reason = "delivered insight with engagement"

	case actionable:
		c.LastInsight = &now
		c.TerminationWarnings++
		if c.TerminationWarnings >= d.cfg.TerminationWarningLimit {
			c.Status = types.StatusWatch
			decision.Fate = FateWatchFinalWarning
			decision.Reason = "actionable insight but no engagement, final warning"
		} else {
			decision.Fate = FateWarning
			decision.Reason = "actionable insight but needs engagement"
		}

	default:
		c.ConsecutiveFailures++
		if c.ConsecutiveFailures >= d.cfg.ConsecutiveFailureLimit {
			c.Status = types.StatusTerminationSequence
			decision.Fate = FateTermination
			decision.Reason = "no new insight found in consecutive fetch cycles"

			summary := d.performanceSummaryLocked(c)
			d.appendTerminationLocked(TerminationEvent{
				AgentName:       c.AgentName,
				TerminationDate: now,
				Reason:          decision.Reason,
				CyclesCompleted: c.CyclesCompleted,
				LastEngagement:  c.LastEngagement,
				Summary:         summary,
			})
			decision.Replacement = d.replacementDecisionLocked(c)
		} else {
			c.Status = types.StatusWatch
			decision.Fate = FateWatchStatus
			decision.Reason = "failed to gather actionable insight"
		}
	}

	decision.ContractStatus = c.Status
	decision.CyclesCompleted = c.CyclesCompleted
	decision.ConsecutiveFailures = c.ConsecutiveFailures
	return decision
}

// replacementDecisionLocked checks whether the terminated agent's
// domain or insight type loses all active coverage.
func (d *Directive) replacementDecisionLocked(terminated *Contract) *ReplacementDecision {
	activeForDomain := 0
	activeForType := 0
	for name, c := range d.contracts {
		if name == terminated.AgentName || c.Status != types.StatusActive {
			continue
		}
		if c.Domain == terminated.Domain {
			activeForDomain++
		}
		if c.InsightType == terminated.InsightType {
			activeForType++
		}
	}

	if activeForDomain == 0 {
		return &ReplacementDecision{
			Create: true,
			Reason: "domain " + terminated.Domain + " has no active coverage after termination",
		}
	}
	if activeForType == 0 {
		return &ReplacementDecision{
			Create: true,
			Reason: "no active agents providing " + string(terminated.InsightType) + " insights after termination",
		}
	}
	return &ReplacementDecision{
		Create: false,
		Reason: "domain " + terminated.Domain + " still has adequate coverage",
	}
}
