package contract

import (
	"fmt"

	"llmpagerank/internal/types"
)

// PerformanceSummary aggregates an agent's recent validation history.
type PerformanceSummary struct {
	TotalCycles         int     `json:"total_cycles"`
	ActionableCycles    int     `json:"actionable_cycles"`
	EngagedCycles       int     `json:"engaged_cycles"`
	ActionableRate      float64 `json:"actionable_rate"`
	EngagementRate      float64 `json:"engagement_rate"`
	AverageQuality      float64 `json:"average_quality"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	TerminationWarnings int     `json:"termination_warnings"`
}

// Compliance is the directive-compliance check result.
type Compliance struct {
	Status         string `json:"status"`
	Rule           string `json:"rule,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// ContractStatus is the read-only projection for dashboards.
type ContractStatus struct {
	AgentName  string              `json:"agent_name"`
	Contract   Contract            `json:"contract"`
	Summary    *PerformanceSummary `json:"performance_summary,omitempty"`
	Compliance Compliance          `json:"directive_compliance"`
}

// GetContractStatus returns an agent's full contract projection.
func (d *Directive) GetContractStatus(agentName string) (*ContractStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.contracts[agentName]
	if !ok {
		return nil, ErrAgentNotRegistered
	}
	out := *c
	out.PerformanceHistory = append([]PerformanceEntry(nil), c.PerformanceHistory...)
	return &ContractStatus{
		AgentName:  agentName,
		Contract:   out,
		Summary:    d.performanceSummaryLocked(c),
		Compliance: d.complianceLocked(c),
	}, nil
}

func (d *Directive) performanceSummaryLocked(c *Contract) *PerformanceSummary {
	history := c.PerformanceHistory
	if len(history) == 0 {
		return nil
	}

	s := &PerformanceSummary{
		TotalCycles:         len(history),
		ConsecutiveFailures: c.ConsecutiveFailures,
		TerminationWarnings: c.TerminationWarnings,
	}
	qualitySum := 0.0
	for _, h := range history {
		if h.Actionable {
			s.ActionableCycles++
		}
		if h.EngagementValid {
			s.EngagedCycles++
		}
		qualitySum += h.InsightQuality
	}
	s.ActionableRate = float64(s.ActionableCycles) / float64(s.TotalCycles)
	s.EngagementRate = float64(s.EngagedCycles) / float64(s.TotalCycles)
	s.AverageQuality = qualitySum / float64(s.TotalCycles)
	return s
}

func (d *Directive) complianceLocked(c *Contract) Compliance {
	history := c.PerformanceHistory
	if len(history) < 2 {
		return Compliance{Status: "insufficient_data"}
	}

	recent := history[len(history)-2:]
	allNonActionable := true
	allNonEngaging := true
	for _, h := range recent {
		if h.Actionable {
			allNonActionable = false
		}
		if h.EngagementValid {
			allNonEngaging = false
		}
	}

	if allNonActionable {
		return Compliance{
			Status:         "violation",
			Rule:           "no new insight found in 2 consecutive fetch cycles",
			Recommendation: "immediate termination required",
		}
	}
	if allNonEngaging && len(history) >= 5 {
		return Compliance{
			Status:         "warning",
			Rule:           "no user engagement recorded",
			Recommendation: "monitor next cycle closely",
		}
	}
	return Compliance{
		Status:         "compliant",
		Rule:           "meeting directive requirements",
		Recommendation: "continue current operation",
	}
}

// Banner returns a one-line population summary for the CLI.
func (d *Directive) Banner() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	active, watch := 0, 0
	for _, c := range d.contracts {
		switch c.Status {
		case types.StatusActive:
			active++
		case types.StatusWatch:
			watch++
		}
	}
	return fmt.Sprintf("active: %d | watch: %d | terminated: %d", active, watch, len(d.terminations))
}
