package survival

import (
	"time"

	"llmpagerank/internal/types"
)

// Status is the read-only survival projection for one agent.
type Status struct {
	Status              string       `json:"status"`
	Reason              string       `json:"reason,omitempty"`
	Strata              types.Strata `json:"strata,omitempty"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	StarvationEvents    int          `json:"starvation_events"`
	RemainingFailures   int          `json:"remaining_failures,omitempty"`
	ProbationEnd        *time.Time   `json:"probation_end_date,omitempty"`
	ExtinctionDate      *time.Time   `json:"extinction_date,omitempty"`
}

// AgentStatus returns an agent's survival status; ok is false for an
// unknown agent.
func (ev *Evaluator) AgentStatus(agentName string) (Status, bool) {
	perf, ok := ev.eco.GetPerformance(agentName)
	if !ok {
		return Status{}, false
	}

	if perf.Extinct {
		return Status{
			Status:         "extinct",
			Reason:         "marked as extinct",
			ExtinctionDate: perf.ExtinctionDate,
		}, true
	}

	ev.mu.Lock()
	now := ev.now()
	for i := len(ev.evaluations) - 1; i >= 0; i-- {
		for _, p := range ev.evaluations[i].Probations {
			if p.AgentName == agentName && p.ProbationEnd.After(now) {
				end := p.ProbationEnd
				ev.mu.Unlock()
				return Status{
					Status:       "probation",
					Reason:       p.Reason,
					ProbationEnd: &end,
				}, true
			}
		}
	}
	ev.mu.Unlock()

	switch {
	case perf.ExtinctionRisk:
		return Status{
			Status:              "critical",
			Reason:              "extinction risk flagged",
			Strata:              perf.Strata,
			ConsecutiveFailures: perf.ConsecutiveFailures,
			StarvationEvents:    perf.StarvationEvents,
		}, true
	case perf.Strata == types.StrataRust:
		return Status{
			Status:              "endangered",
			Reason:              "in lowest strata (rust)",
			Strata:              perf.Strata,
			ConsecutiveFailures: perf.ConsecutiveFailures,
			StarvationEvents:    perf.StarvationEvents,
			RemainingFailures:   ev.cfg.ExtinctionThreshold - perf.ConsecutiveFailures,
		}, true
	case perf.ConsecutiveFailures > 0 || perf.StarvationEvents > 0:
		return Status{
			Status:              "at_risk",
			Reason:              "performance issues detected",
			Strata:              perf.Strata,
			ConsecutiveFailures: perf.ConsecutiveFailures,
			StarvationEvents:    perf.StarvationEvents,
		}, true
	}

	status := "adequate"
	switch perf.Strata {
	case types.StrataGold:
		status = "thriving"
	case types.StrataSilver:
		status = "stable"
	}
	return Status{
		Status:           status,
		Strata:           perf.Strata,
		StarvationEvents: perf.StarvationEvents,
	}, true
}
