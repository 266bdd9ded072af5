package feedback

import "sort"

// AgentSummary is the engagement summary for one agent.
type AgentSummary struct {
	AgentName         string  `json:"agent_name"`
	TotalInsights     int     `json:"total_insights"`
	AcceptanceRate    float64 `json:"acceptance_rate"`
	AverageEngagement float64 `json:"average_engagement"`
	ConsecutivePoor   int     `json:"consecutive_poor"`
	RecentTrend       string  `json:"recent_trend"`
}

// SystemSummary aggregates engagement across the population.
type SystemSummary struct {
	AgentsTracked     int            `json:"agents_tracked"`
	TotalInsights     int            `json:"total_insights"`
	AcceptanceRate    float64        `json:"acceptance_rate"`
	AverageEngagement float64        `json:"average_engagement"`
	Agents            []AgentSummary `json:"agents,omitempty"`
}

// AgentSummary returns the engagement summary for one agent; ok is
// false for an agent with no telemetry.
func (b *Bridge) AgentSummary(agentName string) (AgentSummary, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.metrics[agentName]
	if !ok {
		return AgentSummary{}, false
	}
	return b.summaryLocked(m), true
}

func (b *Bridge) summaryLocked(m *AgentMetrics) AgentSummary {
	s := AgentSummary{
		AgentName:         m.AgentName,
		TotalInsights:     m.TotalInsights,
		AverageEngagement: m.AverageEngagement,
		ConsecutivePoor:   consecutivePoor(m.History),
		RecentTrend:       trendOf(m.History),
	}
	if m.TotalInsights > 0 {
		s.AcceptanceRate = float64(m.AcceptableInsights) / float64(m.TotalInsights)
	}
	return s
}

// trendOf compares the mean of the last 2 scores against the mean of
// the 3 before them. Under 5 data points the trend is stable.
func trendOf(history []HistoryEntry) string {
	if len(history) < 5 {
		return "stable"
	}
	tail := history[len(history)-5:]

	older := (tail[0].EngagementScore + tail[1].EngagementScore + tail[2].EngagementScore) / 3
	newer := (tail[3].EngagementScore + tail[4].EngagementScore) / 2

	switch {
	case newer > older+0.05:
		return "improving"
	case newer < older-0.05:
		return "declining"
	default:
		return "stable"
	}
}

// SystemSummary aggregates every tracked agent's engagement.
func (b *Bridge) SystemSummary() SystemSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := SystemSummary{AgentsTracked: len(b.metrics)}
	acceptable := 0
	scoreSum := 0.0
	for _, m := range b.metrics {
		out.TotalInsights += m.TotalInsights
		acceptable += m.AcceptableInsights
		scoreSum += m.AverageEngagement * float64(m.TotalInsights)
		out.Agents = append(out.Agents, b.summaryLocked(m))
	}
	if out.TotalInsights > 0 {
		out.AcceptanceRate = float64(acceptable) / float64(out.TotalInsights)
		out.AverageEngagement = scoreSum / float64(out.TotalInsights)
	}
	sort.Slice(out.Agents, func(i, j int) bool {
		return out.Agents[i].AgentName < out.Agents[j].AgentName
	})
	return out
}
