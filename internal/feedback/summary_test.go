package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmpagerank/internal/types"
)

func TestAgentSummaryTrendNeedsHistory(t *testing.T) {
	b, _, id := newBridge(t)

	for i := 0; i < 4; i++ {
		_, err := b.RecordEngagement(id, poorEngagement())
		require.NoError(t, err)
	}
	s, ok := b.AgentSummary("scout")
	require.True(t, ok)
	assert.Equal(t, "stable", s.RecentTrend, "under five data points the trend is stable")
	assert.Equal(t, 4, s.TotalInsights)
	assert.Zero(t, s.AcceptanceRate)
}

func TestAgentSummaryTrendImproving(t *testing.T) {
	b, _, id := newBridge(t)

	// Three poor results, then two excellent ones.
	for i := 0; i < 3; i++ {
		b.RecordEngagement(id, poorEngagement())
	}
	for i := 0; i < 2; i++ {
		b.RecordEngagement(id, excellentEngagement())
	}

	s, _ := b.AgentSummary("scout")
	assert.Equal(t, "improving", s.RecentTrend)
	assert.InDelta(t, 0.4, s.AcceptanceRate, 1e-9)
}

func TestAgentSummaryTrendDeclining(t *testing.T) {
	b, _, id := newBridge(t)

	for i := 0; i < 3; i++ {
		b.RecordEngagement(id, excellentEngagement())
	}
	for i := 0; i < 2; i++ {
		b.RecordEngagement(id, poorEngagement())
	}

	s, _ := b.AgentSummary("scout")
	assert.Equal(t, "declining", s.RecentTrend)
}

func TestAgentSummaryUnknownAgent(t *testing.T) {
	b, _, _ := newBridge(t)
	_, ok := b.AgentSummary("stranger")
	assert.False(t, ok)
}

func TestSystemSummaryAggregates(t *testing.T) {
	b, eco, id := newBridge(t)

	// A second agent with its own telemetry.
	_, _, err := eco.SubmitInsight("rival", types.InsightData{
		Type: types.InsightNewCitation, Content: "new citation found",
		QualityScore: 0.96, Brands: []string{"r"}, Category: "quotes", Domain: "retail",
	}, nil)
	require.NoError(t, err)
	rec, _ := eco.LatestInsight("rival")

	b.RecordEngagement(id, poorEngagement())
	b.RecordEngagement(rec.ID, excellentEngagement())

	sys := b.SystemSummary()
	assert.Equal(t, 2, sys.AgentsTracked)
	assert.Equal(t, 2, sys.TotalInsights)
	assert.InDelta(t, 0.5, sys.AcceptanceRate, 1e-9)
	require.Len(t, sys.Agents, 2)
	assert.Equal(t, "rival", sys.Agents[0].AgentName, "agents sorted by name")
	assert.Equal(t, "scout", sys.Agents[1].AgentName)
}
