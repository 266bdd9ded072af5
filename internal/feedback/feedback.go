// Package feedback implements the engagement feedback bridge: it
// folds external engagement telemetry into each agent's acceptance
// threshold and tracks poor/excellent engagement streaks. This is the
// closed loop between real-world signal and internal policy.
package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"llmpagerank/internal/config"
	"llmpagerank/internal/economy"
	"llmpagerank/internal/logging"
	"llmpagerank/internal/store"
	"llmpagerank/internal/types"
)

// ErrInsightNotFound is returned when telemetry references an unknown
// insight ID.
var ErrInsightNotFound = errors.New("insight not found in history")

// Consecutive unacceptable results before extinction risk is flagged.
const poorStreakLimit = 3

// HistoryEntry is one bounded-history record per telemetry snapshot.
type HistoryEntry struct {
	InsightID       string    `json:"insight_id"`
	Timestamp       time.Time `json:"timestamp"`
	EngagementScore float64   `json:"engagement_score"`
	Acceptable      bool      `json:"acceptable"`
}

// AgentMetrics is the per-agent engagement bookkeeping.
type AgentMetrics struct {
	AgentName          string         `json:"agent_name"`
	TotalInsights      int            `json:"total_insights"`
	AcceptableInsights int            `json:"acceptable_insights"`
	AverageEngagement  float64        `json:"average_engagement"`
	History            []HistoryEntry `json:"history,omitempty"`
}

// Entry is one append-only feedback log record.
type Entry struct {
	InsightID            string                   `json:"insight_id"`
	AgentName            string                   `json:"agent_name"`
	Timestamp            time.Time                `json:"timestamp"`
	Engagement           types.EngagementSnapshot `json:"engagement_data"`
	EngagementScore      float64                  `json:"engagement_score"`
	Acceptable           bool                     `json:"acceptable_engagement"`
	QualityAdjustment    float64                  `json:"quality_adjustment"`
	NewQualityThreshold  float64                  `json:"new_quality_threshold"`
	ConsecutivePoor      int                      `json:"consecutive_poor"`
	PenaltyQueued        int                      `json:"penalty_queued"`
	ExtinctionRiskRaised bool                     `json:"extinction_risk_raised"`
}

// Bridge converts engagement telemetry into threshold adjustments.
type Bridge struct {
	mu  sync.Mutex
	cfg config.FeedbackConfig
	st  store.Store
	eco *economy.Economy
	now func() time.Time

	metrics map[string]*AgentMetrics
	log     []Entry
}

// Option customizes a Bridge.
type Option func(*Bridge)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// New builds a Bridge, restoring persisted per-agent metrics.
func New(cfg config.FeedbackConfig, st store.Store, eco *economy.Economy, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		cfg:     cfg,
		st:      st,
		eco:     eco,
		now:     time.Now,
		metrics: make(map[string]*AgentMetrics),
	}
	for _, opt := range opts {
		opt(b)
	}

	records, err := st.ListByPrefix(store.PrefixFeedback)
	if err != nil {
		return nil, err
	}
	for _, data := range records {
		var m AgentMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		b.metrics[m.AgentName] = &m
	}
	return b, nil
}

// RecordEngagement folds one telemetry snapshot into the originating
// agent's acceptance threshold and streak history.
func (b *Bridge) RecordEngagement(insightID string, engagement types.EngagementSnapshot) (*Entry, error) {
	rec, ok := b.eco.FindInsight(insightID)
	if !ok {
		logging.Get(logging.CategoryFeedback).Warn("insight %s not found in history", insightID)
		return nil, fmt.Errorf("%w: %s", ErrInsightNotFound, insightID)
	}
	agentName := rec.AgentName

	score := engagement.Score()
	acceptable := engagement.ClickRate >= b.cfg.MinAcceptableClickRate &&
		engagement.RetentionTime >= b.cfg.MinAcceptableRetention

	b.mu.Lock()
	m, ok := b.metrics[agentName]
	if !ok {
		m = &AgentMetrics{AgentName: agentName}
		b.metrics[agentName] = m
	}

	streak := 0
	if !acceptable {
		streak = consecutivePoor(m.History) + 1
	}

	entry := Entry{
		InsightID:       insightID,
		AgentName:       agentName,
		Timestamp:       b.now(),
		Engagement:      engagement,
		EngagementScore: score,
		Acceptable:      acceptable,
		ConsecutivePoor: streak,
	}

	switch {
	case !acceptable:
		entry.QualityAdjustment = b.cfg.ThresholdStep
	case score > b.cfg.QualityBoostThreshold:
		entry.QualityAdjustment = -b.cfg.ThresholdBuffer
	}

	m.TotalInsights++
	if acceptable {
		m.AcceptableInsights++
	}
	m.AverageEngagement = (m.AverageEngagement*float64(m.TotalInsights-1) + score) / float64(m.TotalInsights)
	m.History = append(m.History, HistoryEntry{
		InsightID:       insightID,
		Timestamp:       entry.Timestamp,
		EngagementScore: score,
		Acceptable:      acceptable,
	})
	if len(m.History) > b.cfg.HistoryLimit {
		m.History = m.History[len(m.History)-b.cfg.HistoryLimit:]
	}
	b.saveMetricsLocked(agentName)
	b.mu.Unlock()

	// Apply the consequences through the economy's serialized paths.
	if !acceptable {
		amount := 2
		if streak >= 2 {
			amount = 5
		}
		entry.PenaltyQueued = amount
		b.eco.QueuePenalty(agentName, types.Penalty{
			Type:   "poor_engagement",
			Amount: amount,
			Reason: fmt.Sprintf("poor engagement metrics (consecutive: %d)", streak),
			Cycle:  entry.Timestamp.Format("20060102"),
		})
		if streak >= poorStreakLimit {
			entry.ExtinctionRiskRaised = true
			b.eco.SetExtinctionRisk(agentName)
			logging.Get(logging.CategoryFeedback).Error(
				"agent %s extinction risk: %d consecutive poor engagement results", agentName, streak)
		} else {
			logging.Get(logging.CategoryFeedback).Warn(
				"agent %s penalized for poor engagement (consecutive: %d)", agentName, streak)
		}
	}
	if entry.QualityAdjustment != 0 {
		entry.NewQualityThreshold = b.eco.AdjustQualityThreshold(
			agentName, entry.QualityAdjustment, b.cfg.ThresholdFloor, b.cfg.ThresholdCeil)
	}

	b.mu.Lock()
	b.log = append(b.log, entry)
	b.mu.Unlock()
	if data, err := json.Marshal(entry); err == nil {
		if err := b.st.Append(store.StreamFeedback, data); err != nil {
			logging.Get(logging.CategoryStore).Error("failed to append feedback entry: %v", err)
		}
	}
	return &entry, nil
}

func (b *Bridge) saveMetricsLocked(agentName string) {
	m, ok := b.metrics[agentName]
	if !ok {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := b.st.Put(store.PrefixFeedback+agentName, data); err != nil {
		logging.Get(logging.CategoryStore).Error("failed to persist feedback metrics for %s: %v", agentName, err)
	}
}

// consecutivePoor counts the unacceptable streak at the tail of the
// history.
func consecutivePoor(history []HistoryEntry) int {
	n := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Acceptable {
			break
		}
		n++
	}
	return n
}

// ConsecutivePoor returns an agent's current unacceptable streak.
func (b *Bridge) ConsecutivePoor(agentName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.metrics[agentName]
	if !ok {
		return 0
	}
	return consecutivePoor(m.History)
}

// EngagementMetrics returns copies of every agent's metrics.
func (b *Bridge) EngagementMetrics() map[string]AgentMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]AgentMetrics, len(b.metrics))
	for name, m := range b.metrics {
		c := *m
		c.History = append([]HistoryEntry(nil), m.History...)
		out[name] = c
	}
	return out
}
