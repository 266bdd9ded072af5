package enforcement

import (
	"testing"
	"time"

	"llmpagerank/internal/config"
	"llmpagerank/internal/economy"
	"llmpagerank/internal/feedback"
	"llmpagerank/internal/store"
	"llmpagerank/internal/survival"
	"llmpagerank/internal/types"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	orc *Orchestrator
	eco *economy.Economy
	sur *survival.Evaluator
	fb  *feedback.Bridge
	now *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := testStart
	clock := func() time.Time { return now }
	st := store.NewMemStore()
	cfg := config.Default()

	eco, err := economy.New(cfg.Economy, st, economy.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	sur, err := survival.New(cfg.Survival, st, eco, survival.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	fb, err := feedback.New(cfg.Feedback, st, eco, feedback.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	orc, err := New(cfg, st, eco, sur, fb, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{orc: orc, eco: eco, sur: sur, fb: fb, now: &now}
}

// seedAgent submits one insight and feeds it engagement telemetry.
func seedAgent(t *testing.T, f *fixture, name, category string, engagement types.EngagementSnapshot) {
	t.Helper()
	_, _, err := f.eco.SubmitInsight(name, types.InsightData{
		Type:         types.InsightNewCitation,
		Content:      "brand rose from #4 to #2",
		QualityScore: 0.96,
		Brands:       []string{name},
		Category:     category,
		Domain:       "fintech",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := f.eco.LatestInsight(name)
	if !ok {
		t.Fatalf("no insight recorded for %s", name)
	}
	if _, err := f.fb.RecordEngagement(rec.ID, engagement); err != nil {
		t.Fatal(err)
	}
}

func actionsOf(result *Result, agentName, actionType string) []Action {
	var out []Action
	for _, a := range result.Actions {
		if a.AgentName == agentName && a.Type == actionType {
			out = append(out, a)
		}
	}
	return out
}

func TestEnforcementPassQuartileActions(t *testing.T) {
	f := newFixture(t)

	seedAgent(t, f, "laggard", "citations", types.EngagementSnapshot{ClickRate: 0.05, RetentionTime: 5})
	seedAgent(t, f, "middling", "sentiment", types.EngagementSnapshot{ClickRate: 0.3, RetentionTime: 45})
	seedAgent(t, f, "solid", "rankings", types.EngagementSnapshot{ClickRate: 0.4, RetentionTime: 50})
	seedAgent(t, f, "star", "quotes", types.EngagementSnapshot{ClickRate: 0.9, RetentionTime: 60, ShareRate: 0.5})

	result := f.orc.RunEnforcement(false)
	if result.Status != "completed" {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.Benchmarks.AgentsMeasured != 4 {
		t.Fatalf("AgentsMeasured = %d, want 4", result.Benchmarks.AgentsMeasured)
	}
	if result.Benchmarks.BottomQuartile >= result.Benchmarks.TopQuartile {
		t.Fatalf("quartiles inverted: %+v", result.Benchmarks)
	}

	// The laggard sits under the bottom quartile with a one-deep poor
	// streak: small penalty, bar raised.
	penalties := actionsOf(result, "laggard", "penalty")
	if len(penalties) != 1 {
		t.Fatalf("laggard penalty actions = %d, want 1", len(penalties))
	}
	if penalties[0].CookieDelta != -slippingPenalty {
		t.Errorf("penalty delta = %d, want %d", penalties[0].CookieDelta, -slippingPenalty)
	}

	// The star clears the top quartile: bonus plus a relaxed bar.
	bonuses := actionsOf(result, "star", "bonus")
	if len(bonuses) != 1 {
		t.Fatalf("star bonus actions = %d, want 1", len(bonuses))
	}
	if bonuses[0].CookieDelta != excellenceBonus {
		t.Errorf("bonus delta = %d, want %d", bonuses[0].CookieDelta, excellenceBonus)
	}
	if bonuses[0].ThresholdDelta >= 0 {
		t.Error("overperformer should get a relaxed threshold")
	}

	// Middle of the field is untouched.
	for _, name := range []string{"middling", "solid"} {
		if len(actionsOf(result, name, "penalty"))+len(actionsOf(result, name, "bonus")) != 0 {
			t.Errorf("agent %s should not be touched", name)
		}
	}

	// Engagement sits mid-band, no global nudge.
	if result.GlobalAdjustment != 0 {
		t.Errorf("global adjustment = %v, want 0", result.GlobalAdjustment)
	}
}

func TestEnforcementCadenceWaiting(t *testing.T) {
	f := newFixture(t)
	f.eco.Register("lone")

	first := f.orc.RunEnforcement(false)
	if first.Status != "completed" {
		t.Fatalf("cold start pass status = %s", first.Status)
	}

	second := f.orc.RunEnforcement(false)
	if second.Status != "waiting" {
		t.Fatalf("status = %s, want waiting inside cadence", second.Status)
	}
	if second.DaysRemaining != 3 {
		t.Errorf("DaysRemaining = %d, want 3", second.DaysRemaining)
	}

	// force overrides the window.
	forced := f.orc.RunEnforcement(true)
	if forced.Status != "completed" {
		t.Errorf("forced status = %s, want completed", forced.Status)
	}

	// And the window reopens with time.
	*f.now = testStart.AddDate(0, 0, 4)
	late := f.orc.RunEnforcement(false)
	if late.Status != "completed" {
		t.Errorf("status after window = %s, want completed", late.Status)
	}
}

func TestChronicUnderperformerDemotedThenRemoved(t *testing.T) {
	f := newFixture(t)

	poor := types.EngagementSnapshot{ClickRate: 0.05, RetentionTime: 5}
	seedAgent(t, f, "chronic", "citations", poor)
	seedAgent(t, f, "star", "quotes", types.EngagementSnapshot{ClickRate: 0.9, RetentionTime: 60, ShareRate: 0.5})

	// Second poor result: the streak reaches two.
	rec, _ := f.eco.LatestInsight("chronic")
	if _, err := f.fb.RecordEngagement(rec.ID, poor); err != nil {
		t.Fatal(err)
	}

	result := f.orc.RunEnforcement(true)
	if len(actionsOf(result, "chronic", "demotion")) != 1 {
		t.Fatalf("expected a demotion for chronic, actions: %+v", result.Actions)
	}

	// Third poor result pushes the streak to the removal line.
	if _, err := f.fb.RecordEngagement(rec.ID, poor); err != nil {
		t.Fatal(err)
	}
	*f.now = testStart.AddDate(0, 0, 4)
	result = f.orc.RunEnforcement(true)
	if len(actionsOf(result, "chronic", "extinction")) != 1 {
		t.Fatalf("expected an extinction for chronic, actions: %+v", result.Actions)
	}
	perf, _ := f.eco.GetPerformance("chronic")
	if !perf.Extinct {
		t.Error("chronic underperformer should be extinct in the economy")
	}
}

func TestPassAppliesRemovalAndRewardTogether(t *testing.T) {
	f := newFixture(t)

	// One chronic laggard at the removal line and one star in the same
	// pass: both consequences come out of a single classified plan.
	poor := types.EngagementSnapshot{ClickRate: 0.05, RetentionTime: 5}
	seedAgent(t, f, "spent", "citations", poor)
	seedAgent(t, f, "star", "quotes", types.EngagementSnapshot{ClickRate: 0.9, RetentionTime: 60, ShareRate: 0.5})
	rec, _ := f.eco.LatestInsight("spent")
	for i := 0; i < 2; i++ {
		if _, err := f.fb.RecordEngagement(rec.ID, poor); err != nil {
			t.Fatal(err)
		}
	}

	before := f.eco.AgentBalance("star")
	result := f.orc.RunEnforcement(true)

	if len(actionsOf(result, "spent", "extinction")) != 1 {
		t.Fatalf("expected an extinction for spent, actions: %+v", result.Actions)
	}
	bonuses := actionsOf(result, "star", "bonus")
	if len(bonuses) != 1 {
		t.Fatalf("expected a bonus for star, actions: %+v", result.Actions)
	}
	if perf, _ := f.eco.GetPerformance("spent"); !perf.Extinct {
		t.Error("spent should be extinct in the economy")
	}
	if got := f.eco.AgentBalance("star"); got != before+bonuses[0].CookieDelta {
		t.Errorf("star balance = %d, want %d", got, before+bonuses[0].CookieDelta)
	}
}

func TestGlobalNudgeWhenEngagementBroadlyPoor(t *testing.T) {
	f := newFixture(t)

	low := types.EngagementSnapshot{ClickRate: 0.05, RetentionTime: 10}
	seedAgent(t, f, "a", "citations", low)
	seedAgent(t, f, "b", "sentiment", low)

	result := f.orc.RunEnforcement(false)
	if result.GlobalAdjustment != globalRaiseStep {
		t.Fatalf("global adjustment = %v, want +%v", result.GlobalAdjustment, globalRaiseStep)
	}
}

func TestResultsPersistAcrossRestart(t *testing.T) {
	now := testStart
	clock := func() time.Time { return now }
	st := store.NewMemStore()
	cfg := config.Default()

	eco, _ := economy.New(cfg.Economy, st, economy.WithClock(clock))
	sur, _ := survival.New(cfg.Survival, st, eco, survival.WithClock(clock))
	fb, _ := feedback.New(cfg.Feedback, st, eco, feedback.WithClock(clock))
	orc, err := New(cfg, st, eco, sur, fb, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	eco.Register("lone")
	orc.RunEnforcement(false)

	restored, err := New(cfg, st, eco, sur, fb, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	if len(restored.Results()) != 1 {
		t.Fatalf("restored results = %d, want 1", len(restored.Results()))
	}
	// The restored cadence blocks an immediate unforced pass.
	if r := restored.RunEnforcement(false); r.Status != "waiting" {
		t.Errorf("status = %s, want waiting after restore", r.Status)
	}
}
