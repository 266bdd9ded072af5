package economy

import (
	"testing"

	"llmpagerank/internal/types"
)

func TestRolloverWithinWindowIsNoop(t *testing.T) {
	e, now := newTestEconomy(t)
	e.SubmitInsight("steady", goodInsight(0.96), nil)

	*now = testStart.AddDate(0, 0, 3)
	if e.RolloverIfDue() {
		t.Error("rollover fired inside the cycle window")
	}
	if e.AgentBalance("steady") != 15 {
		t.Error("balance reset mid-cycle")
	}
}

func TestRolloverFoldsCycleIntoCumulativeRecord(t *testing.T) {
	e, now := newTestEconomy(t)
	e.SubmitInsight("steady", goodInsight(0.96), nil)

	*now = testStart.AddDate(0, 0, 8)
	if !e.RolloverIfDue() {
		t.Fatal("rollover should fire after the cycle window")
	}

	perf, _ := e.GetPerformance("steady")
	if perf.TotalCookies != 15 {
		t.Errorf("TotalCookies = %d, want 15", perf.TotalCookies)
	}
	if perf.CyclesActive != 1 {
		t.Errorf("CyclesActive = %d, want 1", perf.CyclesActive)
	}
	if perf.InsightsContributed != 1 {
		t.Errorf("InsightsContributed = %d, want 1", perf.InsightsContributed)
	}
	if perf.LastCycleQuality != 0.96 {
		t.Errorf("LastCycleQuality = %v, want 0.96", perf.LastCycleQuality)
	}
	if len(perf.EvolutionTrend) != 1 {
		t.Errorf("EvolutionTrend length = %d, want 1", len(perf.EvolutionTrend))
	}

	status := e.GetPoolStatus()
	if status.PoolRemaining != 100 {
		t.Errorf("pool = %d, want replenished 100", status.PoolRemaining)
	}
	if e.AgentBalance("steady") != 0 {
		t.Error("cycle balance should reset to 0")
	}
}

func TestStarvationAndCollectivePunishment(t *testing.T) {
	e, now := newTestEconomy(t)

	// "feast" earns well; "famine" is rejected and ends the cycle
	// under the starvation line.
	e.SubmitInsight("feast", goodInsight(0.96), nil)
	e.SubmitInsight("famine", goodInsight(0.5), nil)

	*now = testStart.AddDate(0, 0, 8)
	e.RolloverIfDue()

	famine, _ := e.GetPerformance("famine")
	if famine.StarvationEvents != 1 {
		t.Errorf("famine StarvationEvents = %d, want 1", famine.StarvationEvents)
	}

	// The non-starved agent carries the collective punishment.
	feast, _ := e.GetPerformance("feast")
	if len(feast.Penalties) != 1 {
		t.Fatalf("feast penalties = %d, want 1", len(feast.Penalties))
	}
	if feast.Penalties[0].Type != "collective_starvation" {
		t.Errorf("penalty type = %s", feast.Penalties[0].Type)
	}
	if feast.Penalties[0].Amount != 5 {
		t.Errorf("penalty amount = %d, want 5", feast.Penalties[0].Amount)
	}
	if len(famine.Penalties) != 0 {
		t.Error("the starving agent must not be punished for its own starvation")
	}
}

func TestNonEvolvingAgentPenalized(t *testing.T) {
	e, now := newTestEconomy(t)

	// Cycle 1: high quality. First tracked cycle always counts as
	// evolved.
	e.SubmitInsight("plateau", goodInsight(0.96), nil)
	*now = testStart.AddDate(0, 0, 8)
	e.RolloverIfDue()

	perf, _ := e.GetPerformance("plateau")
	if len(perf.Penalties) != 0 {
		t.Fatalf("first cycle should not penalize, got %d penalties", len(perf.Penalties))
	}

	// Cycle 2: same quality. Delta 0 is under the evolution minimum.
	e.SubmitInsight("plateau", goodInsight(0.96), nil)
	*now = testStart.AddDate(0, 0, 16)
	e.RolloverIfDue()

	perf, _ = e.GetPerformance("plateau")
	found := false
	for _, p := range perf.Penalties {
		if p.Type == "quality_decline" {
			found = true
			if p.Amount != 8 {
				t.Errorf("quality_decline amount = %d, want 8", p.Amount)
			}
		}
	}
	if !found {
		t.Error("non-evolving agent should carry a quality_decline penalty")
	}
	if perf.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", perf.ConsecutiveFailures)
	}
}

func TestRepeatedStarvationFlagsExtinctionRisk(t *testing.T) {
	e, now := newTestEconomy(t)
	e.Register("flatline")

	// Three idle cycles, each ending under the starvation line.
	for day := 8; day <= 24; day += 8 {
		*now = testStart.AddDate(0, 0, day)
		e.RolloverIfDue()
	}

	perf, _ := e.GetPerformance("flatline")
	if perf.StarvationEvents != 3 {
		t.Errorf("StarvationEvents = %d, want 3", perf.StarvationEvents)
	}
	if !perf.ExtinctionRisk {
		t.Error("three starvation events should flag extinction risk")
	}
}

func TestStrataPromotionAtCycleEnd(t *testing.T) {
	e, now := newTestEconomy(t)

	// Three capped payouts put the cycle balance over the gold line.
	brands := [][]string{{"a"}, {"b"}, {"c"}}
	for _, b := range brands {
		insight := goodInsight(0.96)
		insight.Brands = b
		e.SubmitInsight("star", insight, nil)
	}
	if e.AgentBalance("star") <= 30 {
		t.Fatalf("balance = %d, expected above gold line", e.AgentBalance("star"))
	}

	*now = testStart.AddDate(0, 0, 8)
	e.RolloverIfDue()

	perf, _ := e.GetPerformance("star")
	if perf.Strata != types.StrataGold {
		t.Errorf("strata = %s, want gold", perf.Strata)
	}
	if len(perf.StrataHistory) != 1 {
		t.Errorf("strata history length = %d, want 1", len(perf.StrataHistory))
	}
}

func TestExtinctAgentSkippedAtRollover(t *testing.T) {
	e, now := newTestEconomy(t)
	e.SubmitInsight("ghost", goodInsight(0.96), nil)
	e.MarkExtinct("ghost")

	*now = testStart.AddDate(0, 0, 8)
	e.RolloverIfDue()

	perf, _ := e.GetPerformance("ghost")
	if perf.CyclesActive != 0 {
		t.Error("extinct agent should not accrue cycle stats")
	}
	if _, tracked := e.AllPerformance()["ghost"]; !tracked {
		t.Error("extinct record must remain for audit")
	}
	assertInvariant(t, e)
}
