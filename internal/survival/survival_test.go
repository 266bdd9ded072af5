package survival

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"llmpagerank/internal/config"
	"llmpagerank/internal/economy"
	"llmpagerank/internal/store"
	"llmpagerank/internal/types"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ev  *Evaluator
	e   *economy.Economy
	now *time.Time
	st  store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := testStart
	clock := func() time.Time { return now }
	st := store.NewMemStore()

	e, err := economy.New(config.Default().Economy, st, economy.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	ev, err := New(config.Default().Survival, st, e, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{ev: ev, e: e, now: &now, st: st}
}

func submit(t *testing.T, e *economy.Economy, agent string, quality float64) {
	t.Helper()
	_, _, err := e.SubmitInsight(agent, types.InsightData{
		Type:         types.InsightNewCitation,
		Content:      "new citation surfaced",
		QualityScore: quality,
		Brands:       []string{"acme"},
		Category:     "citations",
		Domain:       "fintech",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestEvaluationRespectsCadence(t *testing.T) {
	f := newFixture(t)
	f.e.Register("lone")

	// Cold start allows an immediate sweep.
	if entry := f.ev.RunEvaluation(); entry == nil {
		t.Fatal("first evaluation after cold start should run")
	}
	// A second sweep inside the window is refused.
	if entry := f.ev.RunEvaluation(); entry != nil {
		t.Error("evaluation inside the cadence window should return nil")
	}
	// After the window it runs again.
	*f.now = testStart.AddDate(0, 0, 8)
	if entry := f.ev.RunEvaluation(); entry == nil {
		t.Error("evaluation after the cadence window should run")
	}
}

func TestRustWithRepeatedFailuresGoesExtinct(t *testing.T) {
	f := newFixture(t)

	// Three rejections: rust strata, extinction risk, three failures.
	for i := 0; i < 3; i++ {
		submit(t, f.e, "doomed", 0.3)
	}

	entry := f.ev.RunEvaluation()
	if entry == nil {
		t.Fatal("evaluation should run")
	}
	if len(entry.Extinct) != 1 || entry.Extinct[0].AgentName != "doomed" {
		t.Fatalf("extinct = %+v, want doomed", entry.Extinct)
	}
	if entry.Extinct[0].Reason != "consecutive_failures_in_rust_strata" {
		t.Errorf("reason = %s", entry.Extinct[0].Reason)
	}

	perf, _ := f.e.GetPerformance("doomed")
	if !perf.Extinct {
		t.Error("economy record should be flagged extinct")
	}
}

func TestExtinctionRiskWithoutImprovementGetsIntervention(t *testing.T) {
	f := newFixture(t)

	// Two rejections flag risk but leave failures under the extinction
	// threshold; no evolution trend means no measured improvement.
	submit(t, f.e, "stalled", 0.3)
	submit(t, f.e, "stalled", 0.3)

	entry := f.ev.RunEvaluation()
	if len(entry.Extinct) != 0 {
		t.Fatalf("unexpected extinction: %+v", entry.Extinct)
	}
	if len(entry.Interventions) != 1 || entry.Interventions[0].AgentName != "stalled" {
		t.Fatalf("interventions = %+v, want stalled", entry.Interventions)
	}
}

func TestImprovingRiskAgentGetsProbation(t *testing.T) {
	f := newFixture(t)

	// One good cycle builds a positive evolution trend, then risk is
	// flagged externally (e.g. by the feedback bridge).
	submit(t, f.e, "recovering", 0.9)
	*f.now = testStart.AddDate(0, 0, 8)
	f.e.RolloverIfDue()
	f.e.SetExtinctionRisk("recovering")

	entry := f.ev.RunEvaluation()
	if len(entry.Probations) != 1 {
		t.Fatalf("probations = %+v, want one for recovering", entry.Probations)
	}
	p := entry.Probations[0]
	if p.AgentName != "recovering" {
		t.Errorf("probation agent = %s", p.AgentName)
	}
	wantEnd := f.now.AddDate(0, 0, 14)
	if !p.ProbationEnd.Equal(wantEnd) {
		t.Errorf("probation end = %v, want %v (2x evaluation cycle)", p.ProbationEnd, wantEnd)
	}

	status, ok := f.ev.AgentStatus("recovering")
	if !ok || status.Status != "probation" {
		t.Errorf("status = %+v, want probation", status)
	}
}

func TestSingleFailureIsAtRiskOnly(t *testing.T) {
	f := newFixture(t)
	submit(t, f.e, "wobbly", 0.3)

	entry := f.ev.RunEvaluation()
	want := []AtRiskEntry{{
		AgentName:           "wobbly",
		Reason:              "at_risk_due_to_failures",
		CurrentStrata:       types.StrataBronze,
		ConsecutiveFailures: 1,
	}}
	if diff := cmp.Diff(want, entry.AtRisk); diff != "" {
		t.Errorf("at-risk mismatch (-want +got):\n%s", diff)
	}
	if len(entry.Extinct)+len(entry.Interventions)+len(entry.Probations) != 0 {
		t.Error("a single failure must not escalate past at-risk")
	}
}

func TestEvaluationPersistsAcrossRestart(t *testing.T) {
	f := newFixture(t)
	f.e.Register("survivor")
	f.ev.RunEvaluation()

	clock := func() time.Time { return *f.now }
	restored, err := New(config.Default().Survival, f.st, f.e, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	if len(restored.Evaluations()) != 1 {
		t.Errorf("restored evaluations = %d, want 1", len(restored.Evaluations()))
	}
	// The restored cadence blocks an immediate re-run.
	if entry := restored.RunEvaluation(); entry != nil {
		t.Error("restored evaluator should still honor the cadence window")
	}
}

func TestAgentStatusProjections(t *testing.T) {
	f := newFixture(t)

	submit(t, f.e, "healthy", 0.96)
	if status, ok := f.ev.AgentStatus("healthy"); !ok || status.Status != "adequate" {
		t.Errorf("healthy status = %+v, want adequate", status)
	}

	submit(t, f.e, "slipping", 0.3)
	if status, _ := f.ev.AgentStatus("slipping"); status.Status != "at_risk" {
		t.Errorf("slipping status = %s, want at_risk", status.Status)
	}

	submit(t, f.e, "doomed", 0.3)
	submit(t, f.e, "doomed", 0.3)
	if status, _ := f.ev.AgentStatus("doomed"); status.Status != "critical" {
		t.Errorf("doomed status = %s, want critical", status.Status)
	}

	f.ev.RemoveExtinctAgent("doomed")
	if status, _ := f.ev.AgentStatus("doomed"); status.Status != "extinct" {
		t.Errorf("post-removal status = %s, want extinct", status.Status)
	}

	if _, ok := f.ev.AgentStatus("stranger"); ok {
		t.Error("unknown agent should not have a status")
	}
}
