package types

import "testing"

func TestEngagementScore(t *testing.T) {
	tests := []struct {
		name string
		snap EngagementSnapshot
		want float64
	}{
		{"zero", EngagementSnapshot{}, 0},
		{"full signal", EngagementSnapshot{ClickRate: 1, RetentionTime: 60, ShareRate: 1}, 1.0},
		{"retention capped at a minute", EngagementSnapshot{RetentionTime: 600}, 0.4},
		{"half retention", EngagementSnapshot{RetentionTime: 30}, 0.2},
		{"click only", EngagementSnapshot{ClickRate: 0.5}, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.snap.Score()
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeetsMinimumSignal(t *testing.T) {
	tests := []struct {
		name string
		snap EngagementSnapshot
		want bool
	}{
		{"nothing", EngagementSnapshot{}, false},
		{"all below floors", EngagementSnapshot{ClickRate: 0.09, RetentionTime: 19, ShareRate: 0.04, RequeryRate: 0.02}, false},
		{"click clears", EngagementSnapshot{ClickRate: 0.10}, true},
		{"retention clears", EngagementSnapshot{RetentionTime: 20}, true},
		{"share clears", EngagementSnapshot{ShareRate: 0.05}, true},
		{"requery clears", EngagementSnapshot{RequeryRate: 0.03}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.MeetsMinimumSignal(); got != tt.want {
				t.Errorf("MeetsMinimumSignal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInsightTypeActionable(t *testing.T) {
	for _, typ := range []InsightType{
		InsightNewCitation, InsightComparative, InsightEventDrivenShift,
		InsightMemoryRecovery, InsightUserInteraction,
	} {
		if !typ.Actionable() {
			t.Errorf("%s should be actionable", typ)
		}
	}
	if InsightType("ranking_chatter").Actionable() {
		t.Error("unknown insight type should not be actionable")
	}
}

func TestStrataTransitions(t *testing.T) {
	if got := DemotionOf(StrataGold); got != StrataSilver {
		t.Errorf("DemotionOf(gold) = %s, want silver", got)
	}
	if got := DemotionOf(StrataRust); got != StrataRust {
		t.Errorf("DemotionOf(rust) = %s, want rust", got)
	}
	if got := PromotionOf(StrataRust); got != StrataBronze {
		t.Errorf("PromotionOf(rust) = %s, want bronze", got)
	}
	if got := PromotionOf(StrataGold); got != StrataGold {
		t.Errorf("PromotionOf(gold) = %s, want gold", got)
	}
}
