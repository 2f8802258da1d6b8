package router

import (
	"strings"
	"testing"

	"github.com/antigravity-tools/agproxy/internal/config"
)

func intPtr(v int) *int { return &v }

func TestResolvePlan_StrategyCandidatesAndPolicy(t *testing.T) {
	custom := map[string]string{"gpt-4": "strategy:test-strategy"}
	strategies := map[string]config.ModelStrategy{
		"test-strategy": {
			Candidates: []string{"gemini-3-pro-high", "gemini-3-flash"},
			Policy: config.FallbackPolicy{
				ModelPriority: config.PriorityCapacityFirst,
				Stickiness:    config.StickinessWeak,
				MaxModelHops:  intPtr(1),
			},
		},
	}

	plan := ResolvePlan("gpt-4", custom, nil, nil, strategies, false)

	if plan.Primary != "gemini-3-pro-high" {
		t.Errorf("Primary = %q", plan.Primary)
	}
	if len(plan.Fallbacks) != 1 || plan.Fallbacks[0] != "gemini-3-flash" {
		t.Errorf("Fallbacks = %v", plan.Fallbacks)
	}
	if plan.StrategyID != "test-strategy" {
		t.Errorf("StrategyID = %q", plan.StrategyID)
	}
	if !plan.IsCapacityFirst() {
		t.Error("IsCapacityFirst() = false")
	}
	if plan.IsSticky() {
		t.Error("IsSticky() = true for weak stickiness")
	}
	if plan.MaxModels() != 1 {
		t.Errorf("MaxModels() = %d, want 1", plan.MaxModels())
	}
	if len(plan.Candidates()) != 2 {
		t.Errorf("Candidates() = %v", plan.Candidates())
	}
}

func TestResolvePlan_MissingStrategyFallsBack(t *testing.T) {
	custom := map[string]string{"claude-3-5-sonnet-20241022": "strategy:missing"}

	plan := ResolvePlan("claude-3-5-sonnet-20241022", custom, nil, nil, nil, false)

	if plan.Primary != "claude-sonnet-4-5" {
		t.Errorf("Primary = %q, want claude-sonnet-4-5", plan.Primary)
	}
	if len(plan.Fallbacks) != 0 {
		t.Errorf("Fallbacks = %v", plan.Fallbacks)
	}
	if plan.StrategyID != "" {
		t.Errorf("StrategyID = %q, want empty", plan.StrategyID)
	}
	if plan.Policy.ModelPriority != config.PriorityAccuracyFirst || plan.Policy.Stickiness != config.StickinessStrong {
		t.Errorf("Policy = %+v, want defaults", plan.Policy)
	}
}

func TestResolvePlan_FamilyMappingWithStrategy(t *testing.T) {
	anthropic := map[string]string{"claude-4.5-series": "strategy:claude-45-fallback"}
	strategies := map[string]config.ModelStrategy{
		"claude-45-fallback": {
			Candidates: []string{"claude-opus-4-5-thinking", "gemini-3-pro-high"},
		},
	}

	plan := ResolvePlan("claude-opus-4-5-20251101", nil, nil, anthropic, strategies, true)

	if plan.Primary != "claude-opus-4-5-thinking" {
		t.Errorf("Primary = %q", plan.Primary)
	}
	if len(plan.Fallbacks) != 1 || plan.Fallbacks[0] != "gemini-3-pro-high" {
		t.Errorf("Fallbacks = %v", plan.Fallbacks)
	}
	if plan.StrategyID != "claude-45-fallback" {
		t.Errorf("StrategyID = %q", plan.StrategyID)
	}
	if plan.Policy.ModelPriority != config.PriorityAccuracyFirst {
		t.Errorf("ModelPriority = %q, want accuracy-first default", plan.Policy.ModelPriority)
	}
	if plan.Policy.Stickiness != config.StickinessStrong {
		t.Errorf("Stickiness = %q, want strong default", plan.Policy.Stickiness)
	}
}

func TestResolvePlan_MaxModelHops(t *testing.T) {
	custom := map[string]string{"gpt-4": "strategy:short-list"}
	strategies := map[string]config.ModelStrategy{
		"short-list": {
			Candidates: []string{"gemini-3-pro-high", "gemini-3-flash", "gemini-2.5-flash"},
			Policy: config.FallbackPolicy{
				ModelPriority: config.PriorityAccuracyFirst,
				Stickiness:    config.StickinessStrong,
				MaxModelHops:  intPtr(2),
			},
		},
	}

	plan := ResolvePlan("gpt-4", custom, nil, nil, strategies, false)

	if plan.MaxModels() != 2 {
		t.Errorf("MaxModels() = %d, want 2", plan.MaxModels())
	}
	if len(plan.Candidates()) != 3 {
		t.Errorf("Candidates() len = %d, want 3", len(plan.Candidates()))
	}
}

func TestResolvePlan_CandidateIntegrity(t *testing.T) {
	custom := map[string]string{"gpt-4": "strategy:messy"}
	strategies := map[string]config.ModelStrategy{
		"messy": {
			Candidates: []string{"  gemini-3-pro-high  ", "", "strategy:nested", "   ", "gemini-3-flash"},
		},
	}

	plan := ResolvePlan("gpt-4", custom, nil, nil, strategies, false)

	candidates := plan.Candidates()
	if len(candidates) != 2 {
		t.Fatalf("Candidates() = %v, want 2 survivors", candidates)
	}
	for _, c := range candidates {
		if c == "" || strings.HasPrefix(c, StrategyPrefix) {
			t.Errorf("invalid candidate survived: %q", c)
		}
		if c != strings.TrimSpace(c) {
			t.Errorf("candidate not trimmed: %q", c)
		}
	}
}

func TestResolvePlan_EmptyStrategyFallsBack(t *testing.T) {
	custom := map[string]string{"gpt-4": "strategy:hollow"}
	strategies := map[string]config.ModelStrategy{
		"hollow": {Candidates: []string{"", "strategy:self"}},
	}

	plan := ResolvePlan("gpt-4", custom, nil, nil, strategies, false)

	// The sentinel failed to expand, so the plan drops to the builtin map of
	// the original input.
	if plan.Primary != "gemini-2.5-pro" {
		t.Errorf("Primary = %q, want gemini-2.5-pro", plan.Primary)
	}
	if plan.StrategyID != "" {
		t.Errorf("StrategyID = %q", plan.StrategyID)
	}
}

func TestRoutePlan_HopClampProperties(t *testing.T) {
	tests := []struct {
		name string
		plan RoutePlan
	}{
		{"no cap", RoutePlan{Primary: "a", Fallbacks: []string{"b", "c"}}},
		{"cap larger than list", RoutePlan{Primary: "a", Policy: config.FallbackPolicy{MaxModelHops: intPtr(9)}}},
		{"zero cap means unbounded", RoutePlan{Primary: "a", Fallbacks: []string{"b"}, Policy: config.FallbackPolicy{MaxModelHops: intPtr(0)}}},
		{"empty plan", RoutePlan{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.plan.MaxModels()
			if count := len(tt.plan.Candidates()); count > 0 && n > count {
				t.Errorf("MaxModels %d exceeds candidate count %d", n, count)
			}
			if n < 1 {
				t.Errorf("MaxModels = %d, want >= 1", n)
			}
		})
	}
}

func TestResolvePlan_NonSentinelSingleCandidate(t *testing.T) {
	plan := ResolvePlan("claude-opus-4", nil, nil, nil, nil, false)
	if plan.Primary != "claude-opus-4-5-thinking" {
		t.Errorf("Primary = %q", plan.Primary)
	}
	if plan.StrategyID != "" || len(plan.Fallbacks) != 0 {
		t.Errorf("plan = %+v", plan)
	}
	if plan.MaxModels() != 1 {
		t.Errorf("MaxModels() = %d", plan.MaxModels())
	}
	if !plan.IsSticky() {
		t.Error("default policy should be sticky")
	}
}
