package router

import (
	"strings"

	"github.com/antigravity-tools/agproxy/internal/config"
	log "github.com/sirupsen/logrus"
)

// RoutePlan is the resolved dispatch plan for one request: a primary target,
// ordered fallbacks, and the policy governing how the listener walks them.
type RoutePlan struct {
	Primary    string
	Fallbacks  []string
	Policy     config.FallbackPolicy
	StrategyID string
}

// Candidates returns the primary followed by the fallbacks, skipping empties.
func (p *RoutePlan) Candidates() []string {
	list := make([]string, 0, 1+len(p.Fallbacks))
	if p.Primary != "" {
		list = append(list, p.Primary)
	}
	for _, fb := range p.Fallbacks {
		if fb != "" {
			list = append(list, fb)
		}
	}
	return list
}

// MaxModels returns how many distinct candidates may be tried for one
// request: the candidate count clamped by the policy's hop cap, never below 1.
func (p *RoutePlan) MaxModels() int {
	count := len(p.Candidates())
	if hops := p.Policy.MaxModelHops; hops != nil && *hops > 0 && *hops < count {
		return *hops
	}
	if count < 1 {
		return 1
	}
	return count
}

// IsCapacityFirst reports whether the listener should load-balance across
// candidates instead of preferring the most accurate one.
func (p *RoutePlan) IsCapacityFirst() bool {
	return p.Policy.ModelPriority == config.PriorityCapacityFirst
}

// IsSticky reports whether later conversation turns pin to the resolved model.
func (p *RoutePlan) IsSticky() bool {
	return p.Policy.Stickiness != config.StickinessWeak
}

// ResolvePlan wraps Resolve and expands strategy sentinels into full plans.
//
// A "strategy:<id>" target names a ModelStrategy whose candidates become the
// plan. Candidates are trimmed; empty and sentinel-prefixed entries are
// dropped (strategies never nest). A missing or empty strategy falls back to
// a single-candidate plan with the default policy.
func ResolvePlan(model string, custom, openai, anthropic map[string]string, strategies map[string]config.ModelStrategy, applyClaudeFamily bool) RoutePlan {
	target := Resolve(model, custom, openai, anthropic, applyClaudeFamily)

	if id, ok := strings.CutPrefix(target, StrategyPrefix); ok {
		if strategy, found := strategies[id]; found {
			candidates := make([]string, 0, len(strategy.Candidates))
			for _, c := range strategy.Candidates {
				c = strings.TrimSpace(c)
				if c == "" || strings.HasPrefix(c, StrategyPrefix) {
					continue
				}
				candidates = append(candidates, c)
			}
			if len(candidates) > 0 {
				return RoutePlan{
					Primary:    candidates[0],
					Fallbacks:  candidates[1:],
					Policy:     strategy.NormalizedPolicy(),
					StrategyID: id,
				}
			}
			log.Warnf("[router] strategy %q has no valid candidates, falling back to default mapping", id)
		} else {
			log.Warnf("[router] strategy %q not found, falling back to default mapping", id)
		}
	}

	primary := target
	if strings.HasPrefix(target, StrategyPrefix) {
		primary = MapToBuiltin(model)
	}
	return RoutePlan{
		Primary: primary,
		Policy:  config.DefaultFallbackPolicy(),
	}
}
