package router

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// StrategyPrefix marks a mapping target as a named-strategy sentinel.
const StrategyPrefix = "strategy:"

// ResolutionSource identifies which rung of the precedence ladder produced a
// resolution, for diagnostic logging.
type ResolutionSource int

const (
	SourceCustomExact ResolutionSource = iota
	SourceCustomWildcard
	SourceOpenAIFamily
	SourceAnthropicFamily
	SourceHaikuDowngrade
	SourcePassthrough
	SourceSystem
	SourceDefault
)

func (s ResolutionSource) String() string {
	switch s {
	case SourceCustomExact:
		return "custom-exact"
	case SourceCustomWildcard:
		return "custom-wildcard"
	case SourceOpenAIFamily:
		return "openai-family"
	case SourceAnthropicFamily:
		return "anthropic-family"
	case SourceHaikuDowngrade:
		return "haiku-downgrade"
	case SourcePassthrough:
		return "passthrough"
	case SourceSystem:
		return "system"
	default:
		return "default"
	}
}

// Resolution carries a resolved target together with the rung and rule that
// produced it.
type Resolution struct {
	Target string
	Source ResolutionSource
	// Rule is the mapping key or pattern that matched, when one did.
	Rule string
}

// Resolve maps an incoming model id to a single target id.
//
// Precedence: exact custom override, wildcard custom override, OpenAI family
// tables, Anthropic family tables, built-in system map. applyClaudeFamily
// enables the haiku downgrade for CLI-originated traffic. Resolve never
// fails; unknown ids land on the default model.
func Resolve(model string, custom, openai, anthropic map[string]string, applyClaudeFamily bool) string {
	return ResolveDetailed(model, custom, openai, anthropic, applyClaudeFamily).Target
}

// ResolveDetailed is Resolve with the matched rung attached.
func ResolveDetailed(model string, custom, openai, anthropic map[string]string, applyClaudeFamily bool) Resolution {
	// 1. Exact custom override.
	if target, ok := custom[model]; ok {
		log.Infof("[router] exact mapping: %s -> %s", model, target)
		return Resolution{Target: target, Source: SourceCustomExact, Rule: model}
	}

	// 2. Wildcard custom override. Longest pattern wins so overlapping rules
	// resolve deterministically.
	if pattern, target, ok := matchWildcard(custom, model); ok {
		log.Infof("[router] wildcard mapping: %s -> %s (rule: %s)", model, target, pattern)
		return Resolution{Target: target, Source: SourceCustomWildcard, Rule: pattern}
	}

	lower := strings.ToLower(model)

	// 3. OpenAI family tables.
	// GPT-4 classic covers gpt-4 and o1/o3, excluding 4o/mini/turbo.
	if (strings.HasPrefix(lower, "gpt-4") && !strings.Contains(lower, "o") && !strings.Contains(lower, "mini") && !strings.Contains(lower, "turbo")) ||
		strings.HasPrefix(lower, "o1-") || strings.HasPrefix(lower, "o3-") || lower == "gpt-4" {
		if target, ok := openai["gpt-4-series"]; ok {
			log.Infof("[router] gpt-4 series mapping: %s -> %s", model, target)
			return Resolution{Target: target, Source: SourceOpenAIFamily, Rule: "gpt-4-series"}
		}
	}

	// GPT-4o / 3.5 covers the balanced and lightweight tier.
	if strings.Contains(lower, "4o") || strings.HasPrefix(lower, "gpt-3.5") ||
		(strings.Contains(lower, "mini") && !strings.Contains(lower, "gemini")) || strings.Contains(lower, "turbo") {
		if target, ok := openai["gpt-4o-series"]; ok {
			log.Infof("[router] gpt-4o/3.5 series mapping: %s -> %s", model, target)
			return Resolution{Target: target, Source: SourceOpenAIFamily, Rule: "gpt-4o-series"}
		}
	}

	// GPT-5 prefers its own table, then falls back to the gpt-4 table.
	if strings.HasPrefix(lower, "gpt-5") {
		if target, ok := openai["gpt-5-series"]; ok {
			log.Infof("[router] gpt-5 series mapping: %s -> %s", model, target)
			return Resolution{Target: target, Source: SourceOpenAIFamily, Rule: "gpt-5-series"}
		}
		if target, ok := openai["gpt-4-series"]; ok {
			log.Infof("[router] gpt-4 series mapping (gpt-5 fallback): %s -> %s", model, target)
			return Resolution{Target: target, Source: SourceOpenAIFamily, Rule: "gpt-4-series"}
		}
	}

	// 4. Anthropic family tables.
	if strings.HasPrefix(lower, "claude-") {
		// Built-in pass-through entries skip family mapping entirely.
		if mapped, ok := builtinTargets[model]; ok && mapped == model {
			log.Infof("[router] builtin pass-through, skipping family mapping: %s", model)
			return Resolution{Target: model, Source: SourcePassthrough}
		}

		if applyClaudeFamily && strings.Contains(lower, "haiku") {
			log.Infof("[router] haiku downgrade: %s -> gemini-2.5-flash-lite", model)
			return Resolution{Target: "gemini-2.5-flash-lite", Source: SourceHaikuDowngrade}
		}

		familyKey := "claude-default"
		if strings.Contains(lower, "4-5") || strings.Contains(lower, "4.5") {
			familyKey = "claude-4.5-series"
		} else if strings.Contains(lower, "3-5") || strings.Contains(lower, "3.5") {
			familyKey = "claude-3.5-series"
		}
		if target, ok := anthropic[familyKey]; ok {
			log.Warnf("[router] anthropic series mapping: %s -> %s", model, target)
			return Resolution{Target: target, Source: SourceAnthropicFamily, Rule: familyKey}
		}

		// Legacy exact matches in the anthropic table.
		if target, ok := anthropic[model]; ok {
			return Resolution{Target: target, Source: SourceAnthropicFamily, Rule: model}
		}
	}

	// 5. Built-in system map.
	if target, ok := builtinTargets[model]; ok {
		if target != model {
			log.Infof("[router] system mapping: %s -> %s", model, target)
		}
		return Resolution{Target: target, Source: SourceSystem, Rule: model}
	}
	if strings.HasPrefix(model, "gemini-") || strings.Contains(model, "thinking") {
		return Resolution{Target: model, Source: SourcePassthrough}
	}
	log.Infof("[router] system default: %s -> %s", model, DefaultModel)
	return Resolution{Target: DefaultModel, Source: SourceDefault}
}

// matchWildcard finds the winning wildcard rule for model. Patterns without a
// star never match here; longer patterns beat shorter ones, ties break
// lexicographically.
func matchWildcard(mapping map[string]string, model string) (pattern, target string, ok bool) {
	var candidates []string
	for p := range mapping {
		if strings.Contains(p, "*") && wildcardMatch(p, model) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return "", "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) > len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0], mapping[candidates[0]], true
}
