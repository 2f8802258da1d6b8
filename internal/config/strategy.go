package config

import "strings"

// ModelPriority selects how the listener walks a fallback plan's candidates.
type ModelPriority string

const (
	// PriorityAccuracyFirst prefers the first candidate and only demotes on
	// failure.
	PriorityAccuracyFirst ModelPriority = "accuracy-first"
	// PriorityCapacityFirst load-balances across candidates by available
	// capacity.
	PriorityCapacityFirst ModelPriority = "capacity-first"
)

// Stickiness controls whether later turns of a conversation pin to the model
// resolved for the first turn.
type Stickiness string

const (
	StickinessStrong Stickiness = "strong"
	StickinessWeak   Stickiness = "weak"
)

// FallbackPolicy bundles the knobs that govern candidate iteration.
type FallbackPolicy struct {
	// ModelPriority selects accuracy-first or capacity-first walking.
	ModelPriority ModelPriority `yaml:"model-priority" json:"model-priority"`

	// Stickiness pins subsequent conversation turns to the resolved model.
	Stickiness Stickiness `yaml:"stickiness" json:"stickiness"`

	// MaxModelHops bounds how many distinct candidates may be tried per
	// request. nil or 0 means unbounded (subject to candidate count).
	MaxModelHops *int `yaml:"max-model-hops,omitempty" json:"max-model-hops,omitempty"`
}

// DefaultFallbackPolicy returns accuracy-first, strong stickiness, no hop cap.
func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{
		ModelPriority: PriorityAccuracyFirst,
		Stickiness:    StickinessStrong,
	}
}

// ModelStrategy is a named, reusable fallback bundle referenced from mapping
// tables via "strategy:<id>" targets.
type ModelStrategy struct {
	// Candidates is the ordered list of model ids to attempt.
	Candidates []string `yaml:"candidates" json:"candidates"`

	// Policy governs iteration over the candidates.
	Policy FallbackPolicy `yaml:"policy" json:"policy"`
}

// NormalizedPolicy returns the strategy policy with empty fields defaulted.
func (s ModelStrategy) NormalizedPolicy() FallbackPolicy {
	p := s.Policy
	switch strings.ToLower(string(p.ModelPriority)) {
	case string(PriorityCapacityFirst):
		p.ModelPriority = PriorityCapacityFirst
	default:
		p.ModelPriority = PriorityAccuracyFirst
	}
	switch strings.ToLower(string(p.Stickiness)) {
	case string(StickinessWeak):
		p.Stickiness = StickinessWeak
	default:
		p.Stickiness = StickinessStrong
	}
	return p
}
