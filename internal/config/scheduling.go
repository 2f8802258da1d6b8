package config

import "strings"

// SchedulingConfig defines the global account-pool selection strategy.
type SchedulingConfig struct {
	// Strategy defines how to select an account when multiple are available.
	// Options: "priority" (default), "load-balance", "round-robin", "sticky".
	Strategy string `yaml:"strategy" json:"strategy"`

	// Retry is the configured number of retries for failed requests per
	// account. It is loaded, sanitized and saved, but neither the token
	// manager nor the listener reads it: each candidate model gets one
	// upstream attempt.
	Retry int `yaml:"retry" json:"retry"`

	// Fallback is the configured account-failover switch. It is loaded and
	// saved, but neither the token manager nor the listener reads it; a
	// failed account always cools down and later attempts skip it.
	Fallback bool `yaml:"fallback" json:"fallback"`
}

func (s *SchedulingConfig) sanitize() {
	s.Strategy = strings.ToLower(strings.TrimSpace(s.Strategy))
	if s.Strategy == "" {
		s.Strategy = "priority"
	}
	if s.Retry < 0 {
		s.Retry = 3
	}
}
