// Package config provides configuration management for the proxy server.
// It handles loading and parsing YAML configuration files, and provides
// structured access to application settings including listener port, routing
// tables, fallback strategies, account scheduling, and upstream proxy options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the on-disk application configuration document. The proxy
// core only owns the "proxy" key; other keys are preserved for the shells.
type AppConfig struct {
	// Proxy holds the reverse-proxy configuration snapshot.
	Proxy ProxyConfig `yaml:"proxy" json:"proxy"`

	// Extra carries the document's other top-level keys through a load and
	// save round trip unchanged.
	Extra map[string]any `yaml:",inline" json:"-"`
}

// ProxyConfig aggregates everything one running proxy instance needs. It is
// treated as an immutable value for the lifetime of that instance; edits only
// take effect on the next start.
type ProxyConfig struct {
	// Port is the network port on which the listener binds.
	Port int `yaml:"port" json:"port"`

	// AllowLAN binds the listener on all interfaces instead of loopback.
	AllowLAN bool `yaml:"allow-lan" json:"allow-lan"`

	// RequestTimeout is the per-request upstream timeout in seconds.
	RequestTimeout int `yaml:"request-timeout" json:"request-timeout"`

	// EnableLogging toggles the request monitor's ring buffer.
	EnableLogging bool `yaml:"enable-logging" json:"enable-logging"`

	// LogFile routes process logs to a rotating file when non-empty.
	LogFile string `yaml:"log-file,omitempty" json:"log-file,omitempty"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug,omitempty" json:"debug,omitempty"`

	// APIKeys is a list of keys for authenticating clients to this proxy.
	// Empty means no client authentication is required.
	APIKeys []string `yaml:"api-keys,omitempty" json:"api-keys,omitempty"`

	// CustomMapping holds user model overrides, highest routing precedence.
	// Keys are literal model ids or single-* glob patterns.
	CustomMapping map[string]string `yaml:"custom-mapping,omitempty" json:"custom-mapping,omitempty"`

	// OpenAIMapping holds family keys for OpenAI-originated requests
	// (gpt-4-series, gpt-4o-series, gpt-5-series).
	OpenAIMapping map[string]string `yaml:"openai-mapping,omitempty" json:"openai-mapping,omitempty"`

	// AnthropicMapping holds family keys for Anthropic-originated requests
	// (claude-4.5-series, claude-3.5-series, claude-default).
	AnthropicMapping map[string]string `yaml:"anthropic-mapping,omitempty" json:"anthropic-mapping,omitempty"`

	// ModelStrategies maps strategy ids to named fallback bundles referenced
	// by "strategy:<id>" mapping targets.
	ModelStrategies map[string]ModelStrategy `yaml:"model-strategies,omitempty" json:"model-strategies,omitempty"`

	// Scheduling configures account-pool selection.
	Scheduling SchedulingConfig `yaml:"scheduling" json:"scheduling"`

	// UpstreamProxy routes outbound requests through an HTTP or SOCKS5 proxy.
	UpstreamProxy UpstreamProxyConfig `yaml:"upstream-proxy" json:"upstream-proxy"`

	// Zai configures the optional secondary backend.
	Zai ZaiConfig `yaml:"zai" json:"zai"`

	// Experimental groups feature flags that may change without notice.
	Experimental ExperimentalConfig `yaml:"experimental" json:"experimental"`
}

// UpstreamProxyConfig describes an outbound proxy for upstream calls.
type UpstreamProxyConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
}

// ZaiDispatchMode controls how the secondary backend participates.
type ZaiDispatchMode string

const (
	ZaiDispatchOff       ZaiDispatchMode = "off"
	ZaiDispatchFallback  ZaiDispatchMode = "fallback"
	ZaiDispatchExclusive ZaiDispatchMode = "exclusive"
)

// ZaiConfig configures the optional secondary backend.
type ZaiConfig struct {
	Enabled      bool            `yaml:"enabled" json:"enabled"`
	DispatchMode ZaiDispatchMode `yaml:"dispatch-mode" json:"dispatch-mode"`
	APIKey       string          `yaml:"api-key,omitempty" json:"api-key,omitempty"`
}

// IsDispatching reports whether the secondary backend can serve traffic,
// which relaxes the non-empty-account precondition at start.
func (z ZaiConfig) IsDispatching() bool {
	return z.Enabled && z.DispatchMode != ZaiDispatchOff && z.DispatchMode != ""
}

// ExperimentalConfig groups unstable feature toggles.
type ExperimentalConfig struct {
	// DynamicModels includes generated image-model variants in /v1/models.
	DynamicModels bool `yaml:"dynamic-models,omitempty" json:"dynamic-models,omitempty"`

	// DisableCooling skips account cool-down after upstream failures.
	DisableCooling bool `yaml:"disable-cooling,omitempty" json:"disable-cooling,omitempty"`
}

// SecurityConfig is the listener-facing security snapshot derived from a
// ProxyConfig at start time.
type SecurityConfig struct {
	APIKeys  []string
	AllowLAN bool
}

// SecurityFromProxyConfig derives the listener security snapshot.
func SecurityFromProxyConfig(cfg *ProxyConfig) SecurityConfig {
	keys := make([]string, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return SecurityConfig{APIKeys: keys, AllowLAN: cfg.AllowLAN}
}

// GetBindAddress returns the interface the listener binds to.
func (c *ProxyConfig) GetBindAddress() string {
	if c.AllowLAN {
		return "0.0.0.0"
	}
	return "127.0.0.1"
}

// DefaultProxyConfig returns the configuration used when no file exists.
func DefaultProxyConfig() ProxyConfig {
	return ProxyConfig{
		Port:           8045,
		RequestTimeout: 120,
		EnableLogging:  true,
		Scheduling:     SchedulingConfig{Strategy: "priority", Retry: 1, Fallback: true},
		Zai:            ZaiConfig{DispatchMode: ZaiDispatchOff},
	}
}

// LoadAppConfig reads the application config document. A missing file yields
// the defaults rather than an error so first runs work unconfigured.
func LoadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &AppConfig{Proxy: DefaultProxyConfig()}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AppConfig{Proxy: DefaultProxyConfig()}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Proxy.Sanitize()
	return cfg, nil
}

// SaveAppConfig writes the application config document.
func SaveAppConfig(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Sanitize sets defaults and normalizes the configuration in place.
func (c *ProxyConfig) Sanitize() {
	if c == nil {
		return
	}
	// Port 0 is allowed and binds an ephemeral port.
	if c.Port < 0 || c.Port > 65535 {
		c.Port = DefaultProxyConfig().Port
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultProxyConfig().RequestTimeout
	}

	c.Scheduling.sanitize()

	c.CustomMapping = trimMapping(c.CustomMapping)
	c.OpenAIMapping = trimMapping(c.OpenAIMapping)
	c.AnthropicMapping = trimMapping(c.AnthropicMapping)

	if c.Zai.DispatchMode == "" {
		c.Zai.DispatchMode = ZaiDispatchOff
	}

	if len(c.ModelStrategies) > 0 {
		strategies := make(map[string]ModelStrategy, len(c.ModelStrategies))
		for id, s := range c.ModelStrategies {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				strategies[trimmed] = s
			}
		}
		c.ModelStrategies = strategies
	}
}

func trimMapping(m map[string]string) map[string]string {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
