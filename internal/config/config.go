// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultBaseURL targets an OpenRouter-compatible endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultMaxToolIterations bounds the agent loop per user turn.
	DefaultMaxToolIterations = 4

	// DefaultRequestTimeout applies to non-streaming requests.
	DefaultRequestTimeout = 60 * time.Second

	// DefaultRequestsPerMinute throttles outgoing completion requests.
	DefaultRequestsPerMinute = 60
)

// envAPIKeys are checked in order when the config carries no key.
var envAPIKeys = []string{"LOOM_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY"}

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete loom configuration.
type Config struct {
	DefaultModel      string `toml:"default_model"`
	MaxToolIterations int    `toml:"max_tool_iterations"`
	SystemPrompt      string `toml:"system_prompt"`

	// ReasoningEffort requests reasoning from capable models ("low",
	// "medium", "high"); empty leaves it off.
	ReasoningEffort string `toml:"reasoning_effort"`

	Endpoint EndpointConfig `toml:"endpoint"`
	Sampling SamplingConfig `toml:"sampling"`
	Tools    ToolsConfig    `toml:"tools"`

	Models []ModelSpec `toml:"models"`
}

// EndpointConfig describes how to reach the completion endpoint.
type EndpointConfig struct {
	BaseURL           string `toml:"base_url"`
	APIKey            string `toml:"api_key"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MaxRetries        int    `toml:"max_retries"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// SamplingConfig carries optional sampling parameters passed through to the
// endpoint. Pointers distinguish "unset" from zero.
type SamplingConfig struct {
	Temperature *float64 `toml:"temperature"`
	TopP        *float64 `toml:"top_p"`
	Seed        *int     `toml:"seed"`
}

// ToolsConfig controls local tool execution.
type ToolsConfig struct {
	Enabled bool     `toml:"enabled"`
	Allowed []string `toml:"allowed"`
	WorkDir string   `toml:"work_dir"`
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// ModelSpec is one catalog entry.
type ModelSpec struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`

	// Tools reports whether the model may be offered tool schemas.
	Tools bool `toml:"tools"`

	// Reasoning is the model's reasoning capability: absent, native, or
	// "route to another model id when reasoning is requested".
	Reasoning ReasoningCapability `toml:"reasoning"`
}

// ReasoningCapability is either a boolean (the model reasons natively) or a
// model id string (requests with reasoning effort are routed there).
type ReasoningCapability struct {
	Supported bool
	RouteTo   string
}

// UnmarshalTOML accepts both `reasoning = true` and `reasoning = "model/id"`.
func (r *ReasoningCapability) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case bool:
		r.Supported = val
	case string:
		r.Supported = val != ""
		r.RouteTo = val
	default:
		return fmt.Errorf("reasoning: expected bool or string, got %T", v)
	}
	return nil
}

// Catalog resolves model ids, including reasoning-aware routing. It is
// passed explicitly wherever model resolution happens.
type Catalog struct {
	specs map[string]ModelSpec
}

// NewCatalog builds a catalog from specs.
func NewCatalog(specs []ModelSpec) *Catalog {
	c := &Catalog{specs: make(map[string]ModelSpec, len(specs))}
	for _, s := range specs {
		c.specs[s.ID] = s
	}
	return c
}

// Lookup returns the spec for a model id.
func (c *Catalog) Lookup(id string) (ModelSpec, bool) {
	spec, ok := c.specs[id]
	return spec, ok
}

// SupportsTools reports whether tool schemas may be offered to the model.
// Unknown models are assumed tool-capable; the endpoint is the authority.
func (c *Catalog) SupportsTools(id string) bool {
	spec, ok := c.specs[id]
	if !ok {
		return true
	}
	return spec.Tools
}

// ResolveModelID returns the model id to send for a request. When reasoning
// effort is requested and the selected model's capability is expressed as a
// routing target, the target id is substituted.
func (c *Catalog) ResolveModelID(selected, reasoningEffort string) string {
	if reasoningEffort == "" {
		return selected
	}
	spec, ok := c.specs[selected]
	if !ok || spec.Reasoning.RouteTo == "" {
		return selected
	}
	return spec.Reasoning.RouteTo
}

// =============================================================================
// LOADING
// =============================================================================

// ErrNoAPIKey is returned when neither config nor environment carries a key.
var ErrNoAPIKey = errors.New("no API key configured")

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".loom", "config.toml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultModel:      "openai/gpt-4o-mini",
		MaxToolIterations: DefaultMaxToolIterations,
		Endpoint: EndpointConfig{
			BaseURL:           DefaultBaseURL,
			TimeoutSeconds:    int(DefaultRequestTimeout.Seconds()),
			MaxRetries:        3,
			RequestsPerMinute: DefaultRequestsPerMinute,
		},
		Tools: ToolsConfig{
			Enabled: true,
			WorkDir: ".",
		},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist. Environment overrides are applied afterward.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides secrets and the base URL from the environment.
func (c *Config) applyEnv() {
	if c.Endpoint.APIKey == "" {
		for _, key := range envAPIKeys {
			if v := os.Getenv(key); v != "" {
				c.Endpoint.APIKey = v
				break
			}
		}
	}
	if v := os.Getenv("LOOM_API_BASE"); v != "" {
		c.Endpoint.BaseURL = v
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.MaxToolIterations <= 0 {
		return errors.New("max_tool_iterations must be positive")
	}
	if _, err := url.Parse(c.Endpoint.BaseURL); err != nil {
		return fmt.Errorf("invalid endpoint base_url: %w", err)
	}
	for _, spec := range c.Models {
		if spec.ID == "" {
			return errors.New("model catalog entry missing id")
		}
	}
	return nil
}

// RequestTimeout returns the configured non-streaming request timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.Endpoint.TimeoutSeconds <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.Endpoint.TimeoutSeconds) * time.Second
}

// Catalog builds the model catalog from the configured specs.
func (c *Config) Catalog() *Catalog {
	return NewCatalog(c.Models)
}
