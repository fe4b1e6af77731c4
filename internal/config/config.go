// Package config loads attngrader configuration from a single JSON document.
// The file is read once at startup; a missing file falls back to defaults
// while a malformed one is fatal.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultPath is where the grader looks for configuration.
const DefaultPath = ".attngrader/config.json"

// Config holds all attngrader configuration.
type Config struct {
	Providers    ProvidersConfig    `json:"llm_providers"`
	RateLimiting RateLimitingConfig `json:"rate_limiting"`
	Cache        CacheConfig        `json:"cache"`
	Educational  EducationalConfig  `json:"educational_settings"`
	Grading      GradingConfig      `json:"grading"`
	DebugMode    bool               `json:"debug_mode"`
}

// ProvidersConfig declares the judge providers. Fallback is optional.
type ProvidersConfig struct {
	Primary  ProviderConfig  `json:"primary"`
	Fallback *ProviderConfig `json:"fallback,omitempty"`
}

// ProviderConfig declares one judge provider. Kind selects the wire
// protocol: "ollama" (local model server) or "openai" (hosted
// chat-completions API).
type ProviderConfig struct {
	Provider      string            `json:"provider"`
	BaseURL       string            `json:"base_url,omitempty"`
	Models        map[string]string `json:"models"`
	Parameters    ParametersConfig  `json:"parameters"`
	TimeoutSec    int               `json:"timeout"`
	RetryAttempts int               `json:"retry_attempts"`
}

// ParametersConfig holds generation request parameters.
type ParametersConfig struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float64 `json:"top_p"`
}

// RateLimitingConfig bounds judge request rate.
type RateLimitingConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	BurstLimit        int `json:"burst_limit"`
}

// CacheConfig controls the verdict cache.
type CacheConfig struct {
	Enabled    bool   `json:"enabled"`
	CacheDir   string `json:"cache_dir"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// EducationalConfig tunes the judge prompts.
type EducationalConfig struct {
	ExplanationStyle string `json:"explanation_style"`
}

// GradingConfig controls report output.
type GradingConfig struct {
	OutputDir string `json:"output_dir"`
}

// Default returns the configuration used when no file exists: local Ollama
// primary, hosted OpenAI fallback, caching on for a day.
func Default() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Primary: ProviderConfig{
				Provider: "ollama",
				BaseURL:  "http://localhost:11434",
				Models: map[string]string{
					"default":          "qwen2.5-coder:7b",
					"educational":      "qwen2.5-coder:7b",
					"code_explanation": "qwen2.5-coder:7b",
				},
				Parameters:    ParametersConfig{Temperature: 0.3, MaxTokens: 2048, TopP: 0.9},
				TimeoutSec:    120,
				RetryAttempts: 3,
			},
			Fallback: &ProviderConfig{
				Provider: "openai",
				Models: map[string]string{
					"default":          "gpt-4o-mini",
					"educational":      "gpt-4o-mini",
					"code_explanation": "gpt-4o-mini",
				},
				Parameters:    ParametersConfig{Temperature: 0.3, MaxTokens: 2048, TopP: 0.9},
				TimeoutSec:    60,
				RetryAttempts: 3,
			},
		},
		RateLimiting: RateLimitingConfig{RequestsPerMinute: 20, BurstLimit: 5},
		Cache:        CacheConfig{Enabled: true, CacheDir: ".attngrader/cache", TTLSeconds: 86400},
		Educational:  EducationalConfig{ExplanationStyle: "detailed"},
		Grading:      GradingConfig{OutputDir: "grade"},
	}
}

// Load reads configuration from path. A missing file yields Default();
// malformed or invalid content is an error, fatal to the caller.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON in config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	if err := c.Providers.Primary.validate("primary"); err != nil {
		return err
	}
	if c.Providers.Fallback != nil {
		if err := c.Providers.Fallback.validate("fallback"); err != nil {
			return err
		}
	}
	if c.RateLimiting.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limiting.requests_per_minute must be positive")
	}
	if c.Cache.Enabled && c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive when cache is enabled")
	}
	if c.Cache.Enabled && c.Cache.CacheDir == "" {
		return fmt.Errorf("cache.cache_dir must be set when cache is enabled")
	}
	if c.Grading.OutputDir == "" {
		return fmt.Errorf("grading.output_dir must be set")
	}
	return nil
}

func (p *ProviderConfig) validate(role string) error {
	switch p.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("llm_providers.%s.provider must be ollama or openai, got %q", role, p.Provider)
	}
	if len(p.Models) == 0 {
		return fmt.Errorf("llm_providers.%s.models must not be empty", role)
	}
	if p.TimeoutSec <= 0 {
		return fmt.Errorf("llm_providers.%s.timeout must be positive", role)
	}
	if p.RetryAttempts <= 0 {
		return fmt.Errorf("llm_providers.%s.retry_attempts must be positive", role)
	}
	return nil
}
