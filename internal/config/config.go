// Package config loads and validates the bot configuration from YAML.
//
// Environment variables referenced as ${VAR} in the file are expanded
// before parsing, so secrets stay out of the config file itself.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the bot process.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Discord  DiscordConfig `yaml:"discord"`
	LLM      LLMConfig     `yaml:"llm"`
	Engine   EngineConfig  `yaml:"engine"`
	Store    StoreConfig   `yaml:"store"`
	Digest   DigestConfig  `yaml:"digest"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// DiscordConfig configures the Discord connection.
type DiscordConfig struct {
	Token string `yaml:"token"`
}

// LLMConfig configures the model provider endpoint and model identities.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// PrimaryModel handles normal turns; FallbackModel is substituted
	// once per turn when the primary truncates to an empty response.
	PrimaryModel  string `yaml:"primary_model"`
	FallbackModel string `yaml:"fallback_model"`

	MaxTokens         int           `yaml:"max_tokens"`
	FallbackMaxTokens int           `yaml:"fallback_max_tokens"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
}

// EngineConfig configures turn processing behavior.
type EngineConfig struct {
	MaxToolRounds int    `yaml:"max_tool_rounds"`
	WakePhrase    string `yaml:"wake_phrase"`
	HistoryLimit  int    `yaml:"history_limit"`
}

// StoreConfig configures the persistent store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// DigestConfig configures the weekly project digest.
type DigestConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Schedule  string `yaml:"schedule"`
	ChannelID string `yaml:"channel_id"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads a config file, expands environment references, parses it,
// and applies defaults via Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("config: discord.token is required")
	}

	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("config: llm.api_key is required")
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://router.requesty.ai/v1"
	}
	if c.LLM.PrimaryModel == "" {
		c.LLM.PrimaryModel = "openai/gpt-5-nano"
	}
	if c.LLM.FallbackModel == "" {
		c.LLM.FallbackModel = "openai/gpt-4o-mini"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 12000
	}
	if c.LLM.FallbackMaxTokens <= 0 {
		c.LLM.FallbackMaxTokens = 256
	}
	if c.LLM.CallTimeout <= 0 {
		c.LLM.CallTimeout = 60 * time.Second
	}

	if c.Engine.MaxToolRounds <= 0 {
		c.Engine.MaxToolRounds = 5
	}
	if c.Engine.WakePhrase == "" {
		c.Engine.WakePhrase = "brrr"
	}
	if c.Engine.HistoryLimit <= 0 {
		c.Engine.HistoryLimit = 5
	}

	if c.Store.Path == "" {
		c.Store.Path = "data/brrr.db"
	}

	if c.Digest.Enabled {
		if c.Digest.Schedule == "" {
			c.Digest.Schedule = "0 9 * * MON"
		}
		if c.Digest.ChannelID == "" {
			return fmt.Errorf("config: digest.channel_id is required when digest is enabled")
		}
	}

	return nil
}
