// Package config declares the orchestration engine's declarative,
// file/env-driven configuration. Grounded on the teacher's plain-struct
// Config-with-DefaultConfig() convention (runtime/a2a/retry.Config), extended
// with YAML tags so it loads via gopkg.in/yaml.v3; the zero value already
// falls back to sane in-memory defaults so the engine runs unconfigured.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chuk-ai/toolgraph/promptbuilder"
)

// StoreBackend names a session.Store implementation. No package in this
// module reads it to choose a store; the demo command always uses the
// in-memory store.
type StoreBackend string

const (
	StoreInMemory StoreBackend = "inmem"
	StoreFile     StoreBackend = "file"
	StoreRedis    StoreBackend = "redis"
	StoreMongo    StoreBackend = "mongo"
)

// RetryPolicy configures the tool processor's retry-with-backoff loop.
type RetryPolicy struct {
	Enabled    bool          `yaml:"enabled"`
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

// FileStoreConfig configures the file-backed session store.
type FileStoreConfig struct {
	Directory string `yaml:"directory"`
	AutoSave  bool   `yaml:"auto_save"`
}

// RedisStoreConfig configures the redis-backed session store.
type RedisStoreConfig struct {
	Addr      string        `yaml:"addr"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// MongoStoreConfig configures the mongo-backed session store.
type MongoStoreConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Config is the top-level, YAML-loadable configuration for the
// orchestration engine.
type Config struct {
	// Concurrency bounds how many tool calls run in parallel within a batch.
	Concurrency int `yaml:"concurrency"`
	// ToolTimeout is a per-call tool timeout carried as configuration only:
	// no package in this module reads it, so tool invocations are bounded
	// only by the deadline of the context they are called with.
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	// ProceedOnPartialFailure controls whether the executor continues past a
	// batch containing a failed step.
	ProceedOnPartialFailure bool `yaml:"proceed_on_partial_failure"`

	Retry RetryPolicy `yaml:"retry"`

	// EnableCaching turns on the tool processor's argument-hash result cache.
	EnableCaching bool `yaml:"enable_caching"`

	// StoreBackend selects the session store implementation.
	StoreBackend StoreBackend     `yaml:"store_backend"`
	FileStore    FileStoreConfig  `yaml:"file_store"`
	RedisStore   RedisStoreConfig `yaml:"redis_store"`
	MongoStore   MongoStoreConfig `yaml:"mongo_store"`

	// PromptStrategy is the default prompt-building strategy.
	PromptStrategy promptbuilder.Strategy `yaml:"prompt_strategy"`
	// TokenBudget, if > 0, truncates built prompts to this many estimated
	// tokens.
	TokenBudget int `yaml:"token_budget"`
}

// Default returns the engine's zero-configuration defaults: an in-memory
// session store, a small bounded concurrency limit, retries enabled with a
// short base delay, and the conversation prompt strategy.
func Default() Config {
	return Config{
		Concurrency:             3,
		ToolTimeout:             30 * time.Second,
		ProceedOnPartialFailure: true,
		Retry: RetryPolicy{
			Enabled:    true,
			MaxRetries: 2,
			BaseDelay:  time.Second,
		},
		EnableCaching:  true,
		StoreBackend:   StoreInMemory,
		PromptStrategy: promptbuilder.StrategyConversation,
		TokenBudget:    0,
	}
}

// withDefaults replaces a non-positive Concurrency, ToolTimeout,
// Retry.MaxRetries or Retry.BaseDelay, and an empty StoreBackend or
// PromptStrategy, with Default()'s value, so a partially-specified YAML
// document still yields a fully usable Config. Boolean fields are left as
// they are.
func (c Config) withDefaults() Config {
	d := Default()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = d.ToolTimeout
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry.MaxRetries = d.Retry.MaxRetries
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = d.Retry.BaseDelay
	}
	if c.StoreBackend == "" {
		c.StoreBackend = d.StoreBackend
	}
	if c.PromptStrategy == "" {
		c.PromptStrategy = d.PromptStrategy
	}
	return c
}

// Load reads and parses a YAML configuration file at path, applying defaults
// to any field the file leaves unset.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c.withDefaults(), nil
}
