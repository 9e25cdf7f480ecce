// Package config loads host configuration from the environment.
// Variables are prefixed LOOM_, e.g. LOOM_CHUNK_SIZE=400.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/luno/jettison/errors"
)

// Config carries every tunable the workflows and providers consume.
// Components receive the values they need at construction; nothing
// reads the environment after startup.
type Config struct {
	// ChunkSize bounds the text pieces sent to the embedder.
	ChunkSize int `koanf:"chunk_size"`
	// VectorTopK is the retrieval depth for answering.
	VectorTopK int `koanf:"vector_top_k"`
	// TokenLimit feeds the guardrail character budget.
	TokenLimit int `koanf:"token_limit"`
	// ContentFilter enables denylist redaction.
	ContentFilter bool `koanf:"content_filter"`
	// MaxConcurrency bounds parallel activity executions per fan-out.
	MaxConcurrency int `koanf:"max_concurrency"`
	// ActivityTimeout is the per-activity call timeout.
	ActivityTimeout time.Duration `koanf:"activity_timeout"`
	// MaxAttempts bounds retries per activity call.
	MaxAttempts int `koanf:"max_attempts"`
	// ContextBudget bounds the assembled answer context in bytes.
	ContextBudget int `koanf:"context_budget"`
	// Temperature is the generation temperature for answering.
	Temperature float64 `koanf:"temperature"`

	// OpenAIKey enables the OpenAI embedder and chat provider. Empty
	// selects the deterministic stubs.
	OpenAIKey string `koanf:"openai_api_key"`
	// AnthropicKey, when set, routes agent chat through Anthropic.
	AnthropicKey string `koanf:"anthropic_api_key"`
	// ChromemPath persists the document store on disk. Empty keeps it
	// in memory.
	ChromemPath string `koanf:"chromem_path"`
	// KafkaBrokers is a comma-separated broker list for lifecycle
	// events. Empty disables publishing.
	KafkaBrokers string `koanf:"kafka_brokers"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		ChunkSize:       800,
		VectorTopK:      5,
		TokenLimit:      4000,
		ContentFilter:   true,
		MaxConcurrency:  3,
		ActivityTimeout: 20 * time.Second,
		MaxAttempts:     3,
		ContextBudget:   8000,
		Temperature:     0.2,
	}
}

// Load reads LOOM_ environment variables over the defaults.
func Load() (Config, error) {
	cfg := Default()

	k := koanf.New(".")
	err := k.Load(env.Provider("LOOM_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LOOM_"))
	}), nil)
	if err != nil {
		return Config{}, errors.Wrap(err, "load environment")
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}

	return cfg, nil
}

// Brokers splits the configured broker list.
func (c Config) Brokers() []string {
	if c.KafkaBrokers == "" {
		return nil
	}

	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
