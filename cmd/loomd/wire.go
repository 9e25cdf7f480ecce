package main

import (
	"time"

	"github.com/loomworks/loom"
	"github.com/loomworks/loom/adapters/jlog"
	"github.com/loomworks/loom/adapters/kafkastream"
	"github.com/loomworks/loom/adapters/memstore"
	"github.com/loomworks/loom/config"
	"github.com/loomworks/loom/guardrail"
	"github.com/loomworks/loom/pipeline"
	"github.com/loomworks/loom/provider"
	"github.com/loomworks/loom/provider/anthropic"
	"github.com/loomworks/loom/provider/chromem"
	"github.com/loomworks/loom/provider/openai"
	"github.com/loomworks/loom/provider/stub"
	"github.com/loomworks/loom/rag"
)

// host groups the wired collaborators for the commands.
type host struct {
	cfg    config.Config
	engine *loom.Engine
	rag    *rag.Service
}

// wire builds providers and the engine from config. Providers are
// selected here once; business logic never branches on mock mode.
func wire() (*host, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var (
		embedder provider.Embedder = stub.Embedder{}
		chat     provider.Chat     = stub.Chat{}
		agents                     = pipeline.StaticAgents()
	)
	if cfg.OpenAIKey != "" {
		client := openai.New(openai.Options{APIKey: cfg.OpenAIKey})
		embedder = client
		chat = client
		agents = pipeline.ChatAgents(client)
	}
	if cfg.AnthropicKey != "" {
		agents = pipeline.ChatAgents(anthropic.New(anthropic.Options{APIKey: cfg.AnthropicKey}))
	}

	var store provider.DocumentStore
	if cfg.ChromemPath != "" {
		store, err = chromem.NewPersistent(cfg.ChromemPath, true)
		if err != nil {
			return nil, err
		}
	} else {
		store = chromem.NewMemory()
	}

	opts := []loom.Option{
		loom.WithLogger(jlog.New()),
		loom.WithMaxConcurrency(cfg.MaxConcurrency),
		loom.WithMaxAttempts(cfg.MaxAttempts),
		loom.WithActivityTimeout(cfg.ActivityTimeout),
	}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		opts = append(opts, loom.WithEventStreamer(kafkastream.New(brokers)))
	}

	engine := loom.New(memstore.New(), opts...)

	pipeline.New(pipeline.Deps{
		Embedder: embedder,
		Store:    store,
		Blobs:    stub.NewBlobs(),
		Agents:   agents,
		Guardrail: guardrail.Policy{
			TokenLimit:    cfg.TokenLimit,
			ContentFilter: cfg.ContentFilter,
		},
		ChunkSize: cfg.ChunkSize,
	}).Register(engine)

	svc := rag.New(embedder, store, chat,
		rag.WithTopK(cfg.VectorTopK),
		rag.WithContextBudget(cfg.ContextBudget),
		rag.WithTemperature(cfg.Temperature),
	)

	return &host{cfg: cfg, engine: engine, rag: svc}, nil
}

// awaitTimeout bounds blocking waits for workflow completion.
const awaitTimeout = 5 * time.Minute
