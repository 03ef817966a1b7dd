package main

import (
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/memoryd/internal/config"
	"github.com/fyrsmithlabs/memoryd/internal/embedder"
	"github.com/fyrsmithlabs/memoryd/internal/eventbus"
	"github.com/fyrsmithlabs/memoryd/internal/logging"
	"github.com/fyrsmithlabs/memoryd/internal/memory"
	"github.com/fyrsmithlabs/memoryd/internal/store"
	"github.com/fyrsmithlabs/memoryd/internal/vectorbackend"
)

func requireRepoID() error {
	if repoID == "" {
		return fmt.Errorf("--repo-id is required")
	}
	return nil
}

// initLogger builds the CLI's structured logger. Stdout-only, OTEL disabled:
// memoryd is invoked as a one-shot maintenance command, not a long-running
// host process wired to a collector.
func initLogger() (*logging.Logger, error) {
	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func loadMemoryConfig() config.MemoryConfig {
	cfg, err := config.LoadWithFile("")
	if err != nil {
		cfg = config.Load()
	}
	if !cfg.Memory.Enabled {
		cfg.Memory.Enabled = true
	}
	return cfg.Memory
}

func openStore(memCfg config.MemoryConfig) (*store.Store, error) {
	path := storePath
	if path == "" {
		path = memCfg.Storage.Path
	}
	return store.Open(store.Config{
		Path:             path,
		EncryptAtRest:    memCfg.Storage.EncryptAtRest,
		EncryptionKeyEnv: memCfg.Hardening.Encryption.KeyEnv,
	})
}

// openVectorBackend constructs the configured vector backend, or returns
// (nil, nil) when vector search is disabled.
func openVectorBackend(memCfg config.MemoryConfig) (vectorbackend.Backend, error) {
	if !memCfg.Vector.Enabled {
		return nil, nil
	}
	return vectorbackend.New(vectorbackend.FactoryConfig{
		Backend:     memCfg.Vector.Backend,
		RemoteOptIn: memCfg.Vector.RemoteOptIn,
		Dims:        memCfg.Vector.Embedder.Dims,
		EmbedderID:  memCfg.Vector.Embedder.Model,
		LocalPath:   storePath + ".vectors",
	})
}

// openEmbedder constructs the configured embedder, or returns (nil, nil)
// when vector search is disabled.
func openEmbedder(memCfg config.MemoryConfig) (embedder.Embedder, error) {
	if !memCfg.Vector.Enabled {
		return nil, nil
	}
	switch memCfg.Vector.Embedder.Provider {
	case "mock":
		return embedder.NewMock(memCfg.Vector.Embedder.Dims), nil
	default:
		return embedder.NewFastEmbed(embedder.FastEmbedConfig{Model: memCfg.Vector.Embedder.Model})
	}
}

// openBus returns the NATS-backed publisher when memCfg.EventBus.NATS.URL is
// set, falling back to a local in-process bus (events still observable via
// Subscribe, just not forwarded anywhere) otherwise. The returned closer is
// a no-op for the in-process bus.
func openBus(memCfg config.MemoryConfig) (memory.Bus, func(), error) {
	if memCfg.EventBus.NATS.URL == "" {
		return eventbus.New(), func() {}, nil
	}
	bus, err := eventbus.NewNATS(eventbus.NATSConfig{URL: memCfg.EventBus.NATS.URL})
	if err != nil {
		return nil, nil, err
	}
	return bus, bus.Close, nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	fmt.Println(string(b))
	return nil
}
