package config

import (
	"fmt"
	"time"
)

// MemoryConfig holds the memory subsystem configuration (spec.md §6.5).
type MemoryConfig struct {
	Enabled   bool                `koanf:"enabled"`
	Storage   MemoryStorageConfig `koanf:"storage"`
	Retrieval RetrievalConfig     `koanf:"retrieval"`
	Vector    MemoryVectorConfig  `koanf:"vector"`
	Hardening HardeningConfig     `koanf:"hardening"`
	EventBus  EventBusConfig      `koanf:"event_bus"`
}

// EventBusConfig selects how memory-subsystem events (§6.3) reach the host.
// When NATS.URL is empty, events are published on an in-process bus only.
type EventBusConfig struct {
	NATS NATSBusConfig `koanf:"nats"`
}

// NATSBusConfig configures the optional NATS-backed publisher.
type NATSBusConfig struct {
	URL string `koanf:"url"`
}

// MemoryStorageConfig controls where and how the embedded store is opened.
type MemoryStorageConfig struct {
	Path          string `koanf:"path"`
	EncryptAtRest bool   `koanf:"encrypt_at_rest"`
}

// RetrievalConfig controls the search service's default behavior (C5).
type RetrievalConfig struct {
	Mode                           string `koanf:"mode"`
	TopKLexical                    int    `koanf:"top_k_lexical"`
	TopKVector                     int    `koanf:"top_k_vector"`
	TopKFinal                      int    `koanf:"top_k_final"`
	StaleDownrank                  bool   `koanf:"stale_downrank"`
	FallbackToLexicalOnVectorError bool   `koanf:"fallback_to_lexical_on_vector_error"`
}

// EmbedderConfig selects the embedder implementation (C6.1).
type EmbedderConfig struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	Dims     int    `koanf:"dims"`
}

// MemoryVectorConfig controls vector-backend selection (C3).
type MemoryVectorConfig struct {
	Enabled     bool           `koanf:"enabled"`
	Backend     string         `koanf:"backend"`
	RemoteOptIn bool           `koanf:"remote_opt_in"`
	Embedder    EmbedderConfig `koanf:"embedder"`
}

// EncryptionConfig names the environment variable holding the at-rest key.
type EncryptionConfig struct {
	Enabled bool   `koanf:"enabled"`
	KeyEnv  string `koanf:"key_env"`
}

// RetentionPolicy is one first-match-wins purge rule (C8).
type RetentionPolicy struct {
	SensitivityLevel       string   `koanf:"sensitivity_level"`
	MaxAgeMs               int64    `koanf:"max_age_ms"`
	EntryTypes             []string `koanf:"entry_types"`
	AggressiveStaleCleanup bool     `koanf:"aggressive_stale_cleanup"`
}

// PurgeScheduleConfig controls the hardening purge loop (C8).
type PurgeScheduleConfig struct {
	IntervalMs int64 `koanf:"interval_ms"`
	Enabled    bool  `koanf:"enabled"`
}

// HardeningConfig holds retention, purge, and encryption settings (C8).
type HardeningConfig struct {
	Encryption         EncryptionConfig    `koanf:"encryption"`
	RetentionPolicies  []RetentionPolicy   `koanf:"retention_policies"`
	PurgeSchedule      PurgeScheduleConfig `koanf:"purge_schedule"`
	DefaultSensitivity string              `koanf:"default_sensitivity"`
}

// SecurityConfig holds host-wide security settings the memory subsystem
// consumes alongside its own hardening block.
type SecurityConfig struct {
	Encryption struct {
		KeyEnv string `koanf:"key_env"`
	} `koanf:"encryption"`
}

const (
	minPurgeIntervalMs = 60_000
	defaultPurgeIntervalMs = 6 * 60 * 60 * 1000

	sensitivityPublic       = "public"
	sensitivityInternal     = "internal"
	sensitivityConfidential = "confidential"
	sensitivityRestricted   = "restricted"
)

// defaultRetentionPolicies mirrors spec.md §4.8's default table.
func defaultRetentionPolicies() []RetentionPolicy {
	return []RetentionPolicy{
		{SensitivityLevel: sensitivityRestricted, MaxAgeMs: int64(24 * time.Hour / time.Millisecond)},
		{SensitivityLevel: sensitivityConfidential, MaxAgeMs: int64(7 * 24 * time.Hour / time.Millisecond)},
		{SensitivityLevel: sensitivityInternal, MaxAgeMs: int64(30 * 24 * time.Hour / time.Millisecond)},
		{SensitivityLevel: sensitivityPublic, MaxAgeMs: int64(90 * 24 * time.Hour / time.Millisecond)},
	}
}

// applyMemoryDefaults fills in the memory/security defaults from §6.5.
func applyMemoryDefaults(cfg *Config) {
	if cfg.Memory.Storage.Path == "" {
		cfg.Memory.Storage.Path = ".orchestrator/memory/memory.sqlite"
	}
	if cfg.Memory.Retrieval.Mode == "" {
		cfg.Memory.Retrieval.Mode = "lexical"
	}
	if cfg.Memory.Retrieval.TopKLexical == 0 {
		cfg.Memory.Retrieval.TopKLexical = 10
	}
	if cfg.Memory.Retrieval.TopKVector == 0 {
		cfg.Memory.Retrieval.TopKVector = 10
	}
	if cfg.Memory.Retrieval.TopKFinal == 0 {
		cfg.Memory.Retrieval.TopKFinal = 5
	}
	if cfg.Memory.Vector.Backend == "" {
		cfg.Memory.Vector.Backend = "sqlite"
	}
	if cfg.Memory.Vector.Embedder.Provider == "" {
		cfg.Memory.Vector.Embedder.Provider = "fastembed"
	}
	if cfg.Memory.Vector.Embedder.Dims == 0 {
		cfg.Memory.Vector.Embedder.Dims = 384
	}
	if cfg.Memory.Hardening.PurgeSchedule.IntervalMs == 0 {
		cfg.Memory.Hardening.PurgeSchedule.IntervalMs = defaultPurgeIntervalMs
	}
	if cfg.Memory.Hardening.DefaultSensitivity == "" {
		cfg.Memory.Hardening.DefaultSensitivity = sensitivityInternal
	}
	if len(cfg.Memory.Hardening.RetentionPolicies) == 0 {
		cfg.Memory.Hardening.RetentionPolicies = defaultRetentionPolicies()
	}
	if cfg.Memory.Hardening.Encryption.KeyEnv == "" && cfg.Security.Encryption.KeyEnv != "" {
		cfg.Memory.Hardening.Encryption.KeyEnv = cfg.Security.Encryption.KeyEnv
	}
}

// Validate checks the memory subsystem configuration. Eager and called from
// the top-level Config.Validate before anything opens a store.
func (c *MemoryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Retrieval.Mode {
	case "lexical", "vector", "hybrid":
	default:
		return fmt.Errorf("memory.retrieval.mode: invalid mode %q (must be lexical, vector, or hybrid)", c.Retrieval.Mode)
	}
	if c.Retrieval.TopKLexical < 1 || c.Retrieval.TopKVector < 1 || c.Retrieval.TopKFinal < 1 {
		return fmt.Errorf("memory.retrieval: topK values must be >= 1")
	}
	if c.Vector.Enabled {
		switch c.Vector.Backend {
		case "sqlite", "qdrant", "chroma", "pgvector", "mock":
		default:
			return fmt.Errorf("memory.vector.backend: unsupported backend %q", c.Vector.Backend)
		}
		if c.Vector.Embedder.Dims <= 0 {
			return fmt.Errorf("memory.vector.embedder.dims must be positive")
		}
	}
	return c.Hardening.Validate()
}

// Validate implements validateHardeningConfig: eager, pre-init validation of
// encryption, retention, and purge-schedule settings.
func (c *HardeningConfig) Validate() error {
	if c.Encryption.Enabled && c.Encryption.KeyEnv == "" {
		return fmt.Errorf("memory.hardening.encryption: keyEnv is required when encryption is enabled")
	}
	for i, p := range c.RetentionPolicies {
		switch p.SensitivityLevel {
		case sensitivityPublic, sensitivityInternal, sensitivityConfidential, sensitivityRestricted:
		default:
			return fmt.Errorf("memory.hardening.retentionPolicies[%d]: invalid sensitivityLevel %q", i, p.SensitivityLevel)
		}
		if p.MaxAgeMs <= 0 {
			return fmt.Errorf("memory.hardening.retentionPolicies[%d]: maxAgeMs must be positive", i)
		}
	}
	if c.PurgeSchedule.Enabled && c.PurgeSchedule.IntervalMs < minPurgeIntervalMs {
		return fmt.Errorf("memory.hardening.purgeSchedule.intervalMs must be >= %d, got %d", minPurgeIntervalMs, c.PurgeSchedule.IntervalMs)
	}
	switch c.DefaultSensitivity {
	case "", sensitivityPublic, sensitivityInternal, sensitivityConfidential, sensitivityRestricted:
	default:
		return fmt.Errorf("memory.hardening.defaultSensitivity: invalid value %q", c.DefaultSensitivity)
	}
	return nil
}
