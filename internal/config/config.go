// Package config provides configuration loading for the memory subsystem.
//
// Configuration is loaded from environment variables with sensible defaults,
// optionally layered under a YAML file (see loader.go).
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the complete memory-subsystem configuration.
type Config struct {
	Memory   MemoryConfig   `koanf:"memory"`
	Security SecurityConfig `koanf:"security"`
}

// Load loads configuration from environment variables with defaults.
//
// Environment variables:
//
//	MEMORY_ENABLED, MEMORY_STORAGE_PATH, MEMORY_STORAGE_ENCRYPT_AT_REST
//	MEMORY_RETRIEVAL_MODE, MEMORY_RETRIEVAL_TOP_K_LEXICAL, MEMORY_RETRIEVAL_TOP_K_VECTOR,
//	MEMORY_RETRIEVAL_TOP_K_FINAL, MEMORY_RETRIEVAL_STALE_DOWNRANK,
//	MEMORY_RETRIEVAL_FALLBACK_TO_LEXICAL_ON_VECTOR_ERROR
//	MEMORY_VECTOR_ENABLED, MEMORY_VECTOR_BACKEND, MEMORY_VECTOR_REMOTE_OPT_IN,
//	MEMORY_VECTOR_EMBEDDER_PROVIDER, MEMORY_VECTOR_EMBEDDER_MODEL, MEMORY_VECTOR_EMBEDDER_DIMS
//	MEMORY_HARDENING_ENCRYPTION_ENABLED, MEMORY_HARDENING_ENCRYPTION_KEY_ENV,
//	MEMORY_HARDENING_PURGE_INTERVAL_MS, MEMORY_HARDENING_PURGE_ENABLED,
//	MEMORY_HARDENING_DEFAULT_SENSITIVITY
//	SECURITY_ENCRYPTION_KEY_ENV
func Load() *Config {
	cfg := &Config{
		Memory: MemoryConfig{
			Enabled: getEnvBool("MEMORY_ENABLED", false),
			Storage: MemoryStorageConfig{
				Path:          getEnvString("MEMORY_STORAGE_PATH", ".orchestrator/memory/memory.sqlite"),
				EncryptAtRest: getEnvBool("MEMORY_STORAGE_ENCRYPT_AT_REST", false),
			},
			Retrieval: RetrievalConfig{
				Mode:                           getEnvString("MEMORY_RETRIEVAL_MODE", "lexical"),
				TopKLexical:                    getEnvInt("MEMORY_RETRIEVAL_TOP_K_LEXICAL", 10),
				TopKVector:                     getEnvInt("MEMORY_RETRIEVAL_TOP_K_VECTOR", 10),
				TopKFinal:                      getEnvInt("MEMORY_RETRIEVAL_TOP_K_FINAL", 5),
				StaleDownrank:                  getEnvBool("MEMORY_RETRIEVAL_STALE_DOWNRANK", true),
				FallbackToLexicalOnVectorError: getEnvBool("MEMORY_RETRIEVAL_FALLBACK_TO_LEXICAL_ON_VECTOR_ERROR", true),
			},
			Vector: MemoryVectorConfig{
				Enabled:     getEnvBool("MEMORY_VECTOR_ENABLED", false),
				Backend:     getEnvString("MEMORY_VECTOR_BACKEND", "sqlite"),
				RemoteOptIn: getEnvBool("MEMORY_VECTOR_REMOTE_OPT_IN", false),
				Embedder: EmbedderConfig{
					Provider: getEnvString("MEMORY_VECTOR_EMBEDDER_PROVIDER", "fastembed"),
					Model:    getEnvString("MEMORY_VECTOR_EMBEDDER_MODEL", "BAAI/bge-small-en-v1.5"),
					Dims:     getEnvInt("MEMORY_VECTOR_EMBEDDER_DIMS", 384),
				},
			},
			Hardening: HardeningConfig{
				Encryption: EncryptionConfig{
					Enabled: getEnvBool("MEMORY_HARDENING_ENCRYPTION_ENABLED", false),
					KeyEnv:  getEnvString("MEMORY_HARDENING_ENCRYPTION_KEY_ENV", ""),
				},
				RetentionPolicies: defaultRetentionPolicies(),
				PurgeSchedule: PurgeScheduleConfig{
					IntervalMs: int64(getEnvInt("MEMORY_HARDENING_PURGE_INTERVAL_MS", defaultPurgeIntervalMs)),
					Enabled:    getEnvBool("MEMORY_HARDENING_PURGE_ENABLED", false),
				},
				DefaultSensitivity: getEnvString("MEMORY_HARDENING_DEFAULT_SENSITIVITY", sensitivityInternal),
			},
			EventBus: EventBusConfig{
				NATS: NATSBusConfig{
					URL: getEnvString("MEMORY_EVENT_BUS_NATS_URL", ""),
				},
			},
		},
	}

	cfg.Security.Encryption.KeyEnv = getEnvString("SECURITY_ENCRYPTION_KEY_ENV", "")
	if cfg.Memory.Hardening.Encryption.KeyEnv == "" && cfg.Security.Encryption.KeyEnv != "" {
		cfg.Memory.Hardening.Encryption.KeyEnv = cfg.Security.Encryption.KeyEnv
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory config validation failed: %w", err)
	}
	return nil
}

// Helper functions for environment variable parsing.

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
