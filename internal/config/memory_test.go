package config

import "testing"

func TestMemoryConfigValidateDisabledSkipsChecks(t *testing.T) {
	cfg := MemoryConfig{Enabled: false, Retrieval: RetrievalConfig{Mode: "nonsense"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled memory config should skip validation, got %v", err)
	}
}

func TestMemoryConfigValidateRejectsUnknownMode(t *testing.T) {
	cfg := MemoryConfig{
		Enabled:   true,
		Retrieval: RetrievalConfig{Mode: "bogus", TopKLexical: 1, TopKVector: 1, TopKFinal: 1},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid retrieval mode")
	}
}

func TestMemoryConfigValidateRejectsNonPositiveTopK(t *testing.T) {
	cfg := MemoryConfig{
		Enabled:   true,
		Retrieval: RetrievalConfig{Mode: "hybrid", TopKLexical: 0, TopKVector: 1, TopKFinal: 1},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for topKLexical < 1")
	}
}

func TestMemoryConfigValidateRejectsUnknownVectorBackend(t *testing.T) {
	cfg := MemoryConfig{
		Enabled:   true,
		Retrieval: RetrievalConfig{Mode: "lexical", TopKLexical: 1, TopKVector: 1, TopKFinal: 1},
		Vector:    MemoryVectorConfig{Enabled: true, Backend: "redis", Embedder: EmbedderConfig{Dims: 384}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported vector backend")
	}
}

func TestMemoryConfigValidateRejectsZeroEmbedderDims(t *testing.T) {
	cfg := MemoryConfig{
		Enabled:   true,
		Retrieval: RetrievalConfig{Mode: "lexical", TopKLexical: 1, TopKVector: 1, TopKFinal: 1},
		Vector:    MemoryVectorConfig{Enabled: true, Backend: "sqlite", Embedder: EmbedderConfig{Dims: 0}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero embedder dims")
	}
}

func TestHardeningValidateRequiresKeyEnvWhenEncryptionEnabled(t *testing.T) {
	h := HardeningConfig{Encryption: EncryptionConfig{Enabled: true, KeyEnv: ""}}
	if err := h.Validate(); err == nil {
		t.Fatal("expected error when encryption enabled without keyEnv")
	}
}

func TestHardeningValidateRejectsUnknownSensitivityLevel(t *testing.T) {
	h := HardeningConfig{RetentionPolicies: []RetentionPolicy{{SensitivityLevel: "top-secret", MaxAgeMs: 1000}}}
	if err := h.Validate(); err == nil {
		t.Fatal("expected error for unknown sensitivity level")
	}
}

func TestHardeningValidateRejectsNonPositiveMaxAge(t *testing.T) {
	h := HardeningConfig{RetentionPolicies: []RetentionPolicy{{SensitivityLevel: sensitivityPublic, MaxAgeMs: 0}}}
	if err := h.Validate(); err == nil {
		t.Fatal("expected error for non-positive maxAgeMs")
	}
}

func TestHardeningValidateRejectsShortPurgeInterval(t *testing.T) {
	h := HardeningConfig{PurgeSchedule: PurgeScheduleConfig{Enabled: true, IntervalMs: 1000}}
	if err := h.Validate(); err == nil {
		t.Fatal("expected error for purge interval below 60s")
	}
}

func TestApplyMemoryDefaultsFillsRetentionPoliciesAndSensitivity(t *testing.T) {
	cfg := &Config{}
	applyMemoryDefaults(cfg)

	if cfg.Memory.Storage.Path == "" {
		t.Error("expected default storage path to be set")
	}
	if cfg.Memory.Retrieval.Mode != "lexical" {
		t.Errorf("Retrieval.Mode = %q, want lexical", cfg.Memory.Retrieval.Mode)
	}
	if len(cfg.Memory.Hardening.RetentionPolicies) != 4 {
		t.Errorf("expected 4 default retention policies, got %d", len(cfg.Memory.Hardening.RetentionPolicies))
	}
	if cfg.Memory.Hardening.PurgeSchedule.IntervalMs != defaultPurgeIntervalMs {
		t.Errorf("PurgeSchedule.IntervalMs = %d, want %d", cfg.Memory.Hardening.PurgeSchedule.IntervalMs, defaultPurgeIntervalMs)
	}
}

func TestApplyMemoryDefaultsFallsBackToSecurityKeyEnv(t *testing.T) {
	cfg := &Config{}
	cfg.Security.Encryption.KeyEnv = "MY_MEMORY_KEY"
	applyMemoryDefaults(cfg)

	if cfg.Memory.Hardening.Encryption.KeyEnv != "MY_MEMORY_KEY" {
		t.Errorf("expected hardening keyEnv to inherit security.encryption.keyEnv, got %q", cfg.Memory.Hardening.Encryption.KeyEnv)
	}
}
