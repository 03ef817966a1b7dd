// Package hardening implements C8: retention-policy evaluation and the
// purge scheduler that applies it, plus the encryption-key gate the store
// consults before opening (spec.md §4.8).
package hardening

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/memoryd/internal/config"
	"github.com/fyrsmithlabs/memoryd/internal/memory"
	"github.com/fyrsmithlabs/memoryd/internal/metrics"
	"github.com/fyrsmithlabs/memoryd/internal/vectorbackend"
)

// EntryStore is the subset of the embedded store the purger needs.
type EntryStore interface {
	ListEntriesForRepo(ctx context.Context, repoID string) ([]memory.MemoryEntry, error)
	DeleteEntries(ctx context.Context, repoID string, ids []string) error
}

// Result is one purge run's outcome (§4.8's PurgeResult).
type Result struct {
	PurgedCount         int
	PurgedByType        map[string]int
	PurgedBySensitivity map[string]int
	PurgedAt            int64
	Errors              []string
}

// Purger applies config.HardeningConfig's retention policies to a repo's
// entries and cascades deletes to the embedded store and, when wired, a
// vector backend.
type Purger struct {
	store    EntryStore
	backend  vectorbackend.Backend // nil when vector search is disabled
	bus      memory.Bus
	policies []config.RetentionPolicy
}

// New constructs a Purger. backend may be nil; bus may be memory.NopBus{}.
func New(store EntryStore, backend vectorbackend.Backend, bus memory.Bus, policies []config.RetentionPolicy) *Purger {
	return &Purger{store: store, backend: backend, bus: bus, policies: policies}
}

// matchPolicy returns the first retention policy whose sensitivityLevel and
// (optional) entryTypes match entry; first match wins (§4.8).
func matchPolicy(policies []config.RetentionPolicy, entry memory.MemoryEntry) (config.RetentionPolicy, bool) {
	for _, p := range policies {
		if p.SensitivityLevel != string(entry.Sensitivity) {
			continue
		}
		if len(p.EntryTypes) > 0 && !containsType(p.EntryTypes, entry.Type) {
			continue
		}
		return p, true
	}
	return config.RetentionPolicy{}, false
}

func containsType(types []string, t memory.EntryType) bool {
	for _, s := range types {
		if s == string(t) {
			return true
		}
	}
	return false
}

// shouldPurge implements §4.8's purge predicate: an entry is purged if
// now-updatedAt exceeds maxAgeMs, or if aggressiveStaleCleanup is set, the
// entry is stale, and now-updatedAt exceeds a quarter of maxAgeMs.
func shouldPurge(policy config.RetentionPolicy, entry memory.MemoryEntry, now int64) bool {
	age := now - entry.UpdatedAt
	if age > policy.MaxAgeMs {
		return true
	}
	if policy.AggressiveStaleCleanup && entry.Stale && age > policy.MaxAgeMs/4 {
		return true
	}
	return false
}

// Purge runs one pass over repoId's entries, deleting those their matched
// retention policy marks for removal. Entries matching no policy are kept.
// Vector-backend delete failures are recorded in Result.Errors but do not
// abort the store-side delete: the embedded store stays the source of
// truth for what's retained.
func (p *Purger) Purge(ctx context.Context, repoID string) (result Result, err error) {
	defer func() { metrics.ObservePurgeRun(result.PurgedByType, result.PurgedBySensitivity, err) }()

	entries, err := p.store.ListEntriesForRepo(ctx, repoID)
	if err != nil {
		return Result{}, err
	}

	now := memory.NowMillis()
	result = Result{
		PurgedByType:        map[string]int{},
		PurgedBySensitivity: map[string]int{},
		PurgedAt:            now,
	}

	var toDelete []string
	for _, entry := range entries {
		policy, matched := matchPolicy(p.policies, entry)
		if !matched || !shouldPurge(policy, entry, now) {
			continue
		}
		toDelete = append(toDelete, entry.ID)
		result.PurgedCount++
		result.PurgedByType[string(entry.Type)]++
		result.PurgedBySensitivity[string(entry.Sensitivity)]++
	}

	if len(toDelete) == 0 {
		p.publish(repoID, result)
		return result, nil
	}

	if err := p.store.DeleteEntries(ctx, repoID, toDelete); err != nil {
		return result, err
	}

	if p.backend != nil {
		if err := p.backend.DeleteByIDs(ctx, repoID, toDelete); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("vector backend delete: %v", err))
		}
	}

	p.publish(repoID, result)
	return result, nil
}

func (p *Purger) publish(repoID string, result Result) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(memory.NewEvent(memory.EventMemoryPurgeCompleted, "", memory.PurgePayload{
		PurgedCount:         result.PurgedCount,
		PurgedByType:        result.PurgedByType,
		PurgedBySensitivity: result.PurgedBySensitivity,
		PurgedAt:            result.PurgedAt,
		Errors:              result.Errors,
	}))
}

// ResolveEncryptionKey implements §4.8's encryption toggle: when enabled,
// the store may only open once a non-empty key is resolvable from keyEnv.
// getenv is injected so callers can test without touching the real
// environment.
func ResolveEncryptionKey(cfg config.EncryptionConfig, getenv func(string) string) (string, error) {
	if !cfg.Enabled {
		return "", nil
	}
	if cfg.KeyEnv == "" {
		return "", memory.NewError(memory.KindStorageInit, "encryption enabled but no key_env configured", nil)
	}
	key := getenv(cfg.KeyEnv)
	if key == "" {
		return "", memory.NewError(memory.KindStorageInit, fmt.Sprintf("encryption enabled but %s is unset", cfg.KeyEnv), nil)
	}
	return key, nil
}
