package hardening

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoryd/internal/config"
	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

type fakeEntryStore struct {
	entries map[string]memory.MemoryEntry
	deleted []string
}

func newFakeEntryStore(entries ...memory.MemoryEntry) *fakeEntryStore {
	m := map[string]memory.MemoryEntry{}
	for _, e := range entries {
		m[e.ID] = e
	}
	return &fakeEntryStore{entries: m}
}

func (f *fakeEntryStore) ListEntriesForRepo(ctx context.Context, repoID string) ([]memory.MemoryEntry, error) {
	var out []memory.MemoryEntry
	for _, e := range f.entries {
		if e.RepoID == repoID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntryStore) DeleteEntries(ctx context.Context, repoID string, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	for _, id := range ids {
		delete(f.entries, id)
	}
	return nil
}

func defaultPolicies() []config.RetentionPolicy {
	return []config.RetentionPolicy{
		{SensitivityLevel: "restricted", MaxAgeMs: int64(24 * 60 * 60 * 1000)},
		{SensitivityLevel: "internal", MaxAgeMs: int64(30 * 24 * 60 * 60 * 1000)},
	}
}

func TestPurgeDeletesEntriesOlderThanMaxAge(t *testing.T) {
	now := memory.NowMillis()
	old := memory.MemoryEntry{ID: "e1", RepoID: "repo1", Type: memory.TypeEpisodic, Sensitivity: memory.SensitivityRestricted, UpdatedAt: now - 25*60*60*1000}
	fresh := memory.MemoryEntry{ID: "e2", RepoID: "repo1", Type: memory.TypeEpisodic, Sensitivity: memory.SensitivityRestricted, UpdatedAt: now}
	store := newFakeEntryStore(old, fresh)

	p := New(store, nil, memory.NopBus{}, defaultPolicies())
	result, err := p.Purge(context.Background(), "repo1")
	require.NoError(t, err)
	require.Equal(t, 1, result.PurgedCount)
	require.Equal(t, 1, result.PurgedByType["episodic"])
	require.Equal(t, 1, result.PurgedBySensitivity["restricted"])
	require.Contains(t, store.deleted, "e1")
	require.NotContains(t, store.deleted, "e2")
}

func TestPurgeSkipsEntriesMatchingNoPolicy(t *testing.T) {
	now := memory.NowMillis()
	entry := memory.MemoryEntry{ID: "e1", RepoID: "repo1", Sensitivity: memory.SensitivityPublic, UpdatedAt: now - 1000*365*24*60*60*1000}
	store := newFakeEntryStore(entry)

	p := New(store, nil, memory.NopBus{}, defaultPolicies())
	result, err := p.Purge(context.Background(), "repo1")
	require.NoError(t, err)
	require.Equal(t, 0, result.PurgedCount)
	require.Empty(t, store.deleted)
}

func TestPurgeAggressiveStaleCleanupUsesQuarterMaxAge(t *testing.T) {
	now := memory.NowMillis()
	maxAge := int64(24 * 60 * 60 * 1000)
	policies := []config.RetentionPolicy{
		{SensitivityLevel: "internal", MaxAgeMs: maxAge, AggressiveStaleCleanup: true},
	}
	staleOverQuarter := memory.MemoryEntry{ID: "e1", RepoID: "repo1", Sensitivity: memory.SensitivityInternal, Stale: true, UpdatedAt: now - maxAge/3}
	notStale := memory.MemoryEntry{ID: "e2", RepoID: "repo1", Sensitivity: memory.SensitivityInternal, Stale: false, UpdatedAt: now - maxAge/3}
	store := newFakeEntryStore(staleOverQuarter, notStale)

	p := New(store, nil, memory.NopBus{}, policies)
	result, err := p.Purge(context.Background(), "repo1")
	require.NoError(t, err)
	require.Equal(t, 1, result.PurgedCount)
	require.Contains(t, store.deleted, "e1")
	require.NotContains(t, store.deleted, "e2")
}

func TestPurgeEmitsEventWithResultCounts(t *testing.T) {
	now := memory.NowMillis()
	old := memory.MemoryEntry{ID: "e1", RepoID: "repo1", Sensitivity: memory.SensitivityRestricted, UpdatedAt: now - 25*60*60*1000}
	store := newFakeEntryStore(old)

	var published []memory.Event
	bus := busFunc(func(e memory.Event) { published = append(published, e) })
	p := New(store, nil, bus, defaultPolicies())

	_, err := p.Purge(context.Background(), "repo1")
	require.NoError(t, err)
	require.Len(t, published, 1)
	require.Equal(t, memory.EventMemoryPurgeCompleted, published[0].Type)
	payload, ok := published[0].Payload.(memory.PurgePayload)
	require.True(t, ok)
	require.Equal(t, 1, payload.PurgedCount)
}

func TestResolveEncryptionKeyReturnsEmptyWhenDisabled(t *testing.T) {
	key, err := ResolveEncryptionKey(config.EncryptionConfig{Enabled: false}, func(string) string { return "" })
	require.NoError(t, err)
	require.Empty(t, key)
}

func TestResolveEncryptionKeyFailsWhenKeyEnvMissing(t *testing.T) {
	_, err := ResolveEncryptionKey(config.EncryptionConfig{Enabled: true}, func(string) string { return "" })
	require.Error(t, err)
	kind, ok := memory.KindOf(err)
	require.True(t, ok)
	require.Equal(t, memory.KindStorageInit, kind)
}

func TestResolveEncryptionKeyFailsWhenEnvUnset(t *testing.T) {
	_, err := ResolveEncryptionKey(config.EncryptionConfig{Enabled: true, KeyEnv: "MEMORYD_KEY"}, func(string) string { return "" })
	require.Error(t, err)
}

func TestResolveEncryptionKeyReturnsResolvedValue(t *testing.T) {
	key, err := ResolveEncryptionKey(config.EncryptionConfig{Enabled: true, KeyEnv: "MEMORYD_KEY"}, func(k string) string {
		if k == "MEMORYD_KEY" {
			return "topsecret"
		}
		return ""
	})
	require.NoError(t, err)
	require.Equal(t, "topsecret", key)
}

type busFunc func(memory.Event)

func (f busFunc) Publish(e memory.Event) { f(e) }
