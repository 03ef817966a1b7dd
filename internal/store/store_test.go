package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(Config{Path: filepath.Join(dir, "memory.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleEntry(id, repoID string) memory.MemoryEntry {
	return memory.MemoryEntry{
		ID:      id,
		RepoID:  repoID,
		Type:    memory.TypeProcedural,
		Title:   "run the build",
		Content: "go build ./... succeeds after installing deps",
	}
}

func TestOpenRefusesSecondOpenOnSamePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.sqlite")
	st1, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer st1.Close()

	_, err = Open(Config{Path: path})
	require.Error(t, err)
	kind, ok := memory.KindOf(err)
	require.True(t, ok)
	require.Equal(t, memory.KindStorageInit, kind)
}

func TestOpenRequiresEncryptionKeyWhenEncryptAtRestEnabled(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(Config{
		Path:             filepath.Join(dir, "memory.sqlite"),
		EncryptAtRest:    true,
		EncryptionKeyEnv: "MEMORYD_TEST_MISSING_KEY",
	})
	require.Error(t, err)
	kind, ok := memory.KindOf(err)
	require.True(t, ok)
	require.Equal(t, memory.KindStorageInit, kind)
}

func TestUpsertIsIdempotentAndPreservesCreatedAt(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	entry := sampleEntry("e1", "repo1")
	first, err := st.Upsert(ctx, entry)
	require.NoError(t, err)
	require.NotZero(t, first.CreatedAt)
	require.Equal(t, first.CreatedAt, first.UpdatedAt)

	entry.Title = "run the build (updated)"
	second, err := st.Upsert(ctx, entry)
	require.NoError(t, err)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.GreaterOrEqual(t, second.UpdatedAt, first.UpdatedAt)

	got, found, err := st.Get(ctx, "e1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "run the build (updated)", got.Title)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	st := openTestStore(t)
	_, found, err := st.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestListExcludesBlockedEntries(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	ok := sampleEntry("e-ok", "repo1")
	blocked := sampleEntry("e-blocked", "repo1")
	blocked.IntegrityStatus = memory.IntegrityBlocked

	_, err := st.Upsert(ctx, ok)
	require.NoError(t, err)
	_, err = st.Upsert(ctx, blocked)
	require.NoError(t, err)

	entries, err := st.List(ctx, "repo1", nil, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "e-ok", entries[0].ID)

	// Get bypasses the integrity gate (Invariant 7).
	got, found, err := st.Get(ctx, "e-blocked")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, memory.IntegrityBlocked, got.IntegrityStatus)

	all, err := st.ListEntriesForRepo(ctx, "repo1")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestListEntriesWithoutVectorsTracksPresence(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	e1 := sampleEntry("e1", "repo1")
	e2 := sampleEntry("e2", "repo1")
	_, err := st.Upsert(ctx, e1)
	require.NoError(t, err)
	_, err = st.Upsert(ctx, e2)
	require.NoError(t, err)

	pending, err := st.ListEntriesWithoutVectors(ctx, "repo1", nil, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, st.MarkVectorUpdated(ctx, "e1"))

	pending, err = st.ListEntriesWithoutVectors(ctx, "repo1", nil, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "e2", pending[0].ID)
}

func TestUpdateStaleFlagRoundTrips(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	entry := sampleEntry("e1", "repo1")
	_, err := st.Upsert(ctx, entry)
	require.NoError(t, err)

	require.NoError(t, st.UpdateStaleFlag(ctx, "e1", true))
	got, _, err := st.Get(ctx, "e1")
	require.NoError(t, err)
	require.True(t, got.Stale)

	require.NoError(t, st.UpdateStaleFlag(ctx, "e1", false))
	got, _, err = st.Get(ctx, "e1")
	require.NoError(t, err)
	require.False(t, got.Stale)
}

func TestUpdateStaleFlagUnknownEntryErrors(t *testing.T) {
	st := openTestStore(t)
	err := st.UpdateStaleFlag(context.Background(), "missing", true)
	require.Error(t, err)
}

func TestSearchMatchesContentAndExcludesBlocked(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	match := sampleEntry("e-match", "repo1")
	match.Content = "how to run database migrations with the cli tool"
	other := sampleEntry("e-other", "repo1")
	other.Content = "unrelated notes about deployment pipelines"
	blocked := sampleEntry("e-blocked", "repo1")
	blocked.Content = "how to run database migrations safely"
	blocked.IntegrityStatus = memory.IntegrityBlocked

	for _, e := range []memory.MemoryEntry{match, other, blocked} {
		_, err := st.Upsert(ctx, e)
		require.NoError(t, err)
	}

	hits, err := st.Search(ctx, "repo1", "migrations", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "e-match", hits[0].Entry.ID)
	require.GreaterOrEqual(t, hits[0].LexicalScore, 0.0)
	require.LessOrEqual(t, hits[0].LexicalScore, 1.0)
}

func TestSearchRespectsRepoIsolation(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	e1 := sampleEntry("e1", "repo1")
	e1.Content = "database migrations"
	e2 := sampleEntry("e2", "repo2")
	e2.Content = "database migrations"

	_, err := st.Upsert(ctx, e1)
	require.NoError(t, err)
	_, err = st.Upsert(ctx, e2)
	require.NoError(t, err)

	hits, err := st.Search(ctx, "repo1", "migrations", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "e1", hits[0].Entry.ID)
}

func TestWipeRemovesAllEntriesForRepoOnly(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.Upsert(ctx, sampleEntry("e1", "repo1"))
	require.NoError(t, err)
	_, err = st.Upsert(ctx, sampleEntry("e2", "repo2"))
	require.NoError(t, err)

	require.NoError(t, st.Wipe(ctx, "repo1"))

	remaining, err := st.ListEntriesForRepo(ctx, "repo1")
	require.NoError(t, err)
	require.Empty(t, remaining)

	other, err := st.ListEntriesForRepo(ctx, "repo2")
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestStatusAggregatesCounts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	proc := sampleEntry("e1", "repo1")
	epi := sampleEntry("e2", "repo1")
	epi.Type = memory.TypeEpisodic
	epi.Stale = true

	_, err := st.Upsert(ctx, proc)
	require.NoError(t, err)
	_, err = st.Upsert(ctx, epi)
	require.NoError(t, err)

	status, err := st.Status(ctx, "repo1")
	require.NoError(t, err)
	require.Equal(t, 2, status.Total)
	require.Equal(t, 1, status.StaleCount)
	require.Equal(t, 1, status.EntryCounts[memory.TypeProcedural])
	require.Equal(t, 1, status.EntryCounts[memory.TypeEpisodic])
	require.NotZero(t, status.LastUpdatedAt)
}

func TestOperationsFailAfterClose(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Path: filepath.Join(dir, "memory.sqlite")})
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.NoError(t, st.Close()) // idempotent

	_, err = st.Get(context.Background(), "e1")
	require.Error(t, err)
	kind, ok := memory.KindOf(err)
	require.True(t, ok)
	require.Equal(t, memory.KindStorageUnavailable, kind)
}
