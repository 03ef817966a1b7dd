package vectorbackend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

func TestNewAlwaysAllowsMockAndSqlite(t *testing.T) {
	b, err := New(FactoryConfig{Backend: "mock", Dims: 4})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	dir := t.TempDir()
	b, err = New(FactoryConfig{Backend: "sqlite", Dims: 4, LocalPath: dir + "/vectors.sqlite"})
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestNewRejectsRemoteBackendsWithoutOptIn(t *testing.T) {
	_, err := New(FactoryConfig{Backend: "qdrant"})
	require.Error(t, err)
	kind, ok := memory.KindOf(err)
	require.True(t, ok)
	require.Equal(t, memory.KindRemoteBackendNotAllowed, kind)

	_, err = New(FactoryConfig{Backend: "chroma"})
	require.Error(t, err)
	kind, ok = memory.KindOf(err)
	require.True(t, ok)
	require.Equal(t, memory.KindRemoteBackendNotAllowed, kind)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(FactoryConfig{Backend: "nonexistent", RemoteOptIn: true})
	require.Error(t, err)
	kind, ok := memory.KindOf(err)
	require.True(t, ok)
	require.Equal(t, memory.KindBackendNotImplemented, kind)
}
