// Package vectorbackend implements C3, the pluggable vector backend
// abstraction (spec.md §4.3). It is narrower and domain-scoped compared to
// a general-purpose vector store interface with tenant isolation,
// collection CRUD, and document content alongside vectors: here, documents
// live in the embedded store (internal/store) and vectors carry only the
// fields the data model allows (Invariant: a VectorRecord never carries
// title or content), so the interface shrinks to exactly six operations.
package vectorbackend

import (
	"context"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// UpsertItem is one row of an Upsert call.
type UpsertItem struct {
	ID       string
	Vector   []float32
	Metadata memory.VectorMeta
}

// Filters restricts Query results to an equality match on Type and/or Stale.
type Filters struct {
	Type      *memory.EntryType
	Stale     *bool
}

// Hit is one Query result.
type Hit struct {
	ID    string
	Score float64 // cosine similarity, in [-1, 1]
}

// Info describes a backend instance (used by status/diagnostics surfaces).
type Info struct {
	Backend         string
	Dims            int
	EmbedderID      string
	Location        string
	SupportsFilters bool
}

// Backend is the vector backend contract (§4.3). Every method accepts a
// context carrying cancellation and an optional deadline.
type Backend interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, repoID string, items []UpsertItem) error
	Query(ctx context.Context, repoID string, queryVec []float32, topK int, filters *Filters) ([]Hit, error)
	DeleteByIDs(ctx context.Context, repoID string, ids []string) error
	WipeRepo(ctx context.Context, repoID string) error
	Info() Info
	Close() error
}
