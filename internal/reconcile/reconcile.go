// Package reconcile implements C7: comparing stored fileRefs/fileHashes
// against the current repository index and flipping the stale flag on
// entries whose referenced files have changed (spec.md §4.7).
package reconcile

import (
	"context"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
	"github.com/fyrsmithlabs/memoryd/internal/repoindex"
)

// EntryStore is the subset of the embedded store the reconciler needs.
type EntryStore interface {
	ListEntriesForRepo(ctx context.Context, repoID string) ([]memory.MemoryEntry, error)
	UpdateStaleFlag(ctx context.Context, id string, stale bool) error
}

// Result is the reconciler's return value (§4.7).
type Result struct {
	MarkedStaleCount  int
	ClearedStaleCount int
}

// Reconciler ties an EntryStore to an event bus for staleness reconciliation.
type Reconciler struct {
	store EntryStore
	bus   memory.Bus
}

// New constructs a Reconciler. bus may be memory.NopBus{} if no event
// consumer is wired.
func New(store EntryStore, bus memory.Bus) *Reconciler {
	return &Reconciler{store: store, bus: bus}
}

// Reconcile runs one pass over repoId's entries against idx, updating the
// stale flag of every entry whose computed staleness differs from its
// stored value. It issues exactly one UpdateStaleFlag call per changed
// entry (§4.7's "read-mostly" guarantee).
func (r *Reconciler) Reconcile(ctx context.Context, repoID string, idx repoindex.Index) (Result, error) {
	entries, err := r.store.ListEntriesForRepo(ctx, repoID)
	if err != nil {
		return Result{}, err
	}

	indexMap := idx.AsMap()
	var result Result

	for _, entry := range entries {
		if len(entry.FileRefs) == 0 {
			continue
		}
		stale := computeStale(entry, indexMap)
		if stale == entry.Stale {
			continue
		}
		if err := r.store.UpdateStaleFlag(ctx, entry.ID, stale); err != nil {
			return result, err
		}
		if stale {
			result.MarkedStaleCount++
		} else {
			result.ClearedStaleCount++
		}
	}

	if r.bus != nil {
		r.bus.Publish(memory.NewEvent(memory.EventMemoryStalenessReconciled, "", memory.ReconciliationPayload{
			RepoID:            repoID,
			MarkedStaleCount:  result.MarkedStaleCount,
			ClearedStaleCount: result.ClearedStaleCount,
		}))
	}
	return result, nil
}

// computeStale reports whether any of entry's fileRefs is missing from the
// index, or present with a different sha256 than the entry last recorded.
func computeStale(entry memory.MemoryEntry, indexMap map[string]repoindex.File) bool {
	for _, path := range entry.FileRefs {
		file, ok := indexMap[path]
		if !ok {
			return true
		}
		if file.SHA256 != entry.FileHashes[path] {
			return true
		}
	}
	return false
}
