// Package store implements C2, the embedded transactional document store
// with full-text search, staleness flags, and vector-presence bookkeeping
// (spec.md §4.2).
//
// It is backed by modernc.org/sqlite (a CGO-free SQLite engine). FTS5
// provides the full-text index; a set of AFTER triggers keep it in sync
// with memory_entries on insert/update/delete, satisfying Invariant 8
// without requiring callers to maintain the index themselves.
//
// A github.com/gofrs/flock file lock enforces the single-writer discipline
// from §5: Open refuses to proceed if another process already holds the
// lock on this store's path.
package store
