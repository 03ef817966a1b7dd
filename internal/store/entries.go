package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
	"github.com/fyrsmithlabs/memoryd/internal/metrics"
)

// SearchHit is a lexical search result: an entry plus its normalized BM25
// score (spec.md §4.2's search contract).
type SearchHit struct {
	Entry        memory.MemoryEntry
	LexicalScore float64
}

// Status is the aggregate returned by Status(repoId) (§4.2).
type Status struct {
	EntryCounts   map[memory.EntryType]int
	Total         int
	StaleCount    int
	LastUpdatedAt int64
}

// Upsert inserts or updates entry by primary key. createdAt is set only on
// insert; updatedAt always advances to wall time (Invariant 3). The whole
// operation is atomic.
func (s *Store) Upsert(ctx context.Context, entry memory.MemoryEntry) (result memory.MemoryEntry, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp("upsert", start, err) }()

	if err := s.checkOpen(); err != nil {
		return memory.MemoryEntry{}, err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	entry.Content = memory.TruncateContent(entry.Content)
	if entry.Sensitivity == "" {
		entry.Sensitivity = memory.SensitivityInternal
	}
	if entry.IntegrityStatus == "" {
		entry.IntegrityStatus = memory.IntegrityOK
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memory.MemoryEntry{}, memory.NewError(memory.KindStorageIO, "beginning transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := memory.NowMillis()
	createdAt := now
	var existingCreatedAt int64
	err = tx.QueryRowContext(ctx, `SELECT created_at FROM memory_entries WHERE id = ?`, entry.ID).Scan(&existingCreatedAt)
	switch {
	case err == nil:
		createdAt = existingCreatedAt
	case errors.Is(err, sql.ErrNoRows):
		// new entry; createdAt stays at now
	default:
		return memory.MemoryEntry{}, memory.NewError(memory.KindStorageIO, "checking existing entry", err)
	}

	evidenceJSON, err := marshalOpt(entry.Evidence)
	if err != nil {
		return memory.MemoryEntry{}, memory.NewError(memory.KindStorageIO, "encoding evidence", err)
	}
	fileRefsJSON, err := marshalOpt(entry.FileRefs)
	if err != nil {
		return memory.MemoryEntry{}, memory.NewError(memory.KindStorageIO, "encoding fileRefs", err)
	}
	fileHashesJSON, err := marshalOpt(entry.FileHashes)
	if err != nil {
		return memory.MemoryEntry{}, memory.NewError(memory.KindStorageIO, "encoding fileHashes", err)
	}

	entry.CreatedAt = createdAt
	entry.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_entries (
			id, repo_id, type, title, content, evidence_json, git_sha,
			file_refs_json, file_hashes_json, stale, integrity_status,
			sensitivity, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repo_id = excluded.repo_id,
			type = excluded.type,
			title = excluded.title,
			content = excluded.content,
			evidence_json = excluded.evidence_json,
			git_sha = excluded.git_sha,
			file_refs_json = excluded.file_refs_json,
			file_hashes_json = excluded.file_hashes_json,
			stale = excluded.stale,
			integrity_status = excluded.integrity_status,
			sensitivity = excluded.sensitivity,
			updated_at = excluded.updated_at
	`,
		entry.ID, entry.RepoID, string(entry.Type), entry.Title, entry.Content,
		evidenceJSON, nullableString(entry.GitSHA), fileRefsJSON, fileHashesJSON,
		boolToInt(entry.Stale), string(entry.IntegrityStatus), string(entry.Sensitivity),
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return memory.MemoryEntry{}, memory.NewError(memory.KindStorageIO, "upserting entry", err)
	}

	if err := tx.Commit(); err != nil {
		return memory.MemoryEntry{}, memory.NewError(memory.KindStorageIO, "committing upsert", err)
	}
	return entry, nil
}

// Get returns the entry by id, including blocked entries (Invariant 7: only
// get() bypasses the integrity gate).
func (s *Store) Get(ctx context.Context, id string) (memory.MemoryEntry, bool, error) {
	if err := s.checkOpen(); err != nil {
		return memory.MemoryEntry{}, false, err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.MemoryEntry{}, false, nil
	}
	if err != nil {
		return memory.MemoryEntry{}, false, memory.NewError(memory.KindStorageIO, "loading entry", err)
	}
	return entry, true, nil
}

// List returns entries for repoId ordered by updatedAt descending,
// excluding blocked entries, with optional type filter and limit.
func (s *Store) List(ctx context.Context, repoID string, entryType *memory.EntryType, limit int) ([]memory.MemoryEntry, error) {
	return s.listWhere(ctx, repoID, entryType, limit, true)
}

// ListEntriesForRepo returns all entries for repoId, including blocked ones;
// used by the reconciler.
func (s *Store) ListEntriesForRepo(ctx context.Context, repoID string) ([]memory.MemoryEntry, error) {
	return s.listWhere(ctx, repoID, nil, 0, false)
}

// ListEntriesWithoutVectors returns entries lacking a VectorPresence row.
func (s *Store) ListEntriesWithoutVectors(ctx context.Context, repoID string, entryType *memory.EntryType, limit int) ([]memory.MemoryEntry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := selectColumns + ` WHERE repo_id = ? AND integrity_status != 'blocked'
		AND id NOT IN (SELECT entry_id FROM memory_vectors_presence)`
	args := []any{repoID}
	if entryType != nil {
		query += ` AND type = ?`
		args = append(args, string(*entryType))
	}
	query += ` ORDER BY updated_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memory.NewError(memory.KindStorageIO, "listing entries without vectors", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) listWhere(ctx context.Context, repoID string, entryType *memory.EntryType, limit int, excludeBlocked bool) ([]memory.MemoryEntry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := selectColumns + ` WHERE repo_id = ?`
	args := []any{repoID}
	if excludeBlocked {
		query += ` AND integrity_status != 'blocked'`
	}
	if entryType != nil {
		query += ` AND type = ?`
		args = append(args, string(*entryType))
	}
	query += ` ORDER BY updated_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memory.NewError(memory.KindStorageIO, "listing entries", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// FindProceduralByContent looks up a non-blocked procedural entry in repoId
// whose content exactly matches content. Used by the writer (C6) to decide
// between updating an existing procedural memory and creating a new one.
func (s *Store) FindProceduralByContent(ctx context.Context, repoID, content string) (memory.MemoryEntry, bool, error) {
	if err := s.checkOpen(); err != nil {
		return memory.MemoryEntry{}, false, err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := selectColumns + ` WHERE repo_id = ? AND type = 'procedural' AND content = ? LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, repoID, content)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.MemoryEntry{}, false, nil
	}
	if err != nil {
		return memory.MemoryEntry{}, false, memory.NewError(memory.KindStorageIO, "finding procedural entry by content", err)
	}
	return entry, true, nil
}

// MarkVectorUpdated upserts the VectorPresence row for id with now.
func (s *Store) MarkVectorUpdated(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_vectors_presence (entry_id, updated_at) VALUES (?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET updated_at = excluded.updated_at
	`, id, memory.NowMillis())
	if err != nil {
		return memory.NewError(memory.KindStorageIO, "marking vector updated", err)
	}
	return nil
}

// UpdateStaleFlag flips stale and advances updatedAt.
func (s *Store) UpdateStaleFlag(ctx context.Context, id string, stale bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_entries SET stale = ?, updated_at = ? WHERE id = ?
	`, boolToInt(stale), memory.NowMillis(), id)
	if err != nil {
		return memory.NewError(memory.KindStorageIO, "updating stale flag", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return memory.NewError(memory.KindStorageIO, "checking rows affected", err)
	}
	if n == 0 {
		return memory.NewError(memory.KindStorageIO, "entry not found: "+id, nil)
	}
	return nil
}

// Search performs a full-text match restricted to repoId, returning up to
// topK hits ordered by ascending BM25 rank, normalized into lexicalScore in
// [0,1] (higher is better). topK <= 0 means unlimited. Blocked entries are
// excluded.
func (s *Store) Search(ctx context.Context, repoID, query string, topK int) (hits []SearchHit, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStoreOp("search", start, err) }()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	sqlQuery := selectColumns + `, bm25(memory_entries_fts) AS rank
		FROM memory_entries
		JOIN memory_entries_fts ON memory_entries_fts.rowid = memory_entries.rowid
		WHERE memory_entries_fts MATCH ? AND memory_entries.repo_id = ?
			AND memory_entries.integrity_status != 'blocked'
		ORDER BY rank ASC`
	args := []any{ftsQuery(query), repoID}
	if topK > 0 {
		sqlQuery += fmt.Sprintf(` LIMIT %d`, topK)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, memory.NewError(memory.KindStorageIO, "searching entries", err)
	}
	defer rows.Close()

	type raw struct {
		entry memory.MemoryEntry
		bm25  float64
	}
	var results []raw
	maxAbs := 0.0
	for rows.Next() {
		entry, bm25, err := scanEntryWithRank(rows)
		if err != nil {
			return nil, memory.NewError(memory.KindStorageIO, "scanning search row", err)
		}
		results = append(results, raw{entry: entry, bm25: bm25})
		if math.Abs(bm25) > maxAbs {
			maxAbs = math.Abs(bm25)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, memory.NewError(memory.KindStorageIO, "iterating search rows", err)
	}

	hits = make([]SearchHit, 0, len(results))
	for _, r := range results {
		score := 1.0
		if maxAbs > 0 {
			score = 1 - math.Abs(r.bm25)/maxAbs
		}
		hits = append(hits, SearchHit{Entry: r.entry, LexicalScore: score})
	}
	return hits, nil
}

// DeleteEntries removes the given entry IDs (and their vector-presence rows)
// from repoId. Used by the hardening purge scheduler (C8); a no-op when ids
// is empty.
func (s *Store) DeleteEntries(ctx context.Context, repoID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, repoID)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`DELETE FROM memory_entries WHERE repo_id = ? AND id IN (%s)`, strings.Join(placeholders, ","))

	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return memory.NewError(memory.KindStorageIO, "deleting purged entries", err)
	}
	return nil
}

// Wipe deletes all entries (and cascades vector-presence) for repoId.
func (s *Store) Wipe(ctx context.Context, repoID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE repo_id = ?`, repoID)
	if err != nil {
		return memory.NewError(memory.KindStorageIO, "wiping repo", err)
	}
	return nil
}

// Status returns aggregate counts for repoId.
func (s *Store) Status(ctx context.Context, repoID string) (Status, error) {
	if err := s.checkOpen(); err != nil {
		return Status{}, err
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM memory_entries WHERE repo_id = ? GROUP BY type
	`, repoID)
	if err != nil {
		return Status{}, memory.NewError(memory.KindStorageIO, "counting entries", err)
	}
	defer rows.Close()

	status := Status{EntryCounts: map[memory.EntryType]int{}}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return Status{}, memory.NewError(memory.KindStorageIO, "scanning status", err)
		}
		status.EntryCounts[memory.EntryType(t)] = n
		status.Total += n
	}
	if err := rows.Err(); err != nil {
		return Status{}, memory.NewError(memory.KindStorageIO, "iterating status", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memory_entries WHERE repo_id = ? AND stale = 1
	`, repoID).Scan(&status.StaleCount)
	if err != nil {
		return Status{}, memory.NewError(memory.KindStorageIO, "counting stale entries", err)
	}

	var lastUpdated sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT MAX(updated_at) FROM memory_entries WHERE repo_id = ?
	`, repoID).Scan(&lastUpdated)
	if err != nil {
		return Status{}, memory.NewError(memory.KindStorageIO, "reading last updated", err)
	}
	if lastUpdated.Valid {
		status.LastUpdatedAt = lastUpdated.Int64
	}
	return status, nil
}

const selectColumns = `SELECT
	id, repo_id, type, title, content, evidence_json, git_sha,
	file_refs_json, file_hashes_json, stale, integrity_status, sensitivity,
	created_at, updated_at
	FROM memory_entries`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (memory.MemoryEntry, error) {
	var (
		e                                           memory.MemoryEntry
		typ, integrityStatus, sensitivity           string
		evidenceJSON, gitSHA, fileRefsJSON, fhJSON  sql.NullString
		staleInt                                    int
	)
	err := row.Scan(&e.ID, &e.RepoID, &typ, &e.Title, &e.Content, &evidenceJSON, &gitSHA,
		&fileRefsJSON, &fhJSON, &staleInt, &integrityStatus, &sensitivity, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return memory.MemoryEntry{}, err
	}
	e.Type = memory.EntryType(typ)
	e.IntegrityStatus = memory.IntegrityStatus(integrityStatus)
	e.Sensitivity = memory.Sensitivity(sensitivity)
	e.Stale = staleInt != 0
	e.GitSHA = gitSHA.String

	if evidenceJSON.Valid {
		_ = json.Unmarshal([]byte(evidenceJSON.String), &e.Evidence)
	}
	if fileRefsJSON.Valid {
		_ = json.Unmarshal([]byte(fileRefsJSON.String), &e.FileRefs)
	}
	if fhJSON.Valid {
		_ = json.Unmarshal([]byte(fhJSON.String), &e.FileHashes)
	}
	return e, nil
}

func scanEntryWithRank(rows *sql.Rows) (memory.MemoryEntry, float64, error) {
	var (
		e                                           memory.MemoryEntry
		typ, integrityStatus, sensitivity           string
		evidenceJSON, gitSHA, fileRefsJSON, fhJSON  sql.NullString
		staleInt                                    int
		bm25                                        float64
	)
	err := rows.Scan(&e.ID, &e.RepoID, &typ, &e.Title, &e.Content, &evidenceJSON, &gitSHA,
		&fileRefsJSON, &fhJSON, &staleInt, &integrityStatus, &sensitivity, &e.CreatedAt, &e.UpdatedAt, &bm25)
	if err != nil {
		return memory.MemoryEntry{}, 0, err
	}
	e.Type = memory.EntryType(typ)
	e.IntegrityStatus = memory.IntegrityStatus(integrityStatus)
	e.Sensitivity = memory.Sensitivity(sensitivity)
	e.Stale = staleInt != 0
	e.GitSHA = gitSHA.String
	if evidenceJSON.Valid {
		_ = json.Unmarshal([]byte(evidenceJSON.String), &e.Evidence)
	}
	if fileRefsJSON.Valid {
		_ = json.Unmarshal([]byte(fileRefsJSON.String), &e.FileRefs)
	}
	if fhJSON.Valid {
		_ = json.Unmarshal([]byte(fhJSON.String), &e.FileHashes)
	}
	return e, bm25, nil
}

func scanEntries(rows *sql.Rows) ([]memory.MemoryEntry, error) {
	var out []memory.MemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func marshalOpt(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ftsQuery wraps a raw query string for FTS5 MATCH: quoting ensures a query
// containing FTS operator characters (like '-') is treated as a literal
// phrase rather than raising a syntax error.
func ftsQuery(q string) string {
	return `"` + escapeFTSQuotes(q) + `"`
}

func escapeFTSQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			out = append(out, '"', '"')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
