package vectorbackend

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

const localSchemaSQL = `
CREATE TABLE IF NOT EXISTS vectors (
	repo_id     TEXT NOT NULL,
	entry_id    TEXT NOT NULL,
	embedder_id TEXT NOT NULL,
	dims        INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	stale       INTEGER NOT NULL,
	type        TEXT NOT NULL,
	vector_blob BLOB NOT NULL,
	PRIMARY KEY (repo_id, entry_id)
);

CREATE INDEX IF NOT EXISTS idx_vectors_repo_type_stale ON vectors(repo_id, type, stale);
`

// defaultMaxCandidates bounds the in-memory cosine scan per query (§4.3).
const defaultMaxCandidates = 20000

// LocalConfig configures the local brute-force backend.
type LocalConfig struct {
	Path          string
	EmbedderID    string
	Dims          int
	MaxCandidates int // 0 -> defaultMaxCandidates
}

// Local is the reference "sqlite" backend: a brute-force cosine scan over
// packed float32 blobs, as spec.md §4.3 describes. Always allowed regardless
// of remoteOptIn.
type Local struct {
	db            *sql.DB
	path          string
	embedderID    string
	dims          int
	maxCandidates int
}

// NewLocal opens (creating if needed) the local vector database at cfg.Path.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.Path == "" {
		return nil, memory.NewError(memory.KindStorageInit, "local vector backend path is required", nil)
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, memory.NewError(memory.KindStorageInit, "creating vector store directory", err)
		}
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, memory.NewError(memory.KindStorageInit, "opening local vector database", err)
	}
	db.SetMaxOpenConns(1)
	maxCandidates := cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}
	return &Local{db: db, path: cfg.Path, embedderID: cfg.EmbedderID, dims: cfg.Dims, maxCandidates: maxCandidates}, nil
}

func (l *Local) Init(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, localSchemaSQL); err != nil {
		return memory.NewError(memory.KindStorageSchema, "migrating local vector database", err)
	}
	return nil
}

func (l *Local) Upsert(ctx context.Context, repoID string, items []UpsertItem) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return memory.NewError(memory.KindBackendIO, "beginning vector upsert transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		blob := encodeVector(item.Vector)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO vectors (repo_id, entry_id, embedder_id, dims, updated_at, stale, type, vector_blob)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(repo_id, entry_id) DO UPDATE SET
				embedder_id = excluded.embedder_id,
				dims = excluded.dims,
				updated_at = excluded.updated_at,
				stale = excluded.stale,
				type = excluded.type,
				vector_blob = excluded.vector_blob
		`, repoID, item.ID, item.Metadata.EmbedderID, item.Metadata.Dims, item.Metadata.UpdatedAt,
			boolToInt(item.Metadata.Stale), string(item.Metadata.Type), blob)
		if err != nil {
			return memory.NewError(memory.KindBackendIO, "upserting vector", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return memory.NewError(memory.KindBackendIO, "committing vector upsert", err)
	}
	return nil
}

func (l *Local) Query(ctx context.Context, repoID string, queryVec []float32, topK int, filters *Filters) ([]Hit, error) {
	query := `SELECT entry_id, vector_blob FROM vectors WHERE repo_id = ?`
	args := []any{repoID}
	if filters != nil {
		if filters.Type != nil {
			query += ` AND type = ?`
			args = append(args, string(*filters.Type))
		}
		if filters.Stale != nil {
			query += ` AND stale = ?`
			args = append(args, boolToInt(*filters.Stale))
		}
	}
	query += ` LIMIT ?`
	args = append(args, l.maxCandidates)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memory.NewError(memory.KindBackendIO, "querying vectors", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var entryID string
		var blob []byte
		if err := rows.Scan(&entryID, &blob); err != nil {
			return nil, memory.NewError(memory.KindBackendIO, "scanning vector row", err)
		}
		vec := decodeVector(blob)
		score := cosineSimilarity(queryVec, vec)
		hits = append(hits, Hit{ID: entryID, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, memory.NewError(memory.KindBackendIO, "iterating vector rows", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (l *Local) DeleteByIDs(ctx context.Context, repoID string, ids []string) error {
	for _, id := range ids {
		if _, err := l.db.ExecContext(ctx, `DELETE FROM vectors WHERE repo_id = ? AND entry_id = ?`, repoID, id); err != nil {
			return memory.NewError(memory.KindBackendIO, "deleting vector", err)
		}
	}
	return nil
}

func (l *Local) WipeRepo(ctx context.Context, repoID string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM vectors WHERE repo_id = ?`, repoID); err != nil {
		return memory.NewError(memory.KindBackendIO, "wiping repo vectors", err)
	}
	return nil
}

func (l *Local) Info() Info {
	return Info{Backend: "sqlite", Dims: l.dims, EmbedderID: l.embedderID, Location: l.path, SupportsFilters: true}
}

func (l *Local) Close() error {
	return l.db.Close()
}

// encodeVector packs a []float32 as little-endian bytes (§4.3).
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
