package vectorbackend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// ChromaConfig configures the chromem-go-backed remote-opt-in backend.
// Despite the name (matching the config key clients already use for
// Chroma-compatible stores), this embeds philippgille/chromem-go directly
// rather than talking to a Chroma server, favoring an embedded
// zero-dependency vector engine over a networked one.
type ChromaConfig struct {
	Path       string
	EmbedderID string
	Dims       int
	Compress   bool
}

// Chroma is a vector backend over an embedded chromem-go database. One
// collection per repoId, matching the per-repo isolation the rest of this
// subsystem assumes.
type Chroma struct {
	db         *chromem.DB
	path       string
	embedderID string
	dims       int

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// noopEmbeddingFunc always errors: every document this backend stores
// already carries a precomputed Embedding, so chromem-go must never be
// asked to compute one itself (Invariant: a VectorRecord never carries
// title or content for it to embed).
func noopEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chroma backend requires precomputed embeddings, got raw text %q", text)
}

// NewChroma opens (creating if needed) the chromem-go database at cfg.Path.
func NewChroma(cfg ChromaConfig) (*Chroma, error) {
	if cfg.Path == "" {
		return nil, memory.NewError(memory.KindStorageInit, "chroma backend path is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, memory.NewError(memory.KindStorageInit, "creating chroma store directory", err)
	}
	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, memory.NewError(memory.KindStorageInit, "opening chromem database", err)
	}
	return &Chroma{
		db:          db,
		path:        cfg.Path,
		embedderID:  cfg.EmbedderID,
		dims:        cfg.Dims,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (c *Chroma) Init(ctx context.Context) error { return nil }

func (c *Chroma) collection(repoID string) (*chromem.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if coll, ok := c.collections[repoID]; ok {
		return coll, nil
	}
	coll, err := c.db.GetOrCreateCollection(collectionName(repoID), nil, noopEmbeddingFunc)
	if err != nil {
		return nil, memory.NewError(memory.KindBackendIO, "getting/creating chroma collection", err)
	}
	c.collections[repoID] = coll
	return coll, nil
}

func (c *Chroma) Upsert(ctx context.Context, repoID string, items []UpsertItem) error {
	coll, err := c.collection(repoID)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, len(items))
	for i, item := range items {
		docs[i] = chromem.Document{
			ID:        item.ID,
			Embedding: item.Vector,
			Metadata: map[string]string{
				"type":       string(item.Metadata.Type),
				"stale":      strconv.FormatBool(item.Metadata.Stale),
				"updatedAt":  strconv.FormatInt(item.Metadata.UpdatedAt, 10),
				"embedderId": item.Metadata.EmbedderID,
			},
		}
	}
	if err := coll.AddDocuments(ctx, docs, 1); err != nil {
		return memory.NewError(memory.KindBackendIO, "upserting into chroma collection", err)
	}
	return nil
}

func (c *Chroma) Query(ctx context.Context, repoID string, queryVec []float32, topK int, filters *Filters) ([]Hit, error) {
	coll, err := c.collection(repoID)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = coll.Count()
	}
	if topK <= 0 {
		return nil, nil
	}
	where := map[string]string{}
	if filters != nil {
		if filters.Type != nil {
			where["type"] = string(*filters.Type)
		}
		if filters.Stale != nil {
			where["stale"] = strconv.FormatBool(*filters.Stale)
		}
	}
	results, err := coll.QueryEmbedding(ctx, queryVec, topK, where, nil)
	if err != nil {
		return nil, memory.NewError(memory.KindBackendIO, "querying chroma collection", err)
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{ID: r.ID, Score: float64(r.Similarity)}
	}
	return hits, nil
}

func (c *Chroma) DeleteByIDs(ctx context.Context, repoID string, ids []string) error {
	coll, err := c.collection(repoID)
	if err != nil {
		return err
	}
	if err := coll.Delete(ctx, nil, nil, ids...); err != nil {
		return memory.NewError(memory.KindBackendIO, "deleting from chroma collection", err)
	}
	return nil
}

func (c *Chroma) WipeRepo(ctx context.Context, repoID string) error {
	c.mu.Lock()
	delete(c.collections, repoID)
	c.mu.Unlock()
	if err := c.db.DeleteCollection(collectionName(repoID)); err != nil {
		return memory.NewError(memory.KindBackendIO, "wiping chroma collection", err)
	}
	return nil
}

func (c *Chroma) Info() Info {
	return Info{Backend: "chroma", Dims: c.dims, EmbedderID: c.embedderID, Location: c.path, SupportsFilters: true}
}

func (c *Chroma) Close() error { return nil }

func collectionName(repoID string) string {
	return "memory_" + repoID
}
