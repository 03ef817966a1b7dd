// Package search implements C5, the search service orchestrating lexical,
// vector, and hybrid retrieval over the embedded store and a vector backend
// (spec.md §4.5).
package search

import (
	"context"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/memoryd/internal/embedder"
	"github.com/fyrsmithlabs/memoryd/internal/memory"
	"github.com/fyrsmithlabs/memoryd/internal/metrics"
	"github.com/fyrsmithlabs/memoryd/internal/reranker"
	"github.com/fyrsmithlabs/memoryd/internal/store"
	"github.com/fyrsmithlabs/memoryd/internal/vectorbackend"
)

// Mode selects a retrieval strategy.
type Mode string

const (
	ModeLexical Mode = "lexical"
	ModeVector  Mode = "vector"
	ModeHybrid  Mode = "hybrid"
)

// Options configures a Query call.
type Options struct {
	Mode                           Mode
	TopKLexical                    int
	TopKVector                     int
	TopKFinal                      int
	StaleDownrank                  bool
	FallbackToLexicalOnVectorError bool
	Intent                         reranker.Intent
	FailureSignature               string
}

// Hit is one ranked search result, carrying whichever of lexical/vector
// scores were actually computed for it.
type Hit struct {
	Entry        memory.MemoryEntry
	LexicalScore *float64
	VectorScore  *float64
	Combined     float64
}

// Result is returned by Query: the method that actually ran (may differ
// from the requested mode on hybrid fallback), the ranked hits, and any
// events raised along the way.
type Result struct {
	MethodUsed Mode
	Hits       []Hit
	Events     []memory.Event
}

// EntryStore is the subset of the embedded store this service depends on.
type EntryStore interface {
	Search(ctx context.Context, repoID, query string, topK int) ([]store.SearchHit, error)
	Get(ctx context.Context, id string) (memory.MemoryEntry, bool, error)
}

// Service is C5.
type Service struct {
	store   EntryStore
	backend vectorbackend.Backend
	embed   embedder.Embedder
	bus     memory.Bus
	cache   *lru.Cache[string, []float32]
}

// New constructs a Service. bus may be memory.NopBus{} when no event
// consumer is wired; backend/embed may be nil if only lexical mode will
// ever be requested.
func New(st EntryStore, backend vectorbackend.Backend, embed embedder.Embedder, bus memory.Bus) *Service {
	cache, _ := lru.New[string, []float32](256)
	return &Service{store: st, backend: backend, embed: embed, bus: bus, cache: cache}
}

// Query runs repoId's search in the requested mode.
func (s *Service) Query(ctx context.Context, repoID, query string, opts Options) (Result, error) {
	var result Result
	var err error
	switch opts.Mode {
	case ModeLexical, "":
		result, err = s.queryLexical(ctx, repoID, query, opts)
	case ModeVector:
		result, err = s.queryVector(ctx, repoID, query, opts)
	case ModeHybrid:
		result, err = s.queryHybrid(ctx, repoID, query, opts)
	default:
		return Result{}, memory.NewError(memory.KindConfigError, "unknown search mode: "+string(opts.Mode), nil)
	}
	if err == nil {
		metrics.SearchQueriesTotal.WithLabelValues(string(result.MethodUsed)).Inc()
	}
	return result, err
}

func (s *Service) queryLexical(ctx context.Context, repoID, query string, opts Options) (Result, error) {
	topK := opts.TopKFinal
	if topK <= 0 {
		topK = opts.TopKLexical
	}
	sHits, err := s.store.Search(ctx, repoID, query, topK)
	if err != nil {
		return Result{}, err
	}

	candidates := make([]reranker.LexicalCandidate, len(sHits))
	lexScoreByID := make(map[string]float64, len(sHits))
	for i, h := range sHits {
		candidates[i] = reranker.LexicalCandidate{Entry: h.Entry, LexicalScore: h.LexicalScore}
		lexScoreByID[h.Entry.ID] = h.LexicalScore
	}
	reranked := reranker.LexicalRerank(candidates, reranker.LexicalOptions{
		Intent:           opts.Intent,
		StaleDownrank:    opts.StaleDownrank,
		FailureSignature: opts.FailureSignature,
		Now:              memory.NowMillis(),
	})

	hits := make([]Hit, len(reranked))
	for i, r := range reranked {
		score := lexScoreByID[r.Entry.ID]
		hits[i] = Hit{Entry: r.Entry, LexicalScore: &score, Combined: r.Score}
	}
	sortDeterministic(hits)
	return Result{MethodUsed: ModeLexical, Hits: hits}, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if v, ok := s.cache.Get(query); ok {
		return v, nil
	}
	vecs, err := s.embed.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, memory.NewError(memory.KindEmbeddingFailure, "embedding query", err)
	}
	if len(vecs) != 1 {
		return nil, memory.NewError(memory.KindEmbeddingFailure, "embedder returned unexpected vector count", nil)
	}
	s.cache.Add(query, vecs[0])
	return vecs[0], nil
}

func (s *Service) queryVector(ctx context.Context, repoID, query string, opts Options) (Result, error) {
	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return Result{}, err
	}
	topKVector := opts.TopKVector
	if topKVector <= 0 {
		topKVector = opts.TopKFinal
	}
	backendHits, err := s.backend.Query(ctx, repoID, vec, topKVector, nil)
	if err != nil {
		return Result{}, memory.NewError(memory.KindMemorySearchVectorError, "vector backend query failed", err)
	}

	hits := make([]Hit, 0, len(backendHits))
	for _, bh := range backendHits {
		entry, found, err := s.store.Get(ctx, bh.ID)
		if err != nil {
			return Result{}, err
		}
		if !found || entry.IntegrityStatus == memory.IntegrityBlocked {
			continue
		}
		score := bh.Score
		hits = append(hits, Hit{Entry: entry, VectorScore: &score, Combined: score})
	}
	sortDeterministic(hits)
	if opts.TopKFinal > 0 && len(hits) > opts.TopKFinal {
		hits = hits[:opts.TopKFinal]
	}
	return Result{MethodUsed: ModeVector, Hits: hits}, nil
}

func (s *Service) queryHybrid(ctx context.Context, repoID, query string, opts Options) (Result, error) {
	var lexResult Result
	var vecResult Result
	var vecErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.queryLexical(gctx, repoID, query, Options{
			TopKLexical:      opts.TopKLexical,
			TopKFinal:        opts.TopKLexical,
			Intent:           opts.Intent,
			StaleDownrank:    opts.StaleDownrank,
			FailureSignature: opts.FailureSignature,
		})
		lexResult = r
		return err
	})
	g.Go(func() error {
		r, err := s.queryVector(gctx, repoID, query, Options{TopKVector: opts.TopKVector, TopKFinal: opts.TopKVector})
		if err != nil {
			vecErr = err
			return nil
		}
		vecResult = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if vecErr != nil {
		if !opts.FallbackToLexicalOnVectorError {
			return Result{}, memory.NewError(memory.KindMemorySearchVectorError, "vector search failed with no fallback", vecErr)
		}
		events := []memory.Event{
			memory.NewEvent(memory.EventVectorSearchFailed, "", memory.SearchFallbackPayload{RepoID: repoID, Reason: vecErr.Error()}),
			memory.NewEvent(memory.EventVectorSearchFailedFallback, "", memory.SearchFallbackPayload{RepoID: repoID, Reason: vecErr.Error()}),
		}
		for _, e := range events {
			s.publish(e)
		}
		metrics.SearchVectorFallbackTotal.Inc()
		hits := lexResult.Hits
		if opts.TopKFinal > 0 && len(hits) > opts.TopKFinal {
			hits = hits[:opts.TopKFinal]
		}
		return Result{MethodUsed: ModeLexical, Hits: hits, Events: events}, nil
	}

	merged := mergeHybrid(lexResult.Hits, vecResult.Hits)
	rerankHits := make([]reranker.HybridHit, len(merged))
	for i, h := range merged {
		rerankHits[i] = reranker.HybridHit{Entry: h.Entry, LexicalScore: h.LexicalScore, VectorScore: h.VectorScore}
	}
	reranked := reranker.HybridRerank(rerankHits, reranker.HybridOptions{
		StaleDownrank:                 opts.StaleDownrank,
		ProceduralBoost:               opts.Intent == reranker.IntentVerification,
		EpisodicBoostFailureSignature: opts.FailureSignature,
	})

	hits := make([]Hit, len(reranked))
	byID := make(map[string]Hit, len(merged))
	for _, h := range merged {
		byID[h.Entry.ID] = h
	}
	for i, r := range reranked {
		base := byID[r.Entry.ID]
		base.Combined = r.Combined
		hits[i] = base
	}
	if opts.TopKFinal > 0 && len(hits) > opts.TopKFinal {
		hits = hits[:opts.TopKFinal]
	}
	return Result{MethodUsed: ModeHybrid, Hits: hits}, nil
}

func (s *Service) publish(e memory.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// mergeHybrid unions lexical and vector hits by entry ID.
func mergeHybrid(lexical, vector []Hit) []Hit {
	byID := make(map[string]Hit)
	order := make([]string, 0, len(lexical)+len(vector))
	for _, h := range lexical {
		byID[h.Entry.ID] = h
		order = append(order, h.Entry.ID)
	}
	for _, h := range vector {
		existing, ok := byID[h.Entry.ID]
		if !ok {
			byID[h.Entry.ID] = h
			order = append(order, h.Entry.ID)
			continue
		}
		existing.VectorScore = h.VectorScore
		byID[h.Entry.ID] = existing
	}
	out := make([]Hit, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// sortDeterministic applies the §4.5 ordering guarantee: combined score
// descending, ties broken by (updatedAt desc, id asc).
func sortDeterministic(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Combined != hits[j].Combined {
			return hits[i].Combined > hits[j].Combined
		}
		if hits[i].Entry.UpdatedAt != hits[j].Entry.UpdatedAt {
			return hits[i].Entry.UpdatedAt > hits[j].Entry.UpdatedAt
		}
		return hits[i].Entry.ID < hits[j].Entry.ID
	})
}
