package vectorbackend

import (
	"context"
	"sort"
	"sync"
)

// Mock is an in-memory backend for tests and for local development without
// an embedding model. Always available regardless of remoteOptIn.
type Mock struct {
	mu   sync.Mutex
	data map[string]map[string]mockRecord
	dims int
}

type mockRecord struct {
	vector []float32
	typ    string
	stale  bool
}

// NewMock constructs an empty in-memory backend.
func NewMock(dims int) *Mock {
	return &Mock{data: make(map[string]map[string]mockRecord), dims: dims}
}

func (m *Mock) Init(ctx context.Context) error { return nil }

func (m *Mock) Upsert(ctx context.Context, repoID string, items []UpsertItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.data[repoID]
	if !ok {
		repo = make(map[string]mockRecord)
		m.data[repoID] = repo
	}
	for _, item := range items {
		repo[item.ID] = mockRecord{vector: item.Vector, typ: string(item.Metadata.Type), stale: item.Metadata.Stale}
	}
	return nil
}

func (m *Mock) Query(ctx context.Context, repoID string, queryVec []float32, topK int, filters *Filters) ([]Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var hits []Hit
	for id, rec := range m.data[repoID] {
		if filters != nil {
			if filters.Type != nil && rec.typ != string(*filters.Type) {
				continue
			}
			if filters.Stale != nil && rec.stale != *filters.Stale {
				continue
			}
		}
		hits = append(hits, Hit{ID: id, Score: cosineSimilarity(queryVec, rec.vector)})
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

func (m *Mock) DeleteByIDs(ctx context.Context, repoID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	repo, ok := m.data[repoID]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(repo, id)
	}
	return nil
}

func (m *Mock) WipeRepo(ctx context.Context, repoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, repoID)
	return nil
}

func (m *Mock) Info() Info {
	return Info{Backend: "mock", Dims: m.dims, EmbedderID: "mock", Location: "memory", SupportsFilters: true}
}

func (m *Mock) Close() error { return nil }
