package embedder

import (
	"context"
	"hash/fnv"
)

// Mock is a deterministic embedder for tests: each text hashes to a unit
// vector so cosine similarity behaves predictably without a model.
type Mock struct {
	dims int
	id   string
}

// NewMock returns a Mock producing vectors of the given dimensionality.
func NewMock(dims int) *Mock {
	return &Mock{dims: dims, id: "mock-embedder"}
}

func (m *Mock) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, m.dims)
	}
	return out, nil
}

func (m *Mock) Dims() int { return m.dims }

func (m *Mock) ID() string { return m.id }

func hashVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(int32(seed>>32)) / float32(1<<31)
	}
	return v
}
