// Package embedder adapts the consumed embedding interface (spec.md §6.1)
// for this subsystem: embedTexts returns one vector per input, every vector
// shares dims(), and each implementation exposes a stable id().
package embedder

import "context"

// Embedder is the consumed interface. Failure is reported as an error and
// never yields partial results.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dims() int
	ID() string
}
