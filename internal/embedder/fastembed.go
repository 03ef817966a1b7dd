package embedder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// modelDimensions lists the embedding dimension for each model this
// subsystem recommends in its configuration schema.
var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGEBaseENV15:  768,
	fastembed.AllMiniLML6V2: 384,
}

// FastEmbedConfig configures the local ONNX-backed embedder.
type FastEmbedConfig struct {
	Model     string // fastembed.EmbeddingModel string value, e.g. "BAAI/bge-small-en-v1.5"
	CacheDir  string
	MaxLength int
}

// FastEmbed wraps anush008/fastembed-go behind the Embedder interface.
type FastEmbed struct {
	model *fastembed.FlagEmbedding
	id    string
	dims  int
	mu    sync.Mutex
}

// NewFastEmbed loads (downloading into CacheDir if necessary) the requested
// model.
func NewFastEmbed(cfg FastEmbedConfig) (*FastEmbed, error) {
	model := fastembed.EmbeddingModel(cfg.Model)
	dims, known := modelDimensions[model]
	if !known {
		return nil, memory.NewError(memory.KindConfigError, fmt.Sprintf("unsupported embedder model %q", cfg.Model), nil)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, memory.NewError(memory.KindEmbeddingFailure, "initializing fastembed model", err)
	}

	return &FastEmbed{model: flagEmbed, id: cfg.Model, dims: dims}, nil
}

func (f *FastEmbed) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, memory.NewError(memory.KindEmbeddingFailure, "embedTexts called with no texts", nil)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	vectors, err := f.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, memory.NewError(memory.KindEmbeddingFailure, "generating embeddings", err)
	}
	for _, v := range vectors {
		if len(v) != f.dims {
			return nil, memory.NewError(memory.KindEmbeddingFailure,
				fmt.Sprintf("embedder returned %d dims, expected %d", len(v), f.dims), nil)
		}
	}
	return vectors, nil
}

func (f *FastEmbed) Dims() int { return f.dims }

func (f *FastEmbed) ID() string { return f.id }
