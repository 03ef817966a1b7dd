package vectorbackend

import (
	"fmt"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// FactoryConfig is the input to New (§4.3's "a factory consumes
// {backend, …, remoteOptIn}").
type FactoryConfig struct {
	Backend      string // "mock", "sqlite", "chroma", "qdrant"
	RemoteOptIn  bool
	Dims         int
	EmbedderID   string
	LocalPath    string // sqlite backend
	ChromaPath   string // chroma backend
	ChromaCompress bool
	QdrantHost      string
	QdrantPort      int
	QdrantUseTLS    bool
	QdrantRateLimit float64 // queries/sec; 0 uses defaultQdrantRateLimit
	QdrantBurst     int     // 0 uses defaultQdrantBurst
}

// New selects and constructs a Backend per §4.3's selection rule: mock and
// sqlite are always allowed; anything else requires RemoteOptIn, and an
// unrecognized name is BackendNotImplemented regardless of RemoteOptIn.
func New(cfg FactoryConfig) (Backend, error) {
	switch cfg.Backend {
	case "mock":
		return NewMock(cfg.Dims), nil
	case "sqlite":
		return NewLocal(LocalConfig{Path: cfg.LocalPath, EmbedderID: cfg.EmbedderID, Dims: cfg.Dims})
	case "chroma":
		if !cfg.RemoteOptIn {
			return nil, memory.NewError(memory.KindRemoteBackendNotAllowed,
				fmt.Sprintf("backend %q requires remoteOptIn=true", cfg.Backend), nil)
		}
		return NewChroma(ChromaConfig{Path: cfg.ChromaPath, EmbedderID: cfg.EmbedderID, Dims: cfg.Dims, Compress: cfg.ChromaCompress})
	case "qdrant":
		if !cfg.RemoteOptIn {
			return nil, memory.NewError(memory.KindRemoteBackendNotAllowed,
				fmt.Sprintf("backend %q requires remoteOptIn=true", cfg.Backend), nil)
		}
		return NewQdrant(QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			UseTLS:     cfg.QdrantUseTLS,
			Dims:       cfg.Dims,
			EmbedderID: cfg.EmbedderID,
			RateLimit:  cfg.QdrantRateLimit,
			Burst:      cfg.QdrantBurst,
		})
	default:
		return nil, memory.NewError(memory.KindBackendNotImplemented,
			fmt.Sprintf("unknown vector backend %q", cfg.Backend), nil)
	}
}
