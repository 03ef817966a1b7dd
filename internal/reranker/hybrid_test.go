package reranker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

func floatPtr(f float64) *float64 { return &f }

func TestHybridRerankCombinesLexicalAndVectorEqually(t *testing.T) {
	e := memory.MemoryEntry{ID: "e1"}
	results := HybridRerank([]HybridHit{{Entry: e, LexicalScore: floatPtr(0.8), VectorScore: floatPtr(0.4)}}, HybridOptions{})
	require.Len(t, results, 1)
	require.InDelta(t, 0.6, results[0].Combined, 1e-9)
}

func TestHybridRerankTreatsMissingSideAsZero(t *testing.T) {
	e := memory.MemoryEntry{ID: "e1"}
	results := HybridRerank([]HybridHit{{Entry: e, LexicalScore: floatPtr(1.0)}}, HybridOptions{})
	require.InDelta(t, 0.5, results[0].Combined, 1e-9)
}

func TestHybridRerankAppliesStaleDownrank(t *testing.T) {
	stale := memory.MemoryEntry{ID: "stale", Stale: true}
	fresh := memory.MemoryEntry{ID: "fresh", Stale: false}
	hits := []HybridHit{
		{Entry: stale, LexicalScore: floatPtr(1.0), VectorScore: floatPtr(1.0)},
		{Entry: fresh, LexicalScore: floatPtr(1.0), VectorScore: floatPtr(1.0)},
	}
	results := HybridRerank(hits, HybridOptions{StaleDownrank: true})
	require.Equal(t, "fresh", results[0].Entry.ID)
	require.InDelta(t, 0.1, results[1].Combined, 1e-9)
}

func TestHybridRerankAppliesProceduralBoost(t *testing.T) {
	proc := memory.MemoryEntry{ID: "proc", Type: memory.TypeProcedural}
	sem := memory.MemoryEntry{ID: "sem", Type: memory.TypeSemantic}
	hits := []HybridHit{
		{Entry: proc, LexicalScore: floatPtr(0.5), VectorScore: floatPtr(0.5)},
		{Entry: sem, LexicalScore: floatPtr(0.5), VectorScore: floatPtr(0.5)},
	}
	results := HybridRerank(hits, HybridOptions{ProceduralBoost: true})
	require.Equal(t, "proc", results[0].Entry.ID)
	require.InDelta(t, 0.75, results[0].Combined, 1e-9)
}

func TestHybridRerankTiesBreakByUpdatedAtThenID(t *testing.T) {
	a := memory.MemoryEntry{ID: "b", UpdatedAt: 5}
	b := memory.MemoryEntry{ID: "a", UpdatedAt: 5}
	hits := []HybridHit{
		{Entry: a, LexicalScore: floatPtr(1), VectorScore: floatPtr(1)},
		{Entry: b, LexicalScore: floatPtr(1), VectorScore: floatPtr(1)},
	}
	results := HybridRerank(hits, HybridOptions{})
	require.Equal(t, "a", results[0].Entry.ID)
	require.Equal(t, "b", results[1].Entry.ID)
}

func TestHybridRerankScoreBoundsStayWithinUnit(t *testing.T) {
	e := memory.MemoryEntry{ID: "e1", Type: memory.TypeProcedural}
	results := HybridRerank([]HybridHit{{Entry: e, LexicalScore: floatPtr(1), VectorScore: floatPtr(1)}},
		HybridOptions{ProceduralBoost: true})
	require.LessOrEqual(t, results[0].Combined, 1.5)
	require.GreaterOrEqual(t, results[0].Combined, 0.0)
}
