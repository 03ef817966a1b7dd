package reranker

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// HybridRerank unions lexical and vector hits by entry ID, combines scores
// as 0.5·lexical + 0.5·vector (missing side counted as 0), applies the
// §4.4 post-multipliers, and sorts by combined score descending. Inputs are
// already unique by id, so no deduplication pass is needed.
func HybridRerank(hits []HybridHit, opts HybridOptions) []HybridResult {
	results := make([]HybridResult, 0, len(hits))
	for _, h := range hits {
		lex := 0.0
		if h.LexicalScore != nil {
			lex = *h.LexicalScore
		}
		vec := 0.0
		if h.VectorScore != nil {
			vec = *h.VectorScore
		}
		combined := 0.5*lex + 0.5*vec
		combined *= hybridMultiplier(h.Entry, opts)
		results = append(results, HybridResult{Entry: h.Entry, Combined: combined})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Combined != results[j].Combined {
			return results[i].Combined > results[j].Combined
		}
		if results[i].Entry.UpdatedAt != results[j].Entry.UpdatedAt {
			return results[i].Entry.UpdatedAt > results[j].Entry.UpdatedAt
		}
		return results[i].Entry.ID < results[j].Entry.ID
	})
	return results
}

func hybridMultiplier(e memory.MemoryEntry, opts HybridOptions) float64 {
	m := 1.0
	if opts.StaleDownrank && e.Stale {
		m *= 0.1
	}
	if opts.ProceduralBoost && e.Type == memory.TypeProcedural {
		m *= 1.5
	}
	if opts.EpisodicBoostFailureSignature != "" && e.Type == memory.TypeEpisodic &&
		strings.Contains(e.Title, opts.EpisodicBoostFailureSignature) {
		m *= 1.3
	}
	return m
}
