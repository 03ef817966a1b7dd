package reranker

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// LexicalRerank applies the §4.4 multiplier rules, deduplicates by
// normalized content (keeping the newest among equal-content entries), and
// returns results sorted by score descending, ties broken by updatedAt
// descending.
func LexicalRerank(candidates []LexicalCandidate, opts LexicalOptions) []LexicalResult {
	scored := make([]LexicalResult, 0, len(candidates))
	for _, c := range candidates {
		score := 1.0 * lexicalMultiplier(c.Entry, opts)
		scored = append(scored, LexicalResult{Entry: c.Entry, Score: score})
	}

	scored = dedupeByNormalizedContent(scored)

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entry.UpdatedAt > scored[j].Entry.UpdatedAt
	})
	return scored
}

func lexicalMultiplier(e memory.MemoryEntry, opts LexicalOptions) float64 {
	m := 1.0
	if opts.StaleDownrank && e.Stale {
		m *= 0.1
	}
	if opts.Intent == IntentVerification && e.Type == memory.TypeProcedural {
		m *= 1.5
	}
	if opts.Intent == IntentImplementation && e.Type == memory.TypeEpisodic &&
		opts.FailureSignature != "" && strings.Contains(e.Title, opts.FailureSignature) {
		m *= 1.3
	}
	if opts.Now > 0 && opts.Now-e.UpdatedAt <= thirtyDaysMillis && opts.Now-e.UpdatedAt >= 0 {
		m *= 1.2
	}
	return m
}

// dedupeByNormalizedContent keeps, for each distinct normalized content, the
// entry with the greatest UpdatedAt.
func dedupeByNormalizedContent(results []LexicalResult) []LexicalResult {
	best := make(map[string]LexicalResult, len(results))
	order := make([]string, 0, len(results))
	for _, r := range results {
		key := memory.NormalizedContent(r.Entry.Content)
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = r
			continue
		}
		if r.Entry.UpdatedAt > existing.Entry.UpdatedAt {
			best[key] = r
		}
	}
	out := make([]LexicalResult, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}
