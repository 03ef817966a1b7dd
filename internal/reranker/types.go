// Package reranker implements C4: two pure, side-effect-free scoring
// functions over candidate memory entries. They are the canonical test
// target for ranking regressions (spec.md §4.4), so neither function talks
// to the store, a vector backend, or the clock beyond what callers pass in.
package reranker

import "github.com/fyrsmithlabs/memoryd/internal/memory"

// Intent is the caller's stated retrieval goal, used by the lexical
// multiplier rules.
type Intent string

const (
	IntentVerification  Intent = "verification"
	IntentImplementation Intent = "implementation"
)

// LexicalOptions configures LexicalRerank.
type LexicalOptions struct {
	Intent            Intent
	StaleDownrank     bool
	FailureSignature  string
	Now               int64
}

// LexicalCandidate pairs an entry with its lexical score from the store.
type LexicalCandidate struct {
	Entry        memory.MemoryEntry
	LexicalScore float64
}

// LexicalResult is a post-rerank hit.
type LexicalResult struct {
	Entry memory.MemoryEntry
	Score float64
}

// HybridOptions configures HybridRerank.
type HybridOptions struct {
	StaleDownrank                  bool
	ProceduralBoost                bool
	EpisodicBoostFailureSignature  string
}

// HybridHit is one side of a union-by-id input to HybridRerank.
type HybridHit struct {
	Entry        memory.MemoryEntry
	LexicalScore *float64
	VectorScore  *float64
}

// HybridResult is a post-rerank hit.
type HybridResult struct {
	Entry    memory.MemoryEntry
	Combined float64
}

const thirtyDaysMillis = 30 * 24 * 60 * 60 * 1000
