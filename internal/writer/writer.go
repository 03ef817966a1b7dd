// Package writer implements C6, the two memory-extraction entry points that
// turn orchestration events into procedural and episodic memories
// (spec.md §4.6).
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/memoryd/internal/embedder"
	"github.com/fyrsmithlabs/memoryd/internal/memory"
	"github.com/fyrsmithlabs/memoryd/internal/redact"
	"github.com/fyrsmithlabs/memoryd/internal/repostate"
	"github.com/fyrsmithlabs/memoryd/internal/vectorbackend"
)

// ToolRunMeta describes the tool invocation extractProcedural considers.
type ToolRunMeta struct {
	Command        string
	Classification string // "test", "build", "lint", "format", or anything else
}

// ToolRunResult is the outcome of running the tool.
type ToolRunResult struct {
	ExitCode int
}

// RunSummary describes a completed orchestration run for extractEpisodic.
type RunSummary struct {
	RunID      string
	Goal       string
	Status     string
	StopReason string
}

// VerificationReport, when present, is folded into the episodic entry's
// content JSON verbatim.
type VerificationReport struct {
	Passed  bool   `json:"passed"`
	Summary string `json:"summary,omitempty"`
}

// PatchStats, when present, is folded into the episodic entry's content
// JSON verbatim.
type PatchStats struct {
	FilesChanged int `json:"filesChanged"`
	LinesAdded   int `json:"linesAdded"`
	LinesRemoved int `json:"linesRemoved"`
}

// EpisodicEvidence is redacted and attached to the episodic entry's
// Evidence field.
type EpisodicEvidence struct {
	ArtifactPaths    []string
	FailureSignature string
}

var classificationTitles = map[string]string{
	"test":   "How to run tests",
	"build":  "How to build",
	"lint":   "How to lint",
	"format": "How to format",
}

var allowedClassifications = map[string]bool{
	"test": true, "build": true, "lint": true, "format": true,
}

// EntryStore is the subset of the embedded store the writer needs.
type EntryStore interface {
	Upsert(ctx context.Context, entry memory.MemoryEntry) (memory.MemoryEntry, error)
	FindProceduralByContent(ctx context.Context, repoID, content string) (memory.MemoryEntry, bool, error)
	MarkVectorUpdated(ctx context.Context, id string) error
}

// Config tunes the writer's integrity gate and vector-upsert behavior.
type Config struct {
	VectorEnabled    bool
	DenylistPatterns []string // regexes matched against the normalized command
}

// Service is C6.
type Service struct {
	store   EntryStore
	backend vectorbackend.Backend
	embed   embedder.Embedder
	bus     memory.Bus
	cfg     Config

	denylist []*regexp.Regexp

	mu       sync.Mutex
	coalesce map[string]memory.MemoryEntry // "repoId\x00normalizedCommand" -> last-known entry, this process lifetime only
}

// New constructs a Service. backend/embed may be nil when cfg.VectorEnabled
// is false. Invalid denylist patterns are dropped (the gate degrades to
// "no denylist" rather than failing Service construction).
func New(store EntryStore, backend vectorbackend.Backend, embed embedder.Embedder, bus memory.Bus, cfg Config) *Service {
	s := &Service{
		store:    store,
		backend:  backend,
		embed:    embed,
		bus:      bus,
		cfg:      cfg,
		coalesce: make(map[string]memory.MemoryEntry),
	}
	for _, p := range cfg.DenylistPatterns {
		if re, err := regexp.Compile(p); err == nil {
			s.denylist = append(s.denylist, re)
		}
	}
	return s
}

func (s *Service) publish(e memory.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// normalizeCommand trims, collapses internal whitespace, and redacts secrets
// from a raw command string.
func normalizeCommand(command string) (string, int) {
	fields := strings.Fields(command)
	collapsed := strings.Join(fields, " ")
	return redact.RedactString(collapsed)
}

func (s *Service) matchesDenylist(normalizedCommand string) bool {
	for _, re := range s.denylist {
		if re.MatchString(normalizedCommand) {
			return true
		}
	}
	return false
}

// ExtractProcedural creates or updates a procedural memory from a completed
// tool run (spec.md §4.6). Returns (entry, false) when no memory is
// produced (the run's classification/exit code don't qualify).
func (s *Service) ExtractProcedural(ctx context.Context, repoID string, meta ToolRunMeta, result ToolRunResult, repo repostate.State) (memory.MemoryEntry, bool, error) {
	if result.ExitCode != 0 || !allowedClassifications[meta.Classification] {
		return memory.MemoryEntry{}, false, nil
	}

	normalizedCommand, redactedCount := normalizeCommand(meta.Command)
	if redactedCount > 0 {
		s.publish(memory.NewEvent(memory.EventMemoryRedaction, "", memory.RedactionPayload{Count: redactedCount, Context: "extractProcedural"}))
	}

	blocked := s.matchesDenylist(normalizedCommand)

	now := memory.NowMillis()
	coalesceKey := repoID + "\x00" + normalizedCommand

	existing, found, err := s.lookupProcedural(ctx, repoID, normalizedCommand, coalesceKey)
	if err != nil {
		return memory.MemoryEntry{}, false, err
	}

	entry := existing
	if found {
		entry.Evidence = redactedEvidenceMap(repo)
		entry.GitSHA = repo.GitSHA
		entry.UpdatedAt = now
	} else {
		title, ok := classificationTitles[meta.Classification]
		if !ok {
			title = fmt.Sprintf("How to %s", meta.Classification)
		}
		entry = memory.MemoryEntry{
			ID:              uuid.NewString(),
			RepoID:          repoID,
			Type:            memory.TypeProcedural,
			Title:           title,
			Content:         normalizedCommand,
			Evidence:        redactedEvidenceMap(repo),
			GitSHA:          repo.GitSHA,
			Sensitivity:     memory.SensitivityInternal,
			IntegrityStatus: memory.IntegrityOK,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}

	if blocked {
		entry.IntegrityStatus = memory.IntegrityBlocked
		return entry, true, nil
	}

	persisted, err := s.store.Upsert(ctx, entry)
	if err != nil {
		return memory.MemoryEntry{}, false, err
	}

	s.mu.Lock()
	s.coalesce[coalesceKey] = persisted
	s.mu.Unlock()

	if s.cfg.VectorEnabled {
		if err := s.upsertVector(ctx, persisted); err != nil {
			return persisted, true, err
		}
	}
	return persisted, true, nil
}

// lookupProcedural checks the in-process coalescing cache before falling
// back to the store, so that repeated calls against the same normalized
// command within one process lifetime skip a round trip.
func (s *Service) lookupProcedural(ctx context.Context, repoID, normalizedCommand, coalesceKey string) (memory.MemoryEntry, bool, error) {
	s.mu.Lock()
	entry, cached := s.coalesce[coalesceKey]
	s.mu.Unlock()
	if cached {
		return entry, true, nil
	}
	return s.store.FindProceduralByContent(ctx, repoID, normalizedCommand)
}

func redactedEvidenceMap(repo repostate.State) map[string]any {
	m := map[string]any{"gitSha": repo.GitSHA}
	return redact.RedactObject(m).(map[string]any)
}

// ExtractEpisodic always produces an episodic memory summarizing a
// completed orchestration run (spec.md §4.6).
func (s *Service) ExtractEpisodic(ctx context.Context, repoID string, summary RunSummary, repo repostate.State, verification *VerificationReport, patch *PatchStats, evidence EpisodicEvidence) (memory.MemoryEntry, error) {
	goalExcerpt := summary.Goal
	if len(goalExcerpt) > 40 {
		goalExcerpt = goalExcerpt[:40] + "…"
	}
	title := fmt.Sprintf("Run %s: %s - %s", summary.RunID, summary.Status, goalExcerpt)

	content := map[string]any{
		"goal":       summary.Goal,
		"status":     summary.Status,
		"stopReason": summary.StopReason,
	}
	if verification != nil {
		content["verification"] = map[string]any{"passed": verification.Passed, "summary": verification.Summary}
	}
	if patch != nil {
		content["patch"] = map[string]any{
			"filesChanged": patch.FilesChanged,
			"linesAdded":   patch.LinesAdded,
			"linesRemoved": patch.LinesRemoved,
		}
	}

	redactedContent, redactedContentCount := redact.RedactWithCount(content)
	contentBytes, err := json.Marshal(redactedContent)
	if err != nil {
		return memory.MemoryEntry{}, memory.NewError(memory.KindStorageIO, "marshaling episodic content", err)
	}
	contentJSON := memory.TruncateContent(string(contentBytes))

	evidenceMap := map[string]any{
		"artifactPaths":    evidence.ArtifactPaths,
		"failureSignature": evidence.FailureSignature,
	}
	redactedEvidence, redactedEvidenceCount := redact.RedactWithCount(evidenceMap)

	totalRedacted := redactedContentCount + redactedEvidenceCount
	if totalRedacted > 0 {
		s.publish(memory.NewEvent(memory.EventMemoryRedaction, "", memory.RedactionPayload{Count: totalRedacted, Context: "extractEpisodic"}))
	}

	now := memory.NowMillis()
	entry := memory.MemoryEntry{
		ID:              uuid.NewString(),
		RepoID:          repoID,
		Type:            memory.TypeEpisodic,
		Title:           title,
		Content:         contentJSON,
		Evidence:        redactedEvidence.(map[string]any),
		GitSHA:          repo.GitSHA,
		Sensitivity:     memory.SensitivityInternal,
		IntegrityStatus: memory.IntegrityOK,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	persisted, err := s.store.Upsert(ctx, entry)
	if err != nil {
		return memory.MemoryEntry{}, err
	}

	if s.cfg.VectorEnabled {
		if err := s.upsertVector(ctx, persisted); err != nil {
			return persisted, err
		}
	}
	return persisted, nil
}

func (s *Service) upsertVector(ctx context.Context, entry memory.MemoryEntry) error {
	embedInput := entry.Title + "\n" + truncate(entry.Content, 4*1024)
	vecs, err := s.embed.EmbedTexts(ctx, []string{embedInput})
	if err != nil {
		return memory.NewError(memory.KindEmbeddingFailure, "embedding entry for vector upsert", err)
	}
	if len(vecs) != 1 {
		return memory.NewError(memory.KindEmbeddingFailure, "embedder returned unexpected vector count", nil)
	}
	item := vectorbackend.UpsertItem{
		ID:     entry.ID,
		Vector: vecs[0],
		Metadata: memory.VectorMeta{
			Type:       entry.Type,
			Stale:      entry.Stale,
			UpdatedAt:  entry.UpdatedAt,
			EmbedderID: s.embed.ID(),
			Dims:       s.embed.Dims(),
		},
	}
	if err := s.backend.Upsert(ctx, entry.RepoID, []vectorbackend.UpsertItem{item}); err != nil {
		return memory.NewError(memory.KindEmbeddingFailure, "upserting vector record", err)
	}
	return s.store.MarkVectorUpdated(ctx, entry.ID)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneBoundary(s, cut) {
		cut--
	}
	return s[:cut]
}

func isRuneBoundary(s string, i int) bool {
	if i <= 0 || i >= len(s) {
		return true
	}
	return s[i]&0xC0 != 0x80
}
