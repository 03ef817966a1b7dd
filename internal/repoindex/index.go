// Package repoindex loads the repository file index the reconciler (C7)
// compares memory entries against (spec.md §6.2). The index is produced and
// owned by another subsystem; this package only reads it.
package repoindex

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// File is one entry in Index.Files. Only Path and SHA256 are consumed.
type File struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256,omitempty"`
	SizeBytes int64  `json:"sizeBytes"`
	MtimeMs   int64  `json:"mtimeMs"`
	IsText    bool   `json:"isText"`
}

// Stats mirrors the index's stats block; kept for completeness even though
// the reconciler does not read it.
type Stats struct {
	FileCount     int            `json:"fileCount"`
	TextFileCount int            `json:"textFileCount"`
	HashedCount   int            `json:"hashedCount"`
	ByLanguage    map[string]int `json:"byLanguage"`
}

// Index is the shape of <repoRoot>/.orchestrator/index/index.json.
type Index struct {
	Version   string `json:"version"`
	RepoRoot  string `json:"repoRoot"`
	BuiltAt   string `json:"builtAt"`
	UpdatedAt string `json:"updatedAt"`
	Stats     Stats  `json:"stats"`
	Files     []File `json:"files"`
}

// RelativePath is the path under repoRoot the index is conventionally
// stored at.
const RelativePath = ".orchestrator/index/index.json"

// Load reads and parses the index at <repoRoot>/.orchestrator/index/index.json.
func Load(repoRoot string) (Index, error) {
	path := filepath.Join(repoRoot, RelativePath)
	data, err := os.ReadFile(path)
	if err != nil {
		return Index{}, memory.NewError(memory.KindStorageIO, "reading repository index", err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, memory.NewError(memory.KindStorageIO, "parsing repository index", err)
	}
	return idx, nil
}

// AsMap builds a path -> File lookup table for reconciliation.
func (idx Index) AsMap() map[string]File {
	m := make(map[string]File, len(idx.Files))
	for _, f := range idx.Files {
		m[f.Path] = f
	}
	return m
}
