// Package repostate resolves the bits of repository state the writer (C6)
// attaches to memory entries: the current repoId and HEAD commit SHA.
package repostate

import (
	"github.com/go-git/go-git/v5"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// State is the repoState input consumed by extractProcedural/extractEpisodic.
type State struct {
	RepoID string
	GitSHA string
}

// ResolveGitSHA opens the repository at repoRoot and returns its HEAD commit
// hash. Returns "" (not an error) for a repo with no commits yet.
func ResolveGitSHA(repoRoot string) (string, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return "", memory.NewError(memory.KindStorageIO, "opening repository for gitSha resolution", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", nil
	}
	return head.Hash().String(), nil
}
