package main

import "testing"

func TestRequireRepoIDFailsWhenEmpty(t *testing.T) {
	repoID = ""
	if err := requireRepoID(); err == nil {
		t.Fatal("expected error for empty repoID")
	}
}

func TestRequireRepoIDPassesWhenSet(t *testing.T) {
	repoID = "repo1"
	defer func() { repoID = "" }()
	if err := requireRepoID(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
