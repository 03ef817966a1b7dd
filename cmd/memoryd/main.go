// Package main implements memoryd, a maintenance CLI that drives the
// memory subsystem directly against a local store path: status, search,
// reconcile, and purge. It talks to no HTTP server — see internal/httpapi
// for the introspection surface a long-running host process exposes.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	storePath  string
	repoID     string
	outputJSON bool

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "memoryd",
	Short:   "Maintenance CLI for the memory subsystem",
	Long:    `memoryd drives the memory subsystem's embedded store directly: status, search, reconcile, and purge, without a running host process.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", ".orchestrator/memory/memory.sqlite", "path to the embedded store file")
	rootCmd.PersistentFlags().StringVar(&repoID, "repo-id", "", "repoId to operate on (required)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(purgeCmd)
}
