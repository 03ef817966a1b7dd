package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoryd/internal/reconcile"
	"github.com/fyrsmithlabs/memoryd/internal/repoindex"
)

var repoRoot string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Flip stale flags against the current repository index",
	Long: `Reconcile a repo's memory entries against <repoRoot>/.orchestrator/index/index.json,
marking entries whose referenced files have changed as stale and clearing stale flags
that no longer apply.

Examples:
  memoryd reconcile --repo-id /home/user/myrepo --repo-root /home/user/myrepo`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&repoRoot, "repo-root", "", "repository root containing .orchestrator/index/index.json (defaults to the current directory)")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if err := requireRepoID(); err != nil {
		return err
	}
	logger, err := initLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	ctx := cmd.Context()

	root := repoRoot
	if root == "" {
		root = "."
	}

	memCfg := loadMemoryConfig()
	st, err := openStore(memCfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	idx, err := repoindex.Load(root)
	if err != nil {
		return fmt.Errorf("loading repository index: %w", err)
	}

	bus, closeBus, err := openBus(memCfg)
	if err != nil {
		return fmt.Errorf("opening event bus: %w", err)
	}
	defer closeBus()

	r := reconcile.New(st, bus)
	result, err := r.Reconcile(context.Background(), repoID, idx)
	if err != nil {
		logger.Error(ctx, "reconciling", zap.Error(err))
		return fmt.Errorf("reconciling: %w", err)
	}
	logger.Info(ctx, "reconcile complete", zap.String("repoId", repoID), zap.Int("markedStale", result.MarkedStaleCount))

	if outputJSON {
		return printJSON(result)
	}
	fmt.Printf("markedStale: %d\n", result.MarkedStaleCount)
	fmt.Printf("clearedStale: %d\n", result.ClearedStaleCount)
	return nil
}
