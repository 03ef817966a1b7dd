package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show aggregate entry counts for a repo",
	Long: `Show aggregate entry counts for a repo's memory store.

Examples:
  memoryd status --repo-id /home/user/myrepo --store /home/user/myrepo/.orchestrator/memory/memory.sqlite`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := requireRepoID(); err != nil {
		return err
	}
	logger, err := initLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	memCfg := loadMemoryConfig()
	st, err := openStore(memCfg)
	if err != nil {
		logger.Error(ctx, "opening store", zap.Error(err))
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	status, err := st.Status(context.Background(), repoID)
	if err != nil {
		logger.Error(ctx, "fetching status", zap.Error(err))
		return fmt.Errorf("fetching status: %w", err)
	}
	logger.Info(ctx, "status complete", zap.String("repoId", repoID), zap.Int("total", status.Total))

	if outputJSON {
		return printJSON(status)
	}
	fmt.Printf("repoId: %s\n", repoID)
	fmt.Printf("total: %d\n", status.Total)
	fmt.Printf("stale: %d\n", status.StaleCount)
	for t, n := range status.EntryCounts {
		fmt.Printf("  %s: %d\n", t, n)
	}
	return nil
}
