package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoryd/internal/hardening"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Run one retention-policy purge pass against a repo",
	Long: `Run one purge pass over a repo's memory entries, applying the configured
retention policies (first-match-wins by sensitivity level) and cascading
deletes to the vector backend when vector search is enabled.

Examples:
  memoryd purge --repo-id /home/user/myrepo`,
	RunE: runPurge,
}

func runPurge(cmd *cobra.Command, args []string) error {
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

	backend, err := openVectorBackend(memCfg)
	if err != nil {
		return fmt.Errorf("opening vector backend: %w", err)
	}

	bus, closeBus, err := openBus(memCfg)
	if err != nil {
		return fmt.Errorf("opening event bus: %w", err)
	}
	defer closeBus()

	p := hardening.New(st, backend, bus, memCfg.Hardening.RetentionPolicies)
	result, err := p.Purge(context.Background(), repoID)
	if err != nil {
		logger.Error(ctx, "purging", zap.Error(err))
		return fmt.Errorf("purging: %w", err)
	}
	logger.Info(ctx, "purge complete", zap.String("repoId", repoID), zap.Int("purged", result.PurgedCount))

	if outputJSON {
		return printJSON(result)
	}
	fmt.Printf("purged: %d\n", result.PurgedCount)
	for t, n := range result.PurgedByType {
		fmt.Printf("  by type %s: %d\n", t, n)
	}
	for sLevel, n := range result.PurgedBySensitivity {
		fmt.Printf("  by sensitivity %s: %d\n", sLevel, n)
	}
	if len(result.Errors) > 0 {
		fmt.Println("errors:")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}
