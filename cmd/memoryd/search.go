package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoryd/internal/reranker"
	"github.com/fyrsmithlabs/memoryd/internal/search"
)

var (
	searchMode             string
	searchTopK             int
	searchIntent           string
	searchFailureSignature string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a repo's memory store",
	Long: `Search a repo's memory store in lexical, vector, or hybrid mode.

Examples:
  memoryd search "how to run tests" --repo-id /home/user/myrepo
  memoryd search "flaky integration test" --repo-id /home/user/myrepo --mode hybrid`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", "lexical", "search mode: lexical, vector, or hybrid")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchIntent, "intent", "", "retrieval intent: verification or implementation")
	searchCmd.Flags().StringVar(&searchFailureSignature, "failure-signature", "", "boost episodic entries whose title contains this failure signature")
}

func runSearch(cmd *cobra.Command, args []string) error {
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
	embed, err := openEmbedder(memCfg)
	if err != nil {
		return fmt.Errorf("opening embedder: %w", err)
	}

	bus, closeBus, err := openBus(memCfg)
	if err != nil {
		return fmt.Errorf("opening event bus: %w", err)
	}
	defer closeBus()

	svc := search.New(st, backend, embed, bus)
	result, err := svc.Query(context.Background(), repoID, args[0], search.Options{
		Mode:                           search.Mode(searchMode),
		TopKLexical:                    searchTopK,
		TopKVector:                     searchTopK,
		TopKFinal:                      searchTopK,
		FallbackToLexicalOnVectorError: true,
		Intent:                         reranker.Intent(searchIntent),
		FailureSignature:               searchFailureSignature,
	})
	if err != nil {
		logger.Error(ctx, "searching", zap.Error(err))
		return fmt.Errorf("searching: %w", err)
	}
	logger.Info(ctx, "search complete", zap.String("repoId", repoID), zap.String("method", string(result.MethodUsed)), zap.Int("hits", len(result.Hits)))

	if outputJSON {
		return printJSON(result)
	}
	fmt.Printf("method: %s\n", result.MethodUsed)
	for _, h := range result.Hits {
		fmt.Printf("- [%s] %s (score=%.3f)\n", h.Entry.Type, h.Entry.Title, h.Combined)
	}
	return nil
}
