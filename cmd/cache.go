package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/recommend"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect stored recommendation sets",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Report whether the cached set of a project can still be served",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cacheStatus(cmd, args[0])
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Print the stored set of a project without recomputing it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cacheShow(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatusCmd, cacheShowCmd)

	cacheCmd.PersistentFlags().StringP("output", "o", outputText, "output format: text or json")
	cacheShowCmd.Flags().IntP("limit", "n", 0, "maximum number of rows (default all)")
}

func cacheStatus(cmd *cobra.Command, projectID string) {
	ctx := context.Background()

	a, err := setup(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	status, err := a.orchestrator.CacheStatus(ctx, projectID)
	if err != nil {
		a.logger.Fatal("checking the cache", zap.String("project_id", projectID), zap.Error(err))
	}

	output, _ := cmd.Flags().GetString("output")
	if err := printCacheStatus(cmd.OutOrStdout(), output, status); err != nil {
		a.logger.Fatal("printing cache status", zap.Error(err))
	}
}

func cacheShow(cmd *cobra.Command, projectID string) {
	ctx := context.Background()

	a, err := setup(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	recs, err := a.orchestrator.Cached(ctx, projectID, limit)
	if err != nil {
		a.logger.Fatal("reading the cache", zap.String("project_id", projectID), zap.Error(err))
	}

	output, _ := cmd.Flags().GetString("output")
	if err := printRecommendations(cmd.OutOrStdout(), output, &recommend.RunResult{Recommendations: recs, Cached: true}); err != nil {
		a.logger.Fatal("printing recommendations", zap.Error(err))
	}
}
