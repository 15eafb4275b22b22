package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/recommend"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance <project-id> <grant-id>...",
	Short: "Ask the model judge how well the chosen grants fit a project",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		enhance(cmd, args[0], args[1:])
	},
}

func init() {
	rootCmd.AddCommand(enhanceCmd)

	enhanceCmd.Flags().StringP("output", "o", outputText, "output format: text or json")
}

func enhance(cmd *cobra.Command, projectID string, grantIDs []string) {
	ctx := context.Background()

	a, err := setup(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	logger := a.logger

	scores, err := a.orchestrator.Enhance(ctx, projectID, grantIDs)
	switch {
	case errors.Is(err, recommend.ErrInvalidInput):
		logger.Fatal("invalid arguments", zap.Error(err))
	case errors.Is(err, grants.ErrNotFound):
		logger.Fatal("nothing to enhance", zap.Error(err))
	case err != nil:
		logger.Fatal("enhancing recommendations", zap.Error(err))
	}

	if len(scores) == 0 {
		logger.Warn("no grant received a relevance score",
			zap.String("hint", "check ai.enabled and the gemini api key"),
		)
		return
	}

	output, _ := cmd.Flags().GetString("output")
	if err := printRelevance(cmd.OutOrStdout(), output, scores); err != nil {
		logger.Fatal("printing relevance scores", zap.Error(err))
	}
}
