package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/recommend"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <project-id> <grant-id>",
	Short: "Ask the model what a project should strengthen to apply for a grant",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		projectID, grantID, err := parseAnalyzeArgs(args)
		if err != nil {
			log.Fatal(err)
		}
		analyze(cmd, projectID, grantID)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("output", "o", outputText, "output format: text or json")
}

func parseAnalyzeArgs(args []string) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("expected <project-id> <grant-id>, got %d arguments", len(args))
	}
	projectID, grantID := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	if projectID == "" || grantID == "" {
		return "", "", errors.New("project id and grant id must not be empty")
	}
	return projectID, grantID, nil
}

func analyze(cmd *cobra.Command, projectID, grantID string) {
	ctx := context.Background()

	a, err := setup(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	logger := a.logger

	analysis, err := a.orchestrator.Analyze(ctx, projectID, grantID)
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		logger.Fatal("gap analysis is unavailable",
			zap.String("hint", "check ai.enabled and the gemini api key"),
		)
	case errors.Is(err, grants.ErrNotFound):
		logger.Fatal("nothing to analyze", zap.Error(err))
	case errors.Is(err, recommend.ErrInvalidInput):
		logger.Fatal("invalid arguments", zap.Error(err))
	case err != nil:
		logger.Fatal("analyzing the grant", zap.Error(err))
	}

	output, _ := cmd.Flags().GetString("output")
	if err := printAnalysis(cmd.OutOrStdout(), output, analysis); err != nil {
		logger.Fatal("printing the analysis", zap.Error(err))
	}
}
