package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/recommend"
)

const PromptDone = "done"

var recommendCmd = &cobra.Command{
	Use:   "recommend <project-id>",
	Short: "Rank open grants for a project, serving the cached set while it is still valid",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRecommend(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().BoolP("force-refresh", "f", false, "recompute even if the cached set is still valid")
	recommendCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before a forced refresh")
	recommendCmd.Flags().BoolP("interactive", "i", false, "dismiss grants into the exclude file after the run")
	recommendCmd.Flags().IntP("max-results", "n", 0, "maximum number of recommendations (default from config)")
	recommendCmd.Flags().Float64("min-score", 0, "minimum final score (default from config)")
	recommendCmd.Flags().StringP("output", "o", outputText, "output format: text or json")
}

func runRecommend(cmd *cobra.Command, projectID string) {
	ctx := context.Background()

	a, err := setup(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	logger := a.logger
	logger.Info("starting the grant-recommender", zap.String("version", version))

	opts := recommend.RunOptions{}
	opts.ForceRefresh, _ = cmd.Flags().GetBool("force-refresh")
	opts.MaxResults, _ = cmd.Flags().GetInt("max-results")
	if cmd.Flags().Changed("min-score") {
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		opts.MinScore = &minScore
	}

	if autoApprove, _ := cmd.Flags().GetBool("auto-approve"); opts.ForceRefresh && !autoApprove {
		confirm := promptui.Prompt{
			Label:     "Recompute recommendations and replace the cached set",
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			logger.Info("exiting", zap.String("reason", "forced refresh was not confirmed"))
			return
		}
	}

	result, err := a.orchestrator.Run(ctx, projectID, opts)
	switch {
	case errors.Is(err, recommend.ErrRunInProgress):
		logger.Fatal("another run holds the project", zap.String("project_id", projectID), zap.Error(err))
	case errors.Is(err, grants.ErrNotFound):
		logger.Fatal("project not found", zap.String("project_id", projectID))
	case err != nil:
		logger.Fatal("running recommendations", zap.Error(err))
	}

	logger.Info("recommendations are ready",
		zap.String("project_id", projectID),
		zap.Int("count", len(result.Recommendations)),
		zap.Bool("cached", result.Cached),
		zap.Duration("duration", result.Duration),
	)

	output, _ := cmd.Flags().GetString("output")
	if err := printRecommendations(cmd.OutOrStdout(), output, result); err != nil {
		logger.Fatal("printing recommendations", zap.Error(err))
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); !interactive {
		return
	}

	excludeFile := a.orchestrator.Options().ExcludeFile
	if excludeFile == "" {
		logger.Fatal("interactive mode requires recommend.exclude-file to be set")
	}

	if err := dismiss(excludeFile, result.Recommendations, logger); err != nil {
		logger.Fatal("dismissing grants", zap.Error(err))
	}
}

// dismiss lets the user move recommended grants into the exclude file one by one.
func dismiss(path string, recs []*recommend.Recommendation, logger *zap.Logger) error {
	excluded, err := grants.LoadExcluded(path)
	if err != nil {
		return err
	}

	for len(recs) > 0 {
		items := make([]string, 0, len(recs)+1)
		for _, rec := range recs {
			items = append(items, recommendationLabel(rec))
		}

		selectPrompt := promptui.Select{
			Label: "Choose a grant to dismiss and press ENTER",
			Items: append(items, PromptDone),
		}

		idx, selected, err := selectPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptDone {
			return nil
		}

		rec := recs[idx]
		reasonPrompt := promptui.Prompt{Label: "Reason (optional)"}
		reason, err := reasonPrompt.Run()
		if err != nil {
			return err
		}

		grant := rec.Grant
		if grant == nil {
			grant = &grants.Grant{ID: rec.GrantID}
		}
		excluded.Add(grant, strings.TrimSpace(reason), time.Now().UTC())

		if err := excluded.ToFile(path); err != nil {
			return err
		}
		logger.Info("appended to exclude file", zap.String("filename", path), zap.String("grant_id", rec.GrantID))

		recs = append(recs[:idx:idx], recs[idx+1:]...)
	}
	return nil
}

func recommendationLabel(rec *recommend.Recommendation) string {
	title := rec.GrantID
	if rec.Grant != nil && rec.Grant.Title != "" {
		title = rec.Grant.Title
	}
	return fmt.Sprintf("%5.1f  %s (%s)", rec.Scores.Overall, title, rec.GrantID)
}
