package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/recommend"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func printRecommendations(w io.Writer, format string, result *recommend.RunResult) error {
	switch format {
	case outputJSON:
		return printJSON(w, result)
	case outputText, "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	if result.Cached && !result.CachedAt.IsZero() {
		fmt.Fprintf(w, "served from cache built at %s\n", result.CachedAt.Format(time.RFC3339))
	}
	if len(result.Recommendations) == 0 {
		fmt.Fprintln(w, "no grants matched the project")
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSCORE\tGRANT\tTITLE\tDEADLINE\tMODE")
	for i, rec := range result.Recommendations {
		title, deadline := "", "open-ended"
		if rec.Grant != nil {
			title = rec.Grant.Title
			if days, ok := rec.Grant.DaysUntilDeadline(now); ok {
				deadline = fmt.Sprintf("%s (%dd)", rec.Grant.Deadline.Format(time.DateOnly), days)
			}
		}
		fmt.Fprintf(tw, "%d\t%.1f\t%s\t%s\t%s\t%s\n", i+1, rec.Scores.Overall, rec.GrantID, title, deadline, rec.Mode)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	for i, rec := range result.Recommendations {
		fmt.Fprintf(w, "%d. %s\n", i+1, rec.MatchReason)
	}
	return nil
}

func printRelevance(w io.Writer, format string, scores map[string]*ai.RelevanceScore) error {
	switch format {
	case outputJSON:
		return printJSON(w, scores)
	case outputText, "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]].Overall != scores[ids[j]].Overall {
			return scores[ids[i]].Overall > scores[ids[j]].Overall
		}
		return ids[i] < ids[j]
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GRANT\tOVERALL\tPURPOSE\tELIGIBILITY\tIMPACT\tREASONING")
	for _, id := range ids {
		s := scores[id]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n", id, s.Overall, s.PurposeAlignment, s.EligibilityFit, s.ImpactRelevance, s.Reasoning)
	}
	return tw.Flush()
}

func printCacheStatus(w io.Writer, format string, status *recommend.CacheStatus) error {
	switch format {
	case outputJSON:
		return printJSON(w, struct {
			*recommend.CacheStatus
			Valid  bool   `json:"valid"`
			Reason string `json:"reason"`
		}{status, status.Valid(), status.Reason()})
	case outputText, "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	cachedAt := "never"
	if !status.CachedAt.IsZero() {
		cachedAt = status.CachedAt.Format(time.RFC3339)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "project\t%s\n", status.ProjectID)
	fmt.Fprintf(tw, "cached\t%d\n", status.Size)
	fmt.Fprintf(tw, "cached at\t%s\n", cachedAt)
	fmt.Fprintf(tw, "new grants\t%d\n", status.NewGrants)
	fmt.Fprintf(tw, "project updated\t%s\n", strconv.FormatBool(status.ProjectUpdated))
	fmt.Fprintf(tw, "valid\t%s\n", strconv.FormatBool(status.Valid()))
	fmt.Fprintf(tw, "reason\t%s\n", status.Reason())
	return tw.Flush()
}

func printAnalysis(w io.Writer, format string, result *recommend.Analysis) error {
	switch format {
	case outputJSON:
		return printJSON(w, result)
	case outputText, "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	title := result.GrantTitle
	if title == "" {
		title = result.GrantID
	}
	fmt.Fprintf(w, "%s for %s\n", title, result.ProjectName)
	if result.Agency != "" {
		fmt.Fprintf(w, "agency: %s\n", result.Agency)
	}

	analysis := result.Analysis
	if analysis == nil {
		analysis = &ai.GapAnalysis{}
	}
	fmt.Fprintf(w, "\n%s\n", analysis.MatchAssessment)

	for _, part := range []struct {
		heading string
		items   []string
	}{
		{"Strengths", analysis.Strengths},
		{"Gaps", analysis.Gaps},
		{"Recommendations", analysis.Recommendations},
		{"Tips", analysis.Tips},
	} {
		if len(part.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", part.heading)
		for _, item := range part.items {
			fmt.Fprintf(w, "  - %s\n", item)
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
