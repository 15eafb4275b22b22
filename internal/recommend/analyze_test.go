package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/grants"
)

func TestAnalyze(t *testing.T) {
	o, h := newHarness(t, Options{})
	analyst := &fakeAnalyst{analysis: &ai.GapAnalysis{
		MatchAssessment: "Strong overlap with the fund objectives.",
		Gaps:            []string{"No evaluation plan"},
	}}
	o.analyst = analyst

	// expired grants can still be analyzed
	got, err := o.Analyze(context.Background(), " p1 ", "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ProjectID != "p1" || got.GrantID != "B" || got.Analysis != analyst.analysis {
		t.Fatalf("unexpected analysis: %+v", got)
	}
	if !got.GeneratedAt.Equal(h.clock.Now()) {
		t.Fatalf("expected generation time %v, got %v", h.clock.Now(), got.GeneratedAt)
	}
	if len(analyst.pairs) != 1 || analyst.pairs[0] != [2]string{"p1", "B"} {
		t.Fatalf("unexpected analyst calls: %v", analyst.pairs)
	}
	if h.logs.FilterMessage("gap analysis is ready").Len() != 1 {
		t.Fatalf("expected a log entry for the analysis")
	}
}

func TestAnalyzeErrors(t *testing.T) {
	boom := errors.New("quota exceeded")

	tests := []struct {
		name      string
		projectID string
		grantID   string
		analyst   Analyzer
		want      error
	}{
		{name: "empty project id", projectID: "", grantID: "A", analyst: &fakeAnalyst{}, want: ErrInvalidInput},
		{name: "empty grant id", projectID: "p1", grantID: " ", analyst: &fakeAnalyst{}, want: ErrInvalidInput},
		{name: "no analyst", projectID: "p1", grantID: "A", want: ai.ErrNotConfigured},
		{name: "unknown project", projectID: "missing", grantID: "A", analyst: &fakeAnalyst{}, want: grants.ErrNotFound},
		{name: "unknown grant", projectID: "p1", grantID: "missing", analyst: &fakeAnalyst{}, want: grants.ErrNotFound},
		{name: "model failure", projectID: "p1", grantID: "A", analyst: &fakeAnalyst{err: boom}, want: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newHarness(t, Options{})
			o.analyst = tt.analyst

			if _, err := o.Analyze(context.Background(), tt.projectID, tt.grantID); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
