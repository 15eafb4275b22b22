package ai

import (
	"context"
	"errors"

	"github.com/spigell/grant-recommender/internal/grants"
)

// ErrNotConfigured is returned by judges that have no model credentials.
var ErrNotConfigured = errors.New("llm judge is not configured")

// RelevanceScore is an independent model judgment of a project/grant pair. Every score
// is an integer in [0, 100].
type RelevanceScore struct {
	PurposeAlignment int    `json:"purposeAlignment"`
	EligibilityFit   int    `json:"eligibilityFit"`
	ImpactRelevance  int    `json:"impactRelevance"`
	Overall          int    `json:"overall"`
	Reasoning        string `json:"reasoning"`
	Raw              string `json:"-"`
}

type Judge interface {
	Score(ctx context.Context, project *grants.Project, grant *grants.Grant) (*RelevanceScore, error)
}

// GapAnalysis is a written review of how a project could strengthen an application to
// one grant.
type GapAnalysis struct {
	MatchAssessment string   `json:"matchAssessment"`
	Strengths       []string `json:"strengths"`
	Gaps            []string `json:"gaps"`
	Recommendations []string `json:"recommendations"`
	Tips            []string `json:"tips"`
	// Raw holds the model text when it could not be parsed.
	Raw string `json:"raw,omitempty"`
}
