// Package recommend turns a project into a ranked, explained list of grants.
//
// The pipeline gates grants on eligibility, blends the rule and semantic signals into a
// preliminary score, sends a bounded shortlist to the model judge and blends its verdict
// into the final score. Results are cached per project and replaced as a whole.
package recommend

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/semantic"
)

var (
	// ErrInvalidInput is returned for caller mistakes such as an empty grant id list.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRunInProgress is returned when another run for the same project holds the lock.
	ErrRunInProgress = errors.New("recommendation run already in progress")
)

// Recommendation is one ranked grant for a project.
type Recommendation struct {
	ID          string             `json:"id"`
	ProjectID   string             `json:"project_id"`
	GrantID     string             `json:"grant_id"`
	Grant       *grants.Grant      `json:"grant,omitempty"`
	Scores      Scores             `json:"scores"`
	LLM         *ai.RelevanceScore `json:"llm,omitempty"`
	Mode        ScoringMode        `json:"mode"`
	MatchReason string             `json:"match_reason"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Scores are presented with one decimal.
type Scores struct {
	Overall     float64 `json:"overall"`
	Preliminary float64 `json:"preliminary"`
	Category    float64 `json:"category"`
	Funding     float64 `json:"funding"`
	// Deadline is nil for open-ended grants.
	Deadline *float64 `json:"deadline,omitempty"`
	Semantic *int     `json:"semantic,omitempty"`
}

// GrantRepository is the read side of the grant corpus.
type GrantRepository interface {
	FindEligibleGrants(ctx context.Context, now time.Time, policy grants.EligibilityPolicy) (*grants.Grants, error)
	CountGrantsCreatedAfter(ctx context.Context, after, now time.Time, policy grants.EligibilityPolicy) (int, error)
	GetGrants(ctx context.Context, ids []string) (*grants.Grants, error)
}

type ProjectRepository interface {
	GetProject(ctx context.Context, id string) (*grants.Project, error)
}

type SemanticScorer interface {
	BatchSimilarity(ctx context.Context, projectID string, grantIDs []string) (map[string]semantic.Scores, error)
}

type RelevanceScorer interface {
	BatchScore(ctx context.Context, project *grants.Project, items []*grants.Grant) map[string]*ai.RelevanceScore
}

// Analyzer writes a gap analysis of one project/grant pair.
type Analyzer interface {
	Analyze(ctx context.Context, project *grants.Project, grant *grants.Grant) (*ai.GapAnalysis, error)
}

// Store persists the latest recommendation set of each project.
type Store interface {
	// Replace swaps the whole set for the project atomically.
	Replace(ctx context.Context, projectID string, recs []*Recommendation) error
	// List returns the stored set ordered by overall score, best first. limit <= 0 means all.
	List(ctx context.Context, projectID string, limit int) ([]*Recommendation, error)
}

// Locker guards a project against concurrent runs.
type Locker interface {
	// TryLock returns ok=false without waiting when the key is already held.
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
