package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/db"
	"github.com/spigell/grant-recommender/internal/recommend"
)

const createRecommendations = `CREATE TABLE IF NOT EXISTS recommendations (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL,
	grant_id          TEXT NOT NULL,
	overall_score     DOUBLE PRECISION NOT NULL,
	preliminary_score DOUBLE PRECISION NOT NULL,
	category_score    DOUBLE PRECISION NOT NULL,
	funding_score     DOUBLE PRECISION NOT NULL,
	deadline_score    DOUBLE PRECISION,
	semantic_score    INTEGER,
	llm_purpose       INTEGER,
	llm_eligibility   INTEGER,
	llm_impact        INTEGER,
	llm_overall       INTEGER,
	llm_reasoning     TEXT,
	scoring_mode      TEXT NOT NULL,
	match_reason      TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS recommendations_project_score_idx
	ON recommendations (project_id, overall_score DESC)`

const (
	deleteRecommendations = `DELETE FROM recommendations WHERE project_id = $1`

	insertRecommendation = `INSERT INTO recommendations (
		id, project_id, grant_id, overall_score, preliminary_score, category_score, funding_score,
		deadline_score, semantic_score, llm_purpose, llm_eligibility, llm_impact, llm_overall,
		llm_reasoning, scoring_mode, match_reason, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	selectRecommendations = `SELECT id, project_id, grant_id, overall_score, preliminary_score,
		category_score, funding_score, deadline_score, semantic_score, llm_purpose, llm_eligibility,
		llm_impact, llm_overall, llm_reasoning, scoring_mode, match_reason, created_at
		FROM recommendations WHERE project_id = $1
		ORDER BY overall_score DESC, grant_id
		LIMIT $2`
)

// TxRunner is implemented by *db.DB.
type TxRunner interface {
	Querier() db.Querier
	WithTx(ctx context.Context, fn func(q db.Querier) error) error
}

// Recommendations is the Postgres recommendation store.
type Recommendations struct {
	db     TxRunner
	logger *zap.Logger
}

func NewRecommendations(runner TxRunner, logger *zap.Logger) *Recommendations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommendations{db: runner, logger: logger}
}

// EnsureSchema creates the recommendations table when it is missing.
func (s *Recommendations) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Querier().Exec(ctx, createRecommendations); err != nil {
		return fmt.Errorf("create recommendations table: %w", err)
	}
	return nil
}

// Replace deletes the project's rows and inserts recs in one transaction so readers
// never observe an empty or mixed set.
func (s *Recommendations) Replace(ctx context.Context, projectID string, recs []*recommend.Recommendation) error {
	return s.db.WithTx(ctx, func(q db.Querier) error {
		tag, err := q.Exec(ctx, deleteRecommendations, projectID)
		if err != nil {
			return fmt.Errorf("delete recommendations: %w", err)
		}

		for _, rec := range recs {
			if _, err := q.Exec(ctx, insertRecommendation, insertArgs(projectID, rec)...); err != nil {
				return fmt.Errorf("insert recommendation for grant %s: %w", rec.GrantID, err)
			}
		}

		s.logger.Debug("recommendations replaced",
			zap.String("project_id", projectID),
			zap.Int64("deleted", tag.RowsAffected()),
			zap.Int("inserted", len(recs)),
		)
		return nil
	})
}

func insertArgs(projectID string, rec *recommend.Recommendation) []any {
	var purpose, eligibility, impact, overall *int
	var reasoning *string
	if rec.LLM != nil {
		purpose, eligibility, impact, overall = &rec.LLM.PurposeAlignment, &rec.LLM.EligibilityFit, &rec.LLM.ImpactRelevance, &rec.LLM.Overall
		reasoning = &rec.LLM.Reasoning
	}
	return []any{
		rec.ID, projectID, rec.GrantID,
		rec.Scores.Overall, rec.Scores.Preliminary, rec.Scores.Category, rec.Scores.Funding,
		rec.Scores.Deadline, rec.Scores.Semantic,
		purpose, eligibility, impact, overall, reasoning,
		rec.Mode.String(), rec.MatchReason, rec.CreatedAt,
	}
}

func (s *Recommendations) List(ctx context.Context, projectID string, limit int) ([]*recommend.Recommendation, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.db.Querier().Query(ctx, selectRecommendations, projectID, lim)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	out := make([]*recommend.Recommendation, 0)
	for rows.Next() {
		var (
			rec                                      recommend.Recommendation
			purpose, eligibility, impact, llmOverall *int
			reasoning                                *string
			mode                                     string
			createdAt                                time.Time
		)
		err := rows.Scan(
			&rec.ID, &rec.ProjectID, &rec.GrantID,
			&rec.Scores.Overall, &rec.Scores.Preliminary, &rec.Scores.Category, &rec.Scores.Funding,
			&rec.Scores.Deadline, &rec.Scores.Semantic,
			&purpose, &eligibility, &impact, &llmOverall, &reasoning,
			&mode, &rec.MatchReason, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}

		rec.Mode, err = recommend.ParseScoringMode(mode)
		if err != nil {
			return nil, fmt.Errorf("recommendation %s: %w", rec.ID, err)
		}
		rec.CreatedAt = createdAt.UTC()

		if llmOverall != nil {
			rec.LLM = &ai.RelevanceScore{
				PurposeAlignment: derefInt(purpose),
				EligibilityFit:   derefInt(eligibility),
				ImpactRelevance:  derefInt(impact),
				Overall:          *llmOverall,
				Reasoning:        deref(reasoning),
			}
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return out, nil
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
