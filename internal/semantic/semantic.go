// Package semantic compares project and grant section embeddings.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/embeddings"
	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/similarity"
)

const (
	purposeWeight      = 0.4
	eligibilityWeight  = 0.4
	deliverablesWeight = 0.2
)

// EmbeddingSource is the read side of the embedding store.
type EmbeddingSource interface {
	ProjectEmbeddings(ctx context.Context, projectID string) (*embeddings.ProjectEmbeddings, error)
	GrantEmbeddingsBatch(ctx context.Context, grantIDs []string) (map[string]*embeddings.GrantEmbeddings, error)
}

// Scores are per-section semantic scores for one project/grant pair, each in [0, 100].
type Scores struct {
	Purpose      int `json:"purpose"`
	Eligibility  int `json:"eligibility"`
	Deliverables int `json:"deliverables"`
	Overall      int `json:"overall"`
}

type Comparer struct {
	source EmbeddingSource
	logger *zap.Logger
}

func NewComparer(source EmbeddingSource, logger *zap.Logger) *Comparer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Comparer{source: source, logger: logger}
}

// BatchSimilarity scores the project against every grant that has an embedding row.
// The result is empty when the project has no usable embeddings.
func (c *Comparer) BatchSimilarity(ctx context.Context, projectID string, grantIDs []string) (map[string]Scores, error) {
	results := make(map[string]Scores)
	if len(grantIDs) == 0 {
		return results, nil
	}

	project, err := c.source.ProjectEmbeddings(ctx, projectID)
	if err != nil {
		if errors.Is(err, grants.ErrNotFound) {
			return results, nil
		}
		return nil, fmt.Errorf("get project embeddings: %w", err)
	}

	if !project.HasSignal() {
		c.logger.Debug("project has no embeddings; semantic signal unavailable",
			zap.String("project_id", projectID),
		)
		return results, nil
	}

	batch, err := c.source.GrantEmbeddingsBatch(ctx, grantIDs)
	if err != nil {
		return nil, fmt.Errorf("get grant embeddings: %w", err)
	}

	for _, id := range grantIDs {
		grant, ok := batch[id]
		if !ok {
			continue
		}
		results[id] = Compare(project, grant)
	}

	return results, nil
}

// Compare scores matching sections only: goal against objectives, population against
// eligibility, deliverables against deliverables. A missing side counts as zero similarity.
func Compare(project *embeddings.ProjectEmbeddings, grant *embeddings.GrantEmbeddings) Scores {
	if project == nil {
		project = &embeddings.ProjectEmbeddings{}
	}
	if grant == nil {
		grant = &embeddings.GrantEmbeddings{}
	}

	s := Scores{
		Purpose:      sectionScore(project.Goal, grant.Objectives),
		Eligibility:  sectionScore(project.Population, grant.Eligibility),
		Deliverables: sectionScore(project.Deliverables, grant.Deliverables),
	}
	s.Overall = int(math.Round(
		float64(s.Purpose)*purposeWeight +
			float64(s.Eligibility)*eligibilityWeight +
			float64(s.Deliverables)*deliverablesWeight,
	))
	return s
}

func sectionScore(a, b embeddings.Vector) int {
	if len(a) == 0 || len(b) == 0 {
		return similarity.ToScore(0)
	}
	return similarity.ToScore(similarity.Cosine(a, b))
}
