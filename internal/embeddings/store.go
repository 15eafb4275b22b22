package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/db"
	"github.com/spigell/grant-recommender/internal/grants"
)

const (
	selectProject = `SELECT goal_embed::text, population_embed::text, outcomes_embed::text, deliverables_embed::text
		FROM projects WHERE id = $1`

	selectGrants = `SELECT id, objectives_embed::text, eligibility_embed::text, funding_embed::text, deliverables_embed::text
		FROM grants WHERE id = ANY($1)`

	updateProject = `UPDATE projects SET
		goal_embed = $2::vector,
		population_embed = $3::vector,
		outcomes_embed = $4::vector,
		deliverables_embed = $5::vector
		WHERE id = $1`

	updateGrant = `UPDATE grants SET
		objectives_embed = $2::vector,
		eligibility_embed = $3::vector,
		funding_embed = $4::vector,
		deliverables_embed = $5::vector
		WHERE id = $1`
)

// Store is the Postgres-backed embedding adapter.
type Store struct {
	q      db.Querier
	logger *zap.Logger
}

func NewStore(q db.Querier, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{q: q, logger: logger}
}

// ProjectEmbeddings returns the project's section vectors. grants.ErrNotFound is
// returned when the project row does not exist.
func (s *Store) ProjectEmbeddings(ctx context.Context, projectID string) (*ProjectEmbeddings, error) {
	var goal, population, outcomes, deliverables *string
	err := s.q.QueryRow(ctx, selectProject, projectID).Scan(&goal, &population, &outcomes, &deliverables)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, grants.ErrNotFound
		}
		return nil, fmt.Errorf("query project embeddings: %w", err)
	}

	return &ProjectEmbeddings{
		Goal:         s.decode(projectID, "goal", goal),
		Population:   s.decode(projectID, "population", population),
		Outcomes:     s.decode(projectID, "outcomes", outcomes),
		Deliverables: s.decode(projectID, "deliverables", deliverables),
	}, nil
}

// GrantEmbeddingsBatch fetches the vectors of all given grants in a single query.
// Grants missing from the table are absent from the result.
func (s *Store) GrantEmbeddingsBatch(ctx context.Context, grantIDs []string) (map[string]*GrantEmbeddings, error) {
	result := make(map[string]*GrantEmbeddings, len(grantIDs))
	if len(grantIDs) == 0 {
		return result, nil
	}

	rows, err := s.q.Query(ctx, selectGrants, grantIDs)
	if err != nil {
		return nil, fmt.Errorf("query grant embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                                            string
			objectives, eligibility, funding, deliverable *string
		)
		if err := rows.Scan(&id, &objectives, &eligibility, &funding, &deliverable); err != nil {
			return nil, fmt.Errorf("scan grant embeddings: %w", err)
		}

		result[id] = &GrantEmbeddings{
			Objectives:   s.decode(id, "objectives", objectives),
			Eligibility:  s.decode(id, "eligibility", eligibility),
			Funding:      s.decode(id, "funding", funding),
			Deliverables: s.decode(id, "deliverables", deliverable),
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grant embeddings: %w", err)
	}

	return result, nil
}

// SaveProjectEmbeddings overwrites all project section vectors. Nil vectors clear the column.
func (s *Store) SaveProjectEmbeddings(ctx context.Context, projectID string, e *ProjectEmbeddings) error {
	if e == nil {
		e = &ProjectEmbeddings{}
	}
	tag, err := s.q.Exec(ctx, updateProject, projectID,
		e.Goal.text(), e.Population.text(), e.Outcomes.text(), e.Deliverables.text())
	if err != nil {
		return fmt.Errorf("update project embeddings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return grants.ErrNotFound
	}
	return nil
}

// SaveGrantEmbeddings overwrites all grant section vectors. Nil vectors clear the column.
func (s *Store) SaveGrantEmbeddings(ctx context.Context, grantID string, e *GrantEmbeddings) error {
	if e == nil {
		e = &GrantEmbeddings{}
	}
	tag, err := s.q.Exec(ctx, updateGrant, grantID,
		e.Objectives.text(), e.Eligibility.text(), e.Funding.text(), e.Deliverables.text())
	if err != nil {
		return fmt.Errorf("update grant embeddings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return grants.ErrNotFound
	}
	return nil
}

// decode treats a malformed column like a missing one so a single bad row cannot
// fail a whole batch.
func (s *Store) decode(id, section string, raw *string) Vector {
	if raw == nil {
		return nil
	}
	vec, err := ParseVector(*raw)
	if err != nil {
		s.logger.Warn("ignoring malformed embedding",
			zap.String("id", id),
			zap.String("section", section),
			zap.Error(err),
		)
		return nil
	}
	return vec
}
