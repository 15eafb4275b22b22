package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spigell/grant-recommender/internal/db"
	"github.com/spigell/grant-recommender/internal/grants"
)

const selectProject = `SELECT id, name, description, target_population, focus_areas,
	funding_min, funding_max, expected_outcomes, deliverables, updated_at
	FROM projects WHERE id = $1`

// Projects is the Postgres project repository.
type Projects struct {
	q db.Querier
}

func NewProjects(q db.Querier) *Projects {
	return &Projects{q: q}
}

func (s *Projects) GetProject(ctx context.Context, id string) (*grants.Project, error) {
	var (
		p        grants.Project
		outcomes *string
	)
	err := s.q.QueryRow(ctx, selectProject, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.TargetPopulation, &p.FocusAreas,
		&p.FundingMin, &p.FundingMax, &outcomes, &p.Deliverables, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, grants.ErrNotFound
		}
		return nil, fmt.Errorf("query project: %w", err)
	}
	p.ExpectedOutcomes = deref(outcomes)
	return &p, nil
}
