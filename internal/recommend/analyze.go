package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/grants"
)

// Analysis is a gap analysis of one grant for one project.
type Analysis struct {
	ProjectID   string          `json:"project_id"`
	ProjectName string          `json:"project_name"`
	GrantID     string          `json:"grant_id"`
	GrantTitle  string          `json:"grant_title"`
	Agency      string          `json:"agency,omitempty"`
	Analysis    *ai.GapAnalysis `json:"analysis"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Analyze asks the model what the project should strengthen to apply for the grant.
// The grant does not have to be eligible or recommended.
func (o *Orchestrator) Analyze(ctx context.Context, projectID, grantID string) (*Analysis, error) {
	projectID, grantID = strings.TrimSpace(projectID), strings.TrimSpace(grantID)
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}
	if grantID == "" {
		return nil, fmt.Errorf("%w: grant id is required", ErrInvalidInput)
	}
	if o.analyst == nil {
		return nil, fmt.Errorf("gap analysis: %w", ai.ErrNotConfigured)
	}

	project, err := o.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}

	found, err := o.grants.GetGrants(ctx, []string{grantID})
	if err != nil {
		return nil, fmt.Errorf("get grants: %w", err)
	}
	grant := found.Find(grantID)
	if grant == nil {
		return nil, fmt.Errorf("grant %s: %w", grantID, grants.ErrNotFound)
	}

	analysis, err := o.analyst.Analyze(ctx, project, grant)
	if err != nil {
		return nil, fmt.Errorf("analyze grant %s: %w", grantID, err)
	}

	o.logger.Info("gap analysis is ready",
		zap.String("project_id", projectID),
		zap.String("grant_id", grantID),
		zap.Int("gaps", len(analysis.Gaps)),
		zap.Bool("parsed", analysis.Raw == ""),
	)

	return &Analysis{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		GrantID:     grant.ID,
		GrantTitle:  grant.Title,
		Agency:      grant.Agency,
		Analysis:    analysis,
		GeneratedAt: o.now().UTC(),
	}, nil
}
