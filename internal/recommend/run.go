package recommend

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/logger"
)

const lockPrefix = "recommend:"

type RunOptions struct {
	ForceRefresh bool
	Params
}

type RunResult struct {
	Project         *grants.Project   `json:"project"`
	Recommendations []*Recommendation `json:"recommendations"`
	Cached          bool              `json:"cached"`
	// CachedAt is set when the result came from the cache.
	CachedAt time.Time     `json:"cached_at,omitzero"`
	Duration time.Duration `json:"duration"`
}

// CacheStatus explains whether the stored set of a project can be served as is.
type CacheStatus struct {
	ProjectID      string    `json:"project_id"`
	Size           int       `json:"size"`
	CachedAt       time.Time `json:"cached_at"`
	NewGrants      int       `json:"new_grants"`
	ProjectUpdated bool      `json:"project_updated"`
}

// Valid holds when the set is non-empty, no eligible grant arrived after it was built
// and the project was not edited since.
func (s *CacheStatus) Valid() bool {
	return s != nil && s.Size > 0 && s.NewGrants == 0 && !s.ProjectUpdated
}

func (s *CacheStatus) Reason() string {
	switch {
	case s == nil || s.Size == 0:
		return "no cached recommendations"
	case s.ProjectUpdated:
		return "project was updated after the cache was built"
	case s.NewGrants > 0:
		return fmt.Sprintf("%d new eligible grants since the cache was built", s.NewGrants)
	default:
		return "cache is valid"
	}
}

// Run serves the cached set when it is still valid and otherwise recomputes and replaces it.
// Only one run per project may be in flight.
func (o *Orchestrator) Run(ctx context.Context, projectID string, opts RunOptions) (*RunResult, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}

	unlock, err := o.lock(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	project, err := o.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}

	log := o.logger.With(logger.RunFields(projectID, o.backend)...)
	maxResults, _ := o.opts.resolve(opts.Params)

	if !opts.ForceRefresh {
		status, cached, err := o.cacheStatus(ctx, project, maxResults)
		if err != nil {
			return nil, err
		}
		if status.Valid() {
			log.Info("serving cached recommendations",
				zap.Int("count", len(cached)),
				zap.Time("cached_at", status.CachedAt),
			)
			if err := o.hydrate(ctx, cached); err != nil {
				return nil, err
			}
			return &RunResult{
				Project:         project,
				Recommendations: o.dropExcluded(cached, log),
				Cached:          true,
				CachedAt:        status.CachedAt,
			}, nil
		}
		log.Info("cache is stale; recomputing", zap.String("reason", status.Reason()))
	}

	start := o.now()
	recs, err := o.Recommend(ctx, project, opts.Params)
	if err != nil {
		return nil, err
	}

	// an empty run clears the set; an empty cache is never valid, so the next run recomputes
	if err := o.store.Replace(ctx, projectID, recs); err != nil {
		return nil, fmt.Errorf("store recommendations: %w", err)
	}

	return &RunResult{
		Project:         project,
		Recommendations: recs,
		Duration:        o.now().Sub(start),
	}, nil
}

// CacheStatus evaluates the cache validity predicate for a project.
func (o *Orchestrator) CacheStatus(ctx context.Context, projectID string) (*CacheStatus, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}
	project, err := o.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	status, _, err := o.cacheStatus(ctx, project, 0)
	return status, err
}

func (o *Orchestrator) cacheStatus(ctx context.Context, project *grants.Project, limit int) (*CacheStatus, []*Recommendation, error) {
	cached, err := o.store.List(ctx, project.ID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("list cached recommendations: %w", err)
	}

	status := &CacheStatus{ProjectID: project.ID, Size: len(cached)}
	if len(cached) == 0 {
		return status, nil, nil
	}

	status.CachedAt = cached[0].CreatedAt
	for _, rec := range cached[1:] {
		if rec.CreatedAt.Before(status.CachedAt) {
			status.CachedAt = rec.CreatedAt
		}
	}
	status.ProjectUpdated = project.UpdatedAt.After(status.CachedAt)

	newGrants, err := o.grants.CountGrantsCreatedAfter(ctx, status.CachedAt, o.now(), o.opts.Policy())
	if err != nil {
		return nil, nil, fmt.Errorf("count new grants: %w", err)
	}
	status.NewGrants = newGrants

	return status, cached, nil
}

// Cached returns the stored set for a project, best first.
func (o *Orchestrator) Cached(ctx context.Context, projectID string, limit int) ([]*Recommendation, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}
	if _, err := o.projects.GetProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}

	recs, err := o.store.List(ctx, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list cached recommendations: %w", err)
	}
	if err := o.hydrate(ctx, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Enhance asks the model judge about grants the caller picked. Grants the judge could not
// score are absent from the result.
func (o *Orchestrator) Enhance(ctx context.Context, projectID string, grantIDs []string) (map[string]*ai.RelevanceScore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInvalidInput)
	}

	ids := make([]string, 0, len(grantIDs))
	for _, id := range grantIDs {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: grant ids are required", ErrInvalidInput)
	}

	project, err := o.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}

	found, err := o.grants.GetGrants(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get grants: %w", err)
	}
	if found.Len() == 0 {
		return nil, fmt.Errorf("grants %v: %w", ids, grants.ErrNotFound)
	}

	if o.relevance == nil {
		o.logger.Warn("llm judge is not configured; nothing to enhance", zap.String("project_id", projectID))
		return map[string]*ai.RelevanceScore{}, nil
	}

	scores := o.relevance.BatchScore(ctx, project, found.Items)
	o.logger.Info("enhanced recommendations",
		zap.String("project_id", projectID),
		zap.Int("requested", len(ids)),
		zap.Int("found", found.Len()),
		zap.Int("scored", len(scores)),
	)
	return scores, nil
}

func (o *Orchestrator) hydrate(ctx context.Context, recs []*Recommendation) error {
	var missing []string
	for _, rec := range recs {
		if rec.Grant == nil {
			missing = append(missing, rec.GrantID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	found, err := o.grants.GetGrants(ctx, missing)
	if err != nil {
		return fmt.Errorf("load cached grants: %w", err)
	}
	for _, rec := range recs {
		if rec.Grant == nil {
			rec.Grant = found.Find(rec.GrantID)
		}
	}
	return nil
}

func (o *Orchestrator) dropExcluded(recs []*Recommendation, log *zap.Logger) []*Recommendation {
	if o.opts.ExcludeFile == "" {
		return recs
	}
	excluded, err := grants.LoadExcluded(o.opts.ExcludeFile)
	if err != nil {
		log.Warn("cannot read exclude file; serving cache unfiltered", zap.Error(err))
		return recs
	}
	return slices.DeleteFunc(recs, func(rec *Recommendation) bool {
		return excluded.Has(rec.GrantID)
	})
}

func (o *Orchestrator) lock(ctx context.Context, projectID string) (func(), error) {
	if o.locker == nil {
		return func() {}, nil
	}
	unlock, ok, err := o.locker.TryLock(ctx, lockPrefix+projectID)
	if err != nil {
		return nil, fmt.Errorf("lock project %s: %w", projectID, err)
	}
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrRunInProgress)
	}
	return unlock, nil
}
