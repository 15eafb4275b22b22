package recommend

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/filtering"
	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/scoring"
	"github.com/spigell/grant-recommender/internal/semantic"
)

// Deps are the collaborators of an Orchestrator. Semantic, Relevance, Analyst and Locker
// are optional.
type Deps struct {
	Grants    GrantRepository
	Projects  ProjectRepository
	Store     Store
	Semantic  SemanticScorer
	Relevance RelevanceScorer
	Analyst   Analyzer
	Locker    Locker
	Logger    *zap.Logger
	// Backend names the store backend in run logs.
	Backend string
	// NewID generates recommendation ids.
	NewID func() string
	Now   func() time.Time
}

type Orchestrator struct {
	grants    GrantRepository
	projects  ProjectRepository
	store     Store
	semantic  SemanticScorer
	relevance RelevanceScorer
	analyst   Analyzer
	locker    Locker
	logger    *zap.Logger
	backend   string
	newID     func() string
	now       func() time.Time
	opts      Options
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Grants == nil {
		return nil, errors.New("grant repository is required")
	}
	if deps.Projects == nil {
		return nil, errors.New("project repository is required")
	}
	if deps.Store == nil {
		return nil, errors.New("recommendation store is required")
	}

	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		grants:    deps.Grants,
		projects:  deps.Projects,
		store:     deps.Store,
		semantic:  deps.Semantic,
		relevance: deps.Relevance,
		analyst:   deps.Analyst,
		locker:    deps.Locker,
		logger:    deps.Logger,
		backend:   deps.Backend,
		newID:     deps.NewID,
		now:       deps.Now,
		opts:      opts,
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		var seq atomic.Int64
		o.newID = func() string {
			return fmt.Sprintf("rec-%d", seq.Add(1))
		}
	}
	return o, nil
}

func (o *Orchestrator) Options() Options { return o.opts }

// candidate carries the intermediate scores of one grant through the pipeline.
type candidate struct {
	grant    *grants.Grant
	category float64
	funding  float64
	deadline float64
	// hasDeadline is false for open-ended grants scored with NoUrgency.
	hasDeadline bool
	semantic    *int
	mode        ScoringMode
	prelim      float64
}

// Recommend runs the full pipeline for a project snapshot. It does not read or write the cache.
func (o *Orchestrator) Recommend(ctx context.Context, project *grants.Project, params Params) ([]*Recommendation, error) {
	if project == nil || project.ID == "" {
		return nil, fmt.Errorf("%w: project is required", ErrInvalidInput)
	}

	maxResults, minScore := o.opts.resolve(params)
	now := o.now()
	log := o.logger.With(zap.String("project_id", project.ID))

	eligible, err := o.eligibleGrants(ctx, now, log)
	if err != nil {
		return nil, err
	}

	semanticScores := o.semanticScores(ctx, project.ID, eligible.IDs(), log)

	gate := minScore * o.opts.PrelimGateRatio
	candidates := make([]*candidate, 0, eligible.Len())
	for _, grant := range eligible.Items {
		c := o.preliminary(project, grant, semanticScores, now)
		if c.prelim < gate {
			continue
		}
		candidates = append(candidates, c)
	}

	slices.SortStableFunc(candidates, func(a, b *candidate) int {
		return cmp.Compare(b.prelim, a.prelim)
	})
	shortlist := candidates[:min(len(candidates), o.opts.ShortlistSize)]

	log.Info("preliminary scoring completed",
		zap.Int("eligible", eligible.Len()),
		zap.Int("passed_gate", len(candidates)),
		zap.Int("shortlisted", len(shortlist)),
		zap.Int("semantic_scored", len(semanticScores)),
		zap.Float64("gate", gate),
	)

	llmScores := o.relevanceScores(ctx, project, shortlist)

	createdAt := now.UTC()
	results := make([]*Recommendation, 0, len(shortlist))
	finals := make(map[string]float64, len(shortlist))
	for _, c := range shortlist {
		llm := llmScores[c.grant.ID]
		final := Final(c.prelim, llm)
		if final < minScore {
			continue
		}

		mode := c.mode
		reasoning := ""
		if llm != nil {
			mode = mode.WithLLM()
			reasoning = llm.Reasoning
		}

		finals[c.grant.ID] = final
		results = append(results, &Recommendation{
			ID:        o.newID(),
			ProjectID: project.ID,
			GrantID:   c.grant.ID,
			Grant:     c.grant,
			Scores:    c.scores(final),
			LLM:       llm,
			Mode:      mode,
			MatchReason: matchReason(reasoning, reasonInput{
				semantic: c.semantic,
				funding:  c.funding,
				matched:  project.MatchingFocusAreas(c.grant.Tags),
				deadline: c.grant.Deadline,
			}, now),
			CreatedAt: createdAt,
		})
	}

	slices.SortStableFunc(results, func(a, b *Recommendation) int {
		return cmp.Compare(finals[b.GrantID], finals[a.GrantID])
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	log.Info("recommendations computed",
		zap.Int("llm_scored", len(llmScores)),
		zap.Int("results", len(results)),
		zap.Float64("min_score", minScore),
	)

	return results, nil
}

// eligibleGrants loads candidates from the repository and enforces the hard gate again
// so that no ineligible grant is ever scored.
func (o *Orchestrator) eligibleGrants(ctx context.Context, now time.Time, log *zap.Logger) (*grants.Grants, error) {
	policy := o.opts.Policy()

	found, err := o.grants.FindEligibleGrants(ctx, now, policy)
	if err != nil {
		return nil, fmt.Errorf("find eligible grants: %w", err)
	}
	if found == nil {
		found = &grants.Grants{}
	}

	steps := []filtering.Filter{
		filtering.NewEligibility(now, policy),
		filtering.NewExcludeFile(o.opts.ExcludeFile, log),
	}
	// an unreadable exclude file is disabled with a warning; the gate still applies
	filtering.Prepare(log, steps)
	log.Debug("prepared filters", zap.Any("filters", filtering.Describe(steps)))

	eligible, err := filtering.Run(ctx, log, steps, found)
	if err != nil {
		return nil, fmt.Errorf("filter grants: %w", err)
	}
	return eligible, nil
}

func (o *Orchestrator) semanticScores(ctx context.Context, projectID string, ids []string, log *zap.Logger) map[string]semantic.Scores {
	if o.semantic == nil || len(ids) == 0 {
		return nil
	}
	scores, err := o.semantic.BatchSimilarity(ctx, projectID, ids)
	if err != nil {
		log.Warn("semantic scoring failed; continuing without semantic signal", zap.Error(err))
		return nil
	}
	return scores
}

func (o *Orchestrator) relevanceScores(ctx context.Context, project *grants.Project, shortlist []*candidate) map[string]*ai.RelevanceScore {
	if o.relevance == nil || len(shortlist) == 0 {
		return nil
	}
	items := make([]*grants.Grant, 0, len(shortlist))
	for _, c := range shortlist {
		items = append(items, c.grant)
	}
	return o.relevance.BatchScore(ctx, project, items)
}

func (o *Orchestrator) preliminary(project *grants.Project, grant *grants.Grant, semanticScores map[string]semantic.Scores, now time.Time) *candidate {
	c := &candidate{
		grant:    grant,
		category: scoring.Category(project.FocusAreas, grant.Tags),
		funding:  scoring.Funding(project.FundingMin, project.FundingMax, grant.AmountMin, grant.AmountMax),
	}
	c.deadline, c.hasDeadline = scoring.DeadlineUrgency(grant.Deadline, now)

	var sem float64
	if s, ok := semanticScores[grant.ID]; ok {
		overall := s.Overall
		c.semantic = &overall
		sem = float64(overall)
	}

	c.mode = modeFor(c.semantic != nil, false)
	c.prelim = c.mode.Preliminary(sem, c.category, c.funding, c.deadline)
	return c
}

func (c *candidate) scores(final float64) Scores {
	s := Scores{
		Overall:     round1(final),
		Preliminary: round1(c.prelim),
		Category:    round1(c.category),
		Funding:     round1(c.funding),
		Semantic:    c.semantic,
	}
	if c.hasDeadline {
		d := round1(c.deadline)
		s.Deadline = &d
	}
	return s
}
