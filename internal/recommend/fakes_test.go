package recommend

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/semantic"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeGrants returns every grant it holds from FindEligibleGrants so the orchestrator's
// own gate is exercised.
type fakeGrants struct {
	items   []*grants.Grant
	findErr error
}

func (f *fakeGrants) FindEligibleGrants(context.Context, time.Time, grants.EligibilityPolicy) (*grants.Grants, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return &grants.Grants{Items: slices.Clone(f.items)}, nil
}

func (f *fakeGrants) CountGrantsCreatedAfter(_ context.Context, after, now time.Time, policy grants.EligibilityPolicy) (int, error) {
	count := 0
	for _, g := range f.items {
		if g.CreatedAt.After(after) && g.Eligible(now, policy) {
			count++
		}
	}
	return count, nil
}

func (f *fakeGrants) GetGrants(_ context.Context, ids []string) (*grants.Grants, error) {
	out := &grants.Grants{}
	for _, g := range f.items {
		if slices.Contains(ids, g.ID) {
			out.Items = append(out.Items, g)
		}
	}
	return out, nil
}

type fakeProjects map[string]*grants.Project

func (f fakeProjects) GetProject(_ context.Context, id string) (*grants.Project, error) {
	p, ok := f[id]
	if !ok {
		return nil, grants.ErrNotFound
	}
	return p, nil
}

type fakeStore struct {
	mu       sync.Mutex
	sets     map[string][]*Recommendation
	replaces int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sets: make(map[string][]*Recommendation)}
}

func (s *fakeStore) Replace(_ context.Context, projectID string, recs []*Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaces++
	stored := make([]*Recommendation, 0, len(recs))
	for _, rec := range recs {
		cp := *rec
		cp.Grant = nil
		stored = append(stored, &cp)
	}
	s.sets[projectID] = stored
	return nil
}

func (s *fakeStore) List(_ context.Context, projectID string, limit int) ([]*Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[projectID]
	if limit > 0 && len(set) > limit {
		set = set[:limit]
	}
	out := make([]*Recommendation, 0, len(set))
	for _, rec := range set {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

type fakeSemantic struct {
	scores map[string]semantic.Scores
	err    error
}

func (f *fakeSemantic) BatchSimilarity(_ context.Context, _ string, ids []string) (map[string]semantic.Scores, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]semantic.Scores)
	for _, id := range ids {
		if s, ok := f.scores[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

type fakeRelevance struct {
	mu     sync.Mutex
	scores map[string]*ai.RelevanceScore
	seen   []string
	calls  int
}

func (f *fakeRelevance) BatchScore(_ context.Context, _ *grants.Project, items []*grants.Grant) map[string]*ai.RelevanceScore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[string]*ai.RelevanceScore)
	for _, g := range items {
		f.seen = append(f.seen, g.ID)
		if s, ok := f.scores[g.ID]; ok {
			out[g.ID] = s
		}
	}
	return out
}

type busyLocker struct{}

func (busyLocker) TryLock(context.Context, string) (func(), bool, error) {
	return nil, false, nil
}

type brokenLocker struct{}

func (brokenLocker) TryLock(context.Context, string) (func(), bool, error) {
	return nil, false, errors.New("redis unavailable")
}

func f64(v float64) *float64 { return &v }

func daysFrom(now time.Time, days int) *time.Time {
	t := now.AddDate(0, 0, days)
	return &t
}

func openGrant(id string, tags []string, deadlineDays int) *grants.Grant {
	return &grants.Grant{
		ID:           id,
		Title:        "Grant " + id,
		Status:       "green",
		ApplicableTo: []string{"organisation"},
		Tags:         tags,
		AmountMin:    f64(10000),
		AmountMax:    f64(80000),
		Deadline:     daysFrom(baseTime, deadlineDays),
		CreatedAt:    baseTime.Add(-24 * time.Hour),
	}
}

func scenarioProject() *grants.Project {
	return &grants.Project{
		ID:         "p1",
		Name:       "Senior Care",
		FocusAreas: []string{"Healthcare", "Seniors"},
		FundingMin: f64(20000),
		FundingMax: f64(60000),
		UpdatedAt:  baseTime.Add(-48 * time.Hour),
	}
}

// scenarioGrants holds grant A (full match), B (expired copy of A) and C (no tag overlap).
func scenarioGrants() []*grants.Grant {
	a := openGrant("A", []string{"Healthcare", "Seniors"}, 5)
	b := openGrant("B", []string{"Healthcare", "Seniors"}, 5)
	b.Deadline = daysFrom(baseTime, -1)
	c := openGrant("C", []string{"Arts"}, 5)
	return []*grants.Grant{a, b, c}
}

type fakeAnalyst struct {
	analysis *ai.GapAnalysis
	err      error
	pairs    [][2]string
}

func (f *fakeAnalyst) Analyze(_ context.Context, project *grants.Project, grant *grants.Grant) (*ai.GapAnalysis, error) {
	f.pairs = append(f.pairs, [2]string{project.ID, grant.ID})
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}
