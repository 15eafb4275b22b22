package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/spigell/grant-recommender/internal/recommend"
)

// MemoryRecommendations keeps sets in process memory. Useful for one-shot CLI runs and tests.
type MemoryRecommendations struct {
	mu   sync.RWMutex
	sets map[string][]recommend.Recommendation
}

func NewMemoryRecommendations() *MemoryRecommendations {
	return &MemoryRecommendations{sets: make(map[string][]recommend.Recommendation)}
}

func (s *MemoryRecommendations) Replace(_ context.Context, projectID string, recs []*recommend.Recommendation) error {
	stored := make([]recommend.Recommendation, 0, len(recs))
	for _, rec := range stripGrants(recs) {
		stored = append(stored, *rec)
	}

	s.mu.Lock()
	s.sets[projectID] = stored
	s.mu.Unlock()
	return nil
}

func (s *MemoryRecommendations) List(_ context.Context, projectID string, limit int) ([]*recommend.Recommendation, error) {
	s.mu.RLock()
	stored := s.sets[projectID]
	out := make([]*recommend.Recommendation, 0, len(stored))
	for i := range stored {
		rec := stored[i]
		out = append(out, &rec)
	}
	s.mu.RUnlock()

	sortByScore(out)
	return truncate(out, limit), nil
}

// stripGrants drops the embedded grant snapshot; readers hydrate it from the repository.
func stripGrants(recs []*recommend.Recommendation) []*recommend.Recommendation {
	out := make([]*recommend.Recommendation, 0, len(recs))
	for _, rec := range recs {
		cp := *rec
		cp.Grant = nil
		out = append(out, &cp)
	}
	return out
}

func sortByScore(recs []*recommend.Recommendation) {
	slices.SortStableFunc(recs, func(a, b *recommend.Recommendation) int {
		if c := cmp.Compare(b.Scores.Overall, a.Scores.Overall); c != 0 {
			return c
		}
		return cmp.Compare(a.GrantID, b.GrantID)
	})
}

func truncate(recs []*recommend.Recommendation, limit int) []*recommend.Recommendation {
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}
