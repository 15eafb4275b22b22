package recommend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/grants"
)

func TestRunServesValidCache(t *testing.T) {
	o, h := newHarness(t, Options{})
	ctx := context.Background()

	first, err := o.Run(ctx, "p1", RunOptions{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Cached || len(first.Recommendations) != 2 {
		t.Fatalf("expected a fresh run with 2 results, got cached=%v n=%d", first.Cached, len(first.Recommendations))
	}

	h.clock.Advance(time.Hour)
	second, err := o.Run(ctx, "p1", RunOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.Cached || !second.CachedAt.Equal(baseTime) {
		t.Fatalf("expected cached result from %v, got cached=%v at %v", baseTime, second.Cached, second.CachedAt)
	}
	if h.store.replaces != 1 {
		t.Fatalf("cache hit must not rewrite the store, got %d replaces", h.store.replaces)
	}
	for _, rec := range second.Recommendations {
		if rec.Grant == nil {
			t.Fatalf("cached recommendation %s was not hydrated with its grant", rec.GrantID)
		}
	}
	if h.relevance.calls != 1 {
		t.Fatalf("cache hit must not call the judge again, got %d calls", h.relevance.calls)
	}
}

func TestRunInvalidatesCache(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(h *harness)
		reason string
	}{
		{
			name: "new eligible grant",
			mutate: func(h *harness) {
				g := openGrant("D", []string{"Healthcare"}, 20)
				g.CreatedAt = baseTime.Add(30 * time.Minute)
				h.grants.items = append(h.grants.items, g)
			},
			reason: "1 new eligible grants since the cache was built",
		},
		{
			name: "project edited",
			mutate: func(h *harness) {
				h.projects["p1"].UpdatedAt = baseTime.Add(30 * time.Minute)
			},
			reason: "project was updated after the cache was built",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, h := newHarness(t, Options{})
			ctx := context.Background()

			if _, err := o.Run(ctx, "p1", RunOptions{}); err != nil {
				t.Fatalf("first run: %v", err)
			}

			h.clock.Advance(time.Hour)
			tc.mutate(h)

			status, err := o.CacheStatus(ctx, "p1")
			if err != nil {
				t.Fatalf("cache status: %v", err)
			}
			if status.Valid() || status.Reason() != tc.reason {
				t.Fatalf("expected invalid cache (%s), got valid=%v reason=%q", tc.reason, status.Valid(), status.Reason())
			}

			res, err := o.Run(ctx, "p1", RunOptions{})
			if err != nil {
				t.Fatalf("second run: %v", err)
			}
			if res.Cached {
				t.Fatalf("expected recomputation")
			}
			if h.store.replaces != 2 {
				t.Fatalf("expected store to be replaced twice, got %d", h.store.replaces)
			}
		})
	}
}

func TestRunReplacesStoredSet(t *testing.T) {
	o, h := newHarness(t, Options{})
	ctx := context.Background()

	first, err := o.Run(ctx, "p1", RunOptions{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstIDs := make([]string, 0)
	for _, rec := range first.Recommendations {
		firstIDs = append(firstIDs, rec.ID)
	}

	// C no longer qualifies; only A should remain after the refresh.
	h.grants.items = slices.DeleteFunc(h.grants.items, func(g *grants.Grant) bool { return g.ID == "C" })
	h.clock.Advance(time.Minute)

	second, err := o.Run(ctx, "p1", RunOptions{ForceRefresh: true})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	stored, err := h.store.List(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != len(second.Recommendations) || len(stored) != 1 {
		t.Fatalf("expected exactly the latest run's rows, got %d", len(stored))
	}
	for _, rec := range stored {
		if slices.Contains(firstIDs, rec.ID) {
			t.Fatalf("row %s from the previous run survived the refresh", rec.ID)
		}
		if !rec.CreatedAt.Equal(baseTime.Add(time.Minute)) {
			t.Fatalf("unexpected created_at %v", rec.CreatedAt)
		}
	}
}

func TestRunEmptyResultClearsStoredSet(t *testing.T) {
	o, h := newHarness(t, Options{})
	ctx := context.Background()

	if _, err := o.Run(ctx, "p1", RunOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	h.grants.items = nil

	res, err := o.Run(ctx, "p1", RunOptions{ForceRefresh: true})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(res.Recommendations) != 0 {
		t.Fatalf("expected empty fresh result")
	}
	if h.store.replaces != 2 {
		t.Fatalf("empty run must still replace the set, got %d replaces", h.store.replaces)
	}
	stored, err := h.store.List(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected the stored set to be emptied, got %v", ids(stored))
	}
}

func TestRunNeverServesExpiredGrantsFromCache(t *testing.T) {
	o, h := newHarness(t, Options{})
	ctx := context.Background()

	first, err := o.Run(ctx, "p1", RunOptions{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first.Recommendations) == 0 {
		t.Fatalf("expected recommendations before the deadlines pass")
	}

	// every scenario grant closes within a week
	h.clock.Advance(10 * 24 * time.Hour)

	forced, err := o.Run(ctx, "p1", RunOptions{ForceRefresh: true})
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if len(forced.Recommendations) != 0 {
		t.Fatalf("expected no eligible grants, got %v", ids(forced.Recommendations))
	}

	next, err := o.Run(ctx, "p1", RunOptions{})
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	if next.Cached {
		t.Fatalf("an emptied set must not be served from cache")
	}
	now := h.clock.Now()
	for _, rec := range next.Recommendations {
		if rec.Grant == nil || rec.Grant.Deadline == nil || rec.Grant.Deadline.Before(now) {
			t.Fatalf("expired grant %s returned", rec.GrantID)
		}
	}
}

func TestRunLocking(t *testing.T) {
	o, h := newHarness(t, Options{})
	o.locker = busyLocker{}

	if _, err := o.Run(context.Background(), "p1", RunOptions{}); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if h.store.replaces != 0 || h.relevance.calls != 0 {
		t.Fatalf("a rejected run must not do any work")
	}

	o.locker = brokenLocker{}
	if _, err := o.Run(context.Background(), "p1", RunOptions{}); err == nil || errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected a lock error, got %v", err)
	}
}

func TestRunRejectsUnknownProject(t *testing.T) {
	o, _ := newHarness(t, Options{})

	if _, err := o.Run(context.Background(), "missing", RunOptions{}); !errors.Is(err, grants.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := o.Run(context.Background(), "", RunOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRunDropsExcludedGrantsFromCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excluded.json")
	o, _ := newHarness(t, Options{ExcludeFile: path})
	ctx := context.Background()

	if _, err := o.Run(ctx, "p1", RunOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	excluded := &grants.Excluded{}
	excluded.Add(&grants.Grant{ID: "C"}, "not relevant", baseTime)
	if err := excluded.ToFile(path); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	res, err := o.Run(ctx, "p1", RunOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !res.Cached || len(res.Recommendations) != 1 || res.Recommendations[0].GrantID != "A" {
		t.Fatalf("expected cached [A], got cached=%v %v", res.Cached, ids(res.Recommendations))
	}

	fresh, err := o.Run(ctx, "p1", RunOptions{ForceRefresh: true})
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if got := ids(fresh.Recommendations); len(got) != 1 || got[0] != "A" {
		t.Fatalf("expected fresh [A], got %v", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("exclude file disappeared: %v", err)
	}
}

func TestCached(t *testing.T) {
	o, _ := newHarness(t, Options{})
	ctx := context.Background()

	empty, err := o.Cached(ctx, "p1", 0)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty cache, got %v (%v)", ids(empty), err)
	}

	if _, err := o.Run(ctx, "p1", RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	recs, err := o.Cached(ctx, "p1", 1)
	if err != nil {
		t.Fatalf("cached: %v", err)
	}
	if len(recs) != 1 || recs[0].GrantID != "A" || recs[0].Grant == nil {
		t.Fatalf("expected hydrated [A], got %v", ids(recs))
	}

	if _, err := o.Cached(ctx, "missing", 0); !errors.Is(err, grants.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnhance(t *testing.T) {
	o, h := newHarness(t, Options{})
	h.relevance.scores = map[string]*ai.RelevanceScore{"A": {Overall: 77, Reasoning: "fits"}}
	ctx := context.Background()

	scores, err := o.Enhance(ctx, "p1", []string{"A", "C", "A", ""})
	if err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if len(scores) != 1 || scores["A"].Overall != 77 {
		t.Fatalf("unexpected scores: %v", scores)
	}
	if len(h.relevance.seen) != 2 {
		t.Fatalf("expected deduplicated ids to be judged, got %v", h.relevance.seen)
	}

	if _, err := o.Enhance(ctx, "p1", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty ids, got %v", err)
	}
	if _, err := o.Enhance(ctx, "missing", []string{"A"}); !errors.Is(err, grants.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown project, got %v", err)
	}
	if _, err := o.Enhance(ctx, "p1", []string{"nope"}); !errors.Is(err, grants.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown grants, got %v", err)
	}

	o.relevance = nil
	scores, err = o.Enhance(ctx, "p1", []string{"A"})
	if err != nil || len(scores) != 0 {
		t.Fatalf("expected empty result without a judge, got %v (%v)", scores, err)
	}
}

func TestRunLogsProjectAndBackend(t *testing.T) {
	o, h := newHarness(t, Options{})
	o.backend = "memory"

	if _, err := o.Run(context.Background(), "p1", RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	entries := h.logs.FilterMessage("cache is stale; recomputing").All()
	if len(entries) != 1 {
		t.Fatalf("expected one recompute entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["project_id"] != "p1" || fields["backend"] != "memory" {
		t.Fatalf("unexpected run fields: %v", fields)
	}
}

func TestRunDegradesOnUnreadableExcludeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excluded.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}
	o, h := newHarness(t, Options{ExcludeFile: path})

	res, err := o.Run(context.Background(), "p1", RunOptions{ForceRefresh: true})
	if err != nil {
		t.Fatalf("a broken exclude file must not fail the run: %v", err)
	}
	if got := ids(res.Recommendations); !slices.Equal(got, []string{"A", "C"}) {
		t.Fatalf("expected [A C], got %v", got)
	}

	warnings := h.logs.FilterMessage("disabling filter").All()
	if len(warnings) != 1 || warnings[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warning about the exclude file, got %d", len(warnings))
	}
	if warnings[0].ContextMap()["name"] != "exclude_file" {
		t.Fatalf("unexpected warning fields: %v", warnings[0].ContextMap())
	}
}
