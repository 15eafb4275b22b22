package grants

import (
	"path/filepath"
	"testing"
	"time"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestGrantEligible(t *testing.T) {
	open := func(mut func(g *Grant)) *Grant {
		g := &Grant{
			ID:           "g",
			Status:       "green",
			ApplicableTo: []string{"individual", "organisation"},
			Deadline:     at(48 * time.Hour),
		}
		if mut != nil {
			mut(g)
		}
		return g
	}

	cases := []struct {
		name   string
		grant  *Grant
		policy EligibilityPolicy
		want   bool
	}{
		{name: "open grant", grant: open(nil), want: true},
		{name: "deadline is now", grant: open(func(g *Grant) { g.Deadline = at(0) }), want: true},
		{name: "expired", grant: open(func(g *Grant) { g.Deadline = at(-time.Minute) }), want: false},
		{name: "closed status", grant: open(func(g *Grant) { g.Status = "red" }), want: false},
		{name: "status case insensitive", grant: open(func(g *Grant) { g.Status = " Green " }), want: true},
		{name: "individuals only", grant: open(func(g *Grant) { g.ApplicableTo = []string{"individual"} }), want: false},
		{name: "open ended excluded by default", grant: open(func(g *Grant) { g.Deadline = nil }), want: false},
		{
			name:   "open ended admitted by policy",
			grant:  open(func(g *Grant) { g.Deadline = nil }),
			policy: EligibilityPolicy{IncludeOpenEnded: true},
			want:   true,
		},
		{
			name:   "custom applicable to",
			grant:  open(func(g *Grant) { g.ApplicableTo = []string{"charity"} }),
			policy: EligibilityPolicy{ApplicableTo: "charity"},
			want:   true,
		},
		{name: "nil grant", grant: nil, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.grant.Eligible(now, tc.policy); got != tc.want {
				t.Fatalf("Eligible() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDaysUntilDeadline(t *testing.T) {
	g := &Grant{Deadline: at(36 * time.Hour)}
	days, ok := g.DaysUntilDeadline(now)
	if !ok || days != 2 {
		t.Fatalf("expected 2 days, got %d (%v)", days, ok)
	}

	if _, ok := (&Grant{}).DaysUntilDeadline(now); ok {
		t.Fatalf("expected open-ended grant to report no deadline")
	}
}

func TestGrantsExclude(t *testing.T) {
	list := &Grants{Items: []*Grant{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	dropped := list.Exclude(func(g *Grant) bool { return g.ID != "b" })
	if len(dropped) != 2 || dropped[0] != "a" || dropped[1] != "c" {
		t.Fatalf("unexpected dropped ids: %v", dropped)
	}
	if list.Len() != 1 || list.Find("b") == nil || list.Find("a") != nil {
		t.Fatalf("unexpected remaining grants: %v", list.IDs())
	}
}

func TestMatchingFocusAreas(t *testing.T) {
	p := &Project{FocusAreas: []string{"Health", "Seniors", "Arts"}}
	got := p.MatchingFocusAreas([]string{"seniors ", "health"})
	if len(got) != 2 || got[0] != "Health" || got[1] != "Seniors" {
		t.Fatalf("unexpected matches: %v", got)
	}
}

func TestExcludedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excluded.json")

	empty, err := LoadExcluded(path)
	if err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if len(empty.IDs()) != 0 {
		t.Fatalf("expected empty list, got %v", empty.IDs())
	}

	empty.Add(&Grant{ID: "g1", Title: "First"}, "not relevant", now)
	empty.Add(&Grant{ID: "g1", Title: "First"}, "duplicate", now)
	empty.Add(&Grant{ID: "g2"}, "", now)
	if err := empty.ToFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadExcluded(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ids := loaded.IDs()
	if len(ids) != 2 || ids[0] != "g1" || ids[1] != "g2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if !loaded.Has("g2") || loaded.Has("g3") {
		t.Fatalf("unexpected Has results")
	}
	if loaded.Items[0].Reason != "not relevant" {
		t.Fatalf("unexpected reason: %q", loaded.Items[0].Reason)
	}
}
