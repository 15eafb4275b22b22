// Package grants holds the project and grant snapshots the recommender reads.
package grants

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	StatusOpen             = "green"
	ApplicableOrganisation = "organisation"
	day                    = 24 * time.Hour
)

// ErrNotFound is returned by repositories when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

type Grants struct {
	Items []*Grant
}

type Grant struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Agency      string `json:"agency"`
	Description string `json:"description"`
	Objectives  string `json:"objectives,omitempty"`
	// Eligibility is the free-text "who can apply" section.
	Eligibility  string     `json:"eligibility,omitempty"`
	FundingInfo  string     `json:"funding_info,omitempty"`
	AmountMin    *float64   `json:"amount_min,omitempty"`
	AmountMax    *float64   `json:"amount_max,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Status       string     `json:"status"`
	ApplicableTo []string   `json:"applicable_to,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	URL          string     `json:"url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// EligibilityPolicy describes the hard gate a grant must pass before it is scored.
type EligibilityPolicy struct {
	OpenStatus   string
	ApplicableTo string
	// IncludeOpenEnded admits grants without a deadline.
	IncludeOpenEnded bool
}

// DefaultEligibilityPolicy returns the gate used when nothing is configured.
func DefaultEligibilityPolicy() EligibilityPolicy {
	return EligibilityPolicy{
		OpenStatus:   StatusOpen,
		ApplicableTo: ApplicableOrganisation,
	}
}

func (p EligibilityPolicy) withDefaults() EligibilityPolicy {
	if strings.TrimSpace(p.OpenStatus) == "" {
		p.OpenStatus = StatusOpen
	}
	if strings.TrimSpace(p.ApplicableTo) == "" {
		p.ApplicableTo = ApplicableOrganisation
	}
	return p
}

// Eligible reports whether the grant passes the policy at the given instant.
func (g *Grant) Eligible(now time.Time, policy EligibilityPolicy) bool {
	if g == nil {
		return false
	}
	policy = policy.withDefaults()

	if g.Deadline == nil {
		if !policy.IncludeOpenEnded {
			return false
		}
	} else if g.Deadline.Before(now) {
		return false
	}

	if !strings.EqualFold(strings.TrimSpace(g.Status), policy.OpenStatus) {
		return false
	}

	return ContainsTag(g.ApplicableTo, policy.ApplicableTo)
}

// DaysUntilDeadline returns the whole days left, rounded up. The second value is false
// for open-ended grants.
func (g *Grant) DaysUntilDeadline(now time.Time) (int, bool) {
	if g == nil || g.Deadline == nil {
		return 0, false
	}
	return DaysUntil(*g.Deadline, now), true
}

// DaysUntil rounds the distance between now and t up to whole days.
func DaysUntil(t, now time.Time) int {
	return int(math.Ceil(float64(t.Sub(now)) / float64(day)))
}

func (g *Grants) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Items)
}

func (g *Grants) IDs() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.Items))
	for _, grant := range g.Items {
		ids = append(ids, grant.ID)
	}
	return ids
}

// Find returns the grant with the given id or nil.
func (g *Grants) Find(id string) *Grant {
	if g == nil {
		return nil
	}
	for _, grant := range g.Items {
		if grant.ID == id {
			return grant
		}
	}
	return nil
}

// Exclude drops every grant for which drop returns true and returns the dropped ids.
func (g *Grants) Exclude(drop func(*Grant) bool) []string {
	if g == nil {
		return nil
	}
	kept := make([]*Grant, 0, len(g.Items))
	var excluded []string
	for _, grant := range g.Items {
		if drop(grant) {
			excluded = append(excluded, grant.ID)
			continue
		}
		kept = append(kept, grant)
	}
	g.Items = kept
	return excluded
}

// ContainsTag reports whether tags holds tag, ignoring case and surrounding spaces.
func ContainsTag(tags []string, tag string) bool {
	tag = NormalizeTag(tag)
	for _, t := range tags {
		if NormalizeTag(t) == tag {
			return true
		}
	}
	return false
}

func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
