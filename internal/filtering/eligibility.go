package filtering

import (
	"context"
	"strconv"
	"time"

	"github.com/spigell/grant-recommender/internal/grants"
)

type eligibilityFilter struct {
	now    time.Time
	policy grants.EligibilityPolicy
}

// NewEligibility creates the hard gate: open status, deadline not passed, applicable to the configured applicant type.
func NewEligibility(now time.Time, policy grants.EligibilityPolicy) Filter {
	return &eligibilityFilter{now: now, policy: policy}
}

func (f *eligibilityFilter) Name() string { return "eligibility" }

// The gate is mandatory.
func (f *eligibilityFilter) Disable(string) {}

func (f *eligibilityFilter) IsEnabled() bool { return true }

func (f *eligibilityFilter) Validate() error { return nil }

func (f *eligibilityFilter) Apply(_ context.Context, g *grants.Grants) (*grants.Grants, Step, error) {
	initial := g.Len()
	dropped := g.Exclude(func(grant *grants.Grant) bool {
		return !grant.Eligible(f.now, f.policy)
	})
	return g, Step{Initial: initial, Dropped: len(dropped), Left: g.Len()}, nil
}

func (f *eligibilityFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: true,
		Details: map[string]string{
			"open_status":        f.policy.OpenStatus,
			"applicable_to":      f.policy.ApplicableTo,
			"include_open_ended": strconv.FormatBool(f.policy.IncludeOpenEnded),
		},
	}
}
