// Package scoring implements the rule-based signals: focus area overlap, funding fit and
// deadline urgency. All scores are in [0, 100].
package scoring

import (
	"math"
	"time"

	"github.com/spigell/grant-recommender/internal/grants"
)

const (
	overlapBonus = 20

	// NeutralFunding is returned when the project states no funding constraint.
	NeutralFunding = 50
	// UnknownFunding is returned when the grant does not publish an amount.
	UnknownFunding = 30

	// NoUrgency is the urgency used for grants without a deadline. It equals the lowest tier.
	NoUrgency = 20
)

// Category scores focus area overlap as Jaccard similarity plus a flat bonus for any
// overlap. Comparison ignores case.
func Category(projectTags, grantTags []string) float64 {
	if len(projectTags) == 0 || len(grantTags) == 0 {
		return 0
	}

	project := tagSet(projectTags)
	grant := tagSet(grantTags)

	union := make(map[string]struct{}, len(project)+len(grant))
	intersection := 0
	for tag := range project {
		union[tag] = struct{}{}
		if _, ok := grant[tag]; ok {
			intersection++
		}
	}
	for tag := range grant {
		union[tag] = struct{}{}
	}

	if len(union) == 0 {
		return 0
	}

	score := float64(intersection) / float64(len(union)) * 100
	if intersection > 0 {
		score += overlapBonus
	}
	return math.Min(100, score)
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if n := grants.NormalizeTag(tag); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Funding scores how much of the project's funding range the grant range covers.
// Missing bounds are unbounded on that side.
func Funding(projectMin, projectMax, grantMin, grantMax *float64) float64 {
	if projectMin == nil && projectMax == nil {
		return NeutralFunding
	}
	if grantMin == nil && grantMax == nil {
		return UnknownFunding
	}

	pMin, pMax := bounds(projectMin, projectMax)
	gMin, gMax := bounds(grantMin, grantMax)

	start := math.Max(pMin, gMin)
	end := math.Min(pMax, gMax)
	if start > end {
		return 0
	}

	projectRange := pMax - pMin
	if math.IsInf(pMax, 1) {
		projectRange = pMin * 2
	}

	if projectRange == 0 {
		if gMin <= pMin && pMin <= gMax {
			return 100
		}
		return 0
	}

	score := (end - start) / projectRange * 100
	if gMin <= pMin && gMax >= pMax {
		score += overlapBonus
	}
	return math.Min(100, score)
}

func bounds(lo, hi *float64) (float64, float64) {
	lower, upper := 0.0, math.Inf(1)
	if lo != nil {
		lower = *lo
	}
	if hi != nil {
		upper = *hi
	}
	return lower, upper
}

// Deadline maps the days left until deadline onto the urgency staircase. Past deadlines
// are filtered out before scoring and are not special-cased here.
func Deadline(deadline, now time.Time) float64 {
	return urgency(grants.DaysUntil(deadline, now))
}

// DeadlineUrgency is Deadline for an optional deadline. The second value is false when
// the grant is open-ended and NoUrgency was used instead.
func DeadlineUrgency(deadline *time.Time, now time.Time) (float64, bool) {
	if deadline == nil {
		return NoUrgency, false
	}
	return Deadline(*deadline, now), true
}

func urgency(days int) float64 {
	switch {
	case days <= 7:
		return 100
	case days <= 14:
		return 80
	case days <= 30:
		return 60
	case days <= 60:
		return 40
	case days <= 90:
		return 30
	default:
		return 20
	}
}
