package grants

import "time"

// Project is an immutable snapshot of a nonprofit project taken for one recommendation run.
type Project struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	TargetPopulation string    `json:"target_population"`
	FocusAreas       []string  `json:"focus_areas"`
	FundingMin       *float64  `json:"funding_min,omitempty"`
	FundingMax       *float64  `json:"funding_max,omitempty"`
	ExpectedOutcomes string    `json:"expected_outcomes,omitempty"`
	Deliverables     []string  `json:"deliverables,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MatchingFocusAreas returns the project focus areas present in tags, in project order.
func (p *Project) MatchingFocusAreas(tags []string) []string {
	if p == nil {
		return nil
	}
	var matched []string
	for _, area := range p.FocusAreas {
		if ContainsTag(tags, area) {
			matched = append(matched, area)
		}
	}
	return matched
}
