// Package embeddings reads and writes section embeddings for projects and grants.
// Vectors are kept in pgvector columns and travel as text; this package is the only
// place that knows that representation.
package embeddings

// ProjectEmbeddings holds the project section vectors. Any of them may be nil.
type ProjectEmbeddings struct {
	Goal         Vector `json:"goal,omitempty"`
	Population   Vector `json:"population,omitempty"`
	Outcomes     Vector `json:"outcomes,omitempty"`
	Deliverables Vector `json:"deliverables,omitempty"`
}

// HasSignal reports whether any section used for comparison is present.
// Outcomes are stored but not compared against grants.
func (p *ProjectEmbeddings) HasSignal() bool {
	if p == nil {
		return false
	}
	return len(p.Goal) > 0 || len(p.Population) > 0 || len(p.Deliverables) > 0
}

// GrantEmbeddings holds the grant section vectors. Any of them may be nil.
type GrantEmbeddings struct {
	Objectives   Vector `json:"objectives,omitempty"`
	Eligibility  Vector `json:"eligibility,omitempty"`
	Funding      Vector `json:"funding,omitempty"`
	Deliverables Vector `json:"deliverables,omitempty"`
}
