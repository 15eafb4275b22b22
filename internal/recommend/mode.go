package recommend

import (
	"fmt"
	"strings"

	"github.com/spigell/grant-recommender/internal/ai"
)

// ScoringMode records which signals contributed to a recommendation. Each mode carries
// a fixed weight vector for the preliminary score.
type ScoringMode int

const (
	RuleOnly ScoringMode = iota
	RuleSemantic
	RuleLLM
	RuleSemanticLLM
)

// llmShare is the weight of the model judgment in the final score.
const llmShare = 0.6

// Weights is the preliminary blend of the rule and semantic signals.
type Weights struct {
	Semantic float64
	Category float64
	Funding  float64
	Deadline float64
}

var (
	ruleWeights     = Weights{Category: 0.5, Funding: 0.3, Deadline: 0.2}
	semanticWeights = Weights{Semantic: 0.5, Category: 0.3, Funding: 0.1, Deadline: 0.1}
)

var modeNames = map[ScoringMode]string{
	RuleOnly:        "rule_only",
	RuleSemantic:    "rule_semantic",
	RuleLLM:         "rule_llm",
	RuleSemanticLLM: "rule_semantic_llm",
}

func modeFor(hasSemantic, hasLLM bool) ScoringMode {
	switch {
	case hasSemantic && hasLLM:
		return RuleSemanticLLM
	case hasSemantic:
		return RuleSemantic
	case hasLLM:
		return RuleLLM
	default:
		return RuleOnly
	}
}

func (m ScoringMode) HasSemantic() bool { return m == RuleSemantic || m == RuleSemanticLLM }

func (m ScoringMode) HasLLM() bool { return m == RuleLLM || m == RuleSemanticLLM }

// WithLLM returns the mode after a model judgment was added.
func (m ScoringMode) WithLLM() ScoringMode { return modeFor(m.HasSemantic(), true) }

func (m ScoringMode) Weights() Weights {
	if m.HasSemantic() {
		return semanticWeights
	}
	return ruleWeights
}

// Preliminary blends the signals with the mode's weights. semantic is ignored by modes
// without a semantic signal.
func (m ScoringMode) Preliminary(semantic, category, funding, deadline float64) float64 {
	w := m.Weights()
	return semantic*w.Semantic + category*w.Category + funding*w.Funding + deadline*w.Deadline
}

// Final blends the model's overall judgment into the preliminary score. Without a
// judgment the preliminary score is returned unchanged.
func Final(prelim float64, llm *ai.RelevanceScore) float64 {
	if llm == nil {
		return prelim
	}
	return float64(llm.Overall)*llmShare + prelim*(1-llmShare)
}

func (m ScoringMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ScoringMode(%d)", int(m))
}

func ParseScoringMode(s string) (ScoringMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range modeNames {
		if name == s {
			return mode, nil
		}
	}
	return RuleOnly, fmt.Errorf("unknown scoring mode %q", s)
}

func (m ScoringMode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("unknown scoring mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *ScoringMode) UnmarshalText(text []byte) error {
	mode, err := ParseScoringMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
