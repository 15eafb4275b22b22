package recommend

import (
	"fmt"
	"strings"
	"time"

	"github.com/spigell/grant-recommender/internal/grants"
)

const deadlineNoticeDays = 14

type reasonInput struct {
	semantic *int
	funding  float64
	matched  []string
	deadline *time.Time
}

// matchReason prefers the model's reasoning and otherwise explains the rule signals.
func matchReason(llmReasoning string, in reasonInput, now time.Time) string {
	if r := strings.TrimSpace(llmReasoning); r != "" {
		return r
	}

	var clauses []string
	if in.semantic != nil {
		switch {
		case *in.semantic >= 70:
			clauses = append(clauses, "Strong AI semantic match with your project goals")
		case *in.semantic >= 50:
			clauses = append(clauses, "Good semantic alignment with your project")
		}
	}

	if len(in.matched) > 0 {
		clauses = append(clauses, "Matches your focus areas: "+strings.Join(in.matched, ", "))
	}

	switch {
	case in.funding >= 80:
		clauses = append(clauses, "Funding range aligns well with your project needs")
	case in.funding >= 50:
		clauses = append(clauses, "Funding range partially overlaps with your requirements")
	}

	if in.deadline != nil {
		if days := grants.DaysUntil(*in.deadline, now); days <= deadlineNoticeDays {
			clauses = append(clauses, fmt.Sprintf("Deadline approaching in %d days", days))
		}
	}

	return strings.Join(clauses, ". ") + "."
}
