package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/utils"
)

type jsonGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Judge scores project/grant pairs with a Gemini model using a fixed rubric.
type Judge struct {
	generator jsonGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	notSpecified        = "Not specified"
)

var requiredFields = []string{"purposeAlignment", "eligibilityFit", "impactRelevance", "overall", "reasoning"}

var relevanceSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"purposeAlignment": {Type: genai.TypeNumber, Description: "0-100: how well the project goals align with the grant objectives"},
		"eligibilityFit":   {Type: genai.TypeNumber, Description: "0-100: how likely the project meets the grant criteria"},
		"impactRelevance":  {Type: genai.TypeNumber, Description: "0-100: how relevant the expected outcomes are to the grant goals"},
		"overall":          {Type: genai.TypeNumber, Description: "0-100: weighted average of the other scores"},
		"reasoning":        {Type: genai.TypeString, Description: "one or two sentences explaining the match quality"},
	},
	Required: requiredFields,
}

func NewJudge(generator jsonGenerator, maxLogLength int, logger *zap.Logger) *Judge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Judge{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Score asks the model for a relevance judgment of one pair.
func (j *Judge) Score(ctx context.Context, project *grants.Project, grant *grants.Grant) (*ai.RelevanceScore, error) {
	if j == nil || j.generator == nil {
		return nil, ai.ErrNotConfigured
	}
	if project == nil {
		return nil, errors.New("project is required")
	}
	if grant == nil {
		return nil, errors.New("grant is required")
	}

	prompt := buildPrompt(project, grant)

	j.logger.Debug("gemini relevance request",
		zap.String("project_id", project.ID),
		zap.String("grant_id", grant.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, j.maxLogLen)),
	)

	raw, err := j.generator.GenerateJSON(ctx, prompt, relevanceSchema)
	if err != nil {
		return nil, err
	}

	j.logger.Debug("gemini relevance response",
		zap.String("project_id", project.ID),
		zap.String("grant_id", grant.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, j.maxLogLen)),
	)

	score, err := parseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("grant %s: %w", grant.ID, err)
	}

	score.Raw = raw
	return score, nil
}

func buildPrompt(project *grants.Project, grant *grants.Grant) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Project:\n{{PROJECT}}\n\nGrant:\n{{GRANT}}\n\nJSON Response:"
	}

	projectBlock := section([][2]string{
		{"Name", project.Name},
		{"Description", project.Description},
		{"Target population", project.TargetPopulation},
		{"Focus areas", strings.Join(project.FocusAreas, ", ")},
		{"Expected outcomes", project.ExpectedOutcomes},
		{"Deliverables", strings.Join(project.Deliverables, ", ")},
	})
	grantBlock := section([][2]string{
		{"Title", grant.Title},
		{"Agency", grant.Agency},
		{"Description", grant.Description},
		{"Objectives", grant.Objectives},
		{"Eligibility", grant.Eligibility},
		{"Focus areas", strings.Join(grant.Tags, ", ")},
	})

	prompt := strings.ReplaceAll(template, "{{PROJECT}}", projectBlock)
	prompt = strings.ReplaceAll(prompt, "{{GRANT}}", grantBlock)
	return prompt
}

func section(rows [][2]string) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		value := strings.Join(strings.Fields(row[1]), " ")
		if value == "" {
			value = notSpecified
		}
		fmt.Fprintf(&b, "- %s: %s", row[0], value)
	}
	return b.String()
}

type rawRelevance struct {
	PurposeAlignment float64 `mapstructure:"purposeAlignment"`
	EligibilityFit   float64 `mapstructure:"eligibilityFit"`
	ImpactRelevance  float64 `mapstructure:"impactRelevance"`
	Overall          float64 `mapstructure:"overall"`
	Reasoning        string  `mapstructure:"reasoning"`
}

func parseResponse(raw string) (*ai.RelevanceScore, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	for _, field := range requiredFields {
		if v, ok := data[field]; !ok || v == nil {
			return nil, fmt.Errorf("gemini response is missing %q", field)
		}
	}

	var decoded rawRelevance
	if err := mapstructure.WeakDecode(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	return &ai.RelevanceScore{
		PurposeAlignment: clampScore(decoded.PurposeAlignment),
		EligibilityFit:   clampScore(decoded.EligibilityFit),
		ImpactRelevance:  clampScore(decoded.ImpactRelevance),
		Overall:          clampScore(decoded.Overall),
		Reasoning:        strings.TrimSpace(decoded.Reasoning),
	}, nil
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(v))))
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
