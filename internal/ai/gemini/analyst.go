package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/grants"
	"github.com/spigell/grant-recommender/internal/utils"
)

//go:embed analysis.md
var analysisTemplate string

// unparsed responses keep this much text as the assessment
const fallbackAssessmentLength = 500

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"matchAssessment": {Type: genai.TypeString, Description: "two or three sentences on the overall alignment"},
		"strengths":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}, Description: "aspects that align with the grant"},
		"gaps":            {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}, Description: "what is missing or could be improved"},
		"recommendations": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}, Description: "actionable steps to strengthen the application"},
		"tips":            {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}, Description: "what to emphasize in the application"},
	},
	Required: []string{"matchAssessment", "strengths", "gaps", "recommendations", "tips"},
}

// Analyst writes a gap analysis of one project/grant pair.
type Analyst struct {
	generator jsonGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewAnalyst(generator jsonGenerator, maxLogLength int, logger *zap.Logger) *Analyst {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyst{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

// Analyze never fails on an unparsable answer: the text is returned as the assessment
// with Raw set.
func (a *Analyst) Analyze(ctx context.Context, project *grants.Project, grant *grants.Grant) (*ai.GapAnalysis, error) {
	if a == nil || a.generator == nil {
		return nil, ai.ErrNotConfigured
	}
	if project == nil {
		return nil, errors.New("project is required")
	}
	if grant == nil {
		return nil, errors.New("grant is required")
	}

	prompt := buildAnalysisPrompt(project, grant)

	a.logger.Debug("gemini analysis request",
		zap.String("project_id", project.ID),
		zap.String("grant_id", grant.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateJSON(ctx, prompt, analysisSchema)
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		a.logger.Warn("cannot parse gemini analysis; returning raw text",
			zap.String("grant_id", grant.ID),
			zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
			zap.Error(err),
		)
		return fallbackAnalysis(raw), nil
	}
	return analysis, nil
}

func buildAnalysisPrompt(project *grants.Project, grant *grants.Grant) string {
	template := analysisTemplate
	if strings.TrimSpace(template) == "" {
		template = "Project:\n{{PROJECT}}\n\nGrant:\n{{GRANT}}\n\nJSON Response:"
	}

	deadline := ""
	if grant.Deadline != nil {
		deadline = grant.Deadline.Format(time.DateOnly)
	}

	projectBlock := section([][2]string{
		{"Name", project.Name},
		{"Description", project.Description},
		{"Target population", project.TargetPopulation},
		{"Focus areas", strings.Join(project.FocusAreas, ", ")},
		{"Expected deliverables", strings.Join(project.Deliverables, ", ")},
		{"Expected outcomes", project.ExpectedOutcomes},
		{"Funding needed", amountRange(project.FundingMin, project.FundingMax)},
	})
	grantBlock := section([][2]string{
		{"Title", grant.Title},
		{"Agency", grant.Agency},
		{"Description", grant.Description},
		{"Objectives", grant.Objectives},
		{"Eligibility", grant.Eligibility},
		{"Funding available", fundingAvailable(grant)},
		{"Focus areas", strings.Join(grant.Tags, ", ")},
		{"Deadline", deadline},
	})

	prompt := strings.ReplaceAll(template, "{{PROJECT}}", projectBlock)
	prompt = strings.ReplaceAll(prompt, "{{GRANT}}", grantBlock)
	return prompt
}

func fundingAvailable(grant *grants.Grant) string {
	if info := strings.TrimSpace(grant.FundingInfo); info != "" {
		return info
	}
	return amountRange(grant.AmountMin, grant.AmountMax)
}

func amountRange(low, high *float64) string {
	if low == nil && high == nil {
		return ""
	}
	format := func(v *float64) string {
		if v == nil {
			return "?"
		}
		return fmt.Sprintf("$%.0f", *v)
	}
	return format(low) + " - " + format(high)
}

type rawAnalysis struct {
	MatchAssessment string   `mapstructure:"matchAssessment"`
	Strengths       []string `mapstructure:"strengths"`
	Gaps            []string `mapstructure:"gaps"`
	Recommendations []string `mapstructure:"recommendations"`
	Tips            []string `mapstructure:"tips"`
}

func parseAnalysis(raw string) (*ai.GapAnalysis, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini analysis: %w", err)
	}

	var decoded rawAnalysis
	if err := mapstructure.WeakDecode(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode gemini analysis: %w", err)
	}

	assessment := strings.TrimSpace(decoded.MatchAssessment)
	if assessment == "" {
		return nil, errors.New("gemini analysis has no match assessment")
	}

	return &ai.GapAnalysis{
		MatchAssessment: assessment,
		Strengths:       cleanItems(decoded.Strengths),
		Gaps:            cleanItems(decoded.Gaps),
		Recommendations: cleanItems(decoded.Recommendations),
		Tips:            cleanItems(decoded.Tips),
	}, nil
}

func fallbackAnalysis(raw string) *ai.GapAnalysis {
	return &ai.GapAnalysis{
		MatchAssessment: utils.TruncateForLog(raw, fallbackAssessmentLength),
		Strengths:       []string{},
		Gaps:            []string{},
		Recommendations: []string{},
		Tips:            []string{},
		Raw:             raw,
	}
}

func cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
