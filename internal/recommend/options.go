package recommend

import (
	"fmt"
	"time"

	"github.com/spigell/grant-recommender/internal/ai"
	"github.com/spigell/grant-recommender/internal/grants"
)

const (
	DefaultMaxResults      = 10
	DefaultMinScore        = 30
	DefaultPrelimGateRatio = 0.7
	DefaultShortlistSize   = 15
)

// Options is the "recommend" configuration section.
type Options struct {
	MaxResults      int     `mapstructure:"max-results"`
	MinScore        float64 `mapstructure:"min-score"`
	PrelimGateRatio float64 `mapstructure:"prelim-gate-ratio"`
	ShortlistSize   int     `mapstructure:"shortlist-size"`

	LLMConcurrency int           `mapstructure:"llm-concurrency"`
	LLMBatchPause  time.Duration `mapstructure:"llm-batch-pause"`

	IncludeOpenEnded bool   `mapstructure:"include-open-ended"`
	OpenStatus       string `mapstructure:"open-status"`
	ApplicableTo     string `mapstructure:"applicable-to"`
	ExcludeFile      string `mapstructure:"exclude-file"`
}

func DefaultOptions() Options {
	return Options{
		MaxResults:      DefaultMaxResults,
		MinScore:        DefaultMinScore,
		PrelimGateRatio: DefaultPrelimGateRatio,
		ShortlistSize:   DefaultShortlistSize,
		LLMConcurrency:  ai.DefaultWindow,
		LLMBatchPause:   ai.DefaultPause,
		OpenStatus:      grants.StatusOpen,
		ApplicableTo:    grants.ApplicableOrganisation,
	}
}

// WithDefaults fills zero values. MinScore is left alone since zero is a valid threshold.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.MaxResults <= 0 {
		o.MaxResults = d.MaxResults
	}
	if o.PrelimGateRatio <= 0 {
		o.PrelimGateRatio = d.PrelimGateRatio
	}
	if o.ShortlistSize <= 0 {
		o.ShortlistSize = d.ShortlistSize
	}
	if o.LLMConcurrency <= 0 {
		o.LLMConcurrency = d.LLMConcurrency
	}
	if o.LLMBatchPause < 0 {
		o.LLMBatchPause = d.LLMBatchPause
	}
	if o.OpenStatus == "" {
		o.OpenStatus = d.OpenStatus
	}
	if o.ApplicableTo == "" {
		o.ApplicableTo = d.ApplicableTo
	}
	return o
}

func (o Options) Validate() error {
	if o.MinScore < 0 || o.MinScore > 100 {
		return fmt.Errorf("min-score must be within [0, 100], got %v", o.MinScore)
	}
	if o.PrelimGateRatio > 1 {
		return fmt.Errorf("prelim-gate-ratio must not exceed 1, got %v", o.PrelimGateRatio)
	}
	return nil
}

func (o Options) Policy() grants.EligibilityPolicy {
	return grants.EligibilityPolicy{
		OpenStatus:       o.OpenStatus,
		ApplicableTo:     o.ApplicableTo,
		IncludeOpenEnded: o.IncludeOpenEnded,
	}
}

// Params are per-call overrides.
type Params struct {
	MaxResults int
	// MinScore overrides the configured threshold when set.
	MinScore *float64
}

func (o Options) resolve(p Params) (maxResults int, minScore float64) {
	maxResults, minScore = o.MaxResults, o.MinScore
	if p.MaxResults > 0 {
		maxResults = p.MaxResults
	}
	if p.MinScore != nil {
		minScore = *p.MinScore
	}
	return maxResults, minScore
}
