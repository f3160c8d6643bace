package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const (
	maxAdditionalGuidance = 500
	maxDraftsPerJob       = 5
	maxPostingFrequency   = 14
)

var primaryGoals = []string{"thought_leadership", "lead_generation", "community_building", "brand_awareness"}

var postTypes = []string{"educational", "storytelling", "opinion", "case_study", "how_to", "list"}

// AnalysisParams are the inputs of the style analysis and topic extraction jobs.
type AnalysisParams struct {
	Provider string `json:"provider,omitempty"`
}

// StrategyParams are the inputs of a strategy generation job.
type StrategyParams struct {
	Provider         string                `json:"provider,omitempty"`
	StrategyType     string                `json:"strategy_type"`
	PostingFrequency int                   `json:"posting_frequency"`
	TargetAudience   models.TargetAudience `json:"target_audience"`
	Goals            models.Goals          `json:"goals"`
}

// ContentParams are the inputs of a content generation job.
type ContentParams struct {
	Provider           string     `json:"provider,omitempty"`
	StrategyID         *uuid.UUID `json:"strategy_id,omitempty"`
	Topic              string     `json:"topic"`
	PostType           string     `json:"post_type,omitempty"`
	AdditionalGuidance string     `json:"additional_guidance,omitempty"`
	Count              int        `json:"count"`
}

func (p *AnalysisParams) normalize() error {
	p.Provider = strings.TrimSpace(p.Provider)
	return nil
}

func (p *StrategyParams) normalize() error {
	p.Provider = strings.TrimSpace(p.Provider)
	if p.StrategyType == "" {
		p.StrategyType = models.StrategyWeekly
	}
	switch p.StrategyType {
	case models.StrategyWeekly, models.StrategyMonthly, models.StrategyCampaign:
	default:
		return fmt.Errorf("strategy_type must be weekly, monthly or campaign")
	}
	if p.PostingFrequency == 0 {
		p.PostingFrequency = 3
	}
	if p.PostingFrequency < 1 || p.PostingFrequency > maxPostingFrequency {
		return fmt.Errorf("posting_frequency must be between 1 and %d", maxPostingFrequency)
	}
	p.TargetAudience.Description = strings.TrimSpace(p.TargetAudience.Description)
	if p.TargetAudience.Description == "" {
		return fmt.Errorf("target_audience.description is required")
	}
	if !slices.Contains(primaryGoals, p.Goals.Primary) {
		return fmt.Errorf("goals.primary must be one of %s", strings.Join(primaryGoals, ", "))
	}
	p.TargetAudience.Industries = nonNil(p.TargetAudience.Industries)
	p.TargetAudience.Roles = nonNil(p.TargetAudience.Roles)
	p.TargetAudience.Interests = nonNil(p.TargetAudience.Interests)
	p.Goals.Secondary = nonNil(p.Goals.Secondary)
	p.Goals.KPIs = nonNil(p.Goals.KPIs)
	return nil
}

func (p *ContentParams) normalize() error {
	p.Provider = strings.TrimSpace(p.Provider)
	p.Topic = strings.TrimSpace(p.Topic)
	if p.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if p.PostType != "" && !slices.Contains(postTypes, p.PostType) {
		return fmt.Errorf("post_type must be one of %s", strings.Join(postTypes, ", "))
	}
	if len([]rune(p.AdditionalGuidance)) > maxAdditionalGuidance {
		return fmt.Errorf("additional_guidance must be at most %d characters", maxAdditionalGuidance)
	}
	if p.Count == 0 {
		p.Count = 1
	}
	if p.Count < 1 || p.Count > maxDraftsPerJob {
		return fmt.Errorf("count must be between 1 and %d", maxDraftsPerJob)
	}
	return nil
}

type normalizer interface {
	normalize() error
}

// decodeParams strictly decodes raw into p, applies defaults and validates. An empty body
// decodes as {}.
func decodeParams(raw json.RawMessage, p normalizer) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := p.normalize(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// paramsFor returns the empty parameter struct for kind.
func paramsFor(kind string) (normalizer, error) {
	switch kind {
	case models.JobKindAnalyzeStyle, models.JobKindExtractTopics:
		return &AnalysisParams{}, nil
	case models.JobKindGenerateStrategy:
		return &StrategyParams{}, nil
	case models.JobKindGenerateContent:
		return &ContentParams{}, nil
	}
	return nil, fmt.Errorf("%w: unknown job kind %q", ErrInvalidParams, kind)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
