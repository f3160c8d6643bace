package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/openscribe/internal/ai"
	"github.com/kiranshivaraju/openscribe/internal/prompt"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const (
	strategySystemPrompt = "You are an expert LinkedIn content strategist. Respond with valid JSON only."
	strategyTemperature  = 0.5
	strategyMaxTokens    = 3000
)

var emptyObject = json.RawMessage("{}")

// strategyPlan is the model's answer to the generate_strategy prompt.
type strategyPlan struct {
	Themes   json.RawMessage `json:"themes"`
	Schedule json.RawMessage `json:"schedule,omitempty"`
	KPIs     []string        `json:"kpis,omitempty"`
	Summary  string          `json:"summary,omitempty"`
}

func (s *Service) generateStrategy(ctx context.Context, x *execution) (any, error) {
	params, err := decodeInput[StrategyParams](x.job)
	if err != nil {
		return nil, err
	}

	style, err := s.styleProfileDoc(ctx, x.job.OwnerID)
	if err != nil {
		return nil, err
	}
	topics, err := s.latestTopicAnalysis(ctx, x.job.OwnerID)
	if err != nil {
		return nil, err
	}
	if err := x.checkpoint(ctx, 30); err != nil {
		return nil, err
	}

	provider, err := s.providers.ProviderFor(ctx, x.job.OwnerID, params.Provider)
	if err != nil {
		return nil, err
	}
	text, err := s.prompts.Resolve(prompt.GenerateStrategy, map[string]string{
		"strategyType":     params.StrategyType,
		"primaryGoal":      params.Goals.Primary,
		"targetAudience":   params.TargetAudience.Description,
		"industries":       strings.Join(params.TargetAudience.Industries, ", "),
		"roles":            strings.Join(params.TargetAudience.Roles, ", "),
		"secondaryGoals":   strings.Join(params.Goals.Secondary, ", "),
		"postingFrequency": strconv.Itoa(params.PostingFrequency),
		"styleProfile":     string(style),
		"topicAnalysis":    string(topics),
	})
	if err != nil {
		return nil, err
	}
	result, err := provider.GenerateCompletion(ctx, text, models.CompletionOptions{
		MaxTokens:    strategyMaxTokens,
		Temperature:  models.Float64(strategyTemperature),
		SystemPrompt: strategySystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("generating strategy: %w", err)
	}
	if err := x.checkpoint(ctx, 70); err != nil {
		return nil, err
	}

	out := models.StrategyResult{}
	themes := json.RawMessage("[]")
	goals := params.Goals
	reply := ai.ParseReply[strategyPlan](result.Text)
	if plan, ok := reply.Structured(); ok {
		if isJSONArray(plan.Themes) {
			themes = plan.Themes
		}
		plan.Themes = themes
		if len(goals.KPIs) == 0 && len(plan.KPIs) > 0 {
			goals.KPIs = plan.KPIs
		}
		if out.Plan, err = json.Marshal(plan); err != nil {
			return nil, fmt.Errorf("encoding strategy plan: %w", err)
		}
	} else {
		x.log.Warn("strategy reply not structured, keeping raw text", "error", reply.Err())
		out.RawReply = reply.Raw()
	}

	now := s.now().UTC()
	strategy := &models.Strategy{
		ID:               uuid.New(),
		OwnerID:          x.job.OwnerID,
		Type:             params.StrategyType,
		Themes:           themes,
		PostingFrequency: params.PostingFrequency,
		TargetAudience:   params.TargetAudience,
		Goals:            goals,
		GeneratedAt:      now,
		ExpiresAt:        strategyExpiry(params.StrategyType, now),
	}
	if err := s.store.CreateStrategy(ctx, strategy); err != nil {
		return nil, fmt.Errorf("saving strategy: %w", err)
	}
	out.StrategyID = strategy.ID
	out.Strategy = strategy
	return out, nil
}

// strategyExpiry returns when a strategy of kind generated at t stops being current.
func strategyExpiry(kind string, t time.Time) time.Time {
	switch kind {
	case models.StrategyMonthly:
		return t.AddDate(0, 1, 0)
	case models.StrategyCampaign:
		return t.AddDate(0, 3, 0)
	default:
		return t.AddDate(0, 0, 7)
	}
}

// styleProfileDoc returns the owner's stored writingStyle preference, or {}.
func (s *Service) styleProfileDoc(ctx context.Context, ownerID uuid.UUID) (json.RawMessage, error) {
	prefs, err := s.store.GetPreferences(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	if doc, ok := prefs[models.PreferenceWritingStyle]; ok && len(doc) > 0 {
		return doc, nil
	}
	return emptyObject, nil
}

// latestTopicAnalysis returns the result of the owner's newest completed topic
// extraction, or {}.
func (s *Service) latestTopicAnalysis(ctx context.Context, ownerID uuid.UUID) (json.RawMessage, error) {
	job, err := s.store.LatestCompletedJob(ctx, ownerID, models.JobKindExtractTopics)
	if errors.Is(err, store.ErrNotFound) {
		return emptyObject, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading topic analysis: %w", err)
	}
	if len(job.Result) == 0 {
		return emptyObject, nil
	}
	return job.Result, nil
}

func isJSONArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '[' && json.Valid(raw)
}
