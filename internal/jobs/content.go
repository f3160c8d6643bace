package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/openscribe/internal/ai"
	"github.com/kiranshivaraju/openscribe/internal/analysis"
	"github.com/kiranshivaraju/openscribe/internal/prompt"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const (
	contentSystemPrompt = "You are %s, writing LinkedIn posts. Match the writing style exactly. Respond with valid JSON only."
	contentTemperature  = 0.8
	contentMaxTokens    = 1500
	contentExamplePosts = 5
	contentExampleFmt   = "Example %d [%d likes]:\n%s"
	defaultPostType     = "educational"
	noStrategyGuidance  = "No specific strategy guidance."
	noExamplePosts      = "No previous posts available."
)

// postReply is the model's answer to the generate_post prompt.
type postReply struct {
	PostText string `json:"postText"`
	Topic    string `json:"topic"`
	Hook     string `json:"hook"`
	CTA      string `json:"cta"`
}

func (s *Service) generateContent(ctx context.Context, x *execution) (any, error) {
	params, err := decodeInput[ContentParams](x.job)
	if err != nil {
		return nil, err
	}

	owner, err := s.store.GetOwner(ctx, x.job.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("loading owner: %w", err)
	}
	style, err := s.styleProfileDoc(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	guidance, err := s.strategyGuidance(ctx, owner.ID, params)
	if err != nil {
		return nil, err
	}
	examples, err := s.examplePosts(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if err := x.checkpoint(ctx, 30); err != nil {
		return nil, err
	}

	provider, err := s.providers.ProviderFor(ctx, owner.ID, params.Provider)
	if err != nil {
		return nil, err
	}
	postType := params.PostType
	if postType == "" {
		postType = defaultPostType
	}
	text, err := s.prompts.Resolve(prompt.GeneratePost, map[string]string{
		"authorName":         owner.Name,
		"topic":              params.Topic,
		"postType":           postType,
		"strategyGuidance":   guidance,
		"additionalGuidance": params.AdditionalGuidance,
		"styleProfile":       string(style),
		"examplePosts":       examples,
	})
	if err != nil {
		return nil, err
	}
	opts := models.CompletionOptions{
		MaxTokens:    contentMaxTokens,
		Temperature:  models.Float64(contentTemperature),
		SystemPrompt: fmt.Sprintf(contentSystemPrompt, owner.Name),
	}

	out := models.ContentResult{DraftIDs: make([]uuid.UUID, 0, params.Count)}
	for i := 0; i < params.Count; i++ {
		result, err := provider.GenerateCompletion(ctx, text, opts)
		if err != nil {
			return nil, fmt.Errorf("generating draft %d of %d: %w", i+1, params.Count, err)
		}

		draft := newDraft(owner.ID, params, result)
		draft.Metadata.Provider = provider.Name()
		if draft.Metadata.Model == "" {
			draft.Metadata.Model = provider.Model()
		}
		draft.Metadata.EstimatedCostUSD = provider.EstimateCost(result.PromptTokens, result.CompletionTokens)
		draft.CreatedAt = s.now().UTC()
		draft.UpdatedAt = draft.CreatedAt
		if err := s.store.CreateDraft(ctx, draft); err != nil {
			return nil, fmt.Errorf("saving draft: %w", err)
		}
		out.DraftIDs = append(out.DraftIDs, draft.ID)
		out.PostsGenerated++

		progress := 30 + int(math.Round(70*float64(i+1)/float64(params.Count)))
		if err := x.checkpoint(ctx, progress); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// newDraft builds a draft from a completion. A reply without usable JSON becomes a draft
// holding the raw text under the requested topic.
func newDraft(ownerID uuid.UUID, params ContentParams, result models.CompletionResult) *models.Draft {
	d := &models.Draft{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		StrategyID: params.StrategyID,
		Topic:      params.Topic,
		Status:     models.DraftStatusDraft,
		Metadata: models.DraftMetadata{
			Model:            result.Model,
			Temperature:      contentTemperature,
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
		},
	}
	reply := ai.ParseReply[postReply](result.Text)
	parsed, ok := reply.Structured()
	if !ok || strings.TrimSpace(parsed.PostText) == "" {
		d.Text = strings.TrimSpace(reply.Raw())
		return d
	}
	d.Text = parsed.PostText
	if parsed.Topic != "" {
		d.Topic = parsed.Topic
	}
	d.Hook = parsed.Hook
	d.CTA = parsed.CTA
	return d
}

// strategyGuidance describes how the post fits the referenced strategy. A theme whose
// topic mentions the requested topic is quoted verbatim.
func (s *Service) strategyGuidance(ctx context.Context, ownerID uuid.UUID, params ContentParams) (string, error) {
	if params.StrategyID == nil {
		return noStrategyGuidance, nil
	}
	strategy, err := s.store.GetStrategy(ctx, *params.StrategyID, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return noStrategyGuidance, nil
	}
	if err != nil {
		return "", fmt.Errorf("loading strategy: %w", err)
	}

	var themes []json.RawMessage
	if err := json.Unmarshal(strategy.Themes, &themes); err == nil {
		want := strings.ToLower(params.Topic)
		for _, raw := range themes {
			var theme models.StrategyTheme
			if json.Unmarshal(raw, &theme) != nil {
				continue
			}
			if strings.Contains(strings.ToLower(theme.Topic), want) {
				return string(raw), nil
			}
		}
	}
	return fmt.Sprintf("Part of %s strategy. Posting frequency: %dx/week.", strategy.Type, strategy.PostingFrequency), nil
}

// examplePosts formats the owner's best posts by likes.
func (s *Service) examplePosts(ctx context.Context, ownerID uuid.UUID) (string, error) {
	posts, err := s.store.ListPosts(ctx, store.PostFilter{
		OwnerID: ownerID,
		OrderBy: store.PostOrderLikes,
		Limit:   contentExamplePosts,
	})
	if err != nil {
		return "", fmt.Errorf("loading example posts: %w", err)
	}
	if len(posts) == 0 {
		return noExamplePosts, nil
	}
	parts := make([]string, len(posts))
	for i, p := range posts {
		parts[i] = fmt.Sprintf(contentExampleFmt, i+1, p.Likes, analysis.PlainText(p.Text))
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}
