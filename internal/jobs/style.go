package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kiranshivaraju/openscribe/internal/ai"
	"github.com/kiranshivaraju/openscribe/internal/analysis"
	"github.com/kiranshivaraju/openscribe/internal/prompt"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const (
	styleSamplePosts   = 15
	styleSystemPrompt  = "You are a writing analysis expert. Respond with valid JSON only."
	styleTemperature   = 0.3
	styleMaxTokens     = 2048
	analysisPostFormat = "Post %d [Likes: %d]:\n%s"
)

// styleReply is the model's answer to the analyze_writing_style prompt.
type styleReply struct {
	ToneDistribution     map[string]float64 `json:"toneDistribution"`
	HookPatterns         []string           `json:"hookPatterns"`
	CTAPatterns          []string           `json:"ctaPatterns"`
	Summary              string             `json:"summary"`
	VoiceCharacteristics []string           `json:"voiceCharacteristics"`
	UniquePhrases        []string           `json:"uniquePhrases"`
}

func defaultToneDistribution() map[string]float64 {
	return map[string]float64{"professional": 50, "casual": 25, "motivational": 15, "storytelling": 10}
}

func (s *Service) analyzeStyle(ctx context.Context, x *execution) (any, error) {
	params, err := decodeInput[AnalysisParams](x.job)
	if err != nil {
		return nil, err
	}

	posts, err := s.store.ListPosts(ctx, store.PostFilter{OwnerID: x.job.OwnerID, OrderBy: store.PostOrderRecent})
	if err != nil {
		return nil, fmt.Errorf("loading posts: %w", err)
	}
	if err := x.checkpoint(ctx, 30); err != nil {
		return nil, err
	}

	texts := make([]string, len(posts))
	metrics := make([]analysis.PostMetrics, len(posts))
	for i, p := range posts {
		texts[i] = analysis.PlainText(p.Text)
		metrics[i] = analysis.AnalyzePost(texts[i], analysis.Engagement{Likes: p.Likes, Comments: p.Comments, Shares: p.Shares})
	}
	agg := analysis.AggregateMetrics(metrics)
	profile := baseStyleProfile(agg, len(posts))
	if err := x.checkpoint(ctx, 50); err != nil {
		return nil, err
	}

	if reply, ok := s.enrichStyle(ctx, x, params.Provider, posts, texts); ok {
		applyStyleReply(&profile, reply)
	}
	if err := x.checkpoint(ctx, 80); err != nil {
		return nil, err
	}

	doc, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encoding style profile: %w", err)
	}
	if err := s.store.MergePreferences(ctx, x.job.OwnerID, models.Preferences{models.PreferenceWritingStyle: doc}); err != nil {
		return nil, fmt.Errorf("saving writing style: %w", err)
	}
	return profile, nil
}

// enrichStyle asks the model for qualitative traits. Any failure is logged and reported
// as !ok so the job continues with the computed defaults.
func (s *Service) enrichStyle(ctx context.Context, x *execution, preferred string, posts []*models.Post, texts []string) (styleReply, bool) {
	provider, err := s.providers.ProviderFor(ctx, x.job.OwnerID, preferred)
	if err != nil {
		x.log.Warn("style enrichment skipped", "error", err)
		return styleReply{}, false
	}

	n := min(len(posts), styleSamplePosts)
	samples := make([]string, n)
	for i := 0; i < n; i++ {
		samples[i] = fmt.Sprintf(analysisPostFormat, i+1, posts[i].Likes, texts[i])
	}
	text, err := s.prompts.Resolve(prompt.AnalyzeWritingStyle, map[string]string{
		"posts": strings.Join(samples, "\n\n---\n\n"),
	})
	if err != nil {
		x.log.Warn("style enrichment skipped", "error", err)
		return styleReply{}, false
	}

	result, err := provider.GenerateCompletion(ctx, text, models.CompletionOptions{
		MaxTokens:    styleMaxTokens,
		Temperature:  models.Float64(styleTemperature),
		SystemPrompt: styleSystemPrompt,
	})
	if err != nil {
		x.log.Warn("style enrichment failed", "provider", provider.Name(), "error", err)
		return styleReply{}, false
	}
	reply := ai.ParseReply[styleReply](result.Text)
	parsed, ok := reply.Structured()
	if !ok {
		x.log.Warn("style enrichment reply not usable", "provider", provider.Name(), "error", reply.Err())
		return styleReply{}, false
	}
	return parsed, true
}

func baseStyleProfile(agg analysis.Aggregate, postCount int) models.StyleProfile {
	m := agg.Metrics
	return models.StyleProfile{
		AvgSentenceLength:   m.AvgSentenceLength,
		VocabularyDiversity: m.VocabularyDiversity,
		ReadingLevel:        m.ReadingLevel,
		ToneDistribution:    defaultToneDistribution(),
		StructuralPatterns: models.StructuralPatterns{
			QuestionUsage:       m.QuestionFrequency,
			ListFormatFrequency: m.ListFormatFrequency,
			EmojiDensity:        m.EmojiDensity,
			AvgPostLength:       m.AvgPostLength,
			HookPatterns:        []string{},
			CTAPatterns:         []string{},
		},
		EngagementCorrelations: agg.Correlations,
		Summary: fmt.Sprintf("Analyzed %d posts with an average length of %d words.",
			postCount, int(math.Round(m.AvgPostLength))),
		VoiceCharacteristics: []string{},
		UniquePhrases:        []string{},
		PostsAnalyzed:        postCount,
	}
}

// applyStyleReply overlays the non-empty parts of the model's reply.
func applyStyleReply(p *models.StyleProfile, r styleReply) {
	if len(r.ToneDistribution) > 0 {
		p.ToneDistribution = r.ToneDistribution
	}
	if r.HookPatterns != nil {
		p.StructuralPatterns.HookPatterns = r.HookPatterns
	}
	if r.CTAPatterns != nil {
		p.StructuralPatterns.CTAPatterns = r.CTAPatterns
	}
	if s := strings.TrimSpace(r.Summary); s != "" {
		p.Summary = s
	}
	if r.VoiceCharacteristics != nil {
		p.VoiceCharacteristics = r.VoiceCharacteristics
	}
	if r.UniquePhrases != nil {
		p.UniquePhrases = r.UniquePhrases
	}
	p.Enriched = true
}
