package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kiranshivaraju/openscribe/internal/ai"
	"github.com/kiranshivaraju/openscribe/internal/analysis"
	"github.com/kiranshivaraju/openscribe/internal/prompt"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const (
	topicBatchSize      = 20
	topicSystemPrompt   = "You are a content analysis expert. Always respond with valid JSON only."
	topicTemperature    = 0.3
	topicMaxTokens      = 2048
	topicPostFormat     = "Post %d [Likes: %d, Comments: %d, Shares: %d]:\n%s\n"
	maxTopicKeywords    = 10
	maxTopics           = 15
	maxContentGaps      = 5
	unknownTopicLabel   = "unknown"
	topicTrendStable    = "stable"
	topicPostsSeparator = "\n---\n"
)

// topicReply is the model's answer to the extract_topics prompt for one batch.
type topicReply struct {
	Topics []struct {
		Label         string   `json:"label"`
		Keywords      []string `json:"keywords"`
		PostCount     int      `json:"postCount"`
		AvgEngagement float64  `json:"avgEngagement"`
		Trend         string   `json:"trend"`
	} `json:"topics"`
	ContentGaps    []string `json:"contentGaps"`
	RecommendedMix *struct {
		Primary      []string `json:"primary"`
		Secondary    []string `json:"secondary"`
		Experimental []string `json:"experimental"`
	} `json:"recommendedMix"`
}

func (s *Service) extractTopics(ctx context.Context, x *execution) (any, error) {
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

	provider, err := s.providers.ProviderFor(ctx, x.job.OwnerID, params.Provider)
	if err != nil {
		return nil, err
	}

	var replies []topicReply
	for start := 0; start < len(posts); start += topicBatchSize {
		batch := posts[start:min(start+topicBatchSize, len(posts))]
		text, err := s.prompts.Resolve(prompt.ExtractTopics, map[string]string{"posts": formatTopicBatch(batch)})
		if err != nil {
			return nil, err
		}
		result, err := provider.GenerateCompletion(ctx, text, models.CompletionOptions{
			MaxTokens:    topicMaxTokens,
			Temperature:  models.Float64(topicTemperature),
			SystemPrompt: topicSystemPrompt,
		})
		if err != nil {
			return nil, fmt.Errorf("extracting topics: %w", err)
		}
		reply := ai.ParseReply[topicReply](result.Text)
		parsed, ok := reply.Structured()
		if !ok {
			x.log.Warn("topic batch reply not usable", "batch_start", start, "error", reply.Err())
			continue
		}
		replies = append(replies, parsed)
	}

	out := consolidateTopics(replies)
	if err := x.checkpoint(ctx, 80); err != nil {
		return nil, err
	}

	labelled, err := s.labelPosts(ctx, posts, out.Topics)
	if err != nil {
		return nil, err
	}
	out.PostsLabelled = labelled

	if s.analytics != nil {
		if err := s.analytics.Invalidate(ctx, x.job.OwnerID); err != nil {
			x.log.Warn("invalidating analytics cache", "error", err)
		}
	}
	return out, nil
}

func formatTopicBatch(batch []*models.Post) string {
	parts := make([]string, len(batch))
	for i, p := range batch {
		parts[i] = fmt.Sprintf(topicPostFormat, i+1, p.Likes, p.Comments, p.Shares, analysis.PlainText(p.Text))
	}
	return strings.Join(parts, topicPostsSeparator)
}

// consolidateTopics merges per-batch replies into one analysis. Labels are compared
// lowercased; a label's engagement is the mean of the batches that reported it.
func consolidateTopics(replies []topicReply) models.TopicAnalysis {
	type acc struct {
		label      string
		keywords   []string
		seen       map[string]struct{}
		postCount  int
		engagement float64
		batches    int
	}
	lower := cases.Lower(language.Und)
	byLabel := map[string]*acc{}
	var order []string
	var gaps []string
	mix := models.RecommendedMix{Primary: []string{}, Secondary: []string{}, Experimental: []string{}}

	for _, r := range replies {
		for _, t := range r.Topics {
			label := strings.TrimSpace(lower.String(t.Label))
			if label == "" {
				label = unknownTopicLabel
			}
			a, ok := byLabel[label]
			if !ok {
				a = &acc{label: label, seen: map[string]struct{}{}}
				byLabel[label] = a
				order = append(order, label)
			}
			for _, k := range t.Keywords {
				k = strings.TrimSpace(lower.String(k))
				if _, dup := a.seen[k]; k == "" || dup {
					continue
				}
				a.seen[k] = struct{}{}
				a.keywords = append(a.keywords, k)
			}
			if t.PostCount > 0 {
				a.postCount += t.PostCount
			} else {
				a.postCount++
			}
			a.engagement += t.AvgEngagement
			a.batches++
		}
		gaps = append(gaps, r.ContentGaps...)
		if r.RecommendedMix != nil {
			mix = models.RecommendedMix{
				Primary:      nonNil(r.RecommendedMix.Primary),
				Secondary:    nonNil(r.RecommendedMix.Secondary),
				Experimental: nonNil(r.RecommendedMix.Experimental),
			}
		}
	}

	topics := make([]models.Topic, 0, len(order))
	for _, label := range order {
		a := byLabel[label]
		keywords := a.keywords
		if len(keywords) > maxTopicKeywords {
			keywords = keywords[:maxTopicKeywords]
		}
		topics = append(topics, models.Topic{
			Label:         a.label,
			Keywords:      nonNil(keywords),
			PostCount:     a.postCount,
			AvgEngagement: a.engagement / float64(a.batches),
			Trend:         topicTrendStable,
		})
	}
	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].AvgEngagement*float64(topics[i].PostCount) > topics[j].AvgEngagement*float64(topics[j].PostCount)
	})
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}

	return models.TopicAnalysis{
		Topics:         topics,
		ContentGaps:    dedupe(gaps, maxContentGaps),
		RecommendedMix: mix,
	}
}

// labelPosts appends a topic label to every post whose text contains one of the topic's
// keywords. Appending an existing label is a no-op, so reruns are safe. It returns the
// number of posts that matched at least one topic.
func (s *Service) labelPosts(ctx context.Context, posts []*models.Post, topics []models.Topic) (int, error) {
	labelled := 0
	for _, p := range posts {
		text := strings.ToLower(analysis.PlainText(p.Text))
		matched := false
		for _, t := range topics {
			if !containsAny(text, t.Keywords) {
				continue
			}
			if err := s.store.AppendPostTopic(ctx, p.ID, t.Label); err != nil {
				return labelled, fmt.Errorf("labelling post %s: %w", p.ID, err)
			}
			matched = true
		}
		if matched {
			labelled++
		}
	}
	return labelled, nil
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func dedupe(values []string, limit int) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if _, dup := seen[v]; v == "" || dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}
