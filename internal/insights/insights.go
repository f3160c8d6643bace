// Package insights serves the read-side engagement analytics with a short-lived cache.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/openscribe/internal/analysis"
	"github.com/kiranshivaraju/openscribe/internal/cache"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// DefaultTTL bounds how stale a cached analytics document can be.
const DefaultTTL = 5 * time.Minute

// PostLister is the slice of store.Store the analytics need.
type PostLister interface {
	ListPosts(ctx context.Context, filter store.PostFilter) ([]*models.Post, error)
}

type Service struct {
	posts PostLister
	cache cache.Cache
	ttl   time.Duration
}

func NewService(posts PostLister, c cache.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{posts: posts, cache: c, ttl: ttl}
}

// Engagement returns the owner's engagement summary.
func (s *Service) Engagement(ctx context.Context, ownerID uuid.UUID) (analysis.EngagementStats, error) {
	return cached(ctx, s, cache.EngagementAnalyticsKey(ownerID), ownerID, analysis.AnalyzeEngagement)
}

// Topics returns per-topic engagement, best first.
func (s *Service) Topics(ctx context.Context, ownerID uuid.UUID) ([]analysis.TopicPerformance, error) {
	return cached(ctx, s, cache.TopicAnalyticsKey(ownerID), ownerID, analysis.AnalyzeTopicPerformance)
}

// Invalidate drops the owner's cached analytics. Topic extraction calls it after
// labelling posts.
func (s *Service) Invalidate(ctx context.Context, ownerID uuid.UUID) error {
	return s.cache.Delete(ctx, cache.EngagementAnalyticsKey(ownerID), cache.TopicAnalyticsKey(ownerID))
}

// cached serves key from the cache, or computes it from the owner's posts and stores it.
// Cache failures never fail the request.
func cached[T any](ctx context.Context, s *Service, key string, ownerID uuid.UUID, compute func([]models.Post) T) (T, error) {
	var out T
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		slog.Warn("analytics cache read failed", "key", key, "error", err)
	} else if ok {
		if err := json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
		slog.Warn("discarding undecodable analytics cache entry", "key", key)
	}

	posts, err := s.posts.ListPosts(ctx, store.PostFilter{OwnerID: ownerID})
	if err != nil {
		return out, fmt.Errorf("list posts: %w", err)
	}
	values := make([]models.Post, len(posts))
	for i, p := range posts {
		values[i] = *p
	}
	out = compute(values)

	if raw, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			slog.Warn("analytics cache write failed", "key", key, "error", err)
		}
	}
	return out, nil
}
