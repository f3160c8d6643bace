package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/openscribe/internal/analysis"
	"github.com/kiranshivaraju/openscribe/internal/api/response"
)

// Analytics serves the read-side engagement views. insights.Service implements it.
type Analytics interface {
	Engagement(ctx context.Context, ownerID uuid.UUID) (analysis.EngagementStats, error)
	Topics(ctx context.Context, ownerID uuid.UUID) ([]analysis.TopicPerformance, error)
}

// NewEngagementHandler returns a handler for GET /api/v1/analytics/engagement.
func NewEngagementHandler(a Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		stats, err := a.Engagement(r.Context(), owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, stats)
	}
}

// NewTopicPerformanceHandler returns a handler for GET /api/v1/analytics/topics.
func NewTopicPerformanceHandler(a Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		topics, err := a.Topics(r.Context(), owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, topics)
	}
}
