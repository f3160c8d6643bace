package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/openscribe/internal/api/response"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const maxStrategyListLimit = 50

// StrategyReader is the slice of the store the strategy endpoints read.
type StrategyReader interface {
	FindCurrentStrategy(ctx context.Context, ownerID uuid.UUID) (*models.Strategy, error)
	ListStrategies(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Strategy, error)
}

// NewCurrentStrategyHandler returns a handler for GET /api/v1/strategies/current.
func NewCurrentStrategyHandler(s StrategyReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		strategy, err := s.FindCurrentStrategy(r.Context(), owner)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NO_ACTIVE_STRATEGY",
				"No active strategy; generate one first", nil)
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, strategy)
	}
}

// NewListStrategiesHandler returns a handler for GET /api/v1/strategies?limit=N, newest
// first.
func NewListStrategiesHandler(s StrategyReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		limit := store.DefaultStrategyListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxStrategyListLimit {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be an integer between 1 and "+strconv.Itoa(maxStrategyListLimit), nil)
				return
			}
			limit = n
		}

		strategies, err := s.ListStrategies(r.Context(), owner, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.List(w, strategies, len(strategies), limit)
	}
}
