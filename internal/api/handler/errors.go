package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kiranshivaraju/openscribe/internal/ai"
	mw "github.com/kiranshivaraju/openscribe/internal/api/middleware"
	"github.com/kiranshivaraju/openscribe/internal/api/response"
	"github.com/kiranshivaraju/openscribe/internal/jobs"
	"github.com/kiranshivaraju/openscribe/internal/store"
)

// writeError maps domain errors to HTTP responses. Unexpected errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrInvalidParams):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, jobs.ErrPrecondition):
		response.Error(w, http.StatusBadRequest, "PRECONDITION_FAILED", err.Error(), nil)
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrShuttingDown):
		response.Error(w, http.StatusServiceUnavailable, "SERVICE_BUSY",
			"The server is not accepting new jobs right now; retry shortly", nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, store.ErrDuplicateKey):
		response.Error(w, http.StatusConflict, "DUPLICATE", "Resource already exists", nil)
	case errors.Is(err, ai.ErrUnknownProvider):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err,
		)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

// ownerFrom returns the authenticated owner or writes 401.
func ownerFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	owner, ok := mw.GetOwnerID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
	}
	return owner, ok
}

// uuidParam parses the named route parameter or writes 400.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", name+" must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
