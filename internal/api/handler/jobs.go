package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/openscribe/internal/api/response"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// JobService is what the job endpoints depend on. jobs.Service implements it.
type JobService interface {
	Start(ctx context.Context, ownerID uuid.UUID, kind string, params json.RawMessage) (*models.Job, error)
	Get(ctx context.Context, ownerID, jobID uuid.UUID) (*models.Job, error)
	Status(ctx context.Context, ownerID, jobID uuid.UUID) (string, error)
}

type jobAccepted struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

type jobView struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewStartJobHandler returns a handler that starts a job of kind with the request body
// as parameters and answers 202 with the job id.
func NewStartJobHandler(svc JobService, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, response.MaxBodyBytes))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body is unreadable or too large", nil)
			return
		}

		job, err := svc.Start(r.Context(), owner, kind, body)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Accepted(w, jobAccepted{JobID: job.ID, Status: job.Status})
	}
}

// NewGetJobHandler returns a handler for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "jobID")
		if !ok {
			return
		}

		job, err := svc.Get(r.Context(), owner, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, jobView{
			ID:          job.ID,
			Kind:        job.Kind,
			Status:      job.Status,
			Progress:    job.Progress,
			Result:      job.Result,
			Error:       job.ErrorMessage,
			CreatedAt:   job.CreatedAt,
			StartedAt:   job.StartedAt,
			CompletedAt: job.CompletedAt,
		})
	}
}

// NewJobStatusHandler returns a handler for GET /api/v1/jobs/{jobID}/status, a cheap
// poll served from the status mirror when possible.
func NewJobStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "jobID")
		if !ok {
			return
		}

		status, err := svc.Status(r.Context(), owner, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, jobAccepted{JobID: id, Status: status})
	}
}
