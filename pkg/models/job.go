package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	JobKindAnalyzeStyle     = "analyze_style"
	JobKindExtractTopics    = "extract_topics"
	JobKindGenerateStrategy = "generate_strategy"
	JobKindGenerateContent  = "generate_content"
)

// Job tracks an asynchronous analysis or generation run. The API returns the job id with
// HTTP 202; the client polls GET /api/v1/jobs/{job_id} until status is completed or failed.
type Job struct {
	ID           uuid.UUID       `db:"id"            json:"id"`
	OwnerID      uuid.UUID       `db:"owner_id"      json:"owner_id"`
	Kind         string          `db:"kind"          json:"kind"`
	Status       string          `db:"status"        json:"status"`
	Progress     int             `db:"progress"      json:"progress"`
	Input        json.RawMessage `db:"input"         json:"input,omitempty"`
	Result       json.RawMessage `db:"result"        json:"result,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time      `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"    json:"updated_at"`
}

// IsTerminal reports whether the job reached completed or failed.
func (j *Job) IsTerminal() bool {
	return TerminalStatus(j.Status)
}

// TerminalStatus reports whether status is completed or failed.
func TerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// ValidJobKind reports whether kind names one of the four pipelines.
func ValidJobKind(kind string) bool {
	switch kind {
	case JobKindAnalyzeStyle, JobKindExtractTopics, JobKindGenerateStrategy, JobKindGenerateContent:
		return true
	}
	return false
}
