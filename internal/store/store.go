package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// DefaultOwnerID is the owner seeded by the initial migration.
var DefaultOwnerID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error

	ListPosts(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	CountPosts(ctx context.Context, ownerID uuid.UUID) (int, error)
	AppendPostTopic(ctx context.Context, postID uuid.UUID, label string) error

	GetOwner(ctx context.Context, id uuid.UUID) (*models.Owner, error)
	GetPreferences(ctx context.Context, ownerID uuid.UUID) (models.Preferences, error)
	MergePreferences(ctx context.Context, ownerID uuid.UUID, patch models.Preferences) error

	GetCredential(ctx context.Context, ownerID uuid.UUID, provider string) (*models.StoredCredential, error)
	CreateCredential(ctx context.Context, cred *models.StoredCredential) error

	CreateStrategy(ctx context.Context, s *models.Strategy) error
	GetStrategy(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Strategy, error)
	FindCurrentStrategy(ctx context.Context, ownerID uuid.UUID) (*models.Strategy, error)
	ListStrategies(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Strategy, error)

	CreateDraft(ctx context.Context, d *models.Draft) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Job, error)
	LatestCompletedJob(ctx context.Context, ownerID uuid.UUID, kind string) (*models.Job, error)
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	// FailStaleJobs marks every pending or processing job failed with msg and returns how
	// many it changed. It is run at startup, before any worker picks up new jobs.
	FailStaleJobs(ctx context.Context, msg string) (int64, error)
}

const (
	PostOrderRecent = "recent"
	PostOrderLikes  = "likes"
)

// PostFilter selects an owner's posts. A zero Limit returns every post.
type PostFilter struct {
	OwnerID uuid.UUID
	OrderBy string
	Limit   int
}

// DefaultStrategyListLimit caps ListStrategies when the caller passes no limit.
const DefaultStrategyListLimit = 10

var validTransitions = map[string][]string{
	models.JobStatusPending:    {models.JobStatusProcessing, models.JobStatusFailed},
	models.JobStatusProcessing: {models.JobStatusCompleted, models.JobStatusFailed},
}

func canTransition(from, to string) bool {
	for _, a := range validTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

type jobUpdateParams struct {
	Progress     *int
	Result       json.RawMessage
	ErrorMessage *string
}

type JobUpdateOption func(*jobUpdateParams)

// WithProgress sets the progress written together with the status change.
func WithProgress(p int) JobUpdateOption {
	return func(params *jobUpdateParams) {
		params.Progress = &p
	}
}

// WithResult records the result document of a completed job.
func WithResult(result json.RawMessage) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Result = result
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func clampProgress(p int) int {
	return min(max(p, 0), 100)
}
