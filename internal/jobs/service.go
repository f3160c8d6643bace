// Package jobs runs the asynchronous analysis and generation pipelines. Start records a
// pending job and returns at once; a pool worker drives the job through its stages,
// writing progress checkpoints, and always leaves it completed or failed.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/openscribe/internal/cache"
	"github.com/kiranshivaraju/openscribe/internal/config"
	"github.com/kiranshivaraju/openscribe/internal/prompt"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// terminalWriteTimeout bounds the final status write, which runs on a fresh context.
const terminalWriteTimeout = 10 * time.Second

// ProviderSource resolves the owner's completion provider. ai.Factory implements it.
type ProviderSource interface {
	ProviderFor(ctx context.Context, ownerID uuid.UUID, preferred string) (models.AIProvider, error)
}

// AnalyticsInvalidator drops cached read-side analytics. insights.Service implements it.
type AnalyticsInvalidator interface {
	Invalidate(ctx context.Context, ownerID uuid.UUID) error
}

// Service creates jobs and executes their pipelines.
type Service struct {
	store     store.Store
	providers ProviderSource
	prompts   *prompt.Resolver
	cache     cache.Cache
	analytics AnalyticsInvalidator
	pool      *Pool
	cfg       config.JobsConfig
	now       func() time.Time
}

func NewService(st store.Store, providers ProviderSource, prompts *prompt.Resolver, c cache.Cache,
	analytics AnalyticsInvalidator, pool *Pool, cfg config.JobsConfig) *Service {
	return &Service{
		store:     st,
		providers: providers,
		prompts:   prompts,
		cache:     c,
		analytics: analytics,
		pool:      pool,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start validates params and preconditions, records a pending job and hands it to the
// pool. It never waits for the pipeline. Parameter and precondition failures create no
// job; a rejected submission leaves a failed job behind.
func (s *Service) Start(ctx context.Context, ownerID uuid.UUID, kind string, params json.RawMessage) (*models.Job, error) {
	p, err := paramsFor(kind)
	if err != nil {
		return nil, err
	}
	if err := decodeParams(params, p); err != nil {
		return nil, err
	}
	if err := s.checkPreconditions(ctx, ownerID, kind); err != nil {
		return nil, err
	}
	input, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding job input: %w", err)
	}

	now := s.now().UTC()
	job := &models.Job{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Kind:      kind,
		Status:    models.JobStatusPending,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	s.mirror(ctx, job, models.JobStatusPending)

	if err := s.pool.Submit(func(ctx context.Context) error { return s.run(ctx, job) }); err != nil {
		s.fail(job, fmt.Errorf("job could not be scheduled: %w", err))
		return nil, fmt.Errorf("scheduling job: %w", err)
	}

	slog.Info("job started", "job_id", job.ID, "kind", kind, "owner_id", ownerID)
	view := *job
	return &view, nil
}

func (s *Service) checkPreconditions(ctx context.Context, ownerID uuid.UUID, kind string) error {
	switch kind {
	case models.JobKindAnalyzeStyle, models.JobKindExtractTopics:
		n, err := s.store.CountPosts(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("counting posts: %w", err)
		}
		if n < s.cfg.MinPosts {
			return fmt.Errorf("%w: you need at least %d imported posts, found %d", ErrPrecondition, s.cfg.MinPosts, n)
		}
	}
	return nil
}

// Get returns the owner's job. Other owners' jobs are reported as store.ErrNotFound.
func (s *Service) Get(ctx context.Context, ownerID, jobID uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, jobID, ownerID)
}

// Status answers a status poll. A terminal status in the cache mirror is final and served
// from there; anything else is read from the store, since a lost mirror write could leave
// an earlier status behind.
func (s *Service) Status(ctx context.Context, ownerID, jobID uuid.UUID) (string, error) {
	if status, ok, err := s.cache.GetJobStatus(ctx, ownerID, jobID); err == nil && ok && models.TerminalStatus(status) {
		return status, nil
	}
	job, err := s.store.GetJob(ctx, jobID, ownerID)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// pipeline runs the kind-specific stages and returns the result document.
type pipeline func(ctx context.Context, x *execution) (any, error)

func (s *Service) pipelineFor(kind string) pipeline {
	switch kind {
	case models.JobKindAnalyzeStyle:
		return s.analyzeStyle
	case models.JobKindExtractTopics:
		return s.extractTopics
	case models.JobKindGenerateStrategy:
		return s.generateStrategy
	case models.JobKindGenerateContent:
		return s.generateContent
	}
	return nil
}

// execution is the state of one pipeline run.
type execution struct {
	job *models.Job
	log *slog.Logger
	s   *Service
}

// checkpoint durably records progress before the next stage starts.
func (x *execution) checkpoint(ctx context.Context, progress int) error {
	if err := x.s.store.UpdateJobProgress(ctx, x.job.ID, progress); err != nil {
		return fmt.Errorf("recording progress: %w", err)
	}
	x.log.Debug("job checkpoint", "progress", progress)
	return nil
}

// run drives job to a terminal state. Errors and panics fail the job and are returned
// to the pool for logging.
func (s *Service) run(ctx context.Context, job *models.Job) (err error) {
	log := slog.With("job_id", job.ID, "kind", job.Kind, "owner_id", job.OwnerID)
	cancel := context.CancelFunc(func() {})
	if s.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
	}
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in job pipeline", "error", r)
			err = fmt.Errorf("internal error: %v", r)
		}
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
				err = fmt.Errorf("job exceeded the %s time limit: %w", s.cfg.Timeout, err)
			case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
				err = fmt.Errorf("job interrupted by server shutdown: %w", err)
			}
			s.fail(job, err)
			err = fmt.Errorf("job %s (%s): %w", job.ID, job.Kind, err)
		}
	}()

	run := s.pipelineFor(job.Kind)
	if run == nil {
		return fmt.Errorf("%w: unknown job kind %q", ErrInvalidParams, job.Kind)
	}

	// Tasks dequeued after a shutdown timeout run with a cancelled context.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusProcessing, store.WithProgress(10)); err != nil {
		return fmt.Errorf("marking job processing: %w", err)
	}
	s.mirror(ctx, job, models.JobStatusProcessing)
	log.Info("job processing")

	result, err := run(ctx, &execution{job: job, log: log, s: s})
	if err != nil {
		return err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding job result: %w", err)
	}

	wctx, wcancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer wcancel()
	if err := s.store.UpdateJobStatus(wctx, job.ID, models.JobStatusCompleted,
		store.WithProgress(100), store.WithResult(raw)); err != nil {
		return fmt.Errorf("marking job completed: %w", err)
	}
	s.mirror(wctx, job, models.JobStatusCompleted)
	log.Info("job completed")
	return nil
}

// fail records cause as the job's error message. It uses its own context so it succeeds
// after the pipeline context has expired.
func (s *Service) fail(job *models.Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()

	if err := s.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed,
		store.WithErrorMessage(cause.Error())); err != nil {
		slog.Error("marking job failed", "job_id", job.ID, "error", err, "cause", cause)
		return
	}
	s.mirror(ctx, job, models.JobStatusFailed)
	slog.Warn("job failed", "job_id", job.ID, "kind", job.Kind, "owner_id", job.OwnerID, "error", cause)
}

// mirror copies status into the cache for cheap polling. The store stays authoritative:
// when the write fails the mirrored entry is dropped so polls fall through to the store.
func (s *Service) mirror(ctx context.Context, job *models.Job, status string) {
	err := s.cache.SetJobStatus(ctx, job.OwnerID, job.ID, status, cache.JobStatusTTL)
	if err == nil {
		return
	}
	slog.Warn("mirroring job status", "job_id", job.ID, "status", status, "error", err)
	if err := s.cache.Delete(ctx, cache.JobStatusKey(job.OwnerID, job.ID)); err != nil {
		slog.Warn("dropping stale job status", "job_id", job.ID, "error", err)
	}
}

// decodeInput re-reads the job's stored parameters.
func decodeInput[T any](job *models.Job) (T, error) {
	var p T
	if len(job.Input) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(job.Input, &p); err != nil {
		return p, fmt.Errorf("decoding job input: %w", err)
	}
	return p, nil
}
