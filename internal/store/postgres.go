package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
	sql  sq.StatementBuilderType
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		sql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

const apiKeyColumns = `id, owner_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.OwnerID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`, id, ownerID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Posts ---

func (s *PostgresStore) ListPosts(ctx context.Context, filter PostFilter) ([]*models.Post, error) {
	q := s.sql.Select("id", "owner_id", "text", "likes", "comments", "shares", "posted_at", "topics", "created_at").
		From("posts").
		Where(sq.Eq{"owner_id": filter.OwnerID})

	switch filter.OrderBy {
	case PostOrderLikes:
		q = q.OrderBy("likes DESC", "posted_at DESC")
	default:
		q = q.OrderBy("posted_at DESC")
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list posts: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Text, &p.Likes, &p.Comments, &p.Shares,
			&p.PostedAt, &p.Topics, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

func (s *PostgresStore) CountPosts(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE owner_id = $1`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// AppendPostTopic adds label to the post's topics unless it is already there.
func (s *PostgresStore) AppendPostTopic(ctx context.Context, postID uuid.UUID, label string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`WITH updated AS (
		   UPDATE posts SET topics = array_append(topics, $2)
		   WHERE id = $1 AND NOT ($2 = ANY(topics))
		   RETURNING id
		 )
		 SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID, label,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("append post topic: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// --- Owners ---

func (s *PostgresStore) GetOwner(ctx context.Context, id uuid.UUID) (*models.Owner, error) {
	var (
		o     models.Owner
		prefs []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, preferences, created_at, updated_at FROM owners WHERE id = $1`, id,
	).Scan(&o.ID, &o.Name, &prefs, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	if o.Preferences, err = decodePreferences(prefs); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PostgresStore) GetPreferences(ctx context.Context, ownerID uuid.UUID) (models.Preferences, error) {
	var prefs []byte
	err := s.pool.QueryRow(ctx, `SELECT preferences FROM owners WHERE id = $1`, ownerID).Scan(&prefs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return decodePreferences(prefs)
}

// MergePreferences overwrites the top-level keys in patch and keeps every other key.
func (s *PostgresStore) MergePreferences(ctx context.Context, ownerID uuid.UUID, patch models.Preferences) error {
	doc, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE owners SET preferences = preferences || $2::jsonb, updated_at = NOW() WHERE id = $1`,
		ownerID, string(doc))
	if err != nil {
		return fmt.Errorf("merge preferences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func decodePreferences(raw []byte) (models.Preferences, error) {
	prefs := models.Preferences{}
	if len(raw) == 0 {
		return prefs, nil
	}
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}

// --- Credentials ---

// GetCredential returns the owner's newest active credential for provider, or for any
// provider when provider is empty.
func (s *PostgresStore) GetCredential(ctx context.Context, ownerID uuid.UUID, provider string) (*models.StoredCredential, error) {
	where := sq.Eq{"owner_id": ownerID, "is_active": true}
	if provider != "" {
		where["provider"] = provider
	}
	query, args, err := s.sql.
		Select("id", "owner_id", "provider", "model", "base_url", "ciphertext", "iv", "auth_tag", "is_active", "created_at", "updated_at").
		From("ai_credentials").
		Where(where).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get credential: %w", err)
	}

	var c models.StoredCredential
	err = s.pool.QueryRow(ctx, query, args...).Scan(&c.ID, &c.OwnerID, &c.Provider, &c.Model, &c.BaseURL,
		&c.Ciphertext, &c.IV, &c.AuthTag, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) CreateCredential(ctx context.Context, c *models.StoredCredential) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ai_credentials (id, owner_id, provider, model, base_url, ciphertext, iv, auth_tag, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.OwnerID, c.Provider, c.Model, c.BaseURL, c.Ciphertext, c.IV, c.AuthTag, c.IsActive, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// --- Strategies ---

var strategyColumns = []string{"id", "owner_id", "type", "themes", "posting_frequency", "target_audience", "goals", "generated_at", "expires_at"}

func (s *PostgresStore) CreateStrategy(ctx context.Context, st *models.Strategy) error {
	audience, err := json.Marshal(st.TargetAudience)
	if err != nil {
		return fmt.Errorf("encode target audience: %w", err)
	}
	goals, err := json.Marshal(st.Goals)
	if err != nil {
		return fmt.Errorf("encode goals: %w", err)
	}
	themes := st.Themes
	if len(themes) == 0 {
		themes = json.RawMessage("[]")
	}

	query, args, err := s.sql.Insert("strategies").
		Columns(strategyColumns...).
		Values(st.ID, st.OwnerID, st.Type, string(themes), st.PostingFrequency,
			string(audience), string(goals), st.GeneratedAt, st.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create strategy: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create strategy: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetStrategy(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Strategy, error) {
	return s.findStrategy(ctx, "get strategy", sq.Eq{"id": id, "owner_id": ownerID})
}

func (s *PostgresStore) FindCurrentStrategy(ctx context.Context, ownerID uuid.UUID) (*models.Strategy, error) {
	return s.findStrategy(ctx, "find current strategy",
		sq.And{sq.Eq{"owner_id": ownerID}, sq.Expr("expires_at > NOW()")})
}

func (s *PostgresStore) findStrategy(ctx context.Context, op string, where sq.Sqlizer) (*models.Strategy, error) {
	query, args, err := s.sql.Select(strategyColumns...).
		From("strategies").
		Where(where).
		OrderBy("generated_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	st, err := scanStrategy(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

func (s *PostgresStore) ListStrategies(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.Strategy, error) {
	if limit <= 0 {
		limit = DefaultStrategyListLimit
	}
	query, args, err := s.sql.Select(strategyColumns...).
		From("strategies").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("generated_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list strategies: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	defer rows.Close()

	strategies := []*models.Strategy{}
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		strategies = append(strategies, st)
	}
	return strategies, rows.Err()
}

func scanStrategy(row pgx.Row) (*models.Strategy, error) {
	var (
		st              models.Strategy
		themes          []byte
		audience, goals []byte
	)
	if err := row.Scan(&st.ID, &st.OwnerID, &st.Type, &themes, &st.PostingFrequency,
		&audience, &goals, &st.GeneratedAt, &st.ExpiresAt); err != nil {
		return nil, err
	}
	st.Themes = json.RawMessage(themes)
	if err := json.Unmarshal(audience, &st.TargetAudience); err != nil {
		return nil, fmt.Errorf("decode target audience: %w", err)
	}
	if err := json.Unmarshal(goals, &st.Goals); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	return &st, nil
}

// --- Drafts ---

func (s *PostgresStore) CreateDraft(ctx context.Context, d *models.Draft) error {
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("encode draft metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO drafts (id, owner_id, strategy_id, text, topic, hook, cta, metadata, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.OwnerID, d.StrategyID, d.Text, d.Topic, d.Hook, d.CTA, string(meta), d.Status, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create draft: %w", err)
	}
	return nil
}

// --- Jobs ---

var jobColumns = []string{"id", "owner_id", "kind", "status", "progress", "input", "result",
	"error_message", "started_at", "completed_at", "created_at", "updated_at"}

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		j             models.Job
		input, result []byte
	)
	if err := row.Scan(&j.ID, &j.OwnerID, &j.Kind, &j.Status, &j.Progress, &input, &result,
		&j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if len(input) > 0 {
		j.Input = json.RawMessage(input)
	}
	if len(result) > 0 {
		j.Result = json.RawMessage(result)
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	var input any
	if len(job.Input) > 0 {
		input = string(job.Input)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, owner_id, kind, status, progress, input, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.OwnerID, job.Kind, job.Status, job.Progress, input, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Job, error) {
	query, args, err := s.sql.Select(jobColumns...).
		From("jobs").
		Where(sq.Eq{"id": id, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get job: %w", err)
	}
	j, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) LatestCompletedJob(ctx context.Context, ownerID uuid.UUID, kind string) (*models.Job, error) {
	query, args, err := s.sql.Select(jobColumns...).
		From("jobs").
		Where(sq.Eq{"owner_id": ownerID, "kind": kind, "status": models.JobStatusCompleted}).
		OrderBy("completed_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest completed job: %w", err)
	}
	j, err := scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed job: %w", err)
	}
	return j, nil
}

// UpdateJobProgress raises the progress of a processing job. Lower values are ignored.
func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET progress = GREATEST(progress, $2), updated_at = NOW()
		 WHERE id = $1 AND status = $3`, id, clampProgress(progress), models.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}
	return fmt.Errorf("%w: progress update on %s job", ErrInvalidTransition, status)
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	// Fetch current status
	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	if !canTransition(currentStatus, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
	}

	now := time.Now().UTC()
	q := s.sql.Update("jobs").
		Set("status", status).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": currentStatus})

	if status == models.JobStatusProcessing {
		q = q.Set("started_at", now)
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		q = q.Set("completed_at", now)
	}
	if params.Progress != nil {
		q = q.Set("progress", sq.Expr("GREATEST(progress, ?)", clampProgress(*params.Progress)))
	}
	if params.Result != nil {
		q = q.Set("result", string(params.Result))
	}
	if params.ErrorMessage != nil {
		q = q.Set("error_message", *params.ErrorMessage)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update job status: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, currentStatus)
	}
	return nil
}

func (s *PostgresStore) FailStaleJobs(ctx context.Context, msg string) (int64, error) {
	now := time.Now().UTC()
	query, args, err := s.sql.Update("jobs").
		Set("status", models.JobStatusFailed).
		Set("error_message", msg).
		Set("completed_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"status": []string{models.JobStatusPending, models.JobStatusProcessing}}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build fail stale jobs: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
