package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// MemoryStore is an in-process Store used by tests and by local runs without Postgres.
// Every read returns a copy, so callers never share records with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	owners      map[uuid.UUID]*models.Owner
	apiKeys     map[uuid.UUID]*models.APIKey
	posts       []*models.Post
	credentials []*models.StoredCredential
	strategies  []*models.Strategy
	drafts      map[uuid.UUID]*models.Draft
	jobs        map[uuid.UUID]*models.Job
}

// NewMemoryStore returns an empty store holding the default owner.
func NewMemoryStore() *MemoryStore {
	now := time.Now().UTC()
	return &MemoryStore{
		owners: map[uuid.UUID]*models.Owner{
			DefaultOwnerID: {ID: DefaultOwnerID, Name: "default", Preferences: models.Preferences{}, CreatedAt: now, UpdatedAt: now},
		},
		apiKeys: make(map[uuid.UUID]*models.APIKey),
		drafts:  make(map[uuid.UUID]*models.Draft),
		jobs:    make(map[uuid.UUID]*models.Job),
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// AddOwner inserts or replaces an owner.
func (m *MemoryStore) AddOwner(o *models.Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *o
	if c.Preferences == nil {
		c.Preferences = models.Preferences{}
	}
	m.owners[o.ID] = &c
}

// AddPost inserts an imported post.
func (m *MemoryStore) AddPost(p *models.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	c.Topics = slices.Clone(p.Topics)
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.posts = append(m.posts, &c)
}

// Drafts returns the owner's drafts in creation order.
func (m *MemoryStore) Drafts(ownerID uuid.UUID) []*models.Draft {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Draft
	for _, d := range m.drafts {
		if d.OwnerID == ownerID {
			c := *d
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// --- API Keys ---

func (m *MemoryStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []*models.APIKey
	for _, k := range m.apiKeys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			c := *k
			keys = append(keys, &c)
		}
	}
	return keys, nil
}

func (m *MemoryStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.apiKeys[id]; ok {
		now := time.Now().UTC()
		k.LastUsedAt = &now
		k.UpdatedAt = now
	}
	return nil
}

func (m *MemoryStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apiKeys[key.ID]; ok {
		return ErrDuplicateKey
	}
	c := *key
	m.apiKeys[key.ID] = &c
	return nil
}

func (m *MemoryStore) ListAPIKeys(_ context.Context, ownerID uuid.UUID) ([]*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []*models.APIKey
	for _, k := range m.apiKeys {
		if k.OwnerID == ownerID && k.DeletedAt == nil {
			c := *k
			keys = append(keys, &c)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}

func (m *MemoryStore) RevokeAPIKey(_ context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.apiKeys[id]
	if !ok || k.OwnerID != ownerID || k.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	k.DeletedAt = &now
	k.UpdatedAt = now
	return nil
}

// --- Posts ---

func (m *MemoryStore) ListPosts(_ context.Context, filter PostFilter) ([]*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	posts := []*models.Post{}
	for _, p := range m.posts {
		if p.OwnerID == filter.OwnerID {
			c := *p
			c.Topics = slices.Clone(p.Topics)
			posts = append(posts, &c)
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		if filter.OrderBy == PostOrderLikes && posts[i].Likes != posts[j].Likes {
			return posts[i].Likes > posts[j].Likes
		}
		return posts[i].PostedAt.After(posts[j].PostedAt)
	})
	if filter.Limit > 0 && len(posts) > filter.Limit {
		posts = posts[:filter.Limit]
	}
	return posts, nil
}

func (m *MemoryStore) CountPosts(_ context.Context, ownerID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.posts {
		if p.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) AppendPostTopic(_ context.Context, postID uuid.UUID, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.ID == postID {
			if !p.HasTopic(label) {
				p.Topics = append(p.Topics, label)
			}
			return nil
		}
	}
	return ErrNotFound
}

// --- Owners ---

func (m *MemoryStore) GetOwner(_ context.Context, id uuid.UUID) (*models.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *o
	c.Preferences = clonePreferences(o.Preferences)
	return &c, nil
}

func (m *MemoryStore) GetPreferences(_ context.Context, ownerID uuid.UUID) (models.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePreferences(o.Preferences), nil
}

func (m *MemoryStore) MergePreferences(_ context.Context, ownerID uuid.UUID, patch models.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.owners[ownerID]
	if !ok {
		return ErrNotFound
	}
	for k, v := range patch {
		o.Preferences[k] = slices.Clone(v)
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func clonePreferences(p models.Preferences) models.Preferences {
	out := make(models.Preferences, len(p))
	for k, v := range p {
		out[k] = slices.Clone(v)
	}
	return out
}

// --- Credentials ---

func (m *MemoryStore) GetCredential(_ context.Context, ownerID uuid.UUID, provider string) (*models.StoredCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *models.StoredCredential
	for _, c := range m.credentials {
		if c.OwnerID != ownerID || !c.IsActive || (provider != "" && c.Provider != provider) {
			continue
		}
		if found == nil || c.CreatedAt.After(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	c := *found
	return &c, nil
}

func (m *MemoryStore) CreateCredential(_ context.Context, cred *models.StoredCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.credentials {
		if c.ID == cred.ID {
			return ErrDuplicateKey
		}
	}
	c := *cred
	m.credentials = append(m.credentials, &c)
	return nil
}

// --- Strategies ---

func (m *MemoryStore) CreateStrategy(_ context.Context, s *models.Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.strategies {
		if existing.ID == s.ID {
			return ErrDuplicateKey
		}
	}
	c := *s
	c.Themes = slices.Clone(s.Themes)
	m.strategies = append(m.strategies, &c)
	return nil
}

func (m *MemoryStore) GetStrategy(_ context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.strategies {
		if s.ID == id && s.OwnerID == ownerID {
			c := *s
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindCurrentStrategy(_ context.Context, ownerID uuid.UUID) (*models.Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	var found *models.Strategy
	for _, s := range m.strategies {
		if s.OwnerID != ownerID || !s.ExpiresAt.After(now) {
			continue
		}
		if found == nil || s.GeneratedAt.After(found.GeneratedAt) {
			found = s
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	c := *found
	return &c, nil
}

func (m *MemoryStore) ListStrategies(_ context.Context, ownerID uuid.UUID, limit int) ([]*models.Strategy, error) {
	if limit <= 0 {
		limit = DefaultStrategyListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.Strategy{}
	for _, s := range m.strategies {
		if s.OwnerID == ownerID {
			c := *s
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Drafts ---

func (m *MemoryStore) CreateDraft(_ context.Context, d *models.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[d.ID]; ok {
		return ErrDuplicateKey
	}
	c := *d
	m.drafts[d.ID] = &c
	return nil
}

// --- Jobs ---

func (m *MemoryStore) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return ErrDuplicateKey
	}
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok || j.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return cloneJob(j), nil
}

func (m *MemoryStore) LatestCompletedJob(_ context.Context, ownerID uuid.UUID, kind string) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *models.Job
	for _, j := range m.jobs {
		if j.OwnerID != ownerID || j.Kind != kind || j.Status != models.JobStatusCompleted {
			continue
		}
		if found == nil || j.CompletedAt.After(*found.CompletedAt) {
			found = j
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return cloneJob(found), nil
}

func (m *MemoryStore) UpdateJobProgress(_ context.Context, id uuid.UUID, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != models.JobStatusProcessing {
		return fmt.Errorf("%w: progress update on %s job", ErrInvalidTransition, j.Status)
	}
	j.Progress = max(j.Progress, clampProgress(progress))
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if !canTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}

	now := time.Now().UTC()
	j.Status = status
	j.UpdatedAt = now
	if status == models.JobStatusProcessing {
		j.StartedAt = &now
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		j.CompletedAt = &now
	}
	if params.Progress != nil {
		j.Progress = max(j.Progress, clampProgress(*params.Progress))
	}
	if params.Result != nil {
		j.Result = slices.Clone(params.Result)
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		j.ErrorMessage = &msg
	}
	return nil
}

func (m *MemoryStore) FailStaleJobs(_ context.Context, msg string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, j := range m.jobs {
		if j.IsTerminal() {
			continue
		}
		errMsg := msg
		j.Status = models.JobStatusFailed
		j.ErrorMessage = &errMsg
		j.CompletedAt = &now
		j.UpdatedAt = now
		n++
	}
	return n, nil
}

func cloneJob(j *models.Job) *models.Job {
	c := *j
	c.Input = slices.Clone(j.Input)
	c.Result = slices.Clone(j.Result)
	if j.ErrorMessage != nil {
		msg := *j.ErrorMessage
		c.ErrorMessage = &msg
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
