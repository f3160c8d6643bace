package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/openscribe/internal/ai"
	"github.com/kiranshivaraju/openscribe/internal/ai/mock"
	"github.com/kiranshivaraju/openscribe/internal/cache"
	"github.com/kiranshivaraju/openscribe/internal/config"
	"github.com/kiranshivaraju/openscribe/internal/prompt"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// --- Fakes ---

// providerSource hands out providers by the preferred name in the job params. The empty
// name maps to "default".
type providerSource struct {
	providers map[string]models.AIProvider
	err       error
}

func (p providerSource) ProviderFor(_ context.Context, _ uuid.UUID, preferred string) (models.AIProvider, error) {
	if p.err != nil {
		return nil, p.err
	}
	if preferred == "" {
		preferred = "default"
	}
	if provider, ok := p.providers[preferred]; ok {
		return provider, nil
	}
	return nil, ai.ErrNoProvider
}

func only(p models.AIProvider) providerSource {
	return providerSource{providers: map[string]models.AIProvider{"default": p}}
}

type invalidations struct {
	mu     sync.Mutex
	owners []uuid.UUID
}

func (i *invalidations) Invalidate(_ context.Context, ownerID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.owners = append(i.owners, ownerID)
	return nil
}

func (i *invalidations) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.owners)
}

// statusCache drops job status writes for the listed statuses.
type statusCache struct {
	*cache.MemoryCache
	drop map[string]bool
}

func (c *statusCache) SetJobStatus(ctx context.Context, ownerID, jobID uuid.UUID, status string, ttl time.Duration) error {
	if c.drop[status] {
		return errors.New("redis: connection refused")
	}
	return c.MemoryCache.SetJobStatus(ctx, ownerID, jobID, status, ttl)
}

type harness struct {
	svc       *Service
	store     *store.MemoryStore
	pool      *Pool
	analytics *invalidations
	owner     uuid.UUID
}

func newHarness(t *testing.T, providers ProviderSource, timeout time.Duration) *harness {
	t.Helper()
	return newHarnessWithCache(t, providers, timeout, cache.NewMemoryCache())
}

func newHarnessWithCache(t *testing.T, providers ProviderSource, timeout time.Duration, c cache.Cache) *harness {
	t.Helper()
	st := store.NewMemoryStore()
	pool := NewPool(2, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	analytics := &invalidations{}
	cfg := config.JobsConfig{Workers: 2, QueueSize: 8, Timeout: timeout, MinPosts: 3}
	svc := NewService(st, providers, prompt.NewResolver(prompt.Embedded(), nil), c, analytics, pool, cfg)
	return &harness{svc: svc, store: st, pool: pool, analytics: analytics, owner: store.DefaultOwnerID}
}

func (h *harness) addPosts(texts ...string) {
	for i, text := range texts {
		h.store.AddPost(&models.Post{
			OwnerID:  h.owner,
			Text:     text,
			Likes:    (i + 1) * 10,
			Comments: i,
			PostedAt: time.Now().Add(-time.Duration(i) * time.Hour),
		})
	}
}

func (h *harness) start(t *testing.T, kind string, params string) *models.Job {
	t.Helper()
	job, err := h.svc.Start(context.Background(), h.owner, kind, json.RawMessage(params))
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

// wait polls until the job reaches a terminal state.
func (h *harness) wait(t *testing.T, id uuid.UUID) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = h.svc.Get(context.Background(), h.owner, id)
		return err == nil && job.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func decodeResult[T any](t *testing.T, job *models.Job) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(job.Result, &v))
	return v
}

var threePosts = []string{
	"Golang makes concurrency simple. Try it today!",
	"We are hiring two engineers. Apply now!",
	"Why do teams skip code review? Share your view.",
}

// --- Start ---

func TestStart_RequiresMinimumPosts(t *testing.T) {
	h := newHarness(t, only(mock.NewMockProvider("{}")), time.Minute)
	h.addPosts(threePosts[:2]...)

	for _, kind := range []string{models.JobKindAnalyzeStyle, models.JobKindExtractTopics} {
		job, err := h.svc.Start(context.Background(), h.owner, kind, nil)
		assert.ErrorIs(t, err, ErrPrecondition, kind)
		assert.Nil(t, job)
	}
}

func TestStart_InvalidParams(t *testing.T) {
	h := newHarness(t, only(mock.NewMockProvider("{}")), time.Minute)
	h.addPosts(threePosts...)

	tests := []struct {
		name   string
		kind   string
		params string
	}{
		{"unknown kind", "summarize", `{}`},
		{"unknown field", models.JobKindAnalyzeStyle, `{"depth": 3}`},
		{"malformed json", models.JobKindExtractTopics, `{"provider":`},
		{"missing audience", models.JobKindGenerateStrategy, `{"goals": {"primary": "lead_generation"}}`},
		{"bad goal", models.JobKindGenerateStrategy, `{"target_audience": {"description": "CTOs"}, "goals": {"primary": "fame"}}`},
		{"missing topic", models.JobKindGenerateContent, `{"count": 1}`},
		{"too many drafts", models.JobKindGenerateContent, `{"topic": "go", "count": 6}`},
		{"bad post type", models.JobKindGenerateContent, `{"topic": "go", "post_type": "poem"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := h.svc.Start(context.Background(), h.owner, tt.kind, json.RawMessage(tt.params))
			assert.ErrorIs(t, err, ErrInvalidParams)
			assert.Nil(t, job)
		})
	}
}

func TestStart_ReturnsPendingJobImmediately(t *testing.T) {
	release := make(chan struct{})
	provider := mock.NewMockProvider(`{"postText": "hello"}`)
	reply := provider.CompletionFunc
	provider.CompletionFunc = func(ctx context.Context, p string, o models.CompletionOptions) (models.CompletionResult, error) {
		<-release
		return reply(ctx, p, o)
	}
	h := newHarness(t, only(provider), time.Minute)

	job := h.start(t, models.JobKindGenerateContent, `{"topic": "go"}`)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)

	close(release)
	done := h.wait(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
}

func TestStart_PoolShuttingDown(t *testing.T) {
	h := newHarness(t, only(mock.NewMockProvider("{}")), time.Minute)
	require.NoError(t, h.svc.pool.Shutdown(context.Background()))

	job, err := h.svc.Start(context.Background(), h.owner, models.JobKindGenerateContent, json.RawMessage(`{"topic": "go"}`))
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.Nil(t, job)
}

// --- Style analysis ---

func TestAnalyzeStyle_EnrichedProfile(t *testing.T) {
	provider := mock.NewMockProvider(`Here you go:
{"toneDistribution": {"casual": 70, "professional": 30},
 "hookPatterns": ["bold claim"], "ctaPatterns": ["question"],
 "summary": "Short and direct.", "voiceCharacteristics": ["direct"], "uniquePhrases": ["try it"]}`)
	h := newHarness(t, only(provider), time.Minute)
	h.addPosts(threePosts...)

	job := h.wait(t, h.start(t, models.JobKindAnalyzeStyle, `{}`).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)

	profile := decodeResult[models.StyleProfile](t, job)
	assert.True(t, profile.Enriched)
	assert.Equal(t, 3, profile.PostsAnalyzed)
	assert.Equal(t, map[string]float64{"casual": 70, "professional": 30}, profile.ToneDistribution)
	assert.Equal(t, []string{"bold claim"}, profile.StructuralPatterns.HookPatterns)
	assert.Equal(t, "Short and direct.", profile.Summary)
	assert.Greater(t, profile.AvgSentenceLength, 0.0)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, styleSystemPrompt, calls[0].Options.SystemPrompt)
	assert.Equal(t, 0.3, *calls[0].Options.Temperature)
	assert.Contains(t, calls[0].Prompt, "Post 1 [Likes: 10]:\n"+threePosts[0])

	prefs, err := h.store.GetPreferences(context.Background(), h.owner)
	require.NoError(t, err)
	var stored models.StyleProfile
	require.NoError(t, json.Unmarshal(prefs[models.PreferenceWritingStyle], &stored))
	assert.Equal(t, profile.Summary, stored.Summary)
}

func TestAnalyzeStyle_FallsBackWithoutProvider(t *testing.T) {
	h := newHarness(t, providerSource{err: ai.ErrNoProvider}, time.Minute)
	h.addPosts("one two three four", "five six seven eight", "nine ten eleven twelve")

	job := h.wait(t, h.start(t, models.JobKindAnalyzeStyle, ``).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)

	profile := decodeResult[models.StyleProfile](t, job)
	assert.False(t, profile.Enriched)
	assert.Equal(t, defaultToneDistribution(), profile.ToneDistribution)
	assert.Equal(t, "Analyzed 3 posts with an average length of 4 words.", profile.Summary)
}

func TestAnalyzeStyle_FallsBackOnProviderError(t *testing.T) {
	h := newHarness(t, only(mock.NewFailingProvider(errors.New("upstream down"))), time.Minute)
	h.addPosts(threePosts...)

	job := h.wait(t, h.start(t, models.JobKindAnalyzeStyle, `{}`).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status)
	assert.False(t, decodeResult[models.StyleProfile](t, job).Enriched)
}

// --- Topic extraction ---

const topicsReply = `{
  "topics": [
    {"label": "Go", "keywords": ["golang", "concurrency"], "postCount": 1, "avgEngagement": 12},
    {"label": "Hiring", "keywords": ["hiring"], "postCount": 1, "avgEngagement": 20}
  ],
  "contentGaps": ["career growth"],
  "recommendedMix": {"primary": ["go"], "secondary": ["hiring"], "experimental": []}
}`

func TestExtractTopics_LabelsPostsIdempotently(t *testing.T) {
	provider := mock.NewMockProvider(topicsReply)
	h := newHarness(t, only(provider), time.Minute)
	h.addPosts(threePosts...)

	for run := 1; run <= 2; run++ {
		job := h.wait(t, h.start(t, models.JobKindExtractTopics, `{}`).ID)
		require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)

		result := decodeResult[models.TopicAnalysis](t, job)
		require.Len(t, result.Topics, 2)
		assert.Equal(t, "hiring", result.Topics[0].Label)
		assert.Equal(t, []string{"career growth"}, result.ContentGaps)
		assert.Equal(t, 2, result.PostsLabelled)
		assert.Equal(t, run, h.analytics.count())
	}

	posts, err := h.store.ListPosts(context.Background(), store.PostFilter{OwnerID: h.owner})
	require.NoError(t, err)
	labels := map[string][]string{}
	for _, p := range posts {
		labels[p.Text] = p.Topics
	}
	assert.Equal(t, []string{"go"}, labels[threePosts[0]])
	assert.Equal(t, []string{"hiring"}, labels[threePosts[1]])
	assert.Empty(t, labels[threePosts[2]])

	calls := provider.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, topicSystemPrompt, calls[0].Options.SystemPrompt)
}

func TestExtractTopics_BatchesOfTwenty(t *testing.T) {
	provider := mock.NewMockProvider(topicsReply)
	h := newHarness(t, only(provider), time.Minute)
	texts := make([]string, 45)
	for i := range texts {
		texts[i] = fmt.Sprintf("post number %d about golang", i)
	}
	h.addPosts(texts...)

	job := h.wait(t, h.start(t, models.JobKindExtractTopics, `{}`).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)
	assert.Len(t, provider.Calls(), 3)

	result := decodeResult[models.TopicAnalysis](t, job)
	assert.Equal(t, 3, result.Topics[1].PostCount)
}

func TestExtractTopics_SkipsUnparsableBatch(t *testing.T) {
	h := newHarness(t, only(mock.NewMockProvider("I could not find any topics.")), time.Minute)
	h.addPosts(threePosts...)

	job := h.wait(t, h.start(t, models.JobKindExtractTopics, `{}`).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Empty(t, decodeResult[models.TopicAnalysis](t, job).Topics)
}

func TestExtractTopics_FailsWithoutProvider(t *testing.T) {
	h := newHarness(t, providerSource{err: ai.ErrNoProvider}, time.Minute)
	h.addPosts(threePosts...)

	job := h.wait(t, h.start(t, models.JobKindExtractTopics, `{}`).ID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "no active AI provider")
	assert.Equal(t, 30, job.Progress)

	status, err := h.svc.Status(context.Background(), h.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, status)
}

// --- Strategy generation ---

const strategyParams = `{
  "strategy_type": "monthly",
  "posting_frequency": 4,
  "target_audience": {"description": "Engineering managers", "industries": ["software"]},
  "goals": {"primary": "thought_leadership", "secondary": ["hiring"]}
}`

func TestGenerateStrategy_PersistsCurrentStrategy(t *testing.T) {
	provider := mock.NewMockProvider(`{"themes": [{"topic": "Remote hiring", "frequency": 2}],
		"schedule": [{"day": "Monday", "theme": "Remote hiring"}], "kpis": ["comments"], "summary": "Hire well."}`)
	h := newHarness(t, only(provider), time.Minute)

	job := h.wait(t, h.start(t, models.JobKindGenerateStrategy, strategyParams).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)

	result := decodeResult[models.StrategyResult](t, job)
	require.NotNil(t, result.Strategy)
	assert.Equal(t, result.StrategyID, result.Strategy.ID)
	assert.JSONEq(t, `[{"topic": "Remote hiring", "frequency": 2}]`, string(result.Strategy.Themes))
	assert.Equal(t, []string{"comments"}, result.Strategy.Goals.KPIs)
	assert.Contains(t, string(result.Plan), "Hire well.")

	current, err := h.store.FindCurrentStrategy(context.Background(), h.owner)
	require.NoError(t, err)
	assert.Equal(t, result.StrategyID, current.ID)
	assert.Equal(t, models.StrategyMonthly, current.Type)
	assert.Equal(t, 4, current.PostingFrequency)
	assert.True(t, current.ExpiresAt.Equal(current.GeneratedAt.AddDate(0, 1, 0)))

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 3000, calls[0].Options.MaxTokens)
	assert.Contains(t, calls[0].Prompt, "Audience industries: software")
	assert.NotContains(t, calls[0].Prompt, "Audience roles")
	assert.Contains(t, calls[0].Prompt, "Posts per week: 4")
}

func TestGenerateStrategy_UsesStyleAndTopicHistory(t *testing.T) {
	provider := mock.NewScriptedProvider(topicsReply, `{"themes": []}`)
	h := newHarness(t, only(provider), time.Minute)
	h.addPosts(threePosts...)
	require.NoError(t, h.store.MergePreferences(context.Background(), h.owner,
		models.Preferences{models.PreferenceWritingStyle: json.RawMessage(`{"summary":"Punchy."}`)}))

	topics := h.wait(t, h.start(t, models.JobKindExtractTopics, `{}`).ID)
	require.Equal(t, models.JobStatusCompleted, topics.Status)
	job := h.wait(t, h.start(t, models.JobKindGenerateStrategy, strategyParams).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)

	calls := provider.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Prompt, `{"summary":"Punchy."}`)
	assert.Contains(t, calls[1].Prompt, `"career growth"`)
}

func TestGenerateStrategy_KeepsRawReply(t *testing.T) {
	h := newHarness(t, only(mock.NewMockProvider("Focus on hiring stories.")), time.Minute)

	job := h.wait(t, h.start(t, models.JobKindGenerateStrategy, strategyParams).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)

	result := decodeResult[models.StrategyResult](t, job)
	assert.Equal(t, "Focus on hiring stories.", result.RawReply)
	assert.JSONEq(t, `[]`, string(result.Strategy.Themes))
}

// --- Content generation ---

func TestGenerateContent_CreatesDrafts(t *testing.T) {
	provider := mock.NewScriptedProvider(
		`{"postText": "Hiring is hard.", "topic": "hiring", "hook": "Hiring is hard.", "cta": "Thoughts?"}`,
		"Plain text draft without JSON.",
		`{"postText": "Third.", "topic": "hiring"}`,
	)
	h := newHarness(t, only(provider), time.Minute)
	h.addPosts(threePosts...)

	job := h.wait(t, h.start(t, models.JobKindGenerateContent, `{"topic": "remote hiring", "count": 3}`).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)
	assert.Equal(t, 100, job.Progress)

	result := decodeResult[models.ContentResult](t, job)
	assert.Equal(t, 3, result.PostsGenerated)
	require.Len(t, result.DraftIDs, 3)

	drafts := map[uuid.UUID]*models.Draft{}
	for _, d := range h.store.Drafts(h.owner) {
		drafts[d.ID] = d
	}
	require.Len(t, drafts, 3)
	first := drafts[result.DraftIDs[0]]
	assert.Equal(t, "Hiring is hard.", first.Text)
	assert.Equal(t, "Thoughts?", first.CTA)
	assert.Equal(t, models.DraftStatusDraft, first.Status)
	assert.Equal(t, "mock-scripted", first.Metadata.Provider)
	assert.Equal(t, 0.8, first.Metadata.Temperature)

	raw := drafts[result.DraftIDs[1]]
	assert.Equal(t, "Plain text draft without JSON.", raw.Text)
	assert.Equal(t, "remote hiring", raw.Topic)

	calls := provider.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "You are default, writing LinkedIn posts. Match the writing style exactly. Respond with valid JSON only.",
		calls[0].Options.SystemPrompt)
	assert.Contains(t, calls[0].Prompt, "Example 1 [30 likes]:")
	assert.Contains(t, calls[0].Prompt, noStrategyGuidance)
}

func TestGenerateContent_StrategyGuidance(t *testing.T) {
	provider := mock.NewMockProvider(`{"postText": "ok"}`)
	h := newHarness(t, only(provider), time.Minute)

	withTheme := &models.Strategy{
		ID:               uuid.New(),
		OwnerID:          h.owner,
		Type:             models.StrategyWeekly,
		Themes:           json.RawMessage(`[{"topic":"Remote Hiring tips","frequency":2}]`),
		PostingFrequency: 3,
		GeneratedAt:      time.Now(),
		ExpiresAt:        time.Now().Add(time.Hour),
	}
	require.NoError(t, h.store.CreateStrategy(context.Background(), withTheme))

	params := fmt.Sprintf(`{"topic": "hiring", "strategy_id": %q}`, withTheme.ID)
	job := h.wait(t, h.start(t, models.JobKindGenerateContent, params).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)

	params = fmt.Sprintf(`{"topic": "databases", "strategy_id": %q}`, withTheme.ID)
	job = h.wait(t, h.start(t, models.JobKindGenerateContent, params).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)

	calls := provider.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Prompt, `{"topic":"Remote Hiring tips","frequency":2}`)
	assert.Contains(t, calls[1].Prompt, "Part of weekly strategy. Posting frequency: 3x/week.")
	assert.Contains(t, calls[1].Prompt, noExamplePosts)

	drafts := h.store.Drafts(h.owner)
	require.Len(t, drafts, 2)
	assert.Equal(t, withTheme.ID, *drafts[0].StrategyID)
}

// --- Failure isolation ---

func TestRun_PanicFailsOnlyThatJob(t *testing.T) {
	panicking := mock.NewMockProvider("")
	panicking.CompletionFunc = func(context.Context, string, models.CompletionOptions) (models.CompletionResult, error) {
		panic("provider exploded")
	}
	h := newHarness(t, providerSource{providers: map[string]models.AIProvider{
		"boom": panicking,
		"ok":   mock.NewMockProvider(`{"postText": "fine"}`),
	}}, time.Minute)

	bad := h.start(t, models.JobKindGenerateContent, `{"topic": "go", "provider": "boom"}`)
	good := h.start(t, models.JobKindGenerateContent, `{"topic": "go", "provider": "ok"}`)

	failed := h.wait(t, bad.ID)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "provider exploded")

	assert.Equal(t, models.JobStatusCompleted, h.wait(t, good.ID).Status)
}

func TestRun_TimeoutFailsJob(t *testing.T) {
	h := newHarness(t, only(mock.NewTimeoutProvider()), 50*time.Millisecond)

	job := h.wait(t, h.start(t, models.JobKindGenerateContent, `{"topic": "go"}`).ID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "time limit")
}

func TestRun_ShutdownTimeoutFailsUnfinishedJobs(t *testing.T) {
	blocking := mock.NewMockProvider("")
	blocking.CompletionFunc = func(ctx context.Context, _ string, _ models.CompletionOptions) (models.CompletionResult, error) {
		<-ctx.Done()
		return models.CompletionResult{}, ctx.Err()
	}
	h := newHarness(t, only(blocking), time.Minute)

	var ids []uuid.UUID
	for range 4 {
		ids = append(ids, h.start(t, models.JobKindGenerateContent, `{"topic": "go"}`).ID)
	}
	require.Eventually(t, func() bool { return len(blocking.Calls()) == 2 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, h.pool.Shutdown(ctx), context.DeadlineExceeded)

	for _, id := range ids {
		job, err := h.store.GetJob(context.Background(), id, h.owner)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
		assert.Contains(t, *job.ErrorMessage, "interrupted")
	}
}

func TestRun_ProviderErrorKeepsEarlierProgress(t *testing.T) {
	h := newHarness(t, only(mock.NewFailingProvider(ai.ErrAuthentication)), time.Minute)

	job := h.wait(t, h.start(t, models.JobKindGenerateContent, `{"topic": "go", "count": 2}`).ID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, 30, job.Progress)
	assert.Empty(t, job.Result)
}

// --- Reads ---

func TestGetAndStatus_AreOwnerScoped(t *testing.T) {
	h := newHarness(t, only(mock.NewMockProvider(`{"postText": "hi"}`)), time.Minute)
	job := h.wait(t, h.start(t, models.JobKindGenerateContent, `{"topic": "go"}`).ID)

	status, err := h.svc.Status(context.Background(), h.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, status)

	other := uuid.New()
	_, err = h.svc.Get(context.Background(), other, job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = h.svc.Status(context.Background(), other, job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatus_FailedMirrorWriteFallsBackToStore(t *testing.T) {
	c := &statusCache{MemoryCache: cache.NewMemoryCache(), drop: map[string]bool{models.JobStatusCompleted: true}}
	h := newHarnessWithCache(t, only(mock.NewMockProvider(`{"postText": "hi"}`)), time.Minute, c)

	job := h.wait(t, h.start(t, models.JobKindGenerateContent, `{"topic": "go"}`).ID)
	require.Equal(t, models.JobStatusCompleted, job.Status, job.ErrorMessage)

	status, err := h.svc.Status(context.Background(), h.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, status)

	assert.Eventually(t, func() bool {
		_, ok, err := c.GetJobStatus(context.Background(), h.owner, job.ID)
		return err == nil && !ok
	}, 5*time.Second, 5*time.Millisecond, "stale processing status should be evicted")
}

func TestStatus_IgnoresCachedNonTerminalStatus(t *testing.T) {
	c := cache.NewMemoryCache()
	h := newHarnessWithCache(t, only(mock.NewMockProvider(`{"postText": "hi"}`)), time.Minute, c)

	job := h.wait(t, h.start(t, models.JobKindGenerateContent, `{"topic": "go"}`).ID)
	require.NoError(t, c.SetJobStatus(context.Background(), h.owner, job.ID, models.JobStatusProcessing, cache.JobStatusTTL))

	status, err := h.svc.Status(context.Background(), h.owner, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, status)
}
