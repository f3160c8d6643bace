package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/openscribe/internal/ai"
	"github.com/kiranshivaraju/openscribe/internal/ai/transport"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// Call records one GenerateCompletion attempt.
type Call struct {
	Prompt  string
	Options models.CompletionOptions
}

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_          string
	Model_         string
	CompletionFunc func(ctx context.Context, prompt string, opts models.CompletionOptions) (models.CompletionResult, error)
	EmbeddingFunc  func(ctx context.Context, text string) (models.EmbeddingResult, error)
	ValidateFunc   func(ctx context.Context) bool
	CostPerToken   float64

	// Retry, when MaxAttempts is set, wraps CompletionFunc the way real providers do.
	Retry transport.RetryPolicy

	mu    sync.Mutex
	calls []Call
}

func (m *MockProvider) Name() string  { return m.Name_ }
func (m *MockProvider) Model() string { return m.Model_ }

func (m *MockProvider) GenerateCompletion(ctx context.Context, prompt string, opts models.CompletionOptions) (models.CompletionResult, error) {
	attempt := func(ctx context.Context) (models.CompletionResult, error) {
		m.mu.Lock()
		m.calls = append(m.calls, Call{Prompt: prompt, Options: opts})
		m.mu.Unlock()
		if m.CompletionFunc != nil {
			return m.CompletionFunc(ctx, prompt, opts)
		}
		return models.CompletionResult{Model: m.Model_}, nil
	}

	if m.Retry.MaxAttempts == 0 {
		return attempt(ctx)
	}
	var result models.CompletionResult
	err := m.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = attempt(ctx)
		return err
	})
	return result, err
}

func (m *MockProvider) GenerateEmbedding(ctx context.Context, text string) (models.EmbeddingResult, error) {
	if m.EmbeddingFunc != nil {
		return m.EmbeddingFunc(ctx, text)
	}
	return models.EmbeddingResult{Embedding: []float64{}, Model: m.Model_}, nil
}

func (m *MockProvider) EstimateCost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens+completionTokens) * m.CostPerToken
}

func (m *MockProvider) ValidateAPIKey(ctx context.Context) bool {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx)
	}
	return true
}

// Calls returns the completion attempts seen so far.
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// NewMockProvider returns a MockProvider that answers every prompt with reply.
func NewMockProvider(reply string) *MockProvider {
	return &MockProvider{
		Name_:  "mock",
		Model_: "mock-v1",
		CompletionFunc: func(_ context.Context, prompt string, _ models.CompletionOptions) (models.CompletionResult, error) {
			return models.CompletionResult{
				Text:             reply,
				PromptTokens:     len(prompt) / 4,
				CompletionTokens: len(reply) / 4,
				TotalTokens:      len(prompt)/4 + len(reply)/4,
				Model:            "mock-v1",
			}, nil
		},
	}
}

// NewScriptedProvider returns replies in order and fails once they are used up.
func NewScriptedProvider(replies ...string) *MockProvider {
	var mu sync.Mutex
	next := 0
	p := NewMockProvider("")
	p.Name_ = "mock-scripted"
	p.CompletionFunc = func(_ context.Context, _ string, _ models.CompletionOptions) (models.CompletionResult, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(replies) {
			return models.CompletionResult{}, fmt.Errorf("scripted provider: no reply %d", next+1)
		}
		reply := replies[next]
		next++
		return models.CompletionResult{Text: reply, Model: "mock-v1"}, nil
	}
	return p
}

// NewFlakyProvider fails the first failures attempts with err, then answers with reply.
func NewFlakyProvider(failures int, err error, reply string) *MockProvider {
	var mu sync.Mutex
	seen := 0
	p := NewMockProvider(reply)
	p.Name_ = "mock-flaky"
	ok := p.CompletionFunc
	p.CompletionFunc = func(ctx context.Context, prompt string, opts models.CompletionOptions) (models.CompletionResult, error) {
		mu.Lock()
		seen++
		fail := seen <= failures
		mu.Unlock()
		if fail {
			return models.CompletionResult{}, err
		}
		return ok(ctx, prompt, opts)
	}
	return p
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_:  "mock-failing",
		Model_: "mock-v1",
		CompletionFunc: func(_ context.Context, _ string, _ models.CompletionOptions) (models.CompletionResult, error) {
			return models.CompletionResult{}, err
		},
		EmbeddingFunc: func(_ context.Context, _ string) (models.EmbeddingResult, error) {
			return models.EmbeddingResult{}, err
		},
		ValidateFunc: func(context.Context) bool { return false },
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_:  "mock-timeout",
		Model_: "mock-v1",
		CompletionFunc: func(ctx context.Context, _ string, _ models.CompletionOptions) (models.CompletionResult, error) {
			<-ctx.Done()
			return models.CompletionResult{}, ai.ErrInferenceTimeout
		},
		EmbeddingFunc: func(ctx context.Context, _ string) (models.EmbeddingResult, error) {
			<-ctx.Done()
			return models.EmbeddingResult{}, ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
