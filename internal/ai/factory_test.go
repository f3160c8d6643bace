package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/openscribe/internal/ai"
	"github.com/kiranshivaraju/openscribe/internal/config"
	"github.com/kiranshivaraju/openscribe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCredentials serves credentials keyed by provider kind.
type fakeCredentials struct {
	byProvider map[string]*models.Credential
	order      []string
	err        error
	requested  []string
}

func (f *fakeCredentials) ActiveCredential(_ context.Context, _ uuid.UUID, provider string) (*models.Credential, error) {
	f.requested = append(f.requested, provider)
	if f.err != nil {
		return nil, f.err
	}
	if provider == "" {
		for _, kind := range f.order {
			if c, ok := f.byProvider[kind]; ok {
				return c, nil
			}
		}
		return nil, nil
	}
	return f.byProvider[provider], nil
}

func newCreds(creds ...models.Credential) *fakeCredentials {
	f := &fakeCredentials{byProvider: map[string]*models.Credential{}}
	for i := range creds {
		c := creds[i]
		f.byProvider[c.Provider] = &c
		f.order = append(f.order, c.Provider)
	}
	return f
}

func testAIConfig() config.AIConfig {
	return config.Defaults().AI
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		kind string
		name string
	}{
		{models.ProviderOpenAI, "openai"},
		{models.ProviderAnthropic, "anthropic"},
		{models.ProviderOllama, "ollama"},
		{models.ProviderVLLM, "vllm"},
		{models.ProviderGroq, "groq"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			p, err := ai.NewProvider(testAIConfig(), models.Credential{Provider: tt.kind, Secret: "sk-test"})
			require.NoError(t, err)
			assert.Equal(t, tt.name, p.Name())
		})
	}
}

func TestNewProvider_UsesCredentialModel(t *testing.T) {
	p, err := ai.NewProvider(testAIConfig(), models.Credential{Provider: models.ProviderOpenAI, Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", p.Model())

	p, err = ai.NewProvider(testAIConfig(), models.Credential{Provider: models.ProviderAnthropic})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", p.Model())
}

func TestNewProvider_CustomRequiresBaseURL(t *testing.T) {
	_, err := ai.NewProvider(testAIConfig(), models.Credential{Provider: models.ProviderCustom})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")

	p, err := ai.NewProvider(testAIConfig(), models.Credential{Provider: models.ProviderCustom, BaseURL: "https://llm.internal/v1"})
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name())
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := ai.NewProvider(testAIConfig(), models.Credential{Provider: "unknown-provider"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrUnknownProvider)
	assert.Contains(t, err.Error(), "unknown-provider")
}

func TestNewProvider_Empty(t *testing.T) {
	_, err := ai.NewProvider(testAIConfig(), models.Credential{})
	require.Error(t, err)
}

func TestValidProvider(t *testing.T) {
	assert.True(t, ai.ValidProvider("groq"))
	assert.False(t, ai.ValidProvider("cohere"))
	assert.False(t, ai.ValidProvider(""))
}

func TestFactory_ProviderFor(t *testing.T) {
	creds := newCreds(
		models.Credential{Provider: models.ProviderAnthropic, Secret: "sk-ant"},
		models.Credential{Provider: models.ProviderOpenAI, Secret: "sk-oai"},
	)
	f := ai.NewFactory(testAIConfig(), creds)
	owner := uuid.New()

	p, err := f.ProviderFor(context.Background(), owner, "")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	p, err = f.ProviderFor(context.Background(), owner, models.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestFactory_ProviderFor_NoCredential(t *testing.T) {
	f := ai.NewFactory(testAIConfig(), newCreds())

	_, err := f.ProviderFor(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, ai.ErrNoProvider)

	_, err = f.ProviderFor(context.Background(), uuid.New(), "ollama")
	assert.ErrorIs(t, err, ai.ErrNoProvider)
	assert.Contains(t, err.Error(), "ollama")
}

func TestFactory_ProviderFor_StoreError(t *testing.T) {
	storeErr := errors.New("connection reset")
	f := ai.NewFactory(testAIConfig(), &fakeCredentials{err: storeErr})

	_, err := f.ProviderFor(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ai.ErrNoProvider)
}

func TestFactory_EmbeddingProviderFor(t *testing.T) {
	tests := []struct {
		name      string
		creds     []models.Credential
		expected  string
		expectErr error
	}{
		{
			name: "prefers openai",
			creds: []models.Credential{
				{Provider: models.ProviderOllama},
				{Provider: models.ProviderOpenAI, Secret: "sk"},
			},
			expected: "openai",
		},
		{
			name:     "falls back to ollama",
			creds:    []models.Credential{{Provider: models.ProviderAnthropic}, {Provider: models.ProviderOllama}},
			expected: "ollama",
		},
		{
			name:      "anthropic only",
			creds:     []models.Credential{{Provider: models.ProviderAnthropic}},
			expectErr: ai.ErrNoEmbeddingProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ai.NewFactory(testAIConfig(), newCreds(tt.creds...))
			p, err := f.EmbeddingProviderFor(context.Background(), uuid.New())
			if tt.expectErr != nil {
				require.ErrorIs(t, err, tt.expectErr)
				assert.Contains(t, err.Error(), "OpenAI or Ollama")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Name())
		})
	}
}

func TestFactory_LocalProvidersUseLocalRetryBudget(t *testing.T) {
	cfg := testAIConfig()
	cfg.RequestTimeout = 100 * time.Millisecond
	// Unreachable server: every attempt fails fast with connection refused.
	cfg.Ollama.BaseURL = "http://127.0.0.1:1"
	cfg.LocalMaxRetries = 1

	p, err := ai.NewProvider(cfg, models.Credential{Provider: models.ProviderOllama})
	require.NoError(t, err)

	_, err = p.GenerateCompletion(context.Background(), "hi", models.CompletionOptions{})
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
}
