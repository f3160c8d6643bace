package ai

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/openscribe/internal/ai/anthropic"
	"github.com/kiranshivaraju/openscribe/internal/ai/ollama"
	"github.com/kiranshivaraju/openscribe/internal/ai/openai"
	"github.com/kiranshivaraju/openscribe/internal/ai/transport"
	"github.com/kiranshivaraju/openscribe/internal/ai/vllm"
	"github.com/kiranshivaraju/openscribe/internal/config"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// CredentialSource returns an owner's decrypted AI credential. An empty provider selects
// the owner's first active credential. A missing credential is reported as (nil, nil).
type CredentialSource interface {
	ActiveCredential(ctx context.Context, ownerID uuid.UUID, provider string) (*models.Credential, error)
}

// Factory builds per-owner providers from stored credentials.
type Factory struct {
	cfg   config.AIConfig
	creds CredentialSource
}

func NewFactory(cfg config.AIConfig, creds CredentialSource) *Factory {
	return &Factory{cfg: cfg, creds: creds}
}

// ProviderFor returns a provider for the owner's preferred credential, or their first active
// one when preferred is empty. ErrNoProvider means nothing usable is configured.
func (f *Factory) ProviderFor(ctx context.Context, ownerID uuid.UUID, preferred string) (models.AIProvider, error) {
	cred, err := f.creds.ActiveCredential(ctx, ownerID, preferred)
	if err != nil {
		return nil, fmt.Errorf("loading AI credential: %w", err)
	}
	if cred == nil {
		if preferred != "" {
			return nil, fmt.Errorf("%w: no active key for provider %s", ErrNoProvider, preferred)
		}
		return nil, ErrNoProvider
	}
	return NewProvider(f.cfg, *cred)
}

// EmbeddingProviderFor prefers OpenAI, falls back to Ollama and otherwise returns
// ErrNoEmbeddingProvider.
func (f *Factory) EmbeddingProviderFor(ctx context.Context, ownerID uuid.UUID) (models.AIProvider, error) {
	for _, kind := range []string{models.ProviderOpenAI, models.ProviderOllama} {
		cred, err := f.creds.ActiveCredential(ctx, ownerID, kind)
		if err != nil {
			return nil, fmt.Errorf("loading %s credential: %w", kind, err)
		}
		if cred != nil {
			return NewProvider(f.cfg, *cred)
		}
	}
	return nil, ErrNoEmbeddingProvider
}

// NewProvider constructs the provider variant for cred.Provider.
func NewProvider(cfg config.AIConfig, cred models.Credential) (models.AIProvider, error) {
	hosted := transport.Settings{
		Timeout: cfg.RequestTimeout,
		Retry:   transport.NewRetryPolicy(cfg.MaxRetries),
	}
	local := transport.Settings{
		Timeout: cfg.RequestTimeout,
		Retry:   transport.NewRetryPolicy(cfg.LocalMaxRetries),
	}

	switch cred.Provider {
	case models.ProviderOpenAI:
		return openai.NewProvider(cfg.OpenAI, cred, hosted), nil
	case models.ProviderGroq:
		if cred.BaseURL == "" {
			cred.BaseURL = groqBaseURL
		}
		return openai.NewProvider(cfg.OpenAI, cred, hosted), nil
	case models.ProviderCustom:
		if cred.BaseURL == "" {
			return nil, fmt.Errorf("custom AI provider requires a base URL")
		}
		return openai.NewProvider(cfg.OpenAI, cred, hosted), nil
	case models.ProviderAnthropic:
		return anthropic.NewProvider(cfg.Anthropic, cred, hosted), nil
	case models.ProviderOllama:
		return ollama.NewProvider(cfg.Ollama, cred, local), nil
	case models.ProviderVLLM:
		return vllm.NewProvider(cfg.VLLM, cred, local), nil
	default:
		return nil, fmt.Errorf("%w %q: must be one of openai, anthropic, ollama, vllm, groq, custom", ErrUnknownProvider, cred.Provider)
	}
}

// ValidProvider reports whether kind names a supported provider.
func ValidProvider(kind string) bool {
	switch kind {
	case models.ProviderOpenAI, models.ProviderAnthropic, models.ProviderOllama,
		models.ProviderVLLM, models.ProviderGroq, models.ProviderCustom:
		return true
	}
	return false
}
