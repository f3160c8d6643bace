package vllm

import (
	"github.com/kiranshivaraju/openscribe/internal/ai/openai"
	"github.com/kiranshivaraju/openscribe/internal/ai/transport"
	"github.com/kiranshivaraju/openscribe/internal/config"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// Provider implements models.AIProvider using vLLM's OpenAI-compatible server. Requests go
// through the OpenAI client; only naming and pricing differ.
type Provider struct {
	*openai.Provider
}

func NewProvider(cfg config.VLLMConfig, cred models.Credential, s transport.Settings) *Provider {
	cred.Provider = models.ProviderVLLM
	if cred.BaseURL == "" {
		cred.BaseURL = cfg.BaseURL
	}
	if cred.Model == "" {
		cred.Model = cfg.Model
	}
	// vLLM serves embeddings from the same model it was launched with.
	inner := openai.NewProvider(config.OpenAIConfig{EmbeddingModel: cred.Model}, cred, s)
	return &Provider{Provider: inner}
}

// EstimateCost is always zero for self-hosted models.
func (p *Provider) EstimateCost(_, _ int) float64 { return 0 }

var _ models.AIProvider = (*Provider)(nil)
