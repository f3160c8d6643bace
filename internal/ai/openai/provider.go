package openai

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/openscribe/internal/ai/transport"
	"github.com/kiranshivaraju/openscribe/internal/config"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// defaultPricingModel is used for models missing from the price table.
const defaultPricingModel = "gpt-4o"

type price struct {
	input  float64 // USD per prompt token
	output float64 // USD per completion token
}

var pricing = map[string]price{
	"gpt-4o":        {input: 2.5 / 1_000_000, output: 10 / 1_000_000},
	"gpt-4o-mini":   {input: 0.15 / 1_000_000, output: 0.6 / 1_000_000},
	"gpt-4-turbo":   {input: 10 / 1_000_000, output: 30 / 1_000_000},
	"gpt-3.5-turbo": {input: 0.5 / 1_000_000, output: 1.5 / 1_000_000},
}

// Provider implements models.AIProvider against the OpenAI REST API and any server that
// speaks the same chat-completions protocol (Groq, custom gateways, vLLM).
type Provider struct {
	name           string
	model          string
	embeddingModel string
	client         *transport.Client
	retry          transport.RetryPolicy
}

// NewProvider builds a client for cred. The credential's model and base URL take precedence
// over the configured defaults.
func NewProvider(cfg config.OpenAIConfig, cred models.Credential, s transport.Settings) *Provider {
	name := cred.Provider
	if name == "" {
		name = models.ProviderOpenAI
	}
	baseURL := cfg.BaseURL
	if cred.BaseURL != "" {
		baseURL = cred.BaseURL
	}
	model := cfg.Model
	if cred.Model != "" {
		model = cred.Model
	}

	client := transport.NewClient(name, baseURL, s.Timeout)
	if cred.Secret != "" {
		client.Headers["Authorization"] = "Bearer " + cred.Secret
	}

	return &Provider{
		name:           name,
		model:          model,
		embeddingModel: cfg.EmbeddingModel,
		client:         client,
		retry:          s.Retry,
	}
}

func (p *Provider) Name() string  { return p.name }
func (p *Provider) Model() string { return p.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *Provider) GenerateCompletion(ctx context.Context, prompt string, opts models.CompletionOptions) (models.CompletionResult, error) {
	opts = opts.WithDefaults()

	req := chatRequest{
		Model:       p.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stop:        opts.StopSequences,
	}
	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	var result models.CompletionResult
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		var resp chatResponse
		if err := p.client.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s completion: %w: no choices", p.name, transport.ErrInvalidResponse)
		}
		model := resp.Model
		if model == "" {
			model = p.model
		}
		result = models.CompletionResult{
			Text:             resp.Choices[0].Message.Content,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
			Model:            model,
		}
		return nil
	})
	if err != nil {
		return models.CompletionResult{}, err
	}
	return result, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbeddingModel returns the model used by GenerateEmbedding.
func (p *Provider) EmbeddingModel() string { return p.embeddingModel }

func (p *Provider) GenerateEmbedding(ctx context.Context, text string) (models.EmbeddingResult, error) {
	req := embeddingRequest{Model: p.embeddingModel, Input: text}

	var result models.EmbeddingResult
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		var resp embeddingResponse
		if err := p.client.PostJSON(ctx, "/embeddings", req, &resp); err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("%s embedding: %w: no data", p.name, transport.ErrInvalidResponse)
		}
		result = models.EmbeddingResult{
			Embedding:  resp.Data[0].Embedding,
			Model:      resp.Model,
			TokenCount: resp.Usage.TotalTokens,
		}
		return nil
	})
	if err != nil {
		return models.EmbeddingResult{}, err
	}
	return result, nil
}

// EstimateCost prices the call with the model's rates, or gpt-4o rates for unlisted models.
func (p *Provider) EstimateCost(promptTokens, completionTokens int) float64 {
	rate, ok := pricing[p.model]
	if !ok {
		rate = pricing[defaultPricingModel]
	}
	return float64(promptTokens)*rate.input + float64(completionTokens)*rate.output
}

// ValidateAPIKey lists models, the cheapest authenticated call the API offers.
func (p *Provider) ValidateAPIKey(ctx context.Context) bool {
	return p.client.Get(ctx, "/models", nil) == nil
}

var _ models.AIProvider = (*Provider)(nil)
