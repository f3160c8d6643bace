package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/openscribe/internal/ai/transport"
	"github.com/kiranshivaraju/openscribe/internal/config"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const defaultPricingModel = "claude-sonnet-4-20250514"

type price struct {
	input  float64
	output float64
}

var pricing = map[string]price{
	"claude-opus-4-20250514":     {input: 15 / 1_000_000, output: 75 / 1_000_000},
	"claude-sonnet-4-20250514":   {input: 3 / 1_000_000, output: 15 / 1_000_000},
	"claude-3-5-sonnet-20241022": {input: 3 / 1_000_000, output: 15 / 1_000_000},
	"claude-3-5-haiku-20241022":  {input: 0.8 / 1_000_000, output: 4 / 1_000_000},
}

// Provider implements models.AIProvider using the Anthropic Messages API.
type Provider struct {
	model  string
	client *transport.Client
	retry  transport.RetryPolicy
}

func NewProvider(cfg config.AnthropicConfig, cred models.Credential, s transport.Settings) *Provider {
	baseURL := cfg.BaseURL
	if cred.BaseURL != "" {
		baseURL = cred.BaseURL
	}
	model := cfg.Model
	if cred.Model != "" {
		model = cred.Model
	}

	client := transport.NewClient(models.ProviderAnthropic, baseURL, s.Timeout)
	client.Headers["x-api-key"] = cred.Secret
	client.Headers["anthropic-version"] = cfg.APIVersion

	return &Provider{model: model, client: client, retry: s.Retry}
}

func (p *Provider) Name() string  { return models.ProviderAnthropic }
func (p *Provider) Model() string { return p.model }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model         string    `json:"model"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   *float64  `json:"temperature,omitempty"`
	TopP          *float64  `json:"top_p,omitempty"`
	System        string    `json:"system,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Messages      []message `json:"messages"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *Provider) GenerateCompletion(ctx context.Context, prompt string, opts models.CompletionOptions) (models.CompletionResult, error) {
	opts = opts.WithDefaults()
	req := messagesRequest{
		Model:         p.model,
		MaxTokens:     opts.MaxTokens,
		Temperature:   opts.Temperature,
		TopP:          opts.TopP,
		System:        opts.SystemPrompt,
		StopSequences: opts.StopSequences,
		Messages:      []message{{Role: "user", Content: prompt}},
	}

	var result models.CompletionResult
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		var resp messagesResponse
		if err := p.client.PostJSON(ctx, "/messages", req, &resp); err != nil {
			return err
		}
		if len(resp.Content) == 0 {
			return fmt.Errorf("anthropic completion: %w: empty content", transport.ErrInvalidResponse)
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		model := resp.Model
		if model == "" {
			model = p.model
		}
		result = models.CompletionResult{
			Text:             text.String(),
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			Model:            model,
		}
		return nil
	})
	if err != nil {
		return models.CompletionResult{}, err
	}
	return result, nil
}

// GenerateEmbedding always fails: the Messages API has no embedding endpoint.
func (p *Provider) GenerateEmbedding(_ context.Context, _ string) (models.EmbeddingResult, error) {
	return models.EmbeddingResult{}, fmt.Errorf(
		"anthropic: %w; add an OpenAI or Ollama credential for embedding generation",
		transport.ErrEmbeddingUnsupported)
}

func (p *Provider) EstimateCost(promptTokens, completionTokens int) float64 {
	rate, ok := pricing[p.model]
	if !ok {
		rate = pricing[defaultPricingModel]
	}
	return float64(promptTokens)*rate.input + float64(completionTokens)*rate.output
}

// ValidateAPIKey sends a one-token message.
func (p *Provider) ValidateAPIKey(ctx context.Context) bool {
	req := messagesRequest{
		Model:     p.model,
		MaxTokens: 1,
		Messages:  []message{{Role: "user", Content: "Hi"}},
	}
	return p.client.PostJSON(ctx, "/messages", req, nil) == nil
}

var _ models.AIProvider = (*Provider)(nil)
