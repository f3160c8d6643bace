package ollama

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/openscribe/internal/ai/transport"
	"github.com/kiranshivaraju/openscribe/internal/config"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// Provider implements models.AIProvider using a local Ollama server. Ollama needs no key;
// the credential only selects the model and, optionally, the server URL.
type Provider struct {
	model  string
	client *transport.Client
	retry  transport.RetryPolicy
}

func NewProvider(cfg config.OllamaConfig, cred models.Credential, s transport.Settings) *Provider {
	baseURL := cfg.BaseURL
	if cred.BaseURL != "" {
		baseURL = cred.BaseURL
	}
	model := cfg.Model
	if cred.Model != "" {
		model = cred.Model
	}
	return &Provider{
		model:  model,
		client: transport.NewClient(models.ProviderOllama, baseURL, s.Timeout),
		retry:  s.Retry,
	}
}

func (p *Provider) Name() string  { return models.ProviderOllama }
func (p *Provider) Model() string { return p.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict"`
	Stop        []string `json:"stop,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Model           string       `json:"model"`
	Message         *chatMessage `json:"message"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
}

func (p *Provider) GenerateCompletion(ctx context.Context, prompt string, opts models.CompletionOptions) (models.CompletionResult, error) {
	opts = opts.WithDefaults()
	req := chatRequest{
		Model:  p.model,
		Stream: false,
		Options: chatOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			NumPredict:  opts.MaxTokens,
			Stop:        opts.StopSequences,
		},
	}
	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	var result models.CompletionResult
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		var resp chatResponse
		if err := p.client.PostJSON(ctx, "/api/chat", req, &resp); err != nil {
			return err
		}
		if resp.Message == nil {
			return fmt.Errorf("ollama completion: %w: missing message", transport.ErrInvalidResponse)
		}
		model := resp.Model
		if model == "" {
			model = p.model
		}
		result = models.CompletionResult{
			Text:             resp.Message.Content,
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			Model:            model,
		}
		return nil
	})
	if err != nil {
		return models.CompletionResult{}, err
	}
	return result, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse accepts both the /api/embed shape and the older single-vector shape.
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
	Embedding  []float64   `json:"embedding"`
}

func (p *Provider) GenerateEmbedding(ctx context.Context, text string) (models.EmbeddingResult, error) {
	req := embedRequest{Model: p.model, Input: text}

	var result models.EmbeddingResult
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		var resp embedResponse
		if err := p.client.PostJSON(ctx, "/api/embed", req, &resp); err != nil {
			return err
		}
		vec := resp.Embedding
		if len(resp.Embeddings) > 0 {
			vec = resp.Embeddings[0]
		}
		if vec == nil {
			vec = []float64{}
		}
		model := resp.Model
		if model == "" {
			model = p.model
		}
		// Ollama does not report token counts for embeddings.
		result = models.EmbeddingResult{Embedding: vec, Model: model}
		return nil
	})
	if err != nil {
		return models.EmbeddingResult{}, err
	}
	return result, nil
}

// EstimateCost is always zero for local models.
func (p *Provider) EstimateCost(_, _ int) float64 { return 0 }

// ValidateAPIKey checks that the server is reachable.
func (p *Provider) ValidateAPIKey(ctx context.Context) bool {
	return p.client.Get(ctx, "/api/tags", nil) == nil
}

var _ models.AIProvider = (*Provider)(nil)
