// Package models contains shared data models used across the OpenScribe codebase.
package models

import "context"

// AIProvider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly; always go through ai.Factory.
type AIProvider interface {
	// GenerateCompletion sends prompt to the model and returns its text reply.
	GenerateCompletion(ctx context.Context, prompt string, opts CompletionOptions) (CompletionResult, error)
	// GenerateEmbedding returns a vector representation of text.
	GenerateEmbedding(ctx context.Context, text string) (EmbeddingResult, error)
	// EstimateCost returns the USD cost of a call with the given token counts.
	EstimateCost(promptTokens, completionTokens int) float64
	// ValidateAPIKey issues a minimal request; any failure reports false.
	ValidateAPIKey(ctx context.Context) bool
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
	// Model returns the configured model name.
	Model() string
}

const (
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
)

// CompletionOptions are pass-through hints for the backend. Nil pointers and zero values
// fall back to the defaults.
type CompletionOptions struct {
	MaxTokens     int
	Temperature   *float64
	TopP          *float64
	SystemPrompt  string
	StopSequences []string
}

// WithDefaults fills MaxTokens and Temperature when unset.
func (o CompletionOptions) WithDefaults() CompletionOptions {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature == nil {
		t := DefaultTemperature
		o.Temperature = &t
	}
	return o
}

// Float64 returns a pointer to v, for optional option fields.
func Float64(v float64) *float64 { return &v }

// CompletionResult is the output of a completion call.
type CompletionResult struct {
	Text             string `json:"text"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
}

// EmbeddingResult is the output of an embedding call.
type EmbeddingResult struct {
	Embedding  []float64 `json:"embedding"`
	Model      string    `json:"model"`
	TokenCount int       `json:"token_count"`
}
