package ai

import (
	"errors"

	"github.com/kiranshivaraju/openscribe/internal/ai/transport"
)

// Provider call failures. Variants wrap these so callers can match with errors.Is.
var (
	ErrProviderUnavailable  = transport.ErrProviderUnavailable
	ErrInferenceTimeout     = transport.ErrInferenceTimeout
	ErrInvalidResponse      = transport.ErrInvalidResponse
	ErrAuthentication       = transport.ErrAuthentication
	ErrEmbeddingUnsupported = transport.ErrEmbeddingUnsupported
)

// Configuration failures: the owner has no usable credential.
var (
	ErrNoProvider          = errors.New("no active AI provider configured; add an API key in settings")
	ErrNoEmbeddingProvider = errors.New("no embedding-capable AI provider found; add an OpenAI or Ollama API key")
	ErrUnknownProvider     = errors.New("unknown AI provider")
)
