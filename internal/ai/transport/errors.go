package transport

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrProviderUnavailable  = errors.New("ai provider unavailable")
	ErrInferenceTimeout     = errors.New("ai inference timeout")
	ErrInvalidResponse      = errors.New("ai provider returned invalid response")
	ErrAuthentication       = errors.New("ai provider rejected credentials")
	ErrEmbeddingUnsupported = errors.New("provider does not support embeddings")
)

// StatusError is a non-2xx response from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, msg)
}

// Unwrap maps auth statuses onto ErrAuthentication and 5xx onto ErrProviderUnavailable.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrAuthentication
	case e.StatusCode >= 500:
		return ErrProviderUnavailable
	default:
		return nil
	}
}
