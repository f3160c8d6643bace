package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/openscribe/internal/ai"
	"github.com/kiranshivaraju/openscribe/internal/api/response"
	"github.com/kiranshivaraju/openscribe/internal/credentials"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const validateTimeout = 20 * time.Second

// CredentialSaver encrypts and stores a credential. credentials.Resolver implements it.
type CredentialSaver interface {
	Save(ctx context.Context, ownerID uuid.UUID, cred models.Credential) (*models.StoredCredential, error)
}

// ProviderBuilder builds a provider for a credential so it can be checked before saving.
type ProviderBuilder func(cred models.Credential) (models.AIProvider, error)

type credentialView struct {
	ID        uuid.UUID `json:"id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	BaseURL   string    `json:"base_url,omitempty"`
	MaskedKey string    `json:"masked_key"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCreateCredentialHandler returns a handler for POST /api/v1/credentials. The
// credential is stored only after the provider accepts it.
func NewCreateCredentialHandler(saver CredentialSaver, build ProviderBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}

		var req struct {
			Provider string `json:"provider"`
			Model    string `json:"model"`
			APIKey   string `json:"api_key"`
			BaseURL  string `json:"base_url"`
		}
		if err := response.Decode(w, r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
		req.APIKey = strings.TrimSpace(req.APIKey)
		if !ai.ValidProvider(req.Provider) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"provider must be one of openai, anthropic, ollama, vllm, groq, custom", nil)
			return
		}
		if req.APIKey == "" && !localProvider(req.Provider) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "api_key is required", nil)
			return
		}

		cred := models.Credential{
			Provider: req.Provider,
			Model:    strings.TrimSpace(req.Model),
			BaseURL:  strings.TrimSpace(req.BaseURL),
			Secret:   req.APIKey,
		}
		provider, err := build(cred)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), validateTimeout)
		valid := provider.ValidateAPIKey(ctx)
		cancel()
		if !valid {
			response.Error(w, http.StatusUnprocessableEntity, "INVALID_CREDENTIAL",
				"The provider rejected the credential or could not be reached", nil)
			return
		}

		stored, err := saver.Save(r.Context(), owner, cred)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, credentialView{
			ID:        stored.ID,
			Provider:  stored.Provider,
			Model:     stored.Model,
			BaseURL:   stored.BaseURL,
			MaskedKey: credentials.Mask(cred.Secret),
			IsActive:  stored.IsActive,
			CreatedAt: stored.CreatedAt,
		})
	}
}

func localProvider(kind string) bool {
	return kind == models.ProviderOllama || kind == models.ProviderVLLM
}
