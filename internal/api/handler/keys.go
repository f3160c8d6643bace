package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/openscribe/internal/api/response"
	"github.com/kiranshivaraju/openscribe/internal/apikeys"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// KeyStore is the slice of the store the admin key endpoints use.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error
}

type createdKey struct {
	Key    string         `json:"key"`
	APIKey *models.APIKey `json:"api_key"`
}

// NewCreateKeyHandler returns a handler for POST /api/v1/admin/keys. The raw key is in
// the response and nowhere else.
func NewCreateKeyHandler(ks KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := response.Decode(w, r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		if !apikeys.ValidScopes(req.Scopes) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "scopes must be read, write or admin", nil)
			return
		}

		raw, key, err := apikeys.New(owner, req.Name, req.Scopes)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := ks.CreateAPIKey(r.Context(), key); err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, createdKey{Key: raw, APIKey: key})
	}
}

// NewListKeysHandler returns a handler for GET /api/v1/admin/keys.
func NewListKeysHandler(ks KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		keys, err := ks.ListAPIKeys(r.Context(), owner)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if keys == nil {
			keys = []*models.APIKey{}
		}
		response.JSON(w, keys)
	}
}

// NewRevokeKeyHandler returns a handler for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(ks KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := ownerFrom(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "keyID")
		if !ok {
			return
		}
		if err := ks.RevokeAPIKey(r.Context(), id, owner); err != nil {
			writeError(w, r, err)
			return
		}
		response.NoContent(w)
	}
}
