package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// Repository is the slice of store.Store the resolver needs.
type Repository interface {
	GetCredential(ctx context.Context, ownerID uuid.UUID, provider string) (*models.StoredCredential, error)
	CreateCredential(ctx context.Context, cred *models.StoredCredential) error
}

// Resolver stores encrypted credentials and hands decrypted ones to ai.Factory.
type Resolver struct {
	repo   Repository
	cipher *Cipher
}

func NewResolver(repo Repository, c *Cipher) *Resolver {
	return &Resolver{repo: repo, cipher: c}
}

// ActiveCredential returns (nil, nil) when the owner has no matching active credential.
func (r *Resolver) ActiveCredential(ctx context.Context, ownerID uuid.UUID, provider string) (*models.Credential, error) {
	stored, err := r.repo.GetCredential(ctx, ownerID, provider)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	secret, err := r.cipher.Decrypt(ownerID, Sealed{
		Ciphertext: stored.Ciphertext,
		IV:         stored.IV,
		AuthTag:    stored.AuthTag,
	})
	if err != nil {
		return nil, fmt.Errorf("credential %s: %w", stored.ID, err)
	}
	return &models.Credential{
		Provider: stored.Provider,
		Model:    stored.Model,
		BaseURL:  stored.BaseURL,
		Secret:   secret,
	}, nil
}

// Save encrypts cred.Secret and persists it as an active credential.
func (r *Resolver) Save(ctx context.Context, ownerID uuid.UUID, cred models.Credential) (*models.StoredCredential, error) {
	sealed, err := r.cipher.Encrypt(ownerID, cred.Secret)
	if err != nil {
		return nil, fmt.Errorf("encrypt credential: %w", err)
	}
	now := time.Now().UTC()
	stored := &models.StoredCredential{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Provider:   cred.Provider,
		Model:      cred.Model,
		BaseURL:    cred.BaseURL,
		Ciphertext: sealed.Ciphertext,
		IV:         sealed.IV,
		AuthTag:    sealed.AuthTag,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.repo.CreateCredential(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}
