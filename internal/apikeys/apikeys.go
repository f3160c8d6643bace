// Package apikeys mints service access keys. A raw key is returned once; only its bcrypt
// hash and a short clear-text prefix are stored.
package apikeys

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/openscribe/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	// Marker starts every raw key.
	Marker = "os_"
	// PrefixLen is how many leading characters of a raw key are stored for lookup.
	PrefixLen = 8

	secretBytes = 24
)

const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

var knownScopes = []string{ScopeRead, ScopeWrite, ScopeAdmin}

// DefaultScopes are granted when a key is created without explicit scopes.
func DefaultScopes() []string { return []string{ScopeRead, ScopeWrite} }

// ValidScopes reports whether every scope is known.
func ValidScopes(scopes []string) bool {
	for _, s := range scopes {
		if !slices.Contains(knownScopes, s) {
			return false
		}
	}
	return true
}

// New generates a key for ownerID. The returned raw key must be shown to the caller and
// then discarded.
func New(ownerID uuid.UUID, name string, scopes []string) (string, *models.APIKey, error) {
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}
	raw := Marker + hex.EncodeToString(secret)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hashing key: %w", err)
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	now := time.Now().UTC()
	return raw, &models.APIKey{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:PrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
