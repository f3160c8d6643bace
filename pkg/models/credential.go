package models

import (
	"time"

	"github.com/google/uuid"
)

// AI provider kinds accepted for stored credentials.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderVLLM      = "vllm"
	ProviderGroq      = "groq"
	ProviderCustom    = "custom"
)

// StoredCredential is an owner's third-party AI credential as persisted: the secret is
// AES-256-GCM encrypted with a key derived per owner.
type StoredCredential struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	OwnerID    uuid.UUID `db:"owner_id"    json:"owner_id"`
	Provider   string    `db:"provider"    json:"provider"`
	Model      string    `db:"model"       json:"model"`
	BaseURL    string    `db:"base_url"    json:"base_url,omitempty"`
	Ciphertext string    `db:"ciphertext"  json:"-"`
	IV         string    `db:"iv"          json:"-"`
	AuthTag    string    `db:"auth_tag"    json:"-"`
	IsActive   bool      `db:"is_active"   json:"is_active"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// Credential is a decrypted credential ready to build a provider. Never log Secret.
type Credential struct {
	Provider string
	Model    string
	BaseURL  string
	Secret   string
}
