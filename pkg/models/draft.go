package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DraftStatusDraft     = "draft"
	DraftStatusApproved  = "approved"
	DraftStatusRejected  = "rejected"
	DraftStatusPublished = "published"
)

// Draft is a generated post awaiting review.
type Draft struct {
	ID             uuid.UUID     `db:"id"              json:"id"`
	OwnerID        uuid.UUID     `db:"owner_id"        json:"owner_id"`
	StrategyID     *uuid.UUID    `db:"strategy_id"     json:"strategy_id,omitempty"`
	Text           string        `db:"text"            json:"post_text"`
	Topic          string        `db:"topic"           json:"topic"`
	Hook           string        `db:"hook"            json:"hook"`
	CTA            string        `db:"cta"             json:"cta"`
	Metadata       DraftMetadata `db:"metadata"        json:"generation_metadata"`
	Status         string        `db:"status"          json:"status"`
	FeedbackRating *int          `db:"feedback_rating" json:"feedback_rating,omitempty"`
	Feedback       *string       `db:"feedback"        json:"user_feedback,omitempty"`
	CreatedAt      time.Time     `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"      json:"updated_at"`
}

// DraftMetadata records how a draft was generated.
type DraftMetadata struct {
	Model            string  `json:"model"`
	Provider         string  `json:"provider"`
	Temperature      float64 `json:"temperature"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}
