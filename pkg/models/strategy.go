package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	StrategyWeekly   = "weekly"
	StrategyMonthly  = "monthly"
	StrategyCampaign = "campaign"
)

// Strategy is a time-boxed content plan. Several may coexist per owner; the current one
// is the most recently generated whose ExpiresAt has not passed.
type Strategy struct {
	ID               uuid.UUID       `db:"id"                json:"id"`
	OwnerID          uuid.UUID       `db:"owner_id"          json:"owner_id"`
	Type             string          `db:"type"              json:"strategy_type"`
	Themes           json.RawMessage `db:"themes"            json:"themes"`
	PostingFrequency int             `db:"posting_frequency" json:"posting_frequency"`
	TargetAudience   TargetAudience  `db:"target_audience"   json:"target_audience"`
	Goals            Goals           `db:"goals"             json:"goals"`
	GeneratedAt      time.Time       `db:"generated_at"      json:"generated_at"`
	ExpiresAt        time.Time       `db:"expires_at"        json:"expires_at"`
}

// TargetAudience describes who a strategy is written for.
type TargetAudience struct {
	Description string   `json:"description"`
	Industries  []string `json:"industries"`
	Roles       []string `json:"roles"`
	Interests   []string `json:"interests"`
}

// Goals lists what a strategy should achieve.
type Goals struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
	KPIs      []string `json:"kpis"`
}

// StrategyTheme is one theme of a generated plan. Only Topic is interpreted by the
// service; the remaining fields pass through from the model's reply.
type StrategyTheme struct {
	Topic string `json:"topic"`
}
