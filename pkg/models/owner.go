package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PreferenceWritingStyle is the preferences key holding the latest StyleProfile.
const PreferenceWritingStyle = "writingStyle"

// Owner is the account every other entity belongs to.
type Owner struct {
	ID          uuid.UUID   `db:"id"          json:"id"`
	Name        string      `db:"name"        json:"name"`
	Preferences Preferences `db:"preferences" json:"preferences"`
	CreatedAt   time.Time   `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"  json:"updated_at"`
}

// Preferences is the owner's free-form settings document.
type Preferences map[string]json.RawMessage
