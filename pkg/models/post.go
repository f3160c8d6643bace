package models

import (
	"time"

	"github.com/google/uuid"
)

// Post is an imported LinkedIn post. Posts are read-only to the pipelines except for
// topic labels, which the topic extraction job appends.
type Post struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	OwnerID   uuid.UUID `db:"owner_id"   json:"owner_id"`
	Text      string    `db:"text"       json:"text"`
	Likes     int       `db:"likes"      json:"likes"`
	Comments  int       `db:"comments"   json:"comments"`
	Shares    int       `db:"shares"     json:"shares"`
	PostedAt  time.Time `db:"posted_at"  json:"posted_at"`
	Topics    []string  `db:"topics"     json:"topics"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HasTopic reports whether label is already attached to the post.
func (p *Post) HasTopic(label string) bool {
	for _, t := range p.Topics {
		if t == label {
			return true
		}
	}
	return false
}
