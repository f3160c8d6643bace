package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Correlation is the Pearson coefficient between one writing attribute and engagement.
type Correlation struct {
	Attribute   string  `json:"attribute"`
	Correlation float64 `json:"correlation"`
}

// StyleProfile is the result of a style analysis job. It is also stored under the
// owner's writingStyle preference and replaced on every run.
type StyleProfile struct {
	AvgSentenceLength      float64            `json:"avg_sentence_length"`
	VocabularyDiversity    float64            `json:"vocabulary_diversity"`
	ReadingLevel           float64            `json:"reading_level"`
	ToneDistribution       map[string]float64 `json:"tone_distribution"`
	StructuralPatterns     StructuralPatterns `json:"structural_patterns"`
	EngagementCorrelations []Correlation      `json:"engagement_correlations"`
	Summary                string             `json:"summary"`
	VoiceCharacteristics   []string           `json:"voice_characteristics"`
	UniquePhrases          []string           `json:"unique_phrases"`
	PostsAnalyzed          int                `json:"posts_analyzed"`
	Enriched               bool               `json:"enriched"`
}

// StructuralPatterns summarises how posts are laid out.
type StructuralPatterns struct {
	QuestionUsage       float64  `json:"question_usage"`
	ListFormatFrequency float64  `json:"list_format_frequency"`
	EmojiDensity        float64  `json:"emoji_density"`
	AvgPostLength       float64  `json:"avg_post_length"`
	HookPatterns        []string `json:"hook_patterns"`
	CTAPatterns         []string `json:"cta_patterns"`
}

// TopicAnalysis is the result of a topic extraction job.
type TopicAnalysis struct {
	Topics         []Topic        `json:"topics"`
	ContentGaps    []string       `json:"content_gaps"`
	RecommendedMix RecommendedMix `json:"recommended_mix"`
	PostsLabelled  int            `json:"posts_labelled"`
}

// Topic is one consolidated theme found across the owner's posts.
type Topic struct {
	Label         string   `json:"label"`
	Keywords      []string `json:"keywords"`
	PostCount     int      `json:"post_count"`
	AvgEngagement float64  `json:"avg_engagement"`
	Trend         string   `json:"trend"`
}

// RecommendedMix splits topics by how much of the calendar they deserve.
type RecommendedMix struct {
	Primary      []string `json:"primary"`
	Secondary    []string `json:"secondary"`
	Experimental []string `json:"experimental"`
}

// StrategyResult is the result of a strategy generation job.
type StrategyResult struct {
	StrategyID uuid.UUID       `json:"strategy_id"`
	Strategy   *Strategy       `json:"strategy"`
	Plan       json.RawMessage `json:"plan,omitempty"`
	RawReply   string          `json:"raw_reply,omitempty"`
}

// ContentResult is the result of a content generation job.
type ContentResult struct {
	PostsGenerated int         `json:"posts_generated"`
	DraftIDs       []uuid.UUID `json:"draft_ids"`
}
