// Package analysis computes writing-style and engagement metrics from imported posts.
// Every function is pure and deterministic; none of them return errors.
package analysis

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// Text-splitting regexes compiled once at package init.
var (
	reSentenceEnd = regexp.MustCompile(`[.!?]+`)
	reParagraph   = regexp.MustCompile(`\n\s*\n`)
	reNonAlpha    = regexp.MustCompile(`[^a-zA-Z]`)
	reVowelGroup  = regexp.MustCompile(`[aeiouy]+`)
	reEmoji       = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}]`)
	reListLine    = regexp.MustCompile(`(?m)^[ \t]*(?:[-*•●✅⭐🔹▪]\x{FE0F}?|\d+[.)\]])[ \t]+\S`)
	reHashtag     = regexp.MustCompile(`#\w+`)
)

// Engagement holds the raw reaction counts of a post.
type Engagement struct {
	Likes    int
	Comments int
	Shares   int
}

// LinguisticMetrics are the writing-style features of one post, or their mean over many.
type LinguisticMetrics struct {
	AvgSentenceLength    float64 `json:"avg_sentence_length"`
	AvgWordLength        float64 `json:"avg_word_length"`
	VocabularyDiversity  float64 `json:"vocabulary_diversity"`
	ReadingLevel         float64 `json:"reading_level"`
	AvgPostLength        float64 `json:"avg_post_length"`
	QuestionFrequency    float64 `json:"question_frequency"`
	ExclamationFrequency float64 `json:"exclamation_frequency"`
	EmojiDensity         float64 `json:"emoji_density"`
	ListFormatFrequency  float64 `json:"list_format_frequency"`
	ParagraphCount       float64 `json:"paragraph_count"`
	HashtagUsage         float64 `json:"hashtag_usage"`
}

// PostMetrics are the features of a single post plus its engagement score.
type PostMetrics struct {
	LinguisticMetrics
	EngagementScore float64 `json:"engagement_score"`
}

// Aggregate is the owner-level summary of many PostMetrics.
type Aggregate struct {
	Metrics      LinguisticMetrics    `json:"metrics"`
	Correlations []models.Correlation `json:"engagement_correlations"`
}

// ScoreEngagement is the canonical engagement score: likes + 2*comments + 3*shares.
func ScoreEngagement(likes, comments, shares int) int {
	return likes + comments*2 + shares*3
}

// AnalyzePost computes the linguistic features of text. Counts used as denominators are
// clamped to at least 1, so an empty text yields all-zero metrics.
func AnalyzePost(text string, e Engagement) PostMetrics {
	sentences := nonBlank(reSentenceEnd.Split(text, -1))
	words := strings.Fields(text)
	paragraphs := nonBlank(reParagraph.Split(text, -1))

	unique := make(map[string]struct{}, len(words))
	letters := 0
	syllables := 0
	for _, w := range words {
		letters += utf8.RuneCountInString(w)
		syllables += CountSyllables(w)
		if clean := strings.ToLower(reNonAlpha.ReplaceAllString(w, "")); clean != "" {
			unique[clean] = struct{}{}
		}
	}

	sentenceCount := float64(max(len(sentences), 1))
	wordCount := float64(max(len(words), 1))
	rawWords := float64(len(words))

	reading := 0.0
	if len(words) > 0 {
		reading = 0.39*(rawWords/sentenceCount) + 11.8*(float64(syllables)/wordCount) - 15.59
	}

	list := 0.0
	if reListLine.MatchString(text) {
		list = 1
	}

	return PostMetrics{
		LinguisticMetrics: LinguisticMetrics{
			AvgSentenceLength:    rawWords / sentenceCount,
			AvgWordLength:        float64(letters) / wordCount,
			VocabularyDiversity:  float64(len(unique)) / wordCount,
			ReadingLevel:         math.Max(0, reading),
			AvgPostLength:        rawWords,
			QuestionFrequency:    float64(strings.Count(text, "?")) / sentenceCount,
			ExclamationFrequency: float64(strings.Count(text, "!")) / sentenceCount,
			EmojiDensity:         float64(len(reEmoji.FindAllStringIndex(text, -1))) / wordCount,
			ListFormatFrequency:  list,
			ParagraphCount:       float64(len(paragraphs)),
			HashtagUsage:         float64(len(reHashtag.FindAllStringIndex(text, -1))),
		},
		EngagementScore: float64(ScoreEngagement(e.Likes, e.Comments, e.Shares)),
	}
}

// AggregateMetrics averages per-post metrics and correlates selected features with
// engagement. Correlations are sorted by absolute value, strongest first.
func AggregateMetrics(posts []PostMetrics) Aggregate {
	if len(posts) == 0 {
		return Aggregate{Correlations: []models.Correlation{}}
	}

	n := float64(len(posts))
	var sum LinguisticMetrics
	listPosts := 0
	for _, p := range posts {
		sum.AvgSentenceLength += p.AvgSentenceLength
		sum.AvgWordLength += p.AvgWordLength
		sum.VocabularyDiversity += p.VocabularyDiversity
		sum.ReadingLevel += p.ReadingLevel
		sum.AvgPostLength += p.AvgPostLength
		sum.QuestionFrequency += p.QuestionFrequency
		sum.ExclamationFrequency += p.ExclamationFrequency
		sum.EmojiDensity += p.EmojiDensity
		sum.ParagraphCount += p.ParagraphCount
		sum.HashtagUsage += p.HashtagUsage
		if p.ListFormatFrequency > 0 {
			listPosts++
		}
	}

	metrics := LinguisticMetrics{
		AvgSentenceLength:    sum.AvgSentenceLength / n,
		AvgWordLength:        sum.AvgWordLength / n,
		VocabularyDiversity:  sum.VocabularyDiversity / n,
		ReadingLevel:         sum.ReadingLevel / n,
		AvgPostLength:        sum.AvgPostLength / n,
		QuestionFrequency:    sum.QuestionFrequency / n,
		ExclamationFrequency: sum.ExclamationFrequency / n,
		EmojiDensity:         sum.EmojiDensity / n,
		ListFormatFrequency:  float64(listPosts) / n,
		ParagraphCount:       sum.ParagraphCount / n,
		HashtagUsage:         sum.HashtagUsage / n,
	}

	engagement := column(posts, func(p PostMetrics) float64 { return p.EngagementScore })
	attributes := []struct {
		name string
		get  func(PostMetrics) float64
	}{
		{"sentence_length", func(p PostMetrics) float64 { return p.AvgSentenceLength }},
		{"vocabulary_diversity", func(p PostMetrics) float64 { return p.VocabularyDiversity }},
		{"post_length", func(p PostMetrics) float64 { return p.AvgPostLength }},
		{"question_usage", func(p PostMetrics) float64 { return p.QuestionFrequency }},
		{"emoji_density", func(p PostMetrics) float64 { return p.EmojiDensity }},
		{"list_format", func(p PostMetrics) float64 { return p.ListFormatFrequency }},
		{"reading_level", func(p PostMetrics) float64 { return p.ReadingLevel }},
	}

	correlations := make([]models.Correlation, 0, len(attributes))
	for _, a := range attributes {
		correlations = append(correlations, models.Correlation{
			Attribute:   a.name,
			Correlation: PearsonCorrelation(column(posts, a.get), engagement),
		})
	}
	sort.SliceStable(correlations, func(i, j int) bool {
		return math.Abs(correlations[i].Correlation) > math.Abs(correlations[j].Correlation)
	})

	return Aggregate{Metrics: metrics, Correlations: correlations}
}

// PearsonCorrelation returns the correlation coefficient of x and y. It is 0 for fewer
// than three points, mismatched lengths, or a series with zero variance.
func PearsonCorrelation(x, y []float64) float64 {
	n := len(x)
	if n < 3 || n != len(y) {
		return 0
	}

	meanX, meanY := mean(x), mean(y)
	var num, denX, denY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}

	den := math.Sqrt(denX * denY)
	if den == 0 || math.IsNaN(den) {
		return 0
	}
	return num / den
}

// CountSyllables approximates the syllables of an English word by counting vowel groups.
func CountSyllables(word string) int {
	word = strings.ToLower(reNonAlpha.ReplaceAllString(word, ""))
	if len(word) <= 3 {
		return 1
	}
	count := len(reVowelGroup.FindAllStringIndex(word, -1))
	if count == 0 {
		count = 1
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	return max(1, count)
}

func nonBlank(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func column(posts []PostMetrics, get func(PostMetrics) float64) []float64 {
	out := make([]float64, len(posts))
	for i, p := range posts {
		out[i] = get(p)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var s float64
	for _, v := range values {
		s += v
	}
	return s / float64(len(values))
}
