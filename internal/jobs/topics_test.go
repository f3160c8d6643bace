package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/openscribe/internal/ai"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

func parseTopicReply(t *testing.T, text string) topicReply {
	t.Helper()
	r, ok := ai.ParseReply[topicReply](text).Structured()
	require.True(t, ok)
	return r
}

func TestConsolidateTopics(t *testing.T) {
	first := parseTopicReply(t, `{
		"topics": [
			{"label": "Go", "keywords": ["golang", "Goroutines"], "postCount": 3, "avgEngagement": 10},
			{"label": "", "keywords": ["misc"], "avgEngagement": 1}
		],
		"contentGaps": ["testing", "profiling", "testing"],
		"recommendedMix": {"primary": ["go"], "secondary": [], "experimental": []}
	}`)
	second := parseTopicReply(t, `{
		"topics": [
			{"label": "go", "keywords": ["golang", "channels"], "postCount": 1, "avgEngagement": 30},
			{"label": "Hiring", "keywords": ["hiring"], "postCount": 2, "avgEngagement": 5}
		],
		"contentGaps": ["tracing", "generics", "fuzzing", "modules"],
		"recommendedMix": {"primary": ["hiring"]}
	}`)

	out := consolidateTopics([]topicReply{first, second})

	require.Len(t, out.Topics, 3)
	goTopic := out.Topics[0]
	assert.Equal(t, "go", goTopic.Label)
	assert.Equal(t, []string{"golang", "goroutines", "channels"}, goTopic.Keywords)
	assert.Equal(t, 4, goTopic.PostCount)
	assert.InDelta(t, 20.0, goTopic.AvgEngagement, 1e-9)
	assert.Equal(t, "stable", goTopic.Trend)

	assert.Equal(t, "hiring", out.Topics[1].Label)
	assert.Equal(t, unknownTopicLabel, out.Topics[2].Label)
	assert.Equal(t, 1, out.Topics[2].PostCount)

	assert.Equal(t, []string{"testing", "profiling", "tracing", "generics", "fuzzing"}, out.ContentGaps)
	assert.Equal(t, []string{"hiring"}, out.RecommendedMix.Primary)
	assert.Equal(t, []string{}, out.RecommendedMix.Secondary)
}

func TestConsolidateTopics_Limits(t *testing.T) {
	var r topicReply
	for i := 0; i < 20; i++ {
		r.Topics = append(r.Topics, struct {
			Label         string   `json:"label"`
			Keywords      []string `json:"keywords"`
			PostCount     int      `json:"postCount"`
			AvgEngagement float64  `json:"avgEngagement"`
			Trend         string   `json:"trend"`
		}{
			Label:         string(rune('a' + i)),
			Keywords:      []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8", "k9", "k10", "k11", "k12"},
			PostCount:     1,
			AvgEngagement: float64(i),
		})
	}

	out := consolidateTopics([]topicReply{r})
	require.Len(t, out.Topics, maxTopics)
	assert.Equal(t, "t", out.Topics[0].Label)
	assert.Len(t, out.Topics[0].Keywords, maxTopicKeywords)
}

func TestConsolidateTopics_NoReplies(t *testing.T) {
	out := consolidateTopics(nil)
	assert.Empty(t, out.Topics)
	assert.NotNil(t, out.Topics)
	assert.Equal(t, []string{}, out.ContentGaps)
	assert.Equal(t, models.RecommendedMix{Primary: []string{}, Secondary: []string{}, Experimental: []string{}}, out.RecommendedMix)
}

func TestStrategyExpiry(t *testing.T) {
	at := time.Date(2026, time.January, 31, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, at.AddDate(0, 0, 7), strategyExpiry(models.StrategyWeekly, at))
	assert.Equal(t, at.AddDate(0, 1, 0), strategyExpiry(models.StrategyMonthly, at))
	assert.Equal(t, at.AddDate(0, 3, 0), strategyExpiry(models.StrategyCampaign, at))
}

func TestLabelPosts_MatchesVisibleText(t *testing.T) {
	st := store.NewMemoryStore()
	owner := store.DefaultOwnerID
	st.AddPost(&models.Post{OwnerID: owner, Text: "<p><strong>Shipping</strong> beats planning.</p>"})
	st.AddPost(&models.Post{OwnerID: owner, Text: "Strong opinions, loosely held."})
	st.AddPost(&models.Post{OwnerID: owner, Text: "<p>Tips &amp; tricks for Go</p>"})

	posts, err := st.ListPosts(context.Background(), store.PostFilter{OwnerID: owner})
	require.NoError(t, err)

	s := &Service{store: st}
	n, err := s.labelPosts(context.Background(), posts, []models.Topic{
		{Label: "Opinions", Keywords: []string{"strong"}},
		{Label: "Craft", Keywords: []string{"tips & tricks"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	posts, err = st.ListPosts(context.Background(), store.PostFilter{OwnerID: owner})
	require.NoError(t, err)
	labels := map[string][]string{}
	for _, p := range posts {
		labels[p.Text] = p.Topics
	}
	assert.Empty(t, labels["<p><strong>Shipping</strong> beats planning.</p>"])
	assert.Equal(t, []string{"Opinions"}, labels["Strong opinions, loosely held."])
	assert.Equal(t, []string{"Craft"}, labels["<p>Tips &amp; tricks for Go</p>"])
}
