package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/openscribe/pkg/models"
)

// weekKeyLayout formats the Sunday that starts a trend bucket.
const weekKeyLayout = "2006-01-02"

// EngagementStats is the dashboard summary of a post collection.
type EngagementStats struct {
	TotalPosts          int             `json:"total_posts"`
	TotalLikes          int             `json:"total_likes"`
	TotalComments       int             `json:"total_comments"`
	TotalShares         int             `json:"total_shares"`
	AvgLikes            float64         `json:"avg_likes"`
	AvgComments         float64         `json:"avg_comments"`
	AvgShares           float64         `json:"avg_shares"`
	AvgEngagementScore  float64         `json:"avg_engagement_score"`
	TopPerformingIDs    []uuid.UUID     `json:"top_performing_ids"`
	BottomPerformingIDs []uuid.UUID     `json:"bottom_performing_ids"`
	WeeklyTrend         []WeeklyTrend   `json:"weekly_trend"`
	DayOfWeek           []DayOfWeekStat `json:"day_of_week"`
}

// WeeklyTrend is the mean score of posts published in the week starting on Week (a Sunday).
type WeeklyTrend struct {
	Week               string  `json:"week"`
	PostCount          int     `json:"post_count"`
	AvgEngagementScore float64 `json:"avg_engagement_score"`
}

// DayOfWeekStat is the mean score of posts published on Day (0=Sunday..6=Saturday).
type DayOfWeekStat struct {
	Day                int     `json:"day"`
	PostCount          int     `json:"post_count"`
	AvgEngagementScore float64 `json:"avg_engagement_score"`
}

// TopicPerformance is the engagement rollup of one topic label.
type TopicPerformance struct {
	Topic              string  `json:"topic"`
	PostCount          int     `json:"post_count"`
	AvgEngagementScore float64 `json:"avg_engagement_score"`
}

// PostScore returns the engagement score of p.
func PostScore(p models.Post) int {
	return ScoreEngagement(p.Likes, p.Comments, p.Shares)
}

// AnalyzeEngagement computes totals, means, top and bottom performers, a weekly trend and
// day-of-week means. Weeks start on Sunday and are computed on UTC calendar dates.
func AnalyzeEngagement(posts []models.Post) EngagementStats {
	stats := EngagementStats{
		TopPerformingIDs:    []uuid.UUID{},
		BottomPerformingIDs: []uuid.UUID{},
		WeeklyTrend:         []WeeklyTrend{},
		DayOfWeek:           []DayOfWeekStat{},
	}
	if len(posts) == 0 {
		return stats
	}

	n := len(posts)
	totalScore := 0
	for _, p := range posts {
		stats.TotalLikes += p.Likes
		stats.TotalComments += p.Comments
		stats.TotalShares += p.Shares
		totalScore += PostScore(p)
	}
	stats.TotalPosts = n
	stats.AvgLikes = float64(stats.TotalLikes) / float64(n)
	stats.AvgComments = float64(stats.TotalComments) / float64(n)
	stats.AvgShares = float64(stats.TotalShares) / float64(n)
	stats.AvgEngagementScore = float64(totalScore) / float64(n)

	ranked := make([]models.Post, n)
	copy(ranked, posts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return PostScore(ranked[i]) > PostScore(ranked[j])
	})

	topN := max(1, int(math.Ceil(float64(n)*0.1)))
	for _, p := range ranked[:topN] {
		stats.TopPerformingIDs = append(stats.TopPerformingIDs, p.ID)
	}
	for _, p := range ranked[n-topN:] {
		stats.BottomPerformingIDs = append(stats.BottomPerformingIDs, p.ID)
	}

	stats.WeeklyTrend = weeklyTrend(posts)
	stats.DayOfWeek = dayOfWeek(posts)
	return stats
}

// WeekStart returns the UTC midnight of the Sunday starting t's week.
func WeekStart(t time.Time) time.Time {
	u := t.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

type bucket struct {
	count int
	total int
}

func (b bucket) mean() float64 {
	if b.count == 0 {
		return 0
	}
	return float64(b.total) / float64(b.count)
}

func weeklyTrend(posts []models.Post) []WeeklyTrend {
	buckets := make(map[string]*bucket)
	for _, p := range posts {
		key := WeekStart(p.PostedAt).Format(weekKeyLayout)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.count++
		b.total += PostScore(p)
	}

	trend := make([]WeeklyTrend, 0, len(buckets))
	for week, b := range buckets {
		trend = append(trend, WeeklyTrend{Week: week, PostCount: b.count, AvgEngagementScore: b.mean()})
	}
	// ISO dates sort chronologically as strings.
	sort.Slice(trend, func(i, j int) bool { return trend[i].Week < trend[j].Week })
	return trend
}

func dayOfWeek(posts []models.Post) []DayOfWeekStat {
	var days [7]bucket
	for _, p := range posts {
		d := p.PostedAt.UTC().Weekday()
		days[d].count++
		days[d].total += PostScore(p)
	}

	out := make([]DayOfWeekStat, 0, 7)
	for d, b := range days {
		if b.count == 0 {
			continue
		}
		out = append(out, DayOfWeekStat{Day: d, PostCount: b.count, AvgEngagementScore: b.mean()})
	}
	return out
}

// AnalyzeTopicPerformance groups posts by topic label and ranks the groups by mean score.
// A post with several labels counts once in each group.
func AnalyzeTopicPerformance(posts []models.Post) []TopicPerformance {
	index := make(map[string]int)
	var groups []TopicPerformance
	var totals []int

	for _, p := range posts {
		score := PostScore(p)
		for _, topic := range p.Topics {
			i, ok := index[topic]
			if !ok {
				i = len(groups)
				index[topic] = i
				groups = append(groups, TopicPerformance{Topic: topic})
				totals = append(totals, 0)
			}
			groups[i].PostCount++
			totals[i] += score
		}
	}

	for i := range groups {
		groups[i].AvgEngagementScore = float64(totals[i]) / float64(groups[i].PostCount)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].AvgEngagementScore > groups[j].AvgEngagementScore
	})
	if groups == nil {
		return []TopicPerformance{}
	}
	return groups
}
