package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text unchanged", "Just text.\n\nSecond paragraph.", "Just text.\n\nSecond paragraph."},
		{"paragraphs", "<p>First.</p><p>Second.</p>", "First.\n\nSecond."},
		{"line breaks", "<p>One<br>Two</p>", "One\nTwo"},
		{"inline markup", "<p>Hello <strong>world</strong>!</p>", "Hello world!"},
		{"entities", "<p>Fish &amp; chips</p>", "Fish & chips"},
		{"comparison without markup", "Use x<y for comparisons. It saves time! Ask me how.", "Use x<y for comparisons. It saves time! Ask me how."},
		{"heart without markup", "I <3 Go", "I <3 Go"},
		{"unknown angle-bracket word", "Reply with <yes> or <no>", "Reply with <yes> or <no>"},
		{"stray bracket inside markup", "<p>Use x<y here.</p><p>I <3 Go</p>", "Use x<y here.\n\nI <3 Go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PlainText(tt.input))
		})
	}
}

func TestPlainText_ListItemsAreBulleted(t *testing.T) {
	got := PlainText("<ul><li>ship</li><li>learn</li></ul>")
	m := AnalyzePost(got, Engagement{})
	assert.Equal(t, 1.0, m.ListFormatFrequency)
	assert.Contains(t, got, "- ship")
}

func TestPlainText_LiteralBracketsKeepMetrics(t *testing.T) {
	raw := "Use x<y for comparisons. It saves time! Ask me how."
	assert.Equal(t, AnalyzePost(raw, Engagement{}), AnalyzePost(PlainText(raw), Engagement{}))
}
