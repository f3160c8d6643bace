package analysis

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// markupTag matches the tags post imports actually carry. Anything else starting with "<"
// is literal text.
var markupTag = regexp.MustCompile(`(?i)</?(?:p|br|div|li|ul|ol|strong|em|b|i|u|span|a|h[1-6]|blockquote)\b[^<>]*>`)

// PlainText converts HTML-formatted post text to plain text. Block elements become paragraph
// breaks and <br> becomes a line break so sentence and paragraph splitting keep working.
// Text without recognised markup is returned unchanged, so a literal "x<y" or "<3" survives.
func PlainText(raw string) string {
	tags := markupTag.FindAllStringIndex(raw, -1)
	if len(tags) == 0 {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(escapeStrayBrackets(raw, tags)))
	if err != nil {
		return raw
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("- ")
	})

	text := doc.Find("body").Text()
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return collapseBlankLines(strings.TrimSpace(strings.Join(lines, "\n")))
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

// escapeStrayBrackets entity-encodes every "<" outside the given tag spans so the HTML
// parser cannot read it as the start of an element.
func escapeStrayBrackets(raw string, tags [][]int) string {
	var b strings.Builder
	prev := 0
	for _, t := range tags {
		b.WriteString(strings.ReplaceAll(raw[prev:t[0]], "<", "&lt;"))
		b.WriteString(raw[t[0]:t[1]])
		prev = t[1]
	}
	b.WriteString(strings.ReplaceAll(raw[prev:], "<", "&lt;"))
	return b.String()
}
