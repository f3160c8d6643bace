package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var reFencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Reply is a model's text reply with an optional decoded JSON payload. Callers must handle
// both the structured and the raw branch.
type Reply[T any] struct {
	raw   string
	value T
	ok    bool
	err   error
}

// ParseReply decodes the JSON object embedded in text into T. The object is taken from a
// fenced code block when present, otherwise from the first '{' through the last '}'.
func ParseReply[T any](text string) Reply[T] {
	r := Reply[T]{raw: text}

	payload, found := extractJSON(text)
	if !found {
		r.err = ErrInvalidResponse
		return r
	}
	var value T
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		r.err = err
		return r
	}
	r.value = value
	r.ok = true
	return r
}

// Structured returns the decoded payload and true, or the zero value and false.
func (r Reply[T]) Structured() (T, bool) {
	return r.value, r.ok
}

// Raw returns the unmodified reply text.
func (r Reply[T]) Raw() string {
	return r.raw
}

// Err explains why the reply is not structured. Nil when Structured succeeds.
func (r Reply[T]) Err() error {
	return r.err
}

func extractJSON(text string) (string, bool) {
	if m := reFencedBlock.FindStringSubmatch(text); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body, true
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
