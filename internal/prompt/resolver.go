// Package prompt loads prompt templates and fills in their variables.
//
// Templates use two markers:
//
//	{{name}}              replaced by the value of name
//	{{#name}}...{{/name}} kept (without markers) when name is non-blank, removed otherwise
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

// Template names used by the job pipelines.
const (
	AnalyzeWritingStyle = "analyze_writing_style.txt"
	ExtractTopics       = "extract_topics.txt"
	GenerateStrategy    = "generate_strategy.txt"
	GeneratePost        = "generate_post.txt"
)

var ErrTemplateNotFound = errors.New("prompt template not found")

//go:embed templates/*.txt
var embedded embed.FS

// Resolver reads templates from a filesystem through a cache.
type Resolver struct {
	fsys  fs.FS
	cache *TemplateCache
}

// NewResolver reads templates from fsys. A nil cache disables caching.
func NewResolver(fsys fs.FS, cache *TemplateCache) *Resolver {
	return &Resolver{fsys: fsys, cache: cache}
}

// Embedded returns the templates compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(fmt.Sprintf("prompt: embedded templates: %v", err))
	}
	return sub
}

// FromDir returns dir as a template filesystem, or the embedded templates when dir is empty.
func FromDir(dir string) fs.FS {
	if dir == "" {
		return Embedded()
	}
	return os.DirFS(dir)
}

// Load returns the raw body of the named template.
func (r *Resolver) Load(name string) (string, error) {
	if r.cache != nil {
		if body, ok := r.cache.Get(name); ok {
			return body, nil
		}
	}

	data, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return "", fmt.Errorf("reading prompt template %s: %w", name, err)
	}

	body := string(data)
	if r.cache != nil {
		r.cache.Set(name, body)
	}
	return body, nil
}

// Resolve loads the named template and interpolates vars into it.
func (r *Resolver) Resolve(name string, vars map[string]string) (string, error) {
	body, err := r.Load(name)
	if err != nil {
		return "", err
	}
	return Interpolate(body, vars), nil
}

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Interpolate applies conditional blocks, then substitutes {{key}} for every key in vars in
// a single pass, so placeholders inside substituted values stay literal. Placeholders
// without a matching key are left as they are.
func Interpolate(tmpl string, vars map[string]string) string {
	out := expandBlocks(tmpl, vars)
	return placeholder.ReplaceAllStringFunc(out, func(m string) string {
		if v, ok := vars[m[2:len(m)-2]]; ok {
			return v
		}
		return m
	})
}

// expandBlocks resolves {{#key}}...{{/key}} pairs left to right. A block's content is kept
// when vars[key] is non-blank after trimming. An opener without a matching closer is kept
// verbatim.
func expandBlocks(tmpl string, vars map[string]string) string {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.Index(rest, "{{#")
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		nameEnd := strings.Index(rest[open+3:], "}}")
		if nameEnd < 0 {
			b.WriteString(rest)
			return b.String()
		}
		key := rest[open+3 : open+3+nameEnd]
		bodyStart := open + 3 + nameEnd + 2
		closer := "{{/" + key + "}}"
		closeAt := -1
		if validKey(key) {
			closeAt = strings.Index(rest[bodyStart:], closer)
		}
		if closeAt < 0 {
			b.WriteString(rest[:bodyStart])
			rest = rest[bodyStart:]
			continue
		}

		b.WriteString(rest[:open])
		if strings.TrimSpace(vars[key]) != "" {
			b.WriteString(rest[bodyStart : bodyStart+closeAt])
		}
		rest = rest[bodyStart+closeAt+len(closer):]
	}
}

// validKey matches the word characters allowed in a block name.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
