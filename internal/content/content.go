// Package content turns user-supplied text into safe output.
//
// Post bodies are Markdown. They are stored as written and rendered to HTML
// on read (PostDetail.html): goldmark converts GitHub-flavoured Markdown,
// then bluemonday's UGC policy removes anything a browser could execute.
// goldmark already drops raw HTML blocks by default; the sanitizer is the
// second wall, and the one that catches javascript: links.
//
// Rendered HTML is kept in a bounded LRU keyed by a digest of the source, so
// an edited post misses the cache instead of serving stale output.
//
// Titles, tags and comments are plain text. Plain strips every tag and
// stores the literal text, leaving escaping to whoever renders it.
package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// DefaultCacheSize is how many rendered bodies NewRenderer keeps.
const DefaultCacheSize = 512

// Renderer is safe for concurrent use; goldmark and bluemonday policies
// are both read-only after construction and the LRU locks internally.
type Renderer struct {
	md     goldmark.Markdown
	ugc    *bluemonday.Policy
	strict *bluemonday.Policy
	cache  *lru.Cache[string, string]
}

// NewRenderer builds the Markdown pipeline and both sanitizing policies
// with a cache of DefaultCacheSize entries.
func NewRenderer() *Renderer {
	return NewRendererWithCache(DefaultCacheSize)
}

// NewRendererWithCache is NewRenderer with an explicit cache size.
// A size below one disables caching.
func NewRendererWithCache(size int) *Renderer {
	ugc := bluemonday.UGCPolicy()
	ugc.AllowImages()
	ugc.AddTargetBlankToFullyQualifiedLinks(true)
	ugc.RequireNoReferrerOnLinks(true)

	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps(), gmhtml.WithXHTML()),
		),
		ugc:    ugc,
		strict: bluemonday.StrictPolicy(),
	}
	if size > 0 {
		// lru.New only fails for a non-positive size.
		r.cache, _ = lru.New[string, string](size)
	}
	return r
}

// Markdown renders src to sanitized HTML.
func (r *Renderer) Markdown(src string) (string, error) {
	var key string
	if r.cache != nil {
		sum := sha256.Sum256([]byte(src))
		key = hex.EncodeToString(sum[:])
		if out, ok := r.cache.Get(key); ok {
			return out, nil
		}
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("content: rendering markdown: %w", err)
	}
	out := string(r.ugc.SanitizeBytes(buf.Bytes()))

	if r.cache != nil {
		r.cache.Add(key, out)
	}
	return out, nil
}

// Cached reports how many rendered bodies are held.
func (r *Renderer) Cached() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}

// Plain strips all markup from s and trims surrounding whitespace.
// "<b>hi</b> & bye" becomes "hi & bye".
func (r *Renderer) Plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(r.strict.Sanitize(s)))
}
