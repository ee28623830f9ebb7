// Package highlight renders response bodies with terminal colors. Renderings
// are cached by content so repeated views of the same body are free.
package highlight

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/cespare/xxhash/v2"
	"github.com/muesli/termenv"

	"github.com/forgehttp/forge/internal/httpclient"
)

const (
	LangJSON       = "json"
	LangXML        = "xml"
	LangHTML       = "html"
	LangJavaScript = "javascript"
	LangYAML       = "yaml"
	LangCSS        = "css"
	LangPlain      = "plaintext"

	DefaultStyle      = "monokai"
	DefaultMaxEntries = 64
)

type Options struct {
	Style      string
	Profile    termenv.Profile
	MaxEntries int
}

// DefaultOptions picks up the color profile of the current terminal.
func DefaultOptions() Options {
	return Options{
		Style:      DefaultStyle,
		Profile:    termenv.EnvColorProfile(),
		MaxEntries: DefaultMaxEntries,
	}
}

type Highlighter struct {
	style     *chroma.Style
	formatter chroma.Formatter
	plain     bool
	max       int

	mu    sync.Mutex
	cache map[uint64]string
	order []uint64
}

func New(opts Options) *Highlighter {
	name := opts.Style
	if name == "" {
		name = DefaultStyle
	}
	limit := opts.MaxEntries
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	h := &Highlighter{
		style: styles.Get(name),
		max:   limit,
		cache: make(map[uint64]string),
	}
	switch opts.Profile {
	case termenv.TrueColor:
		h.formatter = formatters.Get("terminal16m")
	case termenv.ANSI256:
		h.formatter = formatters.Get("terminal256")
	case termenv.ANSI:
		h.formatter = formatters.Get("terminal")
	default:
		h.plain = true
	}
	return h
}

// Render colors text as lang. Plain text, an Ascii profile or a lexer
// failure all return text unchanged.
func (h *Highlighter) Render(lang, text string) string {
	if h == nil || h.plain || text == "" || lang == "" || lang == LangPlain {
		return text
	}
	key := cacheKey(lang, text)

	h.mu.Lock()
	if out, ok := h.cache[key]; ok {
		h.mu.Unlock()
		return out
	}
	h.mu.Unlock()

	out, err := h.format(lang, text)
	if err != nil {
		return text
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.cache[key]; !ok {
		h.cache[key] = out
		h.order = append(h.order, key)
		for len(h.order) > h.max {
			delete(h.cache, h.order[0])
			h.order = h.order[1:]
		}
	}
	return out
}

func (h *Highlighter) format(lang, text string) (string, error) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		return "", fmt.Errorf("no lexer for %q", lang)
	}
	lexer = chroma.Coalesce(lexer)
	it, err := lexer.Tokenise(nil, text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := h.formatter.Format(&b, h.style, it); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Response fills resp.Highlighted on first use and returns it. Binary and
// empty bodies have nothing to color.
func (h *Highlighter) Response(resp *httpclient.Response) string {
	if resp == nil || resp.Body.Kind != httpclient.BodyText {
		return ""
	}
	if resp.Highlighted == "" {
		resp.Highlighted = h.Render(DetectLang(resp.ContentType(), resp.Body.Text), resp.Body.Text)
	}
	return resp.Highlighted
}

func (h *Highlighter) Len() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cache)
}

// DetectLang maps a content type to a lexer name, sniffing the body when the
// header says nothing useful.
func DetectLang(contentType, text string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return LangJSON
	case strings.Contains(ct, "html"):
		return LangHTML
	case strings.Contains(ct, "xml"):
		return LangXML
	case strings.Contains(ct, "javascript"), strings.Contains(ct, "ecmascript"):
		return LangJavaScript
	case strings.Contains(ct, "yaml"):
		return LangYAML
	case strings.Contains(ct, "css"):
		return LangCSS
	}

	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return LangJSON
	case strings.HasPrefix(trimmed, "<?xml"):
		return LangXML
	case hasPrefixFold(trimmed, "<!doctype html"), hasPrefixFold(trimmed, "<html"):
		return LangHTML
	case strings.HasPrefix(trimmed, "<"):
		return LangXML
	}
	return LangPlain
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func cacheKey(lang, text string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(lang)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(text)
	return d.Sum64()
}
