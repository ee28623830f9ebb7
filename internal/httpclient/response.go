package httpclient

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/forgehttp/forge/internal/nettrace"
)

type Header struct {
	Name  string
	Value string
}

type BodyKind int

const (
	BodyEmpty BodyKind = iota
	BodyText
	BodyBinary
)

func (k BodyKind) String() string {
	switch k {
	case BodyEmpty:
		return "empty"
	case BodyText:
		return "text"
	case BodyBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Body is the displayable form of a response payload. Text may be
// reformatted (pretty JSON, replacement characters), so the exact bytes
// received live in Response.Raw.
type Body struct {
	Kind  BodyKind
	Text  string
	Bytes []byte
}

type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Timing is the per-phase breakdown of one exchange. DNS, Connect and TLS are
// zero when the phase did not happen, e.g. on a pooled connection.
type Timing struct {
	DNS      time.Duration
	Connect  time.Duration
	TLS      time.Duration
	TTFB     time.Duration
	Download time.Duration
	Total    time.Duration
}

// SentRequest is what went over the wire, after resolution.
type SentRequest struct {
	Method  string
	URL     string
	Headers []Header
	Body    []byte
}

type Response struct {
	StatusCode   int
	StatusText   string
	Proto        string
	Headers      []Header
	Body         Body
	Raw          []byte
	Cookies      []Cookie
	Timing       Timing
	SizeBytes    int
	ReceivedAt   time.Time
	EffectiveURL string
	Sent         SentRequest
	Timeline     *nettrace.Timeline

	// Owned by the view after delivery.
	ScrollOffset int
	Highlighted  string
}

// Header returns the first value for name, case-insensitively.
func (r *Response) Header(name string) string {
	if r == nil {
		return ""
	}
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

// Status renders "200 OK".
func (r *Response) Status() string {
	if r == nil {
		return ""
	}
	text := r.StatusText
	if text == "" {
		text = http.StatusText(r.StatusCode)
	}
	return strings.TrimSpace(strconv.Itoa(r.StatusCode) + " " + text)
}

func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 400
}

// flattenHeaders orders names alphabetically since http.Header drops wire
// order; values keep their received order.
func flattenHeaders(h http.Header) []Header {
	if len(h) == 0 {
		return nil
	}
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Header, 0, len(names))
	for _, name := range names {
		for _, value := range h[name] {
			out = append(out, Header{Name: name, Value: value})
		}
	}
	return out
}

// statusText strips the numeric prefix from "404 Not Found".
func statusText(status string, code int) string {
	prefix := strconv.Itoa(code)
	if rest, ok := strings.CutPrefix(status, prefix); ok {
		if text := strings.TrimSpace(rest); text != "" {
			return text
		}
	}
	return http.StatusText(code)
}
