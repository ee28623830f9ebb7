package request

import (
	"strings"

	"github.com/google/uuid"
)

const DefaultName = "Untitled Request"

type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// Methods is the cycling order used by method selectors.
var Methods = []Method{
	MethodGet,
	MethodPost,
	MethodPut,
	MethodPatch,
	MethodDelete,
	MethodHead,
	MethodOptions,
}

func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

func (m Method) String() string {
	return string(m)
}

func (m Method) index() int {
	for i, known := range Methods {
		if known == m {
			return i
		}
	}
	return 0
}

func (m Method) Next() Method {
	return Methods[(m.index()+1)%len(Methods)]
}

func (m Method) Prev() Method {
	return Methods[(m.index()+len(Methods)-1)%len(Methods)]
}

// KV is a header, query param or form field row.
type KV struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
}

// Active reports whether the row is sent: enabled with a non-blank key.
func (kv KV) Active() bool {
	return kv.Enabled && strings.TrimSpace(kv.Key) != ""
}

func ActivePairs(pairs []KV) []KV {
	var out []KV
	for _, kv := range pairs {
		if kv.Active() {
			out = append(out, kv)
		}
	}
	return out
}

type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBearer AuthKind = "bearer"
	AuthBasic  AuthKind = "basic"
	AuthAPIKey AuthKind = "apikey"
)

type Auth struct {
	Kind     AuthKind `json:"kind"`
	Token    string   `json:"token,omitempty"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	KeyName  string   `json:"key_name,omitempty"`
	KeyValue string   `json:"key_value,omitempty"`
	// InHeader places an API key in a header; false puts it in the query.
	InHeader bool `json:"in_header,omitempty"`
}

type BodyKind string

const (
	BodyNone   BodyKind = "none"
	BodyText   BodyKind = "text"
	BodyJSON   BodyKind = "json"
	BodyForm   BodyKind = "form"
	BodyBinary BodyKind = "binary"
)

type Body struct {
	Kind   BodyKind `json:"kind"`
	Text   string   `json:"text,omitempty"`
	Form   []KV     `json:"form,omitempty"`
	Binary []byte   `json:"binary,omitempty"`
}

type Request struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Method  Method `json:"method"`
	URL     string `json:"url"`
	Headers []KV   `json:"headers,omitempty"`
	Params  []KV   `json:"params,omitempty"`
	Auth    Auth   `json:"auth"`
	Body    Body   `json:"body"`
}

func New() *Request {
	return &Request{
		ID:     uuid.NewString(),
		Name:   DefaultName,
		Method: MethodGet,
		Auth:   Auth{Kind: AuthNone, InHeader: true},
		Body:   Body{Kind: BodyNone},
	}
}

// Clone returns a deep copy; the send path works on clones so the UI copy
// keeps its placeholders.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Headers = append([]KV(nil), r.Headers...)
	clone.Params = append([]KV(nil), r.Params...)
	clone.Body.Form = append([]KV(nil), r.Body.Form...)
	if r.Body.Binary != nil {
		clone.Body.Binary = append([]byte(nil), r.Body.Binary...)
	}
	return &clone
}

func (r *Request) AddHeader(key, value string) {
	r.Headers = append(r.Headers, KV{Key: key, Value: value, Enabled: true})
}

func (r *Request) AddParam(key, value string) {
	r.Params = append(r.Params, KV{Key: key, Value: value, Enabled: true})
}
