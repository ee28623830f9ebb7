package httpclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/request"
)

const (
	contentTypeText = "text/plain"
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// NormalizeURL fills in a scheme the way users type URLs in a terminal:
// ":3000/x" targets localhost, bare localhost and 127.0.0.1 get plain http,
// anything else without a scheme gets https.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	switch {
	case u == "":
		return ""
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return u
	case strings.HasPrefix(u, ":"):
		return "http://localhost" + u
	case strings.HasPrefix(u, "localhost"), strings.HasPrefix(u, "127.0.0.1"):
		return "http://" + u
	default:
		return "https://" + u
	}
}

// BuildRequest turns an already resolved request into an *http.Request.
// Params and headers keep declaration order and duplicates. Auth is applied
// after them and the body last, so the body decides Content-Type.
func BuildRequest(ctx context.Context, req *request.Request) (*http.Request, error) {
	if req == nil {
		return nil, errdef.New(errdef.CodeBuild, "request is nil")
	}
	method, ok := request.ParseMethod(string(req.Method))
	if !ok {
		return nil, errdef.New(errdef.CodeBuild, "unsupported method %q", req.Method)
	}

	target := NormalizeURL(req.URL)
	if target == "" {
		return nil, errdef.New(errdef.CodeBuild, "request url is empty")
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeBuild, err, "parse url")
	}
	if u.Host == "" {
		return nil, errdef.New(errdef.CodeBuild, "url %q has no host", target)
	}
	for _, kv := range request.ActivePairs(req.Params) {
		appendQuery(u, kv.Key, kv.Value)
	}

	body, err := bodyReader(req.Body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, method.String(), u.String(), body)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeBuild, err, "build request")
	}

	for _, kv := range request.ActivePairs(req.Headers) {
		if err := addHeader(httpReq.Header, kv.Key, kv.Value); err != nil {
			return nil, err
		}
	}
	if err := applyAuth(httpReq, req.Auth); err != nil {
		return nil, err
	}
	applyContentType(httpReq.Header, req.Body.Kind)
	return httpReq, nil
}

func appendQuery(u *url.URL, key, value string) {
	pair := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	if u.RawQuery == "" {
		u.RawQuery = pair
		return
	}
	u.RawQuery += "&" + pair
}

func addHeader(h http.Header, name, value string) error {
	name = strings.TrimSpace(name)
	if !httpguts.ValidHeaderFieldName(name) {
		return errdef.New(errdef.CodeBuild, "invalid header name %q", name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return errdef.New(errdef.CodeBuild, "invalid value for header %q", name)
	}
	h.Add(name, value)
	return nil
}

func applyAuth(req *http.Request, auth request.Auth) error {
	switch auth.Kind {
	case request.AuthBearer:
		value := "Bearer " + auth.Token
		if !httpguts.ValidHeaderFieldValue(value) {
			return errdef.New(errdef.CodeBuild, "invalid bearer token")
		}
		req.Header.Set("Authorization", value)
	case request.AuthBasic:
		creds := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
		req.Header.Set("Authorization", "Basic "+creds)
	case request.AuthAPIKey:
		if strings.TrimSpace(auth.KeyName) == "" {
			return errdef.New(errdef.CodeBuild, "api key name is empty")
		}
		if auth.InHeader {
			return addHeader(req.Header, auth.KeyName, auth.KeyValue)
		}
		appendQuery(req.URL, auth.KeyName, auth.KeyValue)
	}
	return nil
}

func bodyReader(body request.Body) (io.Reader, error) {
	switch body.Kind {
	case request.BodyText, request.BodyJSON:
		return strings.NewReader(body.Text), nil
	case request.BodyForm:
		return strings.NewReader(EncodeForm(body.Form)), nil
	case request.BodyBinary:
		return bytes.NewReader(body.Binary), nil
	case request.BodyNone, "":
		return nil, nil
	default:
		return nil, errdef.New(errdef.CodeBuild, "unknown body kind %q", body.Kind)
	}
}

// EncodeForm url-encodes active pairs in declaration order.
func EncodeForm(pairs []request.KV) string {
	var b strings.Builder
	for _, kv := range request.ActivePairs(pairs) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}

func applyContentType(h http.Header, kind request.BodyKind) {
	switch kind {
	case request.BodyText:
		h.Set("Content-Type", contentTypeText)
	case request.BodyJSON:
		h.Set("Content-Type", contentTypeJSON)
	case request.BodyForm:
		h.Set("Content-Type", contentTypeForm)
	}
}
