package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/request"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		":3000/x":            "http://localhost:3000/x",
		"example.com":        "https://example.com",
		"http://x":           "http://x",
		"https://x/y":        "https://x/y",
		"localhost:8080/api": "http://localhost:8080/api",
		"127.0.0.1":          "http://127.0.0.1",
		"  api.dev/v1  ":     "https://api.dev/v1",
		"":                   "",
		"   ":                "",
	}
	for in, want := range cases {
		if got := NormalizeURL(in); got != want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func newRequest(method request.Method, url string) *request.Request {
	req := request.New()
	req.Method = method
	req.URL = url
	return req
}

func TestBuildRequestKeepsOrderAndDuplicates(t *testing.T) {
	t.Parallel()

	req := newRequest(request.MethodGet, "example.com/search?fixed=1")
	req.Params = []request.KV{
		{Key: "tag", Value: "a b", Enabled: true},
		{Key: "skip", Value: "x", Enabled: false},
		{Key: "tag", Value: "c", Enabled: true},
		{Key: " ", Value: "blank", Enabled: true},
	}
	req.Headers = []request.KV{
		{Key: "X-Trace", Value: "1", Enabled: true},
		{Key: "X-Off", Value: "1", Enabled: false},
		{Key: "X-Trace", Value: "2", Enabled: true},
	}

	httpReq, err := BuildRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if got := httpReq.URL.String(); got != "https://example.com/search?fixed=1&tag=a+b&tag=c" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := httpReq.Header.Values("X-Trace"); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("unexpected X-Trace values %v", got)
	}
	if httpReq.Header.Get("X-Off") != "" {
		t.Fatalf("disabled header was sent")
	}
	if httpReq.Body != nil && httpReq.Body != http.NoBody {
		t.Fatalf("expected no body")
	}
}

func TestBuildRequestAuth(t *testing.T) {
	t.Parallel()

	bearer := newRequest(request.MethodGet, "http://x")
	bearer.Headers = []request.KV{{Key: "Authorization", Value: "old", Enabled: true}}
	bearer.Auth = request.Auth{Kind: request.AuthBearer, Token: "tok"}
	httpReq, err := BuildRequest(context.Background(), bearer)
	if err != nil {
		t.Fatalf("bearer: %v", err)
	}
	if got := httpReq.Header.Values("Authorization"); len(got) != 1 || got[0] != "Bearer tok" {
		t.Fatalf("expected a single bearer header, got %v", got)
	}

	basic := newRequest(request.MethodGet, "http://x")
	basic.Auth = request.Auth{Kind: request.AuthBasic, Username: "user", Password: "pass"}
	httpReq, err = BuildRequest(context.Background(), basic)
	if err != nil {
		t.Fatalf("basic: %v", err)
	}
	user, pass, ok := httpReq.BasicAuth()
	if !ok || user != "user" || pass != "pass" {
		t.Fatalf("unexpected basic auth %q %q %v", user, pass, ok)
	}

	header := newRequest(request.MethodGet, "http://x")
	header.Auth = request.Auth{Kind: request.AuthAPIKey, KeyName: "X-API-Key", KeyValue: "k1", InHeader: true}
	httpReq, err = BuildRequest(context.Background(), header)
	if err != nil {
		t.Fatalf("api key header: %v", err)
	}
	if httpReq.Header.Get("X-API-Key") != "k1" || httpReq.URL.RawQuery != "" {
		t.Fatalf("api key not placed in header: %v %q", httpReq.Header, httpReq.URL.RawQuery)
	}

	query := newRequest(request.MethodGet, "http://x/p")
	query.Params = []request.KV{{Key: "a", Value: "1", Enabled: true}}
	query.Auth = request.Auth{Kind: request.AuthAPIKey, KeyName: "api_key", KeyValue: "k 2"}
	httpReq, err = BuildRequest(context.Background(), query)
	if err != nil {
		t.Fatalf("api key query: %v", err)
	}
	if httpReq.URL.RawQuery != "a=1&api_key=k+2" {
		t.Fatalf("api key should follow params, got %q", httpReq.URL.RawQuery)
	}
}

func readBody(t *testing.T, req *http.Request) string {
	t.Helper()
	if req.Body == nil {
		return ""
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func TestBuildRequestBodies(t *testing.T) {
	t.Parallel()

	text := newRequest(request.MethodPost, "http://x")
	text.Headers = []request.KV{{Key: "Content-Type", Value: "application/custom", Enabled: true}}
	text.Body = request.Body{Kind: request.BodyText, Text: "hello"}
	httpReq, err := BuildRequest(context.Background(), text)
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	if httpReq.Header.Get("Content-Type") != "text/plain" || readBody(t, httpReq) != "hello" {
		t.Fatalf("unexpected text request %v", httpReq.Header)
	}

	js := newRequest(request.MethodPut, "http://x")
	js.Body = request.Body{Kind: request.BodyJSON, Text: "{not json"}
	httpReq, err = BuildRequest(context.Background(), js)
	if err != nil {
		t.Fatalf("json bodies are not validated: %v", err)
	}
	if httpReq.Header.Get("Content-Type") != "application/json" || readBody(t, httpReq) != "{not json" {
		t.Fatalf("unexpected json request")
	}

	form := newRequest(request.MethodPost, "http://x")
	form.Body = request.Body{Kind: request.BodyForm, Form: []request.KV{
		{Key: "name", Value: "a&b", Enabled: true},
		{Key: "off", Value: "x", Enabled: false},
		{Key: "n", Value: "2", Enabled: true},
	}}
	httpReq, err = BuildRequest(context.Background(), form)
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	if httpReq.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected form content type %q", httpReq.Header.Get("Content-Type"))
	}
	if got := readBody(t, httpReq); got != "name=a%26b&n=2" {
		t.Fatalf("unexpected form body %q", got)
	}

	bin := newRequest(request.MethodPost, "http://x")
	bin.Body = request.Body{Kind: request.BodyBinary, Binary: []byte{0xff, 0x00}}
	httpReq, err = BuildRequest(context.Background(), bin)
	if err != nil {
		t.Fatalf("binary: %v", err)
	}
	if httpReq.Header.Get("Content-Type") != "" {
		t.Fatalf("binary body must not set a content type")
	}
	if got := readBody(t, httpReq); got != "\xff\x00" {
		t.Fatalf("unexpected binary body %q", got)
	}
}

func TestBuildRequestErrors(t *testing.T) {
	t.Parallel()

	badName := newRequest(request.MethodGet, "http://x")
	badName.Headers = []request.KV{{Key: "Bad Header", Value: "v", Enabled: true}}

	badValue := newRequest(request.MethodGet, "http://x")
	badValue.Headers = []request.KV{{Key: "X-Ok", Value: "line\nbreak", Enabled: true}}

	badMethod := newRequest("TRACE", "http://x")
	empty := newRequest(request.MethodGet, "  ")
	badURL := newRequest(request.MethodGet, "http://[::1")

	for name, req := range map[string]*request.Request{
		"header name":  badName,
		"header value": badValue,
		"method":       badMethod,
		"empty url":    empty,
		"bad url":      badURL,
	} {
		_, err := BuildRequest(context.Background(), req)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if errdef.CodeOf(err) != errdef.CodeBuild {
			t.Fatalf("%s: expected build code, got %s (%v)", name, errdef.CodeOf(err), err)
		}
	}
}

func TestEncodeForm(t *testing.T) {
	t.Parallel()

	got := EncodeForm([]request.KV{{Key: "q", Value: "x y", Enabled: true}, {Key: "q", Value: "z", Enabled: true}})
	if !strings.EqualFold(got, "q=x+y&q=z") {
		t.Fatalf("unexpected encoding %q", got)
	}
}
