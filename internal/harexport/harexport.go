// Package harexport writes a completed exchange as an HTTP Archive (HAR 1.2)
// document.
package harexport

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pb33f/harhar"

	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/httpclient"
)

const (
	Version     = "1.2"
	CreatorName = "forge"

	// HAR uses -1 for phases that did not happen or were not measured.
	notApplicable = -1
)

// Build wraps a single response in a HAR log.
func Build(resp *httpclient.Response, creatorVersion string) *harhar.HAR {
	har := &harhar.HAR{
		Log: harhar.Log{
			Version: Version,
			Creator: harhar.Creator{Name: CreatorName, Version: creatorVersion},
			Entries: []harhar.Entry{},
		},
	}
	if resp != nil {
		har.Log.Entries = append(har.Log.Entries, Entry(resp))
	}
	return har
}

func Entry(resp *httpclient.Response) harhar.Entry {
	started := resp.ReceivedAt.Add(-resp.Timing.Total)
	entry := harhar.Entry{
		Start:    started.UTC().Format(time.RFC3339Nano),
		Time:     millis(resp.Timing.Total),
		Request:  buildRequest(resp.Sent, resp.Proto),
		Response: buildResponse(resp),
		Timings:  buildTimings(resp.Timing),
	}
	if tl := resp.Timeline; tl != nil && tl.Conn != nil {
		entry.ServerIP = hostOnly(tl.Conn.RemoteAddr)
		if _, port, err := net.SplitHostPort(tl.Conn.RemoteAddr); err == nil {
			entry.Connection = port
		}
	}
	return entry
}

func buildRequest(sent httpclient.SentRequest, proto string) harhar.Request {
	req := harhar.Request{
		Method:      sent.Method,
		URL:         sent.URL,
		HTTPVersion: protoOrDefault(proto),
		Cookies:     []harhar.Cookie{},
		Headers:     pairs(sent.Headers),
		QueryParams: []harhar.NameValuePair{},
		HeadersSize: notApplicable,
		BodySize:    len(sent.Body),
	}
	if u, err := url.Parse(sent.URL); err == nil {
		for _, part := range strings.Split(u.RawQuery, "&") {
			if part == "" {
				continue
			}
			name, value, _ := strings.Cut(part, "=")
			name, _ = url.QueryUnescape(name)
			value, _ = url.QueryUnescape(value)
			req.QueryParams = append(req.QueryParams, harhar.NameValuePair{Name: name, Value: value})
		}
	}
	if len(sent.Body) > 0 {
		req.Body = harhar.BodyType{
			MIMEType: headerValue(sent.Headers, "Content-Type"),
			Content:  string(sent.Body),
		}
	}
	return req
}

func buildResponse(resp *httpclient.Response) harhar.Response {
	out := harhar.Response{
		StatusCode:  resp.StatusCode,
		StatusText:  resp.StatusText,
		HTTPVersion: protoOrDefault(resp.Proto),
		RedirectURL: resp.Header("Location"),
		Cookies:     make([]harhar.Cookie, 0, len(resp.Cookies)),
		Headers:     pairs(resp.Headers),
		HeadersSize: notApplicable,
		BodySize:    resp.SizeBytes,
		Body: harhar.BodyResponseType{
			Size:     resp.SizeBytes,
			MIMEType: resp.ContentType(),
		},
	}
	for _, c := range resp.Cookies {
		out.Cookies = append(out.Cookies, harhar.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: c.Domain,
		})
	}
	switch resp.Body.Kind {
	case httpclient.BodyText:
		out.Body.Content = string(resp.Raw)
	case httpclient.BodyBinary:
		out.Body.Content = base64.StdEncoding.EncodeToString(resp.Raw)
		out.Body.Encoding = "base64"
	}
	return out
}

// buildTimings maps the phase breakdown onto HAR fields. Connect includes
// the TLS handshake as HAR requires; wait is what remains of TTFB after the
// connection was set up.
func buildTimings(t httpclient.Timing) harhar.Timings {
	timings := harhar.Timings{
		Blocked: notApplicable,
		DNS:     notApplicable,
		Connect: notApplicable,
		SSL:     notApplicable,
		Receive: millis(t.Download),
	}
	if t.DNS > 0 {
		timings.DNS = millis(t.DNS)
	}
	if t.Connect > 0 || t.TLS > 0 {
		timings.Connect = millis(t.Connect + t.TLS)
	}
	if t.TLS > 0 {
		timings.SSL = millis(t.TLS)
	}
	wait := t.TTFB - t.DNS - t.Connect - t.TLS
	if wait < 0 {
		wait = 0
	}
	timings.Wait = millis(wait)
	return timings
}

// Write encodes the HAR document as indented JSON.
func Write(w io.Writer, resp *httpclient.Response, creatorVersion string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Build(resp, creatorVersion))
}

func WriteFile(path string, resp *httpclient.Response, creatorVersion string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errdef.Wrap(errdef.CodeFilesystem, err, "create har directory")
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create har file %s", path)
	}
	if err := Write(f, resp, creatorVersion); err != nil {
		_ = f.Close()
		return errdef.Wrap(errdef.CodeFilesystem, err, "write har file %s", path)
	}
	if err := f.Close(); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "close har file %s", path)
	}
	return nil
}

func pairs(headers []httpclient.Header) []harhar.NameValuePair {
	out := make([]harhar.NameValuePair, 0, len(headers))
	for _, h := range headers {
		out = append(out, harhar.NameValuePair{Name: h.Name, Value: h.Value})
	}
	return out
}

func headerValue(headers []httpclient.Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func protoOrDefault(proto string) string {
	if proto == "" {
		return "HTTP/1.1"
	}
	return proto
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
