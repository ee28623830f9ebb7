package main

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/forgehttp/forge/internal/config"
	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/request"
	"github.com/forgehttp/forge/internal/telemetry"
)

type requestOptions struct {
	method      string
	url         string
	name        string
	headers     []string
	params      []string
	bearer      string
	basic       string
	apiKey      string
	apiKeyQuery bool
	data        string
	json        string
	form        []string
	dataBinary  string
}

func (o *requestOptions) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.method, "method", "X", "", "HTTP method (default GET, or POST when a body is given)")
	fs.StringVar(&o.url, "url", "", "Request URL; may contain {{placeholders}}")
	fs.StringVar(&o.name, "name", "", "Request name shown in history and traces")
	fs.StringArrayVarP(&o.headers, "header", "H", nil, `Header "Name: value" (repeatable)`)
	fs.StringArrayVarP(&o.params, "query", "q", nil, "Query parameter key=value (repeatable)")
	fs.StringVar(&o.bearer, "bearer", "", "Bearer token")
	fs.StringVar(&o.basic, "basic", "", "Basic auth user:password")
	fs.StringVar(&o.apiKey, "api-key", "", "API key name=value, sent as a header")
	fs.BoolVar(&o.apiKeyQuery, "api-key-query", false, "Send --api-key as a query parameter instead")
	fs.StringVar(&o.data, "data", "", "Raw text body")
	fs.StringVar(&o.json, "json", "", "JSON body")
	fs.StringArrayVar(&o.form, "form", nil, "Form field key=value (repeatable)")
	fs.StringVar(&o.dataBinary, "data-binary", "", "Binary body; @path reads a file")
}

// build assembles the request descriptor. A positional URL wins over --url.
func (o *requestOptions) build(args []string) (*request.Request, error) {
	req := request.New()
	if name := strings.TrimSpace(o.name); name != "" {
		req.Name = name
	}
	req.URL = strings.TrimSpace(o.url)
	if len(args) > 0 {
		req.URL = strings.TrimSpace(args[0])
	}

	for _, raw := range o.headers {
		name, value, ok := strings.Cut(raw, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errdef.New(errdef.CodeBuild, "invalid header %q, expected \"Name: value\"", raw)
		}
		req.AddHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	for _, raw := range o.params {
		key, value, _ := strings.Cut(raw, "=")
		if key == "" {
			return nil, errdef.New(errdef.CodeBuild, "invalid query parameter %q, expected key=value", raw)
		}
		req.AddParam(key, value)
	}

	if err := o.buildAuth(req); err != nil {
		return nil, err
	}
	if err := o.buildBody(req); err != nil {
		return nil, err
	}

	switch {
	case o.method != "":
		m, ok := request.ParseMethod(o.method)
		if !ok {
			return nil, errdef.New(errdef.CodeBuild, "unsupported method %q", o.method)
		}
		req.Method = m
	case req.Body.Kind != request.BodyNone:
		req.Method = request.MethodPost
	}
	return req, nil
}

func (o *requestOptions) buildAuth(req *request.Request) error {
	set := 0
	for _, v := range []string{o.bearer, o.basic, o.apiKey} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return errdef.New(errdef.CodeBuild, "only one of --bearer, --basic, --api-key may be given")
	}
	switch {
	case o.bearer != "":
		req.Auth = request.Auth{Kind: request.AuthBearer, Token: o.bearer}
	case o.basic != "":
		user, pass, _ := strings.Cut(o.basic, ":")
		req.Auth = request.Auth{Kind: request.AuthBasic, Username: user, Password: pass}
	case o.apiKey != "":
		name, value, ok := strings.Cut(o.apiKey, "=")
		if !ok || name == "" {
			return errdef.New(errdef.CodeBuild, "invalid --api-key %q, expected name=value", o.apiKey)
		}
		req.Auth = request.Auth{
			Kind:     request.AuthAPIKey,
			KeyName:  name,
			KeyValue: value,
			InHeader: !o.apiKeyQuery,
		}
	}
	return nil
}

func (o *requestOptions) buildBody(req *request.Request) error {
	given := 0
	if o.data != "" {
		given++
	}
	if o.json != "" {
		given++
	}
	if len(o.form) > 0 {
		given++
	}
	if o.dataBinary != "" {
		given++
	}
	if given > 1 {
		return errdef.New(errdef.CodeBuild, "only one of --data, --json, --form, --data-binary may be given")
	}

	switch {
	case o.data != "":
		req.Body = request.Body{Kind: request.BodyText, Text: o.data}
	case o.json != "":
		req.Body = request.Body{Kind: request.BodyJSON, Text: o.json}
	case len(o.form) > 0:
		req.Body = request.Body{Kind: request.BodyForm}
		for _, raw := range o.form {
			key, value, _ := strings.Cut(raw, "=")
			req.Body.Form = append(req.Body.Form, request.KV{Key: key, Value: value, Enabled: true})
		}
	case o.dataBinary != "":
		data := []byte(o.dataBinary)
		if path, ok := strings.CutPrefix(o.dataBinary, "@"); ok {
			read, err := os.ReadFile(path)
			if err != nil {
				return errdef.Wrap(errdef.CodeFilesystem, err, "read --data-binary file %s", path)
			}
			data = read
		}
		req.Body = request.Body{Kind: request.BodyBinary, Binary: data}
	}
	return nil
}

type envOptions struct {
	name string
	file string
}

func (o *envOptions) bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.name, "env", "", "Environment name to use")
	fs.StringVar(&o.file, "env-file", "", "Environments file (TOML/JSON) or .env file")
}

type clientOptions struct {
	timeout      time.Duration
	insecure     bool
	follow       bool
	proxy        string
	otelEndpoint string
	otelInsecure bool
	otelService  string
}

func (o *clientOptions) bind(fs *pflag.FlagSet) {
	fs.DurationVar(&o.timeout, "timeout", time.Duration(config.HTTPTimeoutDefault*float64(time.Second)), "Request timeout")
	fs.BoolVar(&o.insecure, "insecure", false, "Skip TLS certificate verification")
	fs.BoolVar(&o.follow, "follow", true, "Follow redirects")
	fs.StringVar(&o.proxy, "proxy", "", "Proxy URL (http, https or socks5)")
	fs.StringVar(&o.otelEndpoint, "trace-otel-endpoint", "", "OTLP/gRPC collector endpoint; enables tracing")
	fs.BoolVar(&o.otelInsecure, "trace-otel-insecure", false, "Disable TLS for OTLP export")
	fs.StringVar(&o.otelService, "trace-otel-service", "", "service.name for exported spans")
}

// httpSettings overlays flags the user actually set onto the saved settings.
func (o *clientOptions) httpSettings(fs *pflag.FlagSet, base config.HTTPSettings) config.HTTPSettings {
	out := base
	if fs.Changed("timeout") {
		out.TimeoutSeconds = o.timeout.Seconds()
	}
	if fs.Changed("insecure") {
		out.Insecure = o.insecure
	}
	if fs.Changed("follow") {
		out.FollowRedirects = o.follow
	}
	if fs.Changed("proxy") {
		out.Proxy = o.proxy
	}
	return config.NormaliseHTTPSettings(out)
}

// telemetryConfig starts from FORGE_OTEL_* and lets flags override.
func (o *clientOptions) telemetryConfig(fs *pflag.FlagSet, getenv func(string) string) telemetry.Config {
	cfg := telemetry.ConfigFromEnv(getenv)
	if fs.Changed("trace-otel-endpoint") {
		cfg.Endpoint = strings.TrimSpace(o.otelEndpoint)
	}
	if fs.Changed("trace-otel-insecure") {
		cfg.Insecure = o.otelInsecure
	}
	if fs.Changed("trace-otel-service") {
		if svc := strings.TrimSpace(o.otelService); svc != "" {
			cfg.ServiceName = svc
		}
	}
	cfg.Version = version
	return cfg
}
