package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/nettrace"
	"github.com/forgehttp/forge/internal/request"
)

var (
	tracerName  = "github.com/forgehttp/forge/internal/telemetry"
	httpHostKey = attribute.Key("http.host")
)

type Instrumenter interface {
	Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan)
	Shutdown(ctx context.Context) error
}

// RequestStart carries the already resolved request, so span attributes hold
// real URLs. Secret headers are never copied onto spans.
type RequestStart struct {
	Request     *request.Request
	HTTPRequest *http.Request
}

type RequestResult struct {
	Err        error
	StatusCode int
	SizeBytes  int
}

type RequestSpan interface {
	RecordTrace(tl *nettrace.Timeline)
	End(result RequestResult)
}

type providerOptions struct {
	exporter       sdktrace.SpanExporter
	spanProcessors []sdktrace.SpanProcessor
}

type Option func(*providerOptions)

func WithSpanProcessor(proc sdktrace.SpanProcessor) Option {
	return func(opts *providerOptions) {
		if proc != nil {
			opts.spanProcessors = append(opts.spanProcessors, proc)
		}
	}
}

func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(opts *providerOptions) {
		if exp != nil {
			opts.exporter = exp
		}
	}
}

type manager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	shutdown sync.Once
}

func New(cfg Config, opts ...Option) (Instrumenter, error) {
	builder := providerOptions{}
	for _, opt := range opts {
		opt(&builder)
	}

	if !cfg.Enabled() && builder.exporter == nil && len(builder.spanProcessors) == 0 {
		return Noop(), nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(buildResourceAttributes(cfg)...),
	)
	if err != nil {
		return nil, err
	}

	exporter := builder.exporter
	if exporter == nil && cfg.Enabled() {
		exporter, err = newExporter(cfg)
		if err != nil {
			return nil, err
		}
	}

	var tpOpts []sdktrace.TracerProviderOption
	tpOpts = append(tpOpts, sdktrace.WithResource(res))
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	for _, proc := range builder.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(proc))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &manager{tracer: tp.Tracer(tracerName), provider: tp}, nil
}

func (m *manager) Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan) {
	if info.HTTPRequest == nil {
		return ctx, noopSpan{}
	}

	attrs := buildSpanAttributes(info)
	spanName := spanNameFor(info)
	ctx, span := m.tracer.Start(
		ctx,
		spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, &requestSpan{span: span}
}

func (m *manager) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	var shutdownErr error
	m.shutdown.Do(func() {
		shutdownErr = m.provider.Shutdown(ctx)
	})
	return shutdownErr
}

type requestSpan struct {
	span trace.Span
}

func (rs *requestSpan) RecordTrace(tl *nettrace.Timeline) {
	if rs == nil || rs.span == nil || tl == nil {
		return
	}

	rs.span.SetAttributes(attribute.Int64("forge.trace.duration_ms", tl.Duration.Milliseconds()))
	if !tl.Started.IsZero() {
		rs.span.SetAttributes(
			attribute.String("forge.trace.started_at", tl.Started.Format(time.RFC3339Nano)),
		)
	}
	if strings.TrimSpace(tl.Err) != "" {
		rs.span.AddEvent(
			"forge.trace.error",
			trace.WithAttributes(attribute.String("forge.error", tl.Err)),
		)
	}
	if conn := tl.Conn; conn != nil {
		if conn.RemoteAddr != "" {
			rs.span.SetAttributes(attribute.String("forge.conn.remote_addr", conn.RemoteAddr))
		}
		if conn.Protocol != "" {
			rs.span.SetAttributes(attribute.String("forge.conn.protocol", conn.Protocol))
		}
		if conn.TLSVersion != "" {
			rs.span.SetAttributes(attribute.String("forge.conn.tls_version", conn.TLSVersion))
		}
		rs.span.SetAttributes(attribute.Bool("forge.conn.reused", conn.Reused))
	}

	for _, phase := range tl.Phases {
		attrs := []attribute.KeyValue{
			attribute.String("forge.trace.phase", string(phase.Kind)),
			attribute.Int64("forge.trace.phase_duration_ms", phase.Duration.Milliseconds()),
		}
		if phase.Reused {
			attrs = append(attrs, attribute.Bool("forge.trace.reused", true))
		}
		if strings.TrimSpace(phase.Err) != "" {
			attrs = append(attrs, attribute.String("forge.trace.phase_error", phase.Err))
		}
		rs.span.AddEvent(
			"forge.trace.phase",
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(phase.Start.Add(phase.Duration)),
		)
	}
}

func (rs *requestSpan) End(result RequestResult) {
	if rs == nil || rs.span == nil {
		return
	}

	if result.StatusCode > 0 {
		rs.span.SetAttributes(semconv.HTTPStatusCodeKey.Int(result.StatusCode))
	}
	if result.SizeBytes > 0 {
		rs.span.SetAttributes(attribute.Int("forge.response.size_bytes", result.SizeBytes))
	}

	switch {
	case errdef.IsCanceled(result.Err):
		rs.span.AddEvent("forge.request.canceled")
		rs.span.SetStatus(codes.Unset, "canceled")
	case result.Err != nil:
		rs.span.RecordError(result.Err)
		rs.span.SetStatus(codes.Error, result.Err.Error())
	case result.StatusCode >= 400:
		rs.span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", result.StatusCode))
	default:
		rs.span.SetStatus(codes.Ok, "OK")
	}
	rs.span.End()
}

func Noop() Instrumenter {
	return noopInstrumenter{}
}

type noopInstrumenter struct{}

type noopSpan struct{}

func (noopInstrumenter) Start(ctx context.Context, _ RequestStart) (context.Context, RequestSpan) {
	return ctx, noopSpan{}
}

func (noopInstrumenter) Shutdown(context.Context) error { return nil }

func (noopSpan) RecordTrace(*nettrace.Timeline) {}

func (noopSpan) End(RequestResult) {}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("telemetry endpoint is required")
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	client := otlptracegrpc.NewClient(clientOpts...)
	return otlptrace.New(ctx, client)
}

func buildResourceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}
	if strings.TrimSpace(cfg.Version) != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	return attrs
}

func buildSpanAttributes(info RequestStart) []attribute.KeyValue {
	req := info.HTTPRequest
	attrs := []attribute.KeyValue{semconv.HTTPMethodKey.String(req.Method)}

	if req.URL != nil {
		if scheme := req.URL.Scheme; scheme != "" {
			attrs = append(attrs, semconv.HTTPSchemeKey.String(scheme))
		}
		if host := req.URL.Host; host != "" {
			attrs = append(attrs, httpHostKey.String(host))
		}
		// the query may carry an api key, so only the path is recorded
		if path := req.URL.EscapedPath(); path != "" {
			attrs = append(attrs, semconv.HTTPTargetKey.String(path))
		}
	}

	if info.Request != nil {
		if id := strings.TrimSpace(info.Request.ID); id != "" {
			attrs = append(attrs, attribute.String("forge.request.id", id))
		}
		if name := strings.TrimSpace(info.Request.Name); name != "" {
			attrs = append(attrs, attribute.String("forge.request.name", name))
		}
		attrs = append(attrs,
			attribute.String("forge.request.auth", string(info.Request.Auth.Kind)),
			attribute.String("forge.request.body", string(info.Request.Body.Kind)),
		)
	}
	return attrs
}

func spanNameFor(info RequestStart) string {
	if info.Request != nil {
		if name := strings.TrimSpace(info.Request.Name); name != "" && name != request.DefaultName {
			return name
		}
	}
	if info.HTTPRequest != nil && info.HTTPRequest.Method != "" {
		if info.HTTPRequest.URL != nil && info.HTTPRequest.URL.Host != "" {
			return fmt.Sprintf("%s %s", info.HTTPRequest.Method, info.HTTPRequest.URL.Host)
		}
		return info.HTTPRequest.Method
	}
	return "http.request"
}
