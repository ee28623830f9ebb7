package httpclient

import (
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/forgehttp/forge/internal/telemetry"
)

const DefaultTimeout = 30 * time.Second

type Options struct {
	Timeout            time.Duration
	FollowRedirects    bool
	InsecureSkipVerify bool
	ProxyURL           string
	// Trace records per-phase network timings through httptrace.
	Trace bool
}

func DefaultOptions() Options {
	return Options{Timeout: DefaultTimeout, FollowRedirects: true, Trace: true}
}

// Client is shared read-only by every in-flight send. The underlying
// http.Client is built once, on first use.
type Client struct {
	opts        Options
	jar         http.CookieJar
	httpFactory func(Options) (*http.Client, error)
	telemetry   telemetry.Instrumenter

	once    sync.Once
	http    *http.Client
	httpErr error
}

func NewClient(opts Options) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{opts: opts, jar: jar, telemetry: telemetry.Noop()}
	c.httpFactory = c.buildHTTPClient
	return c
}

func (c *Client) Options() Options {
	return c.opts
}

// SetHTTPFactory allows callers to override how the http.Client is created.
// Passing nil restores the default factory. Must be called before the first
// Execute.
func (c *Client) SetHTTPFactory(factory func(Options) (*http.Client, error)) {
	if factory == nil {
		factory = c.buildHTTPClient
	}
	c.httpFactory = factory
}

// SetTelemetry configures the instrumenter used to emit OpenTelemetry spans. Passing nil restores the no-op implementation.
func (c *Client) SetTelemetry(instr telemetry.Instrumenter) {
	if instr == nil {
		instr = telemetry.Noop()
	}
	c.telemetry = instr
}

func (c *Client) httpClient() (*http.Client, error) {
	c.once.Do(func() {
		c.http, c.httpErr = c.httpFactory(c.opts)
	})
	return c.http, c.httpErr
}
