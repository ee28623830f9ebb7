package send

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/httpclient"
	"github.com/forgehttp/forge/internal/request"
	"github.com/forgehttp/forge/internal/vars"
)

type Executor interface {
	Execute(ctx context.Context, req *request.Request) (*httpclient.Response, error)
}

// Recorder observes every completed send that was not canceled. It is called
// from the send goroutine.
type Recorder interface {
	Record(res Result) error
}

// Snapshot is the state read at send time. Later edits to the originals do
// not affect an in-flight send.
type Snapshot struct {
	Request     *request.Request
	Environment *vars.Environment
	// OSEnv is the lowest layer; nil means the process environment.
	OSEnv vars.Provider
}

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

type Result struct {
	ID          uint64
	RequestName string
	Method      request.Method
	DisplayURL  string
	Environment string
	Unresolved  []string
	StartedAt   time.Time
	Response    *httpclient.Response
	Err         error
}

func (r Result) Canceled() bool {
	return errdef.IsCanceled(r.Err)
}

// Status is the view state after this result: a cancel returns to idle
// rather than showing an error.
func (r Result) Status() Status {
	if r.Err != nil && !r.Canceled() {
		return StatusFailed
	}
	return StatusIdle
}

type handle struct {
	id     uint64
	cancel context.CancelFunc
}

// Dispatcher owns the single in-flight send. Send, Cancel and Accept must be
// called from one goroutine (the UI loop); only executions run elsewhere.
type Dispatcher struct {
	exec     Executor
	log      *slog.Logger
	recorder Recorder

	base    context.Context
	stop    context.CancelFunc
	results chan Result
	current *handle
	nextID  uint64
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

func NewDispatcher(exec Executor, opts ...Option) *Dispatcher {
	base, stop := context.WithCancel(context.Background())
	d := &Dispatcher{
		exec:    exec,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		base:    base,
		stop:    stop,
		results: make(chan Result, 8),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Results() <-chan Result {
	return d.results
}

// Send cancels whatever is in flight and dispatches snap. It returns the new
// handle id, or 0 when the request has no URL and nothing was sent.
func (d *Dispatcher) Send(snap Snapshot) uint64 {
	if snap.Request == nil || strings.TrimSpace(snap.Request.URL) == "" {
		return 0
	}
	d.cancelCurrent()

	d.nextID++
	ctx, cancel := context.WithCancel(d.base)
	d.current = &handle{id: d.nextID, cancel: cancel}

	resolver := vars.FromEnvironment(snap.Environment, snap.OSEnv)
	res := Result{
		ID:          d.nextID,
		RequestName: snap.Request.Name,
		Method:      snap.Request.Method,
		DisplayURL:  resolver.Resolve(snap.Request.URL).Value,
		Unresolved:  unresolvedNames(resolver, snap.Request),
		StartedAt:   time.Now(),
	}
	if snap.Environment != nil {
		res.Environment = snap.Environment.Name
	}
	resolved := ResolveRequest(resolver, snap.Request)

	d.log.Debug("send dispatched",
		"id", res.ID,
		"method", res.Method,
		"url", res.DisplayURL,
		"env", res.Environment,
	)
	if len(res.Unresolved) > 0 {
		d.log.Warn("sending with unresolved placeholders", "id", res.ID, "names", res.Unresolved)
	}

	go d.run(ctx, resolved, res)
	return res.ID
}

func (d *Dispatcher) run(ctx context.Context, req *request.Request, res Result) {
	res.Response, res.Err = d.exec.Execute(ctx, req)

	switch {
	case res.Canceled():
		d.log.Debug("send canceled", "id", res.ID)
	case res.Err != nil:
		d.log.Info("send failed", "id", res.ID, "code", errdef.CodeOf(res.Err), "err", res.Err)
	default:
		d.log.Info("send completed",
			"id", res.ID,
			"status", res.Response.StatusCode,
			"bytes", res.Response.SizeBytes,
			"elapsed", res.Response.Timing.Total,
		)
	}
	if d.recorder != nil && !res.Canceled() {
		if err := d.recorder.Record(res); err != nil {
			d.log.Warn("record send", "id", res.ID, "err", err)
		}
	}

	select {
	case d.results <- res:
	case <-d.base.Done():
	}
}

// Cancel aborts the in-flight send, if any. It does not wait for the
// execution to stop.
func (d *Dispatcher) Cancel() bool {
	if d.current == nil {
		return false
	}
	d.cancelCurrent()
	return true
}

func (d *Dispatcher) cancelCurrent() {
	if d.current == nil {
		return
	}
	d.current.cancel()
	d.current = nil
}

// Accept reports whether res belongs to the live handle and, if so, retires
// it. Results of abandoned sends are rejected by id.
func (d *Dispatcher) Accept(res Result) bool {
	if d.current == nil || d.current.id != res.ID {
		return false
	}
	d.current.cancel()
	d.current = nil
	return true
}

func (d *Dispatcher) InFlight() (uint64, bool) {
	if d.current == nil {
		return 0, false
	}
	return d.current.id, true
}

// Close cancels everything and releases goroutines blocked on delivery.
func (d *Dispatcher) Close() {
	d.cancelCurrent()
	d.stop()
}
