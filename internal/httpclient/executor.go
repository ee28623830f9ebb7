package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/nettrace"
	"github.com/forgehttp/forge/internal/request"
	"github.com/forgehttp/forge/internal/telemetry"
)

var errCanceled = errdef.Wrap(errdef.CodeCanceled, context.Canceled, "request canceled")

// Execute runs req, which must already be resolved, and races the round trip
// against ctx. When ctx wins the in-flight exchange is abandoned and the error
// has errdef.CodeCanceled; a partial response is never returned.
func (c *Client) Execute(ctx context.Context, req *request.Request) (*Response, error) {
	type outcome struct {
		resp *Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := c.roundTrip(ctx, req)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctxError(ctx.Err())
	case out := <-done:
		if ctx.Err() != nil {
			return nil, ctxError(ctx.Err())
		}
		return out.resp, out.err
	}
}

func ctxError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errdef.Wrap(errdef.CodeHTTP, err, "request timed out")
	}
	return errCanceled
}

func (c *Client) roundTrip(ctx context.Context, req *request.Request) (resp *Response, err error) {
	httpReq, err := BuildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	sent := captureSent(httpReq, req)

	client, err := c.httpClient()
	if err != nil {
		return nil, err
	}

	spanCtx, span := c.telemetry.Start(httpReq.Context(), telemetry.RequestStart{
		Request:     req,
		HTTPRequest: httpReq,
	})
	httpReq = httpReq.WithContext(spanCtx)

	var (
		traceSess *traceSession
		timeline  *nettrace.Timeline
	)
	defer func() {
		span.RecordTrace(timeline)
		result := telemetry.RequestResult{Err: err}
		if resp != nil {
			result.StatusCode = resp.StatusCode
			result.SizeBytes = resp.SizeBytes
		}
		span.End(result)
	}()

	if c.opts.Trace {
		traceSess = newTraceSession()
		httpReq = traceSess.bind(httpReq)
	}

	start := time.Now()
	if traceSess != nil {
		traceSess.collector.Start(start)
	}
	httpResp, err := client.Do(httpReq)
	if err != nil {
		if traceSess != nil {
			traceSess.collector.Fail(err)
			timeline = traceSess.complete("")
		}
		return nil, transportError(ctx, err, "perform request")
	}
	ttfb := time.Since(start)

	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeHTTP, closeErr, "close response body")
		}
	}()

	raw, err := io.ReadAll(httpResp.Body)
	if traceSess != nil {
		traceSess.finishTransfer(err)
		timeline = traceSess.complete(httpResp.Proto)
	}
	if err != nil {
		return nil, transportError(ctx, err, "read response body")
	}
	total := time.Since(start)

	resp = &Response{
		StatusCode:   httpResp.StatusCode,
		StatusText:   statusText(httpResp.Status, httpResp.StatusCode),
		Proto:        httpResp.Proto,
		Headers:      flattenHeaders(httpResp.Header),
		Body:         ClassifyBody(httpResp.Header.Get("Content-Type"), raw),
		Raw:          raw,
		Cookies:      parseCookies(httpResp.Header),
		SizeBytes:    len(raw),
		ReceivedAt:   time.Now(),
		EffectiveURL: effectiveURL(httpReq, httpResp),
		Sent:         sent,
		Timeline:     timeline,
		Timing: Timing{
			DNS:      timeline.Total(nettrace.PhaseDNS),
			Connect:  timeline.Total(nettrace.PhaseConnect),
			TLS:      timeline.Total(nettrace.PhaseTLS),
			TTFB:     ttfb,
			Download: total - ttfb,
			Total:    total,
		},
	}
	return resp, nil
}

// transportError keeps cancellation distinct from network failure even when
// the transport noticed the canceled context first.
func transportError(ctx context.Context, err error, action string) error {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return errCanceled
	}
	return errdef.Wrap(errdef.CodeHTTP, err, "%s", action)
}

func captureSent(httpReq *http.Request, req *request.Request) SentRequest {
	sent := SentRequest{
		Method:  httpReq.Method,
		URL:     httpReq.URL.String(),
		Headers: flattenHeaders(httpReq.Header),
	}
	switch req.Body.Kind {
	case request.BodyText, request.BodyJSON:
		sent.Body = []byte(req.Body.Text)
	case request.BodyForm:
		sent.Body = []byte(EncodeForm(req.Body.Form))
	case request.BodyBinary:
		sent.Body = req.Body.Binary
	}
	return sent
}

func effectiveURL(req *http.Request, resp *http.Response) string {
	if resp != nil && resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	if req != nil && req.URL != nil {
		return req.URL.String()
	}
	return ""
}
