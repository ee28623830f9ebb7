package httpclient

import (
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/forgehttp/forge/internal/nettrace"
)

type traceSession struct {
	collector *nettrace.Collector
	trace     *httptrace.ClientTrace
}

func newTraceSession() *traceSession {
	s := &traceSession{collector: nettrace.NewCollector()}
	s.trace = &httptrace.ClientTrace{
		DNSStart:             s.onDNSStart,
		DNSDone:              s.onDNSDone,
		ConnectStart:         s.onConnectStart,
		ConnectDone:          s.onConnectDone,
		GotConn:              s.onGotConn,
		TLSHandshakeStart:    s.onTLSHandshakeStart,
		TLSHandshakeDone:     s.onTLSHandshakeDone,
		WroteHeaders:         s.onWroteHeaders,
		WroteRequest:         s.onWroteRequest,
		GotFirstResponseByte: s.onGotFirstResponseByte,
	}
	return s
}

func (s *traceSession) bind(req *http.Request) *http.Request {
	ctx := httptrace.WithClientTrace(req.Context(), s.trace)
	return req.WithContext(ctx)
}

func (s *traceSession) onDNSStart(httptrace.DNSStartInfo) {
	s.collector.Begin(nettrace.PhaseDNS, time.Now())
}

func (s *traceSession) onDNSDone(info httptrace.DNSDoneInfo) {
	s.collector.End(nettrace.PhaseDNS, time.Now(), info.Err)
	s.collector.Fail(info.Err)
}

func (s *traceSession) onConnectStart(_, _ string) {
	s.collector.Begin(nettrace.PhaseConnect, time.Now())
}

func (s *traceSession) onConnectDone(_, _ string, err error) {
	s.collector.End(nettrace.PhaseConnect, time.Now(), err)
	s.collector.Fail(err)
}

func (s *traceSession) onGotConn(info httptrace.GotConnInfo) {
	s.collector.UpdateConn(func(conn *nettrace.ConnInfo) {
		conn.Reused = info.Reused
		if info.Conn != nil {
			conn.RemoteAddr = info.Conn.RemoteAddr().String()
		}
	})
	if info.Reused {
		s.collector.Mark(nettrace.PhaseConnect, time.Now(), true)
	}
}

func (s *traceSession) onTLSHandshakeStart() {
	s.collector.Begin(nettrace.PhaseTLS, time.Now())
}

func (s *traceSession) onTLSHandshakeDone(state tls.ConnectionState, err error) {
	s.collector.End(nettrace.PhaseTLS, time.Now(), err)
	s.collector.Fail(err)
	if err != nil {
		return
	}
	s.collector.UpdateConn(func(conn *nettrace.ConnInfo) {
		conn.TLSVersion = tls.VersionName(state.Version)
		conn.Cipher = tls.CipherSuiteName(state.CipherSuite)
		conn.ServerName = state.ServerName
	})
}

func (s *traceSession) onWroteHeaders() {
	s.collector.Begin(nettrace.PhaseRequest, time.Now())
}

func (s *traceSession) onWroteRequest(info httptrace.WroteRequestInfo) {
	now := time.Now()
	s.collector.End(nettrace.PhaseRequest, now, info.Err)
	if info.Err != nil {
		s.collector.Fail(info.Err)
		return
	}
	s.collector.Begin(nettrace.PhaseTTFB, now)
}

func (s *traceSession) onGotFirstResponseByte() {
	now := time.Now()
	if s.collector.Open(nettrace.PhaseTTFB) {
		s.collector.End(nettrace.PhaseTTFB, now, nil)
	}
	s.collector.Begin(nettrace.PhaseTransfer, now)
}

func (s *traceSession) finishTransfer(err error) {
	if !s.collector.Open(nettrace.PhaseTransfer) {
		return
	}
	s.collector.End(nettrace.PhaseTransfer, time.Now(), err)
	s.collector.Fail(err)
}

func (s *traceSession) complete(proto string) *nettrace.Timeline {
	s.collector.Complete(time.Now())
	if proto != "" {
		s.collector.UpdateConn(func(conn *nettrace.ConnInfo) {
			conn.Protocol = proto
		})
	}
	return s.collector.Timeline()
}
