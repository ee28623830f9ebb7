package history

import (
	"time"

	"github.com/forgehttp/forge/internal/httpclient"
	"github.com/forgehttp/forge/internal/nettrace"
)

// TimingSummary is the persisted form of a response's timing breakdown.
type TimingSummary struct {
	DNS      time.Duration `json:"dns,omitempty"`
	Connect  time.Duration `json:"connect,omitempty"`
	TLS      time.Duration `json:"tls,omitempty"`
	TTFB     time.Duration `json:"ttfb"`
	Download time.Duration `json:"download"`
	Total    time.Duration `json:"total"`
	Remote   string        `json:"remote,omitempty"`
	Protocol string        `json:"protocol,omitempty"`
	Reused   bool          `json:"reused,omitempty"`
}

func NewTimingSummary(resp *httpclient.Response) *TimingSummary {
	if resp == nil {
		return nil
	}
	t := resp.Timing
	sum := &TimingSummary{
		DNS:      t.DNS,
		Connect:  t.Connect,
		TLS:      t.TLS,
		TTFB:     t.TTFB,
		Download: t.Download,
		Total:    t.Total,
		Protocol: resp.Proto,
	}
	if conn := connOf(resp.Timeline); conn != nil {
		sum.Remote = conn.RemoteAddr
		sum.Reused = conn.Reused
	}
	return sum
}

func connOf(tl *nettrace.Timeline) *nettrace.ConnInfo {
	if tl == nil {
		return nil
	}
	return tl.Conn
}
