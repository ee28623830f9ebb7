package nettrace

import (
	"sort"
	"time"
)

type PhaseKind string

const (
	PhaseDNS      PhaseKind = "dns"
	PhaseConnect  PhaseKind = "connect"
	PhaseTLS      PhaseKind = "tls"
	PhaseRequest  PhaseKind = "request"
	PhaseTTFB     PhaseKind = "ttfb"
	PhaseTransfer PhaseKind = "transfer"
)

type Phase struct {
	Kind     PhaseKind
	Start    time.Time
	Duration time.Duration
	Err      string
	Reused   bool
}

type Timeline struct {
	Started  time.Time
	Duration time.Duration
	Err      string
	Phases   []Phase
	Conn     *ConnInfo
}

// Total sums every recorded phase of kind. A redirect chain or a retried dial
// can record the same kind more than once.
func (tl *Timeline) Total(kind PhaseKind) time.Duration {
	if tl == nil {
		return 0
	}
	var sum time.Duration
	for _, phase := range tl.Phases {
		if phase.Kind == kind && phase.Duration > 0 {
			sum += phase.Duration
		}
	}
	return sum
}

func sortPhases(phases []Phase) {
	sort.SliceStable(phases, func(i, j int) bool {
		return phases[i].Start.Before(phases[j].Start)
	})
}

// ConnInfo describes the connection that carried the final response.
type ConnInfo struct {
	RemoteAddr string
	Reused     bool
	Protocol   string
	TLSVersion string
	Cipher     string
	ServerName string
}

func (c *ConnInfo) Clone() *ConnInfo {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
