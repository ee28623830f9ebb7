package nettrace

import (
	"sync"
	"time"
)

// Collector is fed from httptrace callbacks, which may fire on transport
// goroutines, so every method locks.
type Collector struct {
	mu      sync.Mutex
	started time.Time
	open    map[PhaseKind]time.Time
	phases  []Phase
	conn    ConnInfo
	err     string
	done    time.Time
}

func NewCollector() *Collector {
	return &Collector{open: make(map[PhaseKind]time.Time)}
}

// Start pins the timeline origin, normally the moment the request is issued.
func (c *Collector) Start(ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() || ts.Before(c.started) {
		c.started = ts
	}
}

func (c *Collector) Begin(kind PhaseKind, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() || ts.Before(c.started) {
		c.started = ts
	}
	c.open[kind] = ts
}

// End closes the open phase of kind. Ending a phase that never began records
// a zero-length phase at ts.
func (c *Collector) End(kind PhaseKind, ts time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(kind, ts, err, false)
}

// Mark records an instantaneous phase, e.g. a connect satisfied by a pooled
// connection.
func (c *Collector) Mark(kind PhaseKind, ts time.Time, reused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open[kind] = ts
	c.closeLocked(kind, ts, nil, reused)
}

func (c *Collector) closeLocked(kind PhaseKind, ts time.Time, err error, reused bool) {
	start, ok := c.open[kind]
	if !ok || ts.Before(start) {
		start = ts
	}
	delete(c.open, kind)
	phase := Phase{Kind: kind, Start: start, Duration: ts.Sub(start), Reused: reused}
	if err != nil {
		phase.Err = err.Error()
	}
	c.phases = append(c.phases, phase)
}

func (c *Collector) Open(kind PhaseKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.open[kind]
	return ok
}

func (c *Collector) UpdateConn(fn func(*ConnInfo)) {
	c.mu.Lock()
	fn(&c.conn)
	c.mu.Unlock()
}

func (c *Collector) Fail(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	if c.err == "" {
		c.err = err.Error()
	}
	c.mu.Unlock()
}

// Complete closes anything still open as incomplete and freezes the end time.
func (c *Collector) Complete(ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for kind, start := range c.open {
		c.phases = append(c.phases, Phase{
			Kind:     kind,
			Start:    start,
			Duration: ts.Sub(start),
			Err:      "incomplete",
		})
	}
	c.open = make(map[PhaseKind]time.Time)
	c.done = ts
}

func (c *Collector) Timeline() *Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() && len(c.phases) == 0 {
		return nil
	}

	phases := append([]Phase(nil), c.phases...)
	sortPhases(phases)
	tl := &Timeline{Started: c.started, Err: c.err, Phases: phases}
	if !c.done.IsZero() && c.done.After(c.started) {
		tl.Duration = c.done.Sub(c.started)
	}
	if c.conn != (ConnInfo{}) {
		tl.Conn = c.conn.Clone()
	}
	return tl
}
