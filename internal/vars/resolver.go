package vars

import (
	"os"
	"strings"
)

// SecretMask replaces secret values whenever a string is resolved for display.
const SecretMask = "••••••••"

type Provider interface {
	Resolve(name string) (string, bool)
	Label() string
}

type Status int

const (
	StatusResolved Status = iota
	StatusUnresolved
	StatusSecret
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusUnresolved:
		return "unresolved"
	case StatusSecret:
		return "secret"
	default:
		return "unknown"
	}
}

// VarSpan describes a placeholder after display resolution. Offsets point into
// Resolved.Value, not into the original input. Value is only set for
// StatusResolved.
type VarSpan struct {
	Start  int
	End    int
	Name   string
	Status Status
	Value  string
}

type Resolved struct {
	Value string
	Spans []VarSpan
}

// Unresolved lists placeholder names that no layer could satisfy, in order of
// first appearance.
func (r Resolved) Unresolved() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, span := range r.Spans {
		if span.Status != StatusUnresolved {
			continue
		}
		if _, ok := seen[span.Name]; ok {
			continue
		}
		seen[span.Name] = struct{}{}
		names = append(names, span.Name)
	}
	return names
}

// Resolver looks names up across ordered layers; the first layer that knows a
// name wins. It is built per send and never mutated while in use.
type Resolver struct {
	providers []Provider
	secrets   map[string]struct{}
}

func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers, secrets: make(map[string]struct{})}
}

func (r *Resolver) MarkSecret(names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		r.secrets[name] = struct{}{}
	}
}

func (r *Resolver) IsSecret(name string) bool {
	_, ok := r.secrets[name]
	return ok
}

func (r *Resolver) Lookup(name string) (string, bool) {
	if r == nil || name == "" {
		return "", false
	}
	for _, provider := range r.providers {
		if provider == nil {
			continue
		}
		if value, ok := provider.Resolve(name); ok {
			return value, true
		}
	}
	return "", false
}

// Resolve rewrites input for display. Secrets are masked and unknown
// placeholders stay literal so the caller can color them.
func (r *Resolver) Resolve(input string) Resolved {
	spans := ParseVars(input)
	if len(spans) == 0 {
		return Resolved{Value: input}
	}

	var b strings.Builder
	b.Grow(len(input))
	out := make([]VarSpan, 0, len(spans))
	last := 0
	for _, span := range spans {
		b.WriteString(input[last:span.Start])
		start := b.Len()

		vs := VarSpan{Name: span.Name}
		value, ok := r.Lookup(span.Name)
		switch {
		case ok && r.IsSecret(span.Name):
			b.WriteString(SecretMask)
			vs.Status = StatusSecret
		case ok:
			b.WriteString(value)
			vs.Status = StatusResolved
			vs.Value = value
		default:
			b.WriteString(input[span.Start:span.End])
			vs.Status = StatusUnresolved
		}

		vs.Start = start
		vs.End = b.Len()
		out = append(out, vs)
		last = span.End
	}
	b.WriteString(input[last:])
	return Resolved{Value: b.String(), Spans: out}
}

// ResolveForSend substitutes real values, secrets included. Unknown
// placeholders are left in place and the request goes out anyway.
func (r *Resolver) ResolveForSend(input string) string {
	spans := ParseVars(input)
	if len(spans) == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	last := 0
	for _, span := range spans {
		b.WriteString(input[last:span.Start])
		if value, ok := r.Lookup(span.Name); ok {
			b.WriteString(value)
		} else {
			b.WriteString(input[span.Start:span.End])
		}
		last = span.End
	}
	b.WriteString(input[last:])
	return b.String()
}

type MapProvider struct {
	values map[string]string
	label  string
}

// NewMapProvider copies values; later changes to the map are not observed.
func NewMapProvider(label string, values map[string]string) Provider {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &MapProvider{values: copied, label: label}
}

func (p *MapProvider) Resolve(name string) (string, bool) {
	value, ok := p.values[name]
	return value, ok
}

func (p *MapProvider) Label() string {
	return p.label
}

// EnvProvider exposes the process environment. LookupFunc defaults to
// os.LookupEnv and exists so tests can pin the environment.
type EnvProvider struct {
	LookupFunc func(string) (string, bool)
}

func (p EnvProvider) Resolve(name string) (string, bool) {
	if p.LookupFunc != nil {
		return p.LookupFunc(name)
	}
	return os.LookupEnv(name)
}

func (EnvProvider) Label() string {
	return "env"
}
