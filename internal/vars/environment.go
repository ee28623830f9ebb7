package vars

import (
	"strings"

	"github.com/google/uuid"
)

type VarType string

const (
	VarText   VarType = "text"
	VarSecret VarType = "secret"
)

const defaultEnvColor = "#7aa2f7"

type Variable struct {
	Key         string  `json:"key"                   toml:"key"`
	Value       string  `json:"value"                 toml:"value"`
	Type        VarType `json:"type,omitempty"        toml:"type,omitempty"`
	Enabled     bool    `json:"enabled"               toml:"enabled"`
	Description string  `json:"description,omitempty" toml:"description,omitempty"`
}

func (v Variable) Secret() bool {
	return strings.EqualFold(string(v.Type), string(VarSecret))
}

type Environment struct {
	ID        string     `json:"id"        toml:"id"`
	Name      string     `json:"name"      toml:"name"`
	Color     string     `json:"color"     toml:"color"`
	Variables []Variable `json:"variables" toml:"variables"`
}

func NewEnvironment(name string) *Environment {
	if strings.TrimSpace(name) == "" {
		name = "New Environment"
	}
	return &Environment{ID: uuid.NewString(), Name: name, Color: defaultEnvColor}
}

// Set replaces the first variable named key or appends a new enabled one.
func (e *Environment) Set(key, value string, typ VarType) {
	for i := range e.Variables {
		if e.Variables[i].Key == key {
			e.Variables[i].Value = value
			e.Variables[i].Type = typ
			return
		}
	}
	e.Variables = append(e.Variables, Variable{Key: key, Value: value, Type: typ, Enabled: true})
}

func (e *Environment) Clone() *Environment {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Variables = append([]Variable(nil), e.Variables...)
	return &clone
}

type EnvironmentSet []Environment

// Find matches names case-insensitively; nil when nothing matches.
func (s EnvironmentSet) Find(name string) *Environment {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for i := range s {
		if strings.EqualFold(s[i].Name, name) {
			return &s[i]
		}
	}
	return nil
}

func (s EnvironmentSet) Names() []string {
	names := make([]string, 0, len(s))
	for _, env := range s {
		names = append(names, env.Name)
	}
	return names
}

// FromEnvironment builds the resolver used for every send: the active
// environment's enabled variables first, the process environment last.
// Only enabled secret-typed variables of the active environment are masked.
func FromEnvironment(env *Environment, osEnv Provider) *Resolver {
	var (
		providers []Provider
		secrets   []string
	)
	if env != nil {
		values := make(map[string]string, len(env.Variables))
		for _, v := range env.Variables {
			if !v.Enabled {
				continue
			}
			values[v.Key] = v.Value
			if v.Secret() {
				secrets = append(secrets, v.Key)
			}
		}
		providers = append(providers, NewMapProvider(env.Name, values))
	}
	if osEnv == nil {
		osEnv = EnvProvider{}
	}
	providers = append(providers, osEnv)

	r := NewResolver(providers...)
	r.MarkSecret(secrets...)
	return r
}
