package bindings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/forgehttp/forge/internal/errdef"
)

// Format identifies the serialization format for shortcut configs.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// Source describes where the bindings config was loaded from.
type Source struct {
	Path   string
	Format Format
}

// ActionID uniquely identifies a shortcut action.
type ActionID string

const (
	ActionSend       ActionID = "send"
	ActionCancel     ActionID = "cancel"
	ActionNextMethod ActionID = "next_method"
	ActionPrevMethod ActionID = "prev_method"
	ActionNextEnv    ActionID = "next_environment"
	ActionNextTab    ActionID = "next_tab"
	ActionPrevTab    ActionID = "prev_tab"
	ActionCopy       ActionID = "copy"
	ActionHelp       ActionID = "toggle_help"
	ActionQuit       ActionID = "quit"
)

type definition struct {
	id       ActionID
	help     string
	defaults []string
}

var definitions = []definition{
	{id: ActionSend, help: "send", defaults: []string{"enter", "ctrl+s"}},
	{id: ActionCancel, help: "cancel", defaults: []string{"esc"}},
	{id: ActionNextMethod, help: "method", defaults: []string{"ctrl+n"}},
	{id: ActionPrevMethod, help: "prev method", defaults: []string{"ctrl+p"}},
	{id: ActionNextEnv, help: "environment", defaults: []string{"ctrl+e"}},
	{id: ActionNextTab, help: "next view", defaults: []string{"tab"}},
	{id: ActionPrevTab, help: "prev view", defaults: []string{"shift+tab"}},
	{id: ActionCopy, help: "copy", defaults: []string{"ctrl+y"}},
	{id: ActionHelp, help: "help", defaults: []string{"f1"}},
	{id: ActionQuit, help: "quit", defaults: []string{"ctrl+q", "ctrl+c"}},
}

var definitionLookup = func() map[ActionID]definition {
	out := make(map[ActionID]definition, len(definitions))
	for _, def := range definitions {
		out[def.id] = def
	}
	return out
}()

// Map stores the resolved key list of every action.
type Map struct {
	byKey   map[string]ActionID
	actions map[ActionID][]string
}

// Load reads bindings.toml, then bindings.json, from dir. Actions the file
// does not mention keep their defaults; with no file the defaults are used.
func Load(dir string) (*Map, Source, error) {
	candidates := []Source{
		{Path: filepath.Join(dir, "bindings.toml"), Format: FormatTOML},
		{Path: filepath.Join(dir, "bindings.json"), Format: FormatJSON},
	}

	var accumulated error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			accumulated = errors.Join(
				accumulated,
				errdef.Wrap(errdef.CodeFilesystem, err, "read bindings %q", candidate.Path),
			)
			continue
		}

		overrides, err := parseConfig(data, candidate.Format)
		if err != nil {
			return nil, Source{}, errdef.Wrap(errdef.CodeConfig, err, "parse bindings %q", candidate.Path)
		}
		built, err := buildMap(overrides)
		if err != nil {
			return nil, Source{}, errdef.Wrap(errdef.CodeConfig, err, "apply bindings %q", candidate.Path)
		}
		return built, candidate, nil
	}

	if accumulated != nil {
		return nil, Source{}, accumulated
	}
	return DefaultMap(), Source{Path: candidates[0].Path, Format: FormatTOML}, nil
}

// DefaultMap builds the built-in bindings without consulting disk.
func DefaultMap() *Map {
	m, err := buildMap(nil)
	if err != nil {
		panic(err)
	}
	return m
}

// Keys returns the keys bound to action in configured order.
func (m *Map) Keys(action ActionID) []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.actions[action]...)
}

// Match returns the action bound to a runtime key string, if any.
func (m *Map) Match(key string) (ActionID, bool) {
	if m == nil {
		return "", false
	}
	id, ok := m.byKey[NormalizeKeyString(key)]
	return id, ok
}

// Help is the short label shown next to an action's first key.
func Help(action ActionID) string {
	return definitionLookup[action].help
}

type configFile struct {
	Bindings map[string][]string `json:"bindings" toml:"bindings"`
}

func parseConfig(data []byte, format Format) (map[ActionID][]string, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var payload configFile
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	if len(payload.Bindings) == 0 {
		return nil, nil
	}

	overrides := make(map[ActionID][]string, len(payload.Bindings))
	for name, raws := range payload.Bindings {
		id := ActionID(name)
		if _, ok := definitionLookup[id]; !ok {
			return nil, fmt.Errorf("unknown action %q", name)
		}
		keys := make([]string, 0, len(raws))
		for _, raw := range raws {
			if len(strings.Fields(raw)) > 1 {
				return nil, fmt.Errorf("action %q: key sequences are not supported (%q)", name, raw)
			}
			step, err := normalizeStep(raw)
			if err != nil {
				return nil, fmt.Errorf("action %q: %w", name, err)
			}
			keys = append(keys, step)
		}
		overrides[id] = keys
	}
	return overrides, nil
}

func buildMap(overrides map[ActionID][]string) (*Map, error) {
	m := &Map{
		byKey:   make(map[string]ActionID),
		actions: make(map[ActionID][]string, len(definitions)),
	}
	for _, def := range definitions {
		keys, ok := overrides[def.id]
		if !ok {
			keys = def.defaults
		}
		seen := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				return nil, fmt.Errorf("action %s: duplicate binding %q", def.id, k)
			}
			seen[k] = struct{}{}
			if existing, taken := m.byKey[k]; taken {
				return nil, fmt.Errorf("binding %q assigned to both %s and %s", k, existing, def.id)
			}
			m.byKey[k] = def.id
			m.actions[def.id] = append(m.actions[def.id], k)
		}
	}
	if len(m.actions[ActionQuit]) == 0 {
		return nil, errors.New("quit must keep at least one binding")
	}
	return m, nil
}

func normalizeStep(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty key")
	}
	if raw == "?" {
		raw = "shift+/"
	}

	runes := []rune(raw)
	if len(runes) == 1 {
		r := runes[0]
		if unicode.IsLetter(r) && unicode.IsUpper(r) {
			return "shift+" + strings.ToLower(raw), nil
		}
		return strings.ToLower(raw), nil
	}

	if !strings.Contains(raw, "+") {
		return strings.ToLower(raw), nil
	}

	var keyParts []string
	modSet := make(map[string]struct{})
	for _, part := range strings.Split(raw, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		switch lower {
		case "ctrl", "control":
			modSet["ctrl"] = struct{}{}
		case "alt", "option":
			modSet["alt"] = struct{}{}
		case "shift":
			modSet["shift"] = struct{}{}
		default:
			keyParts = append(keyParts, lower)
		}
	}
	if len(keyParts) == 0 {
		return "", fmt.Errorf("binding %q missing key", raw)
	}
	key := strings.Join(keyParts, "+")
	mods := orderedModifiers(modSet)
	if len(mods) == 0 {
		return key, nil
	}
	return strings.Join(append(mods, key), "+"), nil
}

func orderedModifiers(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	order := []string{"ctrl", "alt", "shift"}
	out := make([]string, 0, len(set))
	for _, mod := range order {
		if _, ok := set[mod]; ok {
			out = append(out, mod)
		}
	}
	return out
}

// NormalizeKeyString converts runtime key strings into canonical form for lookup.
func NormalizeKeyString(raw string) string {
	normalized, err := normalizeStep(raw)
	if err != nil {
		return ""
	}
	return normalized
}

// KnownActions returns the sorted list of action identifiers.
func KnownActions() []ActionID {
	ids := make([]ActionID, 0, len(definitions))
	for _, def := range definitions {
		ids = append(ids, def.id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
