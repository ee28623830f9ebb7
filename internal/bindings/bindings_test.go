package bindings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMapContainsExpectedBindings(t *testing.T) {
	m := DefaultMap()

	if action, ok := m.Match("ctrl+s"); !ok || action != ActionSend {
		t.Fatalf("expected ctrl+s -> send, got %q (ok=%v)", action, ok)
	}
	if action, ok := m.Match("esc"); !ok || action != ActionCancel {
		t.Fatalf("expected esc -> cancel, got %q (ok=%v)", action, ok)
	}
	if keys := m.Keys(ActionQuit); len(keys) != 2 || keys[0] != "ctrl+q" {
		t.Fatalf("unexpected quit keys %v", keys)
	}
	if _, ok := m.Match("ctrl+g"); ok {
		t.Fatalf("ctrl+g should be unbound")
	}
}

func TestLoadOverridesBindings(t *testing.T) {
	dir := t.TempDir()
	payload := `
[bindings]
send = ["Ctrl+Enter"]
toggle_help = ["?"]
`
	path := filepath.Join(dir, "bindings.toml")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write bindings: %v", err)
	}

	m, src, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if src.Path != path || src.Format != FormatTOML {
		t.Fatalf("unexpected source %+v", src)
	}
	if action, ok := m.Match("enter"); ok {
		t.Fatalf("expected enter to be unbound, got %v", action)
	}
	if action, ok := m.Match("ctrl+enter"); !ok || action != ActionSend {
		t.Fatalf("expected ctrl+enter -> send, got %q (ok=%v)", action, ok)
	}
	if action, ok := m.Match("shift+/"); !ok || action != ActionHelp {
		t.Fatalf("expected shift+/ -> toggle_help, got %q (ok=%v)", action, ok)
	}
	if action, ok := m.Match("ctrl+e"); !ok || action != ActionNextEnv {
		t.Fatalf("untouched actions should keep defaults, got %q (ok=%v)", action, ok)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bindings.json")
	if err := os.WriteFile(path, []byte(`{"bindings":{"copy":["alt+c"]}}`), 0o644); err != nil {
		t.Fatalf("write bindings: %v", err)
	}
	m, src, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if src.Format != FormatJSON {
		t.Fatalf("expected json source, got %+v", src)
	}
	if action, ok := m.Match("alt+c"); !ok || action != ActionCopy {
		t.Fatalf("expected alt+c -> copy, got %q (ok=%v)", action, ok)
	}
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	m, src, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if src.Path != filepath.Join(dir, "bindings.toml") {
		t.Fatalf("unexpected default source %+v", src)
	}
	if action, ok := m.Match("enter"); !ok || action != ActionSend {
		t.Fatalf("expected default enter binding, got %q (ok=%v)", action, ok)
	}
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	cases := map[string]string{
		"conflict":  "[bindings]\ncopy = [\"ctrl+s\"]\n",
		"unknown":   "[bindings]\nsave_file = [\"ctrl+s\"]\n",
		"sequence":  "[bindings]\ncopy = [\"g y\"]\n",
		"duplicate": "[bindings]\ncopy = [\"ctrl+y\", \"Ctrl+Y\"]\n",
		"no quit":   "[bindings]\nquit = []\n",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "bindings.toml"), []byte(payload), 0o644); err != nil {
				t.Fatalf("write bindings: %v", err)
			}
			if _, _, err := Load(dir); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestNormalizeKeyString(t *testing.T) {
	cases := map[string]string{
		"Control+Shift+K": "ctrl+shift+k",
		"shift+ctrl+a":    "ctrl+shift+a",
		"K":               "shift+k",
		"F1":              "f1",
		"?":               "shift+/",
	}
	for in, want := range cases {
		if got := NormalizeKeyString(in); got != want {
			t.Fatalf("NormalizeKeyString(%q) = %q, want %q", in, got, want)
		}
	}
}
