package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgehttp/forge/internal/errdef"
)

func TestDirHonoursEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	if got := Dir(); got != dir {
		t.Fatalf("expected %q, got %q", dir, got)
	}
	if got := HistoryPath(); got != filepath.Join(dir, "history.db") {
		t.Fatalf("unexpected history path %q", got)
	}
}

func TestLoadSettingsReturnsDefaultHandleWhenMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	settings, handle, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings returned error: %v", err)
	}
	expectedPath := filepath.Join(dir, "settings.toml")
	if handle.Path != expectedPath {
		t.Fatalf("expected handle path %q, got %q", expectedPath, handle.Path)
	}
	if handle.Format != FormatTOML {
		t.Fatalf("expected format %q, got %q", FormatTOML, handle.Format)
	}
	if settings.HTTP.TimeoutSeconds != HTTPTimeoutDefault {
		t.Fatalf("expected default timeout %v, got %v", HTTPTimeoutDefault, settings.HTTP.TimeoutSeconds)
	}
	if !settings.HTTP.FollowRedirects {
		t.Fatalf("expected redirects to be followed by default")
	}
	if settings.History.MaxEntries != HistoryMaxEntriesDefault {
		t.Fatalf("expected default history size, got %d", settings.History.MaxEntries)
	}
}

func TestSaveAndLoadSettingsTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	want := DefaultSettings()
	want.Theme = "dracula"
	want.HTTP.FollowRedirects = false
	want.HTTP.Proxy = " http://proxy.local:3128 "
	if err := SaveSettings(want, Handle{}); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	got, handle, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if got.Theme != "dracula" {
		t.Fatalf("expected theme dracula, got %q", got.Theme)
	}
	if got.HTTP.FollowRedirects {
		t.Fatalf("expected follow_redirects=false to survive a round trip")
	}
	if got.HTTP.Proxy != "http://proxy.local:3128" {
		t.Fatalf("expected trimmed proxy, got %q", got.HTTP.Proxy)
	}
	if handle.Format != FormatTOML {
		t.Fatalf("expected format %q after save, got %q", FormatTOML, handle.Format)
	}
}

func TestLoadSettingsTOMLKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	data := "theme = \"nord\"\n\n[http]\ntimeout_seconds = 5000\n"
	if err := os.WriteFile(filepath.Join(dir, "settings.toml"), []byte(data), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	got, _, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if got.HTTP.TimeoutSeconds != HTTPTimeoutMax {
		t.Fatalf("expected timeout clamped to %v, got %v", HTTPTimeoutMax, got.HTTP.TimeoutSeconds)
	}
	if !got.HTTP.FollowRedirects {
		t.Fatalf("expected follow_redirects default to be kept")
	}
	if got.History.MaxEntries != HistoryMaxEntriesDefault {
		t.Fatalf("expected default history size, got %d", got.History.MaxEntries)
	}
}

func TestLoadSettingsJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	payload := DefaultSettings()
	payload.Theme = "sunset"
	payload.History.MaxEntries = 50
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write json settings: %v", err)
	}

	got, handle, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if got.Theme != payload.Theme {
		t.Fatalf("expected theme %q, got %q", payload.Theme, got.Theme)
	}
	if got.History.MaxEntries != 50 {
		t.Fatalf("expected 50 history entries, got %d", got.History.MaxEntries)
	}
	if handle.Format != FormatJSON {
		t.Fatalf("expected json format, got %q", handle.Format)
	}
	if handle.Path != path {
		t.Fatalf("expected handle path %q, got %q", path, handle.Path)
	}
}

func TestLoadSettingsRejectsUnknownJSONFields(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(`{"layout": {}}`), 0o644); err != nil {
		t.Fatalf("write json settings: %v", err)
	}
	_, _, err := LoadSettings()
	if err == nil {
		t.Fatalf("expected unknown field to fail")
	}
	if errdef.CodeOf(err) != errdef.CodeConfig {
		t.Fatalf("expected config error, got %v", errdef.CodeOf(err))
	}
}

func TestHTTPSettingsClientOptions(t *testing.T) {
	t.Parallel()

	s := NormaliseHTTPSettings(HTTPSettings{TimeoutSeconds: 2.5, Insecure: true, Proxy: "socks5://127.0.0.1:1080"})
	opts := s.ClientOptions()
	if opts.Timeout != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s timeout, got %v", opts.Timeout)
	}
	if !opts.InsecureSkipVerify || opts.ProxyURL != "socks5://127.0.0.1:1080" {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.FollowRedirects {
		t.Fatalf("expected follow redirects to mirror settings")
	}
	if !opts.Trace {
		t.Fatalf("expected tracing to stay enabled")
	}
}

func TestNormaliseHistorySettings(t *testing.T) {
	t.Parallel()

	cases := map[int]int{
		0:       HistoryMaxEntriesDefault,
		-5:      HistoryMaxEntriesMin,
		25:      25,
		1 << 30: HistoryMaxEntriesMax,
	}
	for in, want := range cases {
		if got := NormaliseHistorySettings(HistorySettings{MaxEntries: in}).MaxEntries; got != want {
			t.Fatalf("max entries %d: expected %d, got %d", in, want, got)
		}
	}
}
