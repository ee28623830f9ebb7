package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/forgehttp/forge/internal/bindings"
	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/highlight"
	"github.com/forgehttp/forge/internal/history"
	"github.com/forgehttp/forge/internal/httpclient"
	"github.com/forgehttp/forge/internal/request"
	"github.com/forgehttp/forge/internal/send"
	"github.com/forgehttp/forge/internal/vars"
	"github.com/forgehttp/forge/internal/watcher"
)

// stubExecutor blocks until canceled when block is set or the URL contains
// blockOn; otherwise it returns resp/err.
type stubExecutor struct {
	block   bool
	blockOn string
	resp    *httpclient.Response
	err     error
	seen    chan *request.Request
}

func (s *stubExecutor) Execute(ctx context.Context, req *request.Request) (*httpclient.Response, error) {
	if s.seen != nil {
		s.seen <- req
	}
	if s.block || (s.blockOn != "" && strings.Contains(req.URL, s.blockOn)) {
		<-ctx.Done()
		return nil, errdef.Wrap(errdef.CodeCanceled, ctx.Err(), "request canceled")
	}
	return s.resp, s.err
}

func textResponse(body string) *httpclient.Response {
	return &httpclient.Response{
		StatusCode: 200,
		StatusText: "OK",
		Proto:      "HTTP/1.1",
		Headers:    []httpclient.Header{{Name: "Content-Type", Value: "application/json"}},
		Body:       httpclient.Body{Kind: httpclient.BodyText, Text: body},
		Raw:        []byte(body),
		SizeBytes:  len(body),
		Timing:     httpclient.Timing{TTFB: 3 * time.Millisecond, Total: 5 * time.Millisecond},
		ReceivedAt: time.Now(),
	}
}

func stagingEnv() vars.EnvironmentSet {
	env := vars.NewEnvironment("staging")
	env.Set("host", "staging.example.com", vars.VarText)
	env.Set("token", "hunter2", vars.VarSecret)
	prod := vars.NewEnvironment("prod")
	prod.Set("host", "example.com", vars.VarText)
	return vars.EnvironmentSet{*env, *prod}
}

func newTestModel(t *testing.T, exec send.Executor) *Model {
	t.Helper()
	d := send.NewDispatcher(exec)
	t.Cleanup(d.Close)
	req := request.New()
	req.URL = "https://{{host}}/items?t={{token}}"
	model := New(Config{
		Request:      req,
		Environments: stagingEnv(),
		OSEnv:        vars.NewMapProvider("os", nil),
		Dispatcher:   d,
		Highlighter:  highlight.New(highlight.Options{Profile: termenv.Ascii}),
	})
	next, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	model = next.(Model)
	return &model
}

func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatalf("command did not complete")
		return nil
	}
}

func TestSendDeliversResponse(t *testing.T) {
	exec := &stubExecutor{resp: textResponse(`{"ok": true}`), seen: make(chan *request.Request, 1)}
	model := newTestModel(t, exec)

	cmd := model.sendCmd()
	if cmd == nil {
		t.Fatalf("expected send command")
	}
	if !model.sending {
		t.Fatalf("expected sending state")
	}

	sent := <-exec.seen
	if sent.URL != "https://staging.example.com/items?t=hunter2" {
		t.Fatalf("expected secret on the wire, got %q", sent.URL)
	}

	msg := runCmd(t, cmd)
	next, _ := model.Update(msg)
	updated := next.(Model)
	if updated.sending {
		t.Fatalf("expected sending cleared")
	}
	if updated.response == nil || updated.response.StatusCode != 200 {
		t.Fatalf("expected response to be stored")
	}
	if updated.status.level != statusSuccess {
		t.Fatalf("expected success status, got %+v", updated.status)
	}
	if !strings.Contains(updated.viewport.View(), `"ok": true`) {
		t.Fatalf("expected body in viewport, got %q", updated.viewport.View())
	}
}

func TestPreviewMasksSecrets(t *testing.T) {
	model := newTestModel(t, &stubExecutor{})

	preview := ansi.Strip(model.renderPreview())
	if strings.Contains(preview, "hunter2") {
		t.Fatalf("secret leaked into preview: %q", preview)
	}
	if !strings.Contains(preview, "staging.example.com") || !strings.Contains(preview, vars.SecretMask) {
		t.Fatalf("unexpected preview %q", preview)
	}
}

func TestColorSpansKeepsText(t *testing.T) {
	r := vars.NewResolver(vars.NewMapProvider("env", map[string]string{"a": "1"}))
	res := r.Resolve("x{{a}}y{{missing}}z")
	th := New(Config{}).theme
	got := ansi.Strip(colorSpans(res, th.URLPreview, th.Placeholders.For))
	if got != res.Value {
		t.Fatalf("expected %q, got %q", res.Value, got)
	}
}

func TestCancelStopsInFlightSend(t *testing.T) {
	model := newTestModel(t, &stubExecutor{block: true})

	cmd := model.sendCmd()
	if cmd == nil {
		t.Fatalf("expected send command")
	}
	if c := model.handleKey(tea.KeyMsg{Type: tea.KeyEsc}); c != nil {
		t.Fatalf("expected no command from cancel")
	}
	if model.sending {
		t.Fatalf("expected sending cleared after cancel")
	}
	if _, ok := model.dispatcher.InFlight(); ok {
		t.Fatalf("expected no in-flight handle")
	}

	msg := runCmd(t, cmd)
	res := msg.(responseMsg).result
	if !res.Canceled() {
		t.Fatalf("expected canceled result, got %v", res.Err)
	}
	next, _ := model.Update(msg)
	if updated := next.(Model); updated.errText != "" || updated.response != nil {
		t.Fatalf("canceled result must not change the view")
	}
}

func TestSecondSendSupersedesFirst(t *testing.T) {
	exec := &stubExecutor{blockOn: "/slow", resp: textResponse("second")}
	model := newTestModel(t, exec)

	model.urlInput.SetValue("https://{{host}}/slow")
	first := model.sendCmd()
	firstID, _ := model.dispatcher.InFlight()
	model.urlInput.SetValue("https://{{host}}/fast")
	second := model.sendCmd()

	msgs := []tea.Msg{runCmd(t, first), runCmd(t, second)}
	var accepted int
	for _, msg := range msgs {
		res := msg.(responseMsg).result
		next, _ := model.Update(msg)
		updated := next.(Model)
		if res.ID != firstID {
			accepted++
			if updated.response == nil || updated.response.Body.Text != "second" {
				t.Fatalf("expected second response to be shown")
			}
		}
		*model = updated
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted result, got %d", accepted)
	}
}

func TestFailedSendShowsError(t *testing.T) {
	exec := &stubExecutor{err: errdef.New(errdef.CodeHTTP, "connection refused")}
	model := newTestModel(t, exec)

	msg := runCmd(t, model.sendCmd())
	next, _ := model.Update(msg)
	updated := next.(Model)
	if updated.errText != "connection refused" {
		t.Fatalf("unexpected error text %q", updated.errText)
	}
	if !strings.Contains(updated.renderPane(), "connection refused") {
		t.Fatalf("expected error in pane")
	}
}

func TestEmptyURLDoesNotSend(t *testing.T) {
	model := newTestModel(t, &stubExecutor{})
	model.urlInput.SetValue("   ")

	if cmd := model.startSend(); cmd != nil {
		t.Fatalf("expected no command for empty URL")
	}
	if model.sending {
		t.Fatalf("expected idle state")
	}
	if model.status.level != statusWarn {
		t.Fatalf("expected warning, got %+v", model.status)
	}
}

func TestMethodAndEnvironmentCycling(t *testing.T) {
	model := newTestModel(t, &stubExecutor{})

	model.handleKey(tea.KeyMsg{Type: tea.KeyCtrlN})
	if model.request.Method != request.MethodPost {
		t.Fatalf("expected POST, got %s", model.request.Method)
	}
	model.handleKey(tea.KeyMsg{Type: tea.KeyCtrlP})
	model.handleKey(tea.KeyMsg{Type: tea.KeyCtrlP})
	if model.request.Method != request.MethodOptions {
		t.Fatalf("expected OPTIONS, got %s", model.request.Method)
	}

	if env := model.activeEnvironment(); env == nil || env.Name != "staging" {
		t.Fatalf("expected staging active")
	}
	model.handleKey(tea.KeyMsg{Type: tea.KeyCtrlE})
	if env := model.activeEnvironment(); env == nil || env.Name != "prod" {
		t.Fatalf("expected prod active")
	}
	preview := ansi.Strip(model.renderPreview())
	if !strings.Contains(preview, "{{token}}") {
		t.Fatalf("expected token unresolved under prod, got %q", preview)
	}
}

func TestTypingUpdatesRequestURL(t *testing.T) {
	model := newTestModel(t, &stubExecutor{})
	model.urlInput.SetValue("")

	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("http://x")})
	if model.request.URL != "http://x" {
		t.Fatalf("expected url to follow input, got %q", model.request.URL)
	}
}

func TestTabsRenderResponseViews(t *testing.T) {
	model := newTestModel(t, &stubExecutor{})
	resp := textResponse("{}")
	resp.Cookies = []httpclient.Cookie{{Name: "sid", Value: "abc", Path: "/"}}
	model.response = resp

	model.setTab(tabHeaders)
	if got := model.tabContent(false); !strings.Contains(got, "HTTP/1.1 200 OK") || !strings.Contains(got, "Content-Type: application/json") {
		t.Fatalf("unexpected headers view %q", got)
	}
	model.setTab(tabCookies)
	if got := model.tabContent(false); !strings.Contains(got, "sid=abc") {
		t.Fatalf("unexpected cookies view %q", got)
	}
	model.setTab(tabTiming)
	if got := model.tabContent(false); !strings.Contains(got, "TTFB      3ms") {
		t.Fatalf("unexpected timing view %q", got)
	}
}

func TestDiffAgainstPreviousResponse(t *testing.T) {
	model := newTestModel(t, &stubExecutor{})
	model.response = textResponse("{\"n\": 1}")
	model.tab = tabDiff
	if got := model.tabContent(false); !strings.Contains(got, "No previous response") {
		t.Fatalf("unexpected diff without previous %q", got)
	}

	model.previous = model.response
	model.response = textResponse("{\"n\": 2}")
	got := model.tabContent(false)
	if !strings.Contains(got, "-{\"n\": 1}") || !strings.Contains(got, "+{\"n\": 2}") {
		t.Fatalf("unexpected diff %q", got)
	}
}

func TestScrollOffsetIsKeptPerResponse(t *testing.T) {
	model := newTestModel(t, &stubExecutor{})
	lines := make([]string, 200)
	for i := range lines {
		lines[i] = "line"
	}
	model.response = textResponse(strings.Join(lines, "\n"))
	model.refreshViewport()

	model.handleKey(tea.KeyMsg{Type: tea.KeyPgDown})
	offset := model.response.ScrollOffset
	if offset == 0 {
		t.Fatalf("expected scroll offset to be recorded")
	}
	model.setTab(tabHeaders)
	model.setTab(tabBody)
	if model.viewport.YOffset != offset {
		t.Fatalf("expected offset %d restored, got %d", offset, model.viewport.YOffset)
	}
}

func TestBinaryBodyShowsHexPreview(t *testing.T) {
	model := newTestModel(t, &stubExecutor{})
	model.response = &httpclient.Response{
		StatusCode: 200,
		Body:       httpclient.Body{Kind: httpclient.BodyBinary, Bytes: []byte{0x89, 0x50, 0x4e, 0x47}},
		Raw:        []byte{0x89, 0x50, 0x4e, 0x47},
		SizeBytes:  4,
		Headers:    []httpclient.Header{{Name: "Content-Disposition", Value: `attachment; filename="logo.png"`}},
	}
	got := model.tabContent(true)
	if !strings.Contains(got, "binary body, 4 B") || !strings.Contains(got, "89 50 4e 47") || !strings.Contains(got, "logo.png") {
		t.Fatalf("unexpected binary view %q", got)
	}
}

func TestEnvironmentReloadKeepsActiveByName(t *testing.T) {
	model := newTestModel(t, &stubExecutor{})
	model.handleKey(tea.KeyMsg{Type: tea.KeyCtrlE})

	reloaded := stagingEnv()
	reloaded[0], reloaded[1] = reloaded[1], reloaded[0]
	next, _ := model.Update(envReloadedMsg{set: reloaded})
	updated := next.(Model)
	if env := updated.activeEnvironment(); env == nil || env.Name != "prod" {
		t.Fatalf("expected prod to stay active")
	}

	next, _ = updated.Update(envReloadedMsg{err: errdef.New(errdef.CodeConfig, "bad toml")})
	updated = next.(Model)
	if updated.status.level != statusError || len(updated.envs) != 2 {
		t.Fatalf("expected failed reload to keep environments")
	}
}

func TestEnvFileEventTriggersReload(t *testing.T) {
	w, err := watcher.New(watcher.Options{})
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	t.Cleanup(w.Stop)
	model := newTestModel(t, &stubExecutor{})
	model.watcher = w

	if cmd := model.handleEnvFile(envFileMsg{event: watcher.Event{Kind: watcher.EventMissing}}); cmd == nil {
		t.Fatalf("expected watcher to be re-armed")
	}
	if model.status.level != statusWarn {
		t.Fatalf("expected warning for missing file")
	}
}

type stubHistory struct {
	entries []history.Entry
}

func (s stubHistory) Recent(context.Context, int) ([]history.Entry, error) {
	return s.entries, nil
}

func TestHistoryTabLoadsEntries(t *testing.T) {
	model := newTestModel(t, &stubExecutor{})
	model.historySrc = stubHistory{entries: []history.Entry{{
		ExecutedAt: time.Now(),
		Method:     "GET",
		Status:     "200 OK",
		URL:        "https://example.com/" + vars.SecretMask,
		Duration:   12 * time.Millisecond,
	}}}

	cmd := model.setTab(tabHistory)
	if cmd == nil {
		t.Fatalf("expected history load command")
	}
	next, _ := model.Update(cmd())
	updated := next.(Model)
	if got := updated.tabContent(false); !strings.Contains(got, "200 OK") || !strings.Contains(got, "12ms") {
		t.Fatalf("unexpected history view %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KB", 1536: "1.5 KB", 5 << 20: "5.0 MB"}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestViewShowsLoadingState(t *testing.T) {
	model := newTestModel(t, &stubExecutor{block: true})
	model.sendCmd()
	view := ansi.Strip(model.View())
	if !strings.Contains(view, "Sending") {
		t.Fatalf("expected loading state in view")
	}
	if strings.Contains(view, "hunter2") {
		t.Fatalf("secret leaked into view")
	}
	model.cancelSend()
}

func TestCustomBindingsReplaceDefaults(t *testing.T) {
	dir := t.TempDir()
	payload := "[bindings]\nnext_tab = [\"ctrl+t\"]\n"
	if err := os.WriteFile(filepath.Join(dir, "bindings.toml"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write bindings: %v", err)
	}
	keys, _, err := bindings.Load(dir)
	if err != nil {
		t.Fatalf("load bindings: %v", err)
	}
	d := send.NewDispatcher(&stubExecutor{})
	t.Cleanup(d.Close)
	model := New(Config{Dispatcher: d, Bindings: keys, OSEnv: vars.NewMapProvider("os", nil)})

	model.handleKey(tea.KeyMsg{Type: tea.KeyTab})
	if model.tab != tabBody {
		t.Fatalf("tab should no longer switch views, got %v", model.tab)
	}
	model.handleKey(tea.KeyMsg{Type: tea.KeyCtrlT})
	if model.tab != tabHeaders {
		t.Fatalf("ctrl+t should switch to headers, got %v", model.tab)
	}
	if model.keys.NextTab.Help().Key != "ctrl+t" {
		t.Fatalf("help shows %q", model.keys.NextTab.Help().Key)
	}
}
