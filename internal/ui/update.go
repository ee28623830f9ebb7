package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/forgehttp/forge/internal/bindings"
	"github.com/forgehttp/forge/internal/config"
	"github.com/forgehttp/forge/internal/errdef"
	"github.com/forgehttp/forge/internal/send"
	"github.com/forgehttp/forge/internal/watcher"
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.watcher != nil {
		cmds = append(cmds, waitForFileEvent(m.watcher.Events()))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.ready = true
		m.applyLayout()
	case tea.KeyMsg:
		if cmd := m.handleKey(typed); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case responseMsg:
		if cmd := m.handleResult(typed.result); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case statusMsg:
		m.status = typed
	case spinner.TickMsg:
		if m.sending {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(typed)
			cmds = append(cmds, cmd)
		}
	case envFileMsg:
		if cmd := m.handleEnvFile(typed); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case envReloadedMsg:
		m.applyEnvironments(typed)
	case historyLoadedMsg:
		if typed.err != nil {
			m.setStatus("History unavailable: "+errdef.Message(typed.err), statusWarn)
		} else {
			m.entries = typed.entries
		}
		m.refreshViewport()
	default:
		var cmd tea.Cmd
		m.urlInput, cmd = m.urlInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if action, ok := m.keys.action(msg); ok {
		return m.runAction(action)
	}

	vpKeys := m.viewport.KeyMap
	if key.Matches(msg, vpKeys.PageDown, vpKeys.PageUp, vpKeys.HalfPageDown, vpKeys.HalfPageUp, vpKeys.Down, vpKeys.Up) {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.rememberScroll()
		return cmd
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	m.request.URL = m.urlInput.Value()
	return cmd
}

func (m *Model) runAction(action bindings.ActionID) tea.Cmd {
	switch action {
	case bindings.ActionQuit:
		m.shutdown()
		return tea.Quit
	case bindings.ActionCancel:
		m.cancelSend()
	case bindings.ActionSend:
		return m.startSend()
	case bindings.ActionNextMethod:
		m.request.Method = m.request.Method.Next()
		m.applyLayout()
	case bindings.ActionPrevMethod:
		m.request.Method = m.request.Method.Prev()
		m.applyLayout()
	case bindings.ActionNextEnv:
		m.cycleEnvironment()
	case bindings.ActionNextTab:
		return m.setTab((m.tab + 1) % tabCount)
	case bindings.ActionPrevTab:
		return m.setTab((m.tab + tabCount - 1) % tabCount)
	case bindings.ActionCopy:
		return m.copyActiveTab()
	case bindings.ActionHelp:
		m.help.ShowAll = !m.help.ShowAll
		m.applyLayout()
	}
	return nil
}

// startSend hands the current request to the dispatcher, which cancels any
// send still in flight.
func (m *Model) startSend() tea.Cmd {
	cmd := m.sendCmd()
	if cmd == nil {
		return nil
	}
	return tea.Batch(m.spinner.Tick, cmd)
}

func (m *Model) sendCmd() tea.Cmd {
	m.request.URL = m.urlInput.Value()
	if strings.TrimSpace(m.request.URL) == "" {
		m.setStatus("Enter a URL to send", statusWarn)
		return nil
	}
	id := m.dispatcher.Send(send.Snapshot{
		Request:     m.request,
		Environment: m.activeEnvironment(),
		OSEnv:       m.osEnv,
	})
	if id == 0 {
		return nil
	}
	m.sending = true
	m.errText = ""
	display := m.resolver().Resolve(m.request.URL).Value
	m.setStatus(fmt.Sprintf("Sending %s %s", m.request.Method, display), statusInfo)
	return waitForResult(m.dispatcher.Results())
}

func (m *Model) cancelSend() {
	if !m.sending {
		return
	}
	if m.dispatcher.Cancel() {
		m.sending = false
		m.setStatus("Request canceled", statusInfo)
	}
}

func (m *Model) handleResult(res send.Result) tea.Cmd {
	if !m.dispatcher.Accept(res) {
		m.log.Debug("discarding stale result", "id", res.ID)
		return nil
	}
	m.sending = false

	switch {
	case res.Canceled():
		m.setStatus("Request canceled", statusInfo)
	case res.Err != nil:
		m.errText = errdef.Message(res.Err)
		m.setStatus(fmt.Sprintf("%s %s failed", res.Method, res.DisplayURL), statusError)
	default:
		if m.response != nil {
			m.previous = m.response
		}
		m.response = res.Response
		m.errText = ""
		resp := res.Response
		level := statusSuccess
		if !resp.Success() {
			level = statusWarn
		}
		text := fmt.Sprintf("%s · %s · %s", resp.Status(), formatDuration(resp.Timing.Total), formatBytes(resp.SizeBytes))
		if len(res.Unresolved) > 0 {
			text += " · unresolved: " + strings.Join(res.Unresolved, ", ")
			level = statusWarn
		}
		m.setStatus(text, level)
	}

	m.refreshViewport()
	if m.tab == tabHistory {
		return m.loadHistory()
	}
	return nil
}

func (m *Model) setTab(tab responseTab) tea.Cmd {
	m.rememberScroll()
	m.tab = tab
	m.refreshViewport()
	if tab == tabHistory {
		return m.loadHistory()
	}
	return nil
}

func (m *Model) loadHistory() tea.Cmd {
	src := m.historySrc
	if src == nil {
		return nil
	}
	return func() tea.Msg {
		entries, err := src.Recent(context.Background(), historyListLimit)
		return historyLoadedMsg{entries: entries, err: err}
	}
}

func (m *Model) handleEnvFile(msg envFileMsg) tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	next := waitForFileEvent(m.watcher.Events())
	if msg.event.Kind == watcher.EventMissing {
		m.setStatus("Environments file removed; keeping loaded environments", statusWarn)
		return next
	}
	return tea.Batch(next, reloadEnvironments(m.envHandle))
}

// applyEnvironments swaps in a reloaded set, keeping the active environment
// by name when it still exists.
func (m *Model) applyEnvironments(msg envReloadedMsg) {
	if msg.err != nil {
		m.setStatus("Reload environments: "+errdef.Message(msg.err), statusError)
		return
	}
	active := ""
	if env := m.activeEnvironment(); env != nil {
		active = env.Name
	}
	m.envs = msg.set
	m.selectEnvironment(active)
	m.setStatus(fmt.Sprintf("Reloaded %d environment(s)", len(m.envs)), statusInfo)
}

func waitForResult(results <-chan send.Result) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-results
		if !ok {
			return nil
		}
		return responseMsg{result: res}
	}
}

func waitForFileEvent(events <-chan watcher.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return nil
		}
		return envFileMsg{event: evt}
	}
}

func reloadEnvironments(handle config.Handle) tea.Cmd {
	return func() tea.Msg {
		set, err := config.LoadEnvironments(handle)
		return envReloadedMsg{set: set, err: err}
	}
}
