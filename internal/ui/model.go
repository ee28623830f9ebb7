package ui

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/forgehttp/forge/internal/bindings"
	"github.com/forgehttp/forge/internal/config"
	"github.com/forgehttp/forge/internal/highlight"
	"github.com/forgehttp/forge/internal/history"
	"github.com/forgehttp/forge/internal/httpclient"
	"github.com/forgehttp/forge/internal/request"
	"github.com/forgehttp/forge/internal/send"
	"github.com/forgehttp/forge/internal/theme"
	"github.com/forgehttp/forge/internal/vars"
	"github.com/forgehttp/forge/internal/watcher"
)

var _ tea.Model = Model{}

type responseTab int

const (
	tabBody responseTab = iota
	tabHeaders
	tabCookies
	tabTiming
	tabDiff
	tabHistory
	tabCount
)

func (t responseTab) label() string {
	switch t {
	case tabBody:
		return "Body"
	case tabHeaders:
		return "Headers"
	case tabCookies:
		return "Cookies"
	case tabTiming:
		return "Timing"
	case tabDiff:
		return "Diff"
	case tabHistory:
		return "History"
	default:
		return "?"
	}
}

const historyListLimit = 50

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

type Config struct {
	Request           *request.Request
	Environments      vars.EnvironmentSet
	EnvironmentsFile  config.Handle
	ActiveEnvironment string
	// OSEnv is the lowest resolution layer; nil means the process environment.
	OSEnv       vars.Provider
	Dispatcher  *send.Dispatcher
	Highlighter *highlight.Highlighter
	History     HistoryReader
	Watcher     *watcher.Watcher
	Theme       *theme.Theme
	// Bindings nil means the built-in shortcuts.
	Bindings *bindings.Map
	Logger   *slog.Logger
}

// Model is the single-request workbench: a URL bar with live placeholder
// coloring above a tabbed response view.
type Model struct {
	theme theme.Theme
	keys  keyMap
	help  help.Model
	log   *slog.Logger

	urlInput textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	request   *request.Request
	envs      vars.EnvironmentSet
	envIndex  int
	envHandle config.Handle
	osEnv     vars.Provider

	dispatcher  *send.Dispatcher
	highlighter *highlight.Highlighter
	historySrc  HistoryReader
	watcher     *watcher.Watcher

	response *httpclient.Response
	previous *httpclient.Response
	errText  string
	entries  []history.Entry
	tab      responseTab
	status   statusMsg
	sending  bool
	width    int
	height   int
	ready    bool
}

func New(cfg Config) Model {
	req := cfg.Request
	if req == nil {
		req = request.New()
	}
	th := theme.DefaultTheme()
	if cfg.Theme != nil {
		th = *cfg.Theme
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = send.NewDispatcher(
			httpclient.NewClient(httpclient.DefaultOptions()),
			send.WithLogger(logger),
		)
	}
	hl := cfg.Highlighter
	if hl == nil {
		hl = highlight.New(highlight.DefaultOptions())
	}

	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = "https://api.example.com/{{path}}"
	input.SetValue(req.URL)
	input.Focus()

	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Down:         key.NewBinding(key.WithKeys("down")),
		Up:           key.NewBinding(key.WithKeys("up")),
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = th.Warn

	m := Model{
		theme:       th,
		keys:        newKeyMap(cfg.Bindings),
		help:        help.New(),
		log:         logger,
		urlInput:    input,
		viewport:    vp,
		spinner:     sp,
		request:     req,
		envs:        cfg.Environments,
		envIndex:    -1,
		envHandle:   cfg.EnvironmentsFile,
		osEnv:       cfg.OSEnv,
		dispatcher:  dispatcher,
		highlighter: hl,
		historySrc:  cfg.History,
		watcher:     cfg.Watcher,
	}
	m.selectEnvironment(cfg.ActiveEnvironment)
	return m
}

// selectEnvironment prefers an exact name, then a case-insensitive one, then
// the first environment.
func (m *Model) selectEnvironment(name string) {
	m.envIndex = -1
	if len(m.envs) == 0 {
		return
	}
	m.envIndex = 0
	for i := range m.envs {
		if m.envs[i].Name == name {
			m.envIndex = i
			return
		}
	}
	for i := range m.envs {
		if strings.EqualFold(m.envs[i].Name, name) {
			m.envIndex = i
			return
		}
	}
}

func (m *Model) activeEnvironment() *vars.Environment {
	if m.envIndex < 0 || m.envIndex >= len(m.envs) {
		return nil
	}
	return &m.envs[m.envIndex]
}

func (m *Model) cycleEnvironment() {
	if len(m.envs) == 0 {
		m.setStatus("No environments loaded", statusWarn)
		return
	}
	m.envIndex = (m.envIndex + 1) % len(m.envs)
	m.setStatus("Environment: "+m.envs[m.envIndex].Name, statusInfo)
}

// resolver is rebuilt from the current state on every call so the preview
// always reflects the active environment.
func (m *Model) resolver() *vars.Resolver {
	return vars.FromEnvironment(m.activeEnvironment(), m.osEnv)
}

func (m *Model) setStatus(text string, level statusLevel) {
	m.status = statusMsg{text: text, level: level}
}

func (m *Model) shutdown() {
	m.dispatcher.Close()
	if m.watcher != nil {
		m.watcher.Stop()
	}
}
