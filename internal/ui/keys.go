package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/forgehttp/forge/internal/bindings"
)

// keyMap dispatches through the user's bindings; the key.Binding fields only
// feed the help view.
type keyMap struct {
	bindings *bindings.Map

	Send       key.Binding
	Cancel     key.Binding
	NextMethod key.Binding
	PrevMethod key.Binding
	NextEnv    key.Binding
	NextTab    key.Binding
	PrevTab    key.Binding
	Copy       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newKeyMap(m *bindings.Map) keyMap {
	if m == nil {
		m = bindings.DefaultMap()
	}
	bind := func(action bindings.ActionID) key.Binding {
		keys := m.Keys(action)
		if len(keys) == 0 {
			return key.NewBinding(key.WithDisabled())
		}
		return key.NewBinding(
			key.WithKeys(keys...),
			key.WithHelp(keys[0], bindings.Help(action)),
		)
	}
	return keyMap{
		bindings:   m,
		Send:       bind(bindings.ActionSend),
		Cancel:     bind(bindings.ActionCancel),
		NextMethod: bind(bindings.ActionNextMethod),
		PrevMethod: bind(bindings.ActionPrevMethod),
		NextEnv:    bind(bindings.ActionNextEnv),
		NextTab:    bind(bindings.ActionNextTab),
		PrevTab:    bind(bindings.ActionPrevTab),
		Copy:       bind(bindings.ActionCopy),
		Help:       bind(bindings.ActionHelp),
		Quit:       bind(bindings.ActionQuit),
	}
}

func (k keyMap) action(msg tea.KeyMsg) (bindings.ActionID, bool) {
	return k.bindings.Match(msg.String())
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Cancel, k.NextMethod, k.NextEnv, k.NextTab, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Cancel, k.Quit},
		{k.NextMethod, k.PrevMethod, k.NextEnv},
		{k.NextTab, k.PrevTab, k.Copy, k.Help},
	}
}
