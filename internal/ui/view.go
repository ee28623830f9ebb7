package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/forgehttp/forge/internal/request"
	"github.com/forgehttp/forge/internal/vars"
)

const (
	// header, request line, preview, tabs, status, help, plus the two
	// border rows around the response.
	chromeRows      = 8
	requestNameMax  = 32
	previewArrow    = "→ "
	emptyStateHint  = "Type a URL and press enter to send."
	minContentWidth = 10
)

func (m *Model) applyLayout() {
	if !m.ready {
		return
	}
	methodWidth := lipgloss.Width(m.methodBadge())
	m.urlInput.Width = max(m.width-methodWidth-2, minContentWidth)

	helpRows := 1
	if m.help.ShowAll {
		helpRows = len(m.keys.FullHelp())
	}
	m.help.Width = m.width
	m.viewport.Width = max(m.width-2, minContentWidth)
	m.viewport.Height = max(m.height-chromeRows-(helpRows-1), 1)
	m.refreshViewport()
}

func (m Model) View() string {
	if !m.ready {
		return "loading…"
	}
	sections := []string{
		m.renderHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.methodBadge(), " ", m.urlInput.View()),
		m.renderPreview(),
		m.renderTabs(),
		m.theme.ResponseBorder.Width(m.viewport.Width).Render(m.renderPane()),
		m.renderStatus(),
		m.help.View(m.keys),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	parts := []string{m.theme.HeaderBrand.Render("forge")}
	if env := m.activeEnvironment(); env != nil {
		badge := m.theme.EnvBadge
		if env.Color != "" {
			badge = badge.Background(lipgloss.Color(env.Color))
		}
		parts = append(parts, badge.Render(env.Name))
	} else {
		parts = append(parts, m.theme.Muted.Render("no environment"))
	}
	name := strings.TrimSpace(m.request.Name)
	if name == "" {
		name = request.DefaultName
	}
	parts = append(parts, m.theme.HeaderValue.Render(runewidth.Truncate(name, requestNameMax, "…")))
	return m.theme.Header.Render(strings.Join(parts, " "))
}

func (m Model) methodBadge() string {
	color := m.theme.MethodColors.For(m.request.Method)
	return m.theme.MethodBadge.Background(color).Render(m.request.Method.String())
}

// renderPreview shows the display resolution of the URL with each
// placeholder colored by status. Secrets only ever appear masked here.
func (m Model) renderPreview() string {
	raw := m.urlInput.Value()
	if strings.TrimSpace(raw) == "" {
		return m.theme.Muted.Render(previewArrow)
	}
	resolved := m.resolver().Resolve(raw)
	line := previewArrow + colorSpans(resolved, m.theme.URLPreview, m.theme.Placeholders.For)
	return ansi.Truncate(line, max(m.width, minContentWidth), "…")
}

func colorSpans(res vars.Resolved, plain lipgloss.Style, styleFor func(vars.Status) lipgloss.Style) string {
	var b strings.Builder
	last := 0
	for _, span := range res.Spans {
		if span.Start > last {
			b.WriteString(plain.Render(res.Value[last:span.Start]))
		}
		b.WriteString(styleFor(span.Status).Render(res.Value[span.Start:span.End]))
		last = span.End
	}
	if last < len(res.Value) {
		b.WriteString(plain.Render(res.Value[last:]))
	}
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, tabCount)
	for t := responseTab(0); t < tabCount; t++ {
		style := m.theme.TabInactive
		if t == m.tab {
			style = m.theme.TabActive
		}
		tabs = append(tabs, style.Render(t.label()))
	}
	return m.theme.Tabs.Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

// renderPane shows exactly one of: the loading spinner, the error of the last
// send, or the active tab.
func (m Model) renderPane() string {
	switch {
	case m.sending:
		return padLines(m.spinner.View()+" Sending…", m.viewport.Height)
	case m.errText != "":
		return padLines(m.theme.Error.Render(m.errText), m.viewport.Height)
	case m.response == nil && m.tab != tabHistory:
		return padLines(m.theme.Muted.Render(emptyStateHint), m.viewport.Height)
	default:
		return m.viewport.View()
	}
}

func (m Model) renderStatus() string {
	style := m.theme.StatusBar
	switch m.status.level {
	case statusError:
		style = style.Inherit(m.theme.Error)
	case statusWarn:
		style = style.Inherit(m.theme.Warn)
	case statusSuccess:
		style = style.Inherit(m.theme.Success)
	}
	return style.Render(ansi.Truncate(m.status.text, max(m.width-2, minContentWidth), "…"))
}

func (m *Model) refreshViewport() {
	content := m.tabContent(true)
	m.viewport.SetContent(truncateLines(content, m.viewport.Width))
	if m.tab == tabBody && m.response != nil {
		m.viewport.SetYOffset(m.response.ScrollOffset)
		return
	}
	m.viewport.GotoTop()
}

// rememberScroll stores the body scroll position on the response itself so
// switching tabs does not lose it.
func (m *Model) rememberScroll() {
	if m.tab == tabBody && m.response != nil {
		m.response.ScrollOffset = m.viewport.YOffset
	}
}

func truncateLines(content string, width int) string {
	if width <= 0 || content == "" {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = ansi.Truncate(line, width, "")
	}
	return strings.Join(lines, "\n")
}

func padLines(s string, height int) string {
	lines := strings.Count(s, "\n") + 1
	if lines >= height {
		return s
	}
	return s + strings.Repeat("\n", height-lines)
}
