package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-udiff"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/forgehttp/forge/internal/binaryview"
	"github.com/forgehttp/forge/internal/httpclient"
	"github.com/forgehttp/forge/internal/nettrace"
)

const binaryPreviewBytes = binaryview.DefaultPreviewBytes

// tabContent renders the active tab. styled=false yields what gets copied.
func (m *Model) tabContent(styled bool) string {
	switch m.tab {
	case tabBody:
		return m.bodyContent(styled)
	case tabHeaders:
		return headersContent(m.response)
	case tabCookies:
		return cookiesContent(m.response)
	case tabTiming:
		return timingContent(m.response)
	case tabDiff:
		text := diffContent(m.previous, m.response)
		if styled {
			return m.colorDiff(text)
		}
		return text
	case tabHistory:
		return m.historyContent()
	default:
		return ""
	}
}

func (m *Model) bodyContent(styled bool) string {
	resp := m.response
	if resp == nil {
		return ""
	}
	switch resp.Body.Kind {
	case httpclient.BodyText:
		if styled {
			return m.highlighter.Response(resp)
		}
		return resp.Body.Text
	case httpclient.BodyBinary:
		return binaryContent(resp)
	default:
		return "<empty body>"
	}
}

func binaryContent(resp *httpclient.Response) string {
	raw := resp.Raw
	if len(raw) == 0 {
		raw = resp.Body.Bytes
	}
	var b strings.Builder
	fmt.Fprintf(&b, "binary body, %s", formatBytes(resp.SizeBytes))
	if ct := resp.ContentType(); ct != "" {
		fmt.Fprintf(&b, " (%s)", ct)
	}
	name := binaryview.FilenameHint(resp.Header("Content-Disposition"), resp.EffectiveURL, resp.ContentType())
	fmt.Fprintf(&b, "\nsave with: forge send -O  (%s)\n\n", name)
	b.WriteString(binaryview.Preview(raw, binaryPreviewBytes))
	return b.String()
}

func headersContent(resp *httpclient.Response) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	fmt.Fprintf(&b, "%s %s\n", proto, resp.Status())
	if resp.EffectiveURL != "" {
		fmt.Fprintf(&b, "URL: %s\n", resp.EffectiveURL)
	}
	b.WriteString("\n")
	if len(resp.Headers) == 0 {
		b.WriteString("<no headers>\n")
	}
	for _, h := range resp.Headers {
		fmt.Fprintf(&b, "%s: %s\n", h.Name, h.Value)
	}
	return b.String()
}

func cookiesContent(resp *httpclient.Response) string {
	if resp == nil {
		return ""
	}
	if len(resp.Cookies) == 0 {
		return "<no cookies>\n"
	}
	var b strings.Builder
	for _, c := range resp.Cookies {
		fmt.Fprintf(&b, "%s=%s\n", c.Name, c.Value)
		if c.Domain != "" {
			fmt.Fprintf(&b, "  domain: %s\n", c.Domain)
		}
		fmt.Fprintf(&b, "  path:   %s\n", c.Path)
	}
	return b.String()
}

func timingContent(resp *httpclient.Response) string {
	if resp == nil {
		return ""
	}
	t := resp.Timing
	rows := []struct {
		label string
		value time.Duration
	}{
		{"DNS", t.DNS},
		{"Connect", t.Connect},
		{"TLS", t.TLS},
		{"TTFB", t.TTFB},
		{"Download", t.Download},
		{"Total", t.Total},
	}
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%-9s %s\n", row.label, formatDuration(row.value))
	}
	fmt.Fprintf(&b, "%-9s %s\n", "Size", formatBytes(resp.SizeBytes))
	fmt.Fprintf(&b, "%-9s %s\n", "Received", resp.ReceivedAt.Format(time.RFC3339))

	if tl := resp.Timeline; tl != nil {
		if conn := tl.Conn; conn != nil {
			b.WriteString("\n")
			writeConn(&b, conn)
		}
		if len(tl.Phases) > 0 {
			b.WriteString("\nPhases\n")
			for _, phase := range tl.Phases {
				offset := phase.Start.Sub(tl.Started)
				line := fmt.Sprintf("  %-9s +%-9s %s", phase.Kind, formatDuration(offset), formatDuration(phase.Duration))
				if phase.Reused {
					line += " (reused)"
				}
				if phase.Err != "" {
					line += " error: " + phase.Err
				}
				b.WriteString(line + "\n")
			}
		}
	}
	return b.String()
}

func writeConn(b *strings.Builder, conn *nettrace.ConnInfo) {
	if conn.RemoteAddr != "" {
		remote := conn.RemoteAddr
		if conn.Reused {
			remote += " (reused)"
		}
		fmt.Fprintf(b, "%-9s %s\n", "Remote", remote)
	}
	if conn.Protocol != "" {
		fmt.Fprintf(b, "%-9s %s\n", "Protocol", conn.Protocol)
	}
	if conn.TLSVersion != "" {
		fmt.Fprintf(b, "%-9s %s %s\n", "TLS", conn.TLSVersion, conn.Cipher)
	}
	if conn.ServerName != "" {
		fmt.Fprintf(b, "%-9s %s\n", "SNI", conn.ServerName)
	}
}

// diffContent compares status, headers and body of two responses.
func diffContent(prev, curr *httpclient.Response) string {
	if curr == nil {
		return ""
	}
	if prev == nil {
		return "No previous response to compare against.\n"
	}
	left := diffable(prev)
	right := diffable(curr)
	if left == right {
		return "Responses are identical.\n"
	}
	return udiff.Unified("previous", "current", left, right)
}

func diffable(resp *httpclient.Response) string {
	var b strings.Builder
	b.WriteString(headersContent(resp))
	b.WriteString("\n")
	switch resp.Body.Kind {
	case httpclient.BodyText:
		b.WriteString(resp.Body.Text)
	case httpclient.BodyBinary:
		fmt.Fprintf(&b, "<binary %d bytes>", resp.SizeBytes)
	}
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) colorDiff(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = m.theme.Muted.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = m.theme.DiffHunk.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = m.theme.DiffAdded.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = m.theme.DiffRemoved.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) historyContent() string {
	if m.historySrc == nil {
		return "History is disabled.\n"
	}
	if len(m.entries) == 0 {
		return "No sends recorded yet.\n"
	}
	var b strings.Builder
	for _, e := range m.entries {
		status := e.Status
		if e.Failed() {
			status = "ERR " + e.Error
		}
		env := ""
		if e.Environment != "" {
			env = " [" + e.Environment + "]"
		}
		fmt.Fprintf(&b, "%s  %-7s %s  %s%s  %s\n",
			e.ExecutedAt.Local().Format("01-02 15:04:05"),
			e.Method,
			status,
			e.URL,
			env,
			formatDuration(e.Duration),
		)
	}
	return b.String()
}

func (m *Model) copyActiveTab() tea.Cmd {
	if m.response == nil && m.tab != tabHistory {
		m.setStatus("No response available to copy", statusWarn)
		return nil
	}
	content := ansi.Strip(m.tabContent(false))
	label := m.tab.label()
	return func() tea.Msg {
		if err := clipboard.WriteAll(content); err != nil {
			return statusMsg{text: "Copy failed: " + err.Error(), level: statusError}
		}
		return statusMsg{
			text:  fmt.Sprintf("Copied %s (%s)", label, formatBytes(len(content))),
			level: statusSuccess,
		}
	}
}

func formatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
