package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/deskd/tui/theme"
)

const sidebarWidth = 30

// detailSize is the viewport size left after the sidebar, header and help.
func (m *Model) detailSize() (int, int) {
	w := m.width - sidebarWidth - 4
	h := m.height - 4 - lipgloss.Height(m.help.View(m.keys))
	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}
	return w, h
}

// View renders the monitor.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}
	t := theme.DefaultTheme

	header := t.Header.Render("deskd monitor")
	if m.streamClosed {
		header += "  " + t.Error.Render("stream closed")
	} else if m.err != nil {
		header += "  " + t.Warning.Render(m.err.Error())
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebarView(t),
		t.Box.Render(m.viewport.View()),
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.help.View(m.keys))
}

func (m *Model) sidebarView(t *theme.Theme) string {
	var b strings.Builder
	for i, s := range m.services {
		line := fmt.Sprintf("%-13s %s", s.Name, t.RenderStatus(s.State, fmt.Sprintf("%-11s", s.State)))
		if i == m.cursor {
			line = t.Selected.Render(line)
		}
		b.WriteString(line + "\n")

		meta := fmt.Sprintf("  %d updates", m.counts[s.Name])
		if at, ok := m.updated[s.Name]; ok {
			meta += ", " + at.Format(time.TimeOnly)
		}
		b.WriteString(t.Muted.Render(meta) + "\n")
	}
	if len(m.services) == 0 {
		b.WriteString(t.Muted.Render("no services"))
	}

	return t.Box.Width(sidebarWidth).Render(strings.TrimRight(b.String(), "\n"))
}
