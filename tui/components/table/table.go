// Package table builds the bordered tables the deskd CLI prints.
package table

import (
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/grovetools/deskd/tui/theme"
)

// New returns a table with the given header row in the default theme.
func New(headers ...string) *ltable.Table {
	return NewWithTheme(theme.DefaultTheme, headers...)
}

// NewWithTheme returns a table styled with t.
func NewWithTheme(t *theme.Theme, headers ...string) *ltable.Table {
	header := lipgloss.NewStyle().Bold(true).Foreground(t.Colors.Cyan).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return header
			}
			return cell
		})
}
