package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// InitializeTUI forces a truecolor profile when CLICOLOR_FORCE=1 or
// COLORTERM=truecolor is set, so the monitor keeps its colors when stdout is
// captured by a terminal multiplexer or a recorder.
// Call it before starting a Bubble Tea program.
func InitializeTUI() {
	if os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor" {
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}
