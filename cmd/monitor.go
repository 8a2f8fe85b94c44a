package cmd

import (
	"context"
	stderrors "errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/deskd/tui"
	"github.com/grovetools/deskd/tui/monitor"
	"github.com/spf13/cobra"
)

// NewMonitorCmd returns the live monitor command.
func NewMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Watch every service snapshot live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			model, err := monitor.New(ctx, client)
			if err != nil {
				return err
			}

			tui.InitializeTUI()
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if stderrors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
}
