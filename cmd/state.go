package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grovetools/deskd/cli"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/daemon"
	"github.com/grovetools/deskd/tui/theme"
	"github.com/spf13/cobra"
)

// NewStateCmd returns the command printing snapshots.
func NewStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state [service]",
		Short: "Print the current snapshot of one or all services",
		Long: `Print the current snapshot of one service, or of every available service
keyed by name.

Examples:
  deskd state
  deskd state battery`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client daemon.Client) error {
				if len(args) == 1 {
					raw, err := client.ServiceState(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), raw)
				}
				state, err := client.State(ctx)
				if err != nil {
					return err
				}
				return printValue(cmd.OutOrStdout(), state)
			})
		},
	}
}

// NewWatchCmd returns the command streaming publishes.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [service] [channel]",
		Short: "Print snapshots as services publish changes",
		Long: `Stream snapshots on every publish until interrupted. Without a service,
every service is watched. The channel defaults to "changed", which fires once
per update pass; a field name narrows the stream to that field.

Examples:
  deskd watch
  deskd watch audio speakers
  deskd watch clipboard --ws`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var service, channel string
			if len(args) > 0 {
				service = args[0]
			}
			if len(args) > 1 {
				channel = args[1]
			}
			useWS, _ := cmd.Flags().GetBool("ws")

			client, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			events, err := openStream(cmd.Context(), client, service, channel, useWS)
			if err != nil {
				return err
			}

			jsonOutput := cli.GetOptions(cmd).JSONOutput
			t := theme.DefaultTheme
			out := cmd.OutOrStdout()
			for event := range events {
				if jsonOutput {
					line, err := json.Marshal(event)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(line))
					continue
				}
				fmt.Fprintf(out, "%s %s\n", t.Accent.Render(event.Service), t.Muted.Render(event.Channel))
				if err := printJSON(out, event.Snapshot); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("ws", false, "Stream over the websocket endpoint instead of SSE")
	return cmd
}

// openStream subscribes over SSE, or over the websocket endpoint when
// useWS is set.
func openStream(ctx context.Context, client daemon.Client, service, channel string, useWS bool) (<-chan daemon.Event, error) {
	if !useWS {
		return client.Stream(ctx, service, channel)
	}
	remote, ok := client.(*daemon.RemoteClient)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "websocket streaming needs a socket client")
	}
	return remote.StreamWebsocket(ctx, service, channel)
}
