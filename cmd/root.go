package cmd

import (
	"github.com/grovetools/deskd/cli"
	"github.com/grovetools/deskd/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the deskd command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("deskd", "Desktop shell backend daemon")
	root.Long = `deskd keeps live, deduplicated snapshots of desktop resources (battery,
bluetooth, brightness, clipboard history, applications, audio) and serves them
to shell widgets over a Unix socket.`

	info := version.GetInfo()
	cli.SetVersionTemplate(root, info)

	root.AddCommand(
		NewStartCmd(),
		NewStopCmd(),
		NewStatusCmd(),
		NewStateCmd(),
		NewWatchCmd(),
		NewMonitorCmd(),
		NewLogsCmd(),
		NewAppsCmd(),
		NewBrightnessCmd(),
		NewClipCmd(),
		NewAudioCmd(),
		NewBluetoothCmd(),
		NewConfigCmd(),
		NewPathsCmd(),
		cli.NewVersionCommand("deskd", info),
	)
	return root
}
