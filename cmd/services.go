package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/grovetools/deskd/cli"
	"github.com/grovetools/deskd/command"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/daemon"
	"github.com/grovetools/deskd/pkg/services/applications"
	"github.com/grovetools/deskd/pkg/services/audio"
	"github.com/grovetools/deskd/pkg/services/bluetooth"
	"github.com/grovetools/deskd/pkg/services/brightness"
	"github.com/grovetools/deskd/pkg/services/clipboard"
	"github.com/grovetools/deskd/tui/components/table"
	"github.com/spf13/cobra"
)

// NewAppsCmd returns the applications commands.
func NewAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Query and launch desktop applications",
	}

	query := &cobra.Command{
		Use:   "query [term]",
		Short: "List applications matching term",
		Long: `List applications whose name, description, executable or desktop file path
contains term. Results are ordered by launch count, then name.

Examples:
  deskd apps query fire
  deskd apps query --fuzzy frfx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			name := "query"
			if fuzzy, _ := cmd.Flags().GetBool("fuzzy"); fuzzy {
				name = "fuzzy_query"
			}
			return withClient(cmd, func(ctx context.Context, client daemon.Client) error {
				raw, err := client.Command(ctx, applications.Name, name, map[string]any{"term": term})
				if err != nil {
					return err
				}
				if cli.GetOptions(cmd).JSONOutput {
					return printJSON(cmd.OutOrStdout(), raw)
				}
				var apps []applications.Application
				if err := json.Unmarshal(raw, &apps); err != nil {
					return errors.DataInvalid("application list", err)
				}
				return printApps(cmd, apps)
			})
		},
	}
	query.Flags().Bool("fuzzy", false, "Rank by fuzzy match on the name instead of substring match")

	launch := &cobra.Command{
		Use:   "launch <desktop-file>",
		Short: "Launch an application by its desktop file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, applications.Name, "launch", map[string]any{"desktop": args[0]})
		},
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Write launch counts to the frequency cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, applications.Name, "save", nil)
		},
	}

	cmd.AddCommand(query, launch, save)
	return cmd
}

func printApps(cmd *cobra.Command, apps []applications.Application) error {
	width := cli.TerminalWidth(120)
	tbl := table.New("COUNT", "NAME", "DESKTOP")
	for _, app := range apps {
		tbl.Row(strconv.FormatUint(app.Frequency, 10), truncate(app.Name, width/3), app.Desktop)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if max < 4 || len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// NewBrightnessCmd returns the brightness commands.
func NewBrightnessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brightness",
		Short: "Read or set the screen brightness",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the brightness as a fraction of the maximum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client daemon.Client) error {
				raw, err := client.ServiceState(ctx, brightness.Name)
				if err != nil {
					return err
				}
				if cli.GetOptions(cmd).JSONOutput {
					return printJSON(cmd.OutOrStdout(), raw)
				}
				var data brightness.Data
				if err := json.Unmarshal(raw, &data); err != nil {
					return errors.DataInvalid("brightness snapshot", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", data.ScreenValue)
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <value>",
		Short: "Set the brightness",
		Long: `Set the brightness to a fraction of the maximum (0.4) or a percentage (40%).

Examples:
  deskd brightness set 0.4
  deskd brightness set 40%`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseBrightness(args[0])
			if err != nil {
				return err
			}
			return runCommand(cmd, brightness.Name, "set", map[string]any{"value": value})
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func parseBrightness(arg string) (float64, error) {
	if strings.HasSuffix(arg, "%") {
		if err := command.Validate("percent", strings.TrimSuffix(arg, "%")); err != nil {
			return 0, err
		}
		pct, _ := strconv.ParseFloat(strings.TrimSuffix(arg, "%"), 64)
		return pct / 100, nil
	}
	value, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("invalid brightness '%s'", arg))
	}
	return value, nil
}

// NewClipCmd returns the clipboard history commands.
func NewClipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clip",
		Short: "Browse and restore clipboard history",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List clipboard history entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client daemon.Client) error {
				raw, err := client.ServiceState(ctx, clipboard.Name)
				if err != nil {
					return err
				}
				if cli.GetOptions(cmd).JSONOutput {
					return printJSON(cmd.OutOrStdout(), raw)
				}
				var data clipboard.Data
				if err := json.Unmarshal(raw, &data); err != nil {
					return errors.DataInvalid("clipboard snapshot", err)
				}
				width := cli.TerminalWidth(100)
				for _, e := range data.Entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%6d  %s\n", e.ID, truncate(describeEntry(e), width-8))
				}
				return nil
			})
		},
	}

	copyCmd := &cobra.Command{
		Use:   "copy <id>",
		Short: "Copy a history entry back to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := command.Validate("clipID", args[0]); err != nil {
				return err
			}
			id, _ := strconv.ParseUint(args[0], 10, 64)
			return runCommand(cmd, clipboard.Name, "copy", map[string]any{"id": id})
		},
	}

	cmd.AddCommand(list, copyCmd)
	return cmd
}

func describeEntry(e clipboard.Entry) string {
	switch e.Kind {
	case clipboard.Text:
		return strings.Join(strings.Fields(e.Text), " ")
	case clipboard.RasterImage:
		return fmt.Sprintf("[%s %dx%d]", e.MIME, e.Width, e.Height)
	case clipboard.VectorImage:
		return "[svg image]"
	default:
		if e.MIME != "" {
			return fmt.Sprintf("[%s %d bytes]", e.MIME, len(e.Data))
		}
		return fmt.Sprintf("[binary %d bytes]", len(e.Data))
	}
}

// NewAudioCmd returns the audio commands.
func NewAudioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Inspect and control audio devices",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List outputs, inputs and streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client daemon.Client) error {
				raw, err := client.ServiceState(ctx, audio.Name)
				if err != nil {
					return err
				}
				if cli.GetOptions(cmd).JSONOutput {
					return printJSON(cmd.OutOrStdout(), raw)
				}
				var data audio.Data
				if err := json.Unmarshal(raw, &data); err != nil {
					return errors.DataInvalid("audio snapshot", err)
				}
				return printAudio(cmd, data)
			})
		},
	}

	defaultSink := &cobra.Command{
		Use:   "default-sink <name>",
		Short: "Set the default output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, audio.Name, "set_default_sink", map[string]any{"name": args[0]})
		},
	}

	defaultSource := &cobra.Command{
		Use:   "default-source <name>",
		Short: "Set the default input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, audio.Name, "set_default_source", map[string]any{"name": args[0]})
		},
	}

	mute := &cobra.Command{
		Use:   "mute <sink|source|app|recorder> <name-or-id>",
		Short: "Mute or unmute a device or stream",
		Long: `Mute a device by name or a stream by id. Pass --off to unmute.

Examples:
  deskd audio mute sink alsa_output.pci-0000_00_1f.3.analog-stereo
  deskd audio mute app 42 --off`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, _ := cmd.Flags().GetBool("off")
			muted := !off
			switch args[0] {
			case "sink", "source":
				return runCommand(cmd, audio.Name, "set_"+args[0]+"_mute", map[string]any{"name": args[1], "muted": muted})
			case "app", "recorder":
				id, err := strconv.ParseUint(args[1], 10, 32)
				if err != nil {
					return errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("invalid stream id '%s'", args[1]))
				}
				return runCommand(cmd, audio.Name, "set_"+args[0]+"_mute", map[string]any{"id": id, "muted": muted})
			default:
				return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown target '%s': use sink, source, app or recorder", args[0]))
			}
		},
	}
	mute.Flags().Bool("off", false, "Unmute instead of mute")

	cmd.AddCommand(list, defaultSink, defaultSource, mute)
	return cmd
}

func printAudio(cmd *cobra.Command, data audio.Data) error {
	tbl := table.New("KIND", "ID", "NAME", "VOLUME", "MUTED", "DEFAULT")
	row := func(s audio.Stream, isDefault bool) {
		name := s.Description
		if s.AppName != "" {
			name = s.AppName + ": " + s.Description
		}
		volumes := make([]string, len(s.Volume))
		for i, v := range s.Volume {
			volumes[i] = strconv.FormatUint(uint64(v), 10)
		}
		mark := ""
		if isDefault {
			mark = "*"
		}
		tbl.Row(string(s.Kind), strconv.FormatUint(uint64(s.ID), 10), name, strings.Join(volumes, "/"), strconv.FormatBool(s.Muted), mark)
	}
	for _, s := range data.Speakers {
		row(s, s.Name == data.DefaultSink)
	}
	for _, s := range data.Microphones {
		row(s, s.Name == data.DefaultSource)
	}
	for _, s := range data.Apps {
		row(s, false)
	}
	for _, s := range data.Recorders {
		row(s, false)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())
	return nil
}

// NewBluetoothCmd returns the bluetooth commands.
func NewBluetoothCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bluetooth",
		Short: "Control the Bluetooth adapter and devices",
	}

	power := &cobra.Command{
		Use:   "power <on|off>",
		Short: "Power the adapter on or off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch args[0] {
			case "on":
				on = true
			case "off":
			default:
				return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("expected on or off, got '%s'", args[0]))
			}
			return runCommand(cmd, bluetooth.Name, "power", map[string]any{"on": on})
		},
	}

	device := func(use, short, name string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <address>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCommand(cmd, bluetooth.Name, name, map[string]any{"address": args[0]})
			},
		}
	}

	cmd.AddCommand(
		power,
		device("connect", "Connect a device", "connect"),
		device("disconnect", "Disconnect a device", "disconnect"),
	)
	return cmd
}
